package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/format"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/google/uuid"
)

// PatientService implements business logic for patient operations
type PatientService struct {
	patientRepo ports.PatientRepository
}

// NewPatientService creates a new patient service
func NewPatientService(patientRepo ports.PatientRepository) *PatientService {
	return &PatientService{
		patientRepo: patientRepo,
	}
}

// RegisterPatient creates a new patient
// Validates the timezone and defaults the glucose unit to mg/dL
func (s *PatientService) RegisterPatient(ctx context.Context, req ports.RegisterPatientRequest) (*domain.Patient, error) {
	if req.Timezone != "" {
		if _, err := format.ResolveLocation(domain.TimePrefs{TimezoneAware: true, TimezoneName: req.Timezone}); err != nil {
			return nil, err
		}
	}

	bgUnit := req.BgUnit
	if bgUnit == "" {
		bgUnit = domain.UnitMilligramPerDeciliter
	}
	if !domain.IsValidGlucoseUnit(bgUnit) {
		return nil, fmt.Errorf("%w: unsupported glucose unit %q", domain.ErrInvalidArgument, bgUnit)
	}

	patient := &domain.Patient{
		ID:        uuid.New(),
		Timezone:  req.Timezone,
		BgUnit:    bgUnit,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.patientRepo.CreatePatient(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	return patient, nil
}

// GetPatient retrieves a patient by ID
func (s *PatientService) GetPatient(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error) {
	return loadPatient(ctx, s.patientRepo, patientID)
}

// loadPatient keeps domain.ErrPatientNotFound intact and wraps other failures
func loadPatient(ctx context.Context, repo ports.PatientRepository, patientID uuid.UUID) (*domain.Patient, error) {
	patient, err := repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}
