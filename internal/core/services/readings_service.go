package services

import (
	"context"
	"fmt"
	"math"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxReadingsPerBatch bounds a single ingestion request
const MaxReadingsPerBatch = 20000

// TrendsCacheInvalidator drops cached trend computations of a patient
type TrendsCacheInvalidator interface {
	InvalidatePatient(patientID uuid.UUID)
}

// ReadingsService implements CBG reading ingestion
type ReadingsService struct {
	patientRepo ports.PatientRepository
	readingRepo ports.ReadingRepository
	invalidator TrendsCacheInvalidator
	logger      logrus.FieldLogger
}

// NewReadingsService creates a new readings service
// invalidator may be nil
func NewReadingsService(
	patientRepo ports.PatientRepository,
	readingRepo ports.ReadingRepository,
	invalidator TrendsCacheInvalidator,
	logger logrus.FieldLogger,
) *ReadingsService {
	return &ReadingsService{
		patientRepo: patientRepo,
		readingRepo: readingRepo,
		invalidator: invalidator,
		logger:      logger,
	}
}

// IngestReadings validates and stores readings
// Readings without a unit take the patient's glucose unit
func (s *ReadingsService) IngestReadings(ctx context.Context, patientID uuid.UUID, inputs []ports.ReadingInput) (int, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: no readings", domain.ErrInvalidReading)
	}
	if len(inputs) > MaxReadingsPerBatch {
		return 0, fmt.Errorf("%w: batch exceeds %d readings", domain.ErrInvalidReading, MaxReadingsPerBatch)
	}

	patient, err := loadPatient(ctx, s.patientRepo, patientID)
	if err != nil {
		return 0, err
	}

	readings := make([]domain.GlucoseReading, 0, len(inputs))
	for i, in := range inputs {
		if in.Time.IsZero() {
			return 0, fmt.Errorf("%w: reading %d has no time", domain.ErrInvalidReading, i)
		}
		if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value <= 0 {
			return 0, fmt.Errorf("%w: reading %d must have a value greater than 0", domain.ErrInvalidReading, i)
		}
		unit := in.Unit
		if unit == "" {
			unit = patient.BgUnit
		}
		if !domain.IsValidGlucoseUnit(unit) {
			return 0, fmt.Errorf("%w: reading %d has unsupported unit %q", domain.ErrInvalidReading, i, unit)
		}

		readings = append(readings, domain.GlucoseReading{
			PatientID: patientID,
			Time:      in.Time.UTC(),
			Value:     in.Value,
			Unit:      unit,
		})
	}

	if err := s.readingRepo.InsertReadings(ctx, readings); err != nil {
		return 0, fmt.Errorf("failed to store readings: %w", err)
	}
	ingestedTotal.WithLabelValues("reading").Add(float64(len(readings)))

	if s.invalidator != nil {
		s.invalidator.InvalidatePatient(patientID)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id": patientID.String(),
		"readings":   len(readings),
	}).Info("Readings stored")

	return len(readings), nil
}
