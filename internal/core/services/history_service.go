package services

import (
	"context"
	"fmt"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/format"
	"github.com/IANDYI/trends-service/internal/core/history"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ParameterHistoryService implements business logic for the parameter history table
// Publishes history-updated events asynchronously after ingestion
type ParameterHistoryService struct {
	patientRepo   ports.PatientRepository
	parameterRepo ports.ParameterRepository
	publisher     ports.HistoryEventPublisher
	logger        logrus.FieldLogger
}

// NewParameterHistoryService creates a new parameter history service
// publisher may be nil when no broker is configured
func NewParameterHistoryService(
	patientRepo ports.PatientRepository,
	parameterRepo ports.ParameterRepository,
	publisher ports.HistoryEventPublisher,
	logger logrus.FieldLogger,
) *ParameterHistoryService {
	return &ParameterHistoryService{
		patientRepo:   patientRepo,
		parameterRepo: parameterRepo,
		publisher:     publisher,
		logger:        logger,
	}
}

// GetHistory returns the history rows of a patient, newest first
func (s *ParameterHistoryService) GetHistory(ctx context.Context, patientID uuid.UUID, prefs *domain.TimePrefs) ([]domain.HistorizedParameter, error) {
	patient, err := loadPatient(ctx, s.patientRepo, patientID)
	if err != nil {
		return nil, err
	}

	timePrefs := patient.TimePrefs()
	if prefs != nil {
		timePrefs = *prefs
	}
	if _, err := format.ResolveLocation(timePrefs); err != nil {
		return nil, err
	}

	groups, err := s.parameterRepo.GetParameterHistory(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter history: %w", err)
	}

	logger := s.logger.WithField("patient_id", patientID.String())
	rows := history.TransformToHistorizedParameters(groups, timePrefs, history.WithLogger(logger))
	historyRowsBuiltTotal.Add(float64(len(rows)))

	return rows, nil
}

// IngestChanges validates and stores one change group
func (s *ParameterHistoryService) IngestChanges(ctx context.Context, patientID uuid.UUID, group domain.ChangeDateParameterGroup) error {
	if err := validateGroup(group); err != nil {
		return err
	}

	exists, err := s.patientRepo.PatientExists(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to check patient existence: %w", err)
	}
	if !exists {
		return domain.ErrPatientNotFound
	}

	if err := s.parameterRepo.InsertParameterChanges(ctx, patientID, group); err != nil {
		return fmt.Errorf("failed to store parameter changes: %w", err)
	}
	ingestedTotal.WithLabelValues("parameter_change").Add(float64(len(group.Parameters)))

	logger := s.logger.WithFields(logrus.Fields{
		"patient_id":  patientID.String(),
		"change_date": group.ChangeDate,
		"parameters":  len(group.Parameters),
	})
	logger.Info("Parameter changes stored")

	if s.publisher != nil {
		go func() {
			// Background context: the request may already be done
			if err := s.publisher.PublishHistoryUpdated(context.Background(), patientID, group.ChangeDate); err != nil {
				logger.WithError(err).Warn("Failed to publish history updated event")
				return
			}
			logger.Debug("History updated event published")
		}()
	}

	return nil
}

func validateGroup(group domain.ChangeDateParameterGroup) error {
	if _, ok := format.ParseDate(group.ChangeDate); !ok {
		return fmt.Errorf("%w: change date %q is not an ISO-8601 date", domain.ErrInvalidParameter, group.ChangeDate)
	}
	if len(group.Parameters) == 0 {
		return fmt.Errorf("%w: a change group needs at least one parameter", domain.ErrInvalidParameter)
	}

	for i, p := range group.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: parameter %d has no name", domain.ErrInvalidParameter, i)
		}
		if !domain.IsValidChangeType(p.ChangeType) {
			return fmt.Errorf("%w: parameter %s has unknown change type %q", domain.ErrInvalidParameter, p.Name, p.ChangeType)
		}
		if _, ok := format.ParseDate(p.EffectiveDate); !ok {
			return fmt.Errorf("%w: parameter %s has invalid effective date %q", domain.ErrInvalidParameter, p.Name, p.EffectiveDate)
		}
		if p.Level < 0 {
			return fmt.Errorf("%w: parameter %s has negative level", domain.ErrInvalidParameter, p.Name)
		}
	}
	return nil
}
