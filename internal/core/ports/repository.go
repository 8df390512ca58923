package ports

import (
	"context"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/google/uuid"
)

// PatientRepository defines the interface for patient persistence
type PatientRepository interface {
	// CreatePatient registers a new patient
	CreatePatient(ctx context.Context, patient *domain.Patient) error

	// GetPatientByID retrieves a patient by ID
	// Returns domain.ErrPatientNotFound if the patient doesn't exist
	GetPatientByID(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error)

	// PatientExists checks if a patient exists
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// ReadingRepository defines the interface for CBG reading persistence
type ReadingRepository interface {
	// GetReadings retrieves the readings of a patient within [start, end)
	GetReadings(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]domain.GlucoseReading, error)

	// InsertReadings stores a batch of readings in a single transaction
	InsertReadings(ctx context.Context, readings []domain.GlucoseReading) error
}

// ParameterRepository defines the interface for device parameter history persistence
type ParameterRepository interface {
	// GetParameterHistory retrieves all change groups of a patient, ordered
	// by change date ascending. Parameters keep their insertion order.
	GetParameterHistory(ctx context.Context, patientID uuid.UUID) ([]domain.ChangeDateParameterGroup, error)

	// InsertParameterChanges stores one change group
	InsertParameterChanges(ctx context.Context, patientID uuid.UUID, group domain.ChangeDateParameterGroup) error
}

// HistoryEventPublisher defines the interface for publishing history events to RabbitMQ
type HistoryEventPublisher interface {
	// PublishHistoryUpdated announces that a patient's parameter history changed
	PublishHistoryUpdated(ctx context.Context, patientID uuid.UUID, changeDate string) error
}
