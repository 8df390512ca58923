package ports

import (
	"context"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/google/uuid"
)

// PatientService defines the business logic interface for patient operations
type PatientService interface {
	// RegisterPatient creates a patient with a display timezone and glucose unit
	RegisterPatient(ctx context.Context, req RegisterPatientRequest) (*domain.Patient, error)

	// GetPatient retrieves a patient by ID
	GetPatient(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error)
}

// TrendsService defines the business logic interface for the trend chart
type TrendsService interface {
	// GetTrendSlices computes the 30-minute slices of a patient's readings
	// Falls back to the patient's timezone when the query carries no TimePrefs
	GetTrendSlices(ctx context.Context, patientID uuid.UUID, query TrendsQuery) ([]domain.Slice, error)

	// InvalidatePatient drops cached slices of a patient
	InvalidatePatient(patientID uuid.UUID)
}

// ParameterHistoryService defines the business logic interface for the parameter history table
type ParameterHistoryService interface {
	// GetHistory returns the history rows of a patient, newest first
	// Falls back to the patient's timezone when prefs is nil
	GetHistory(ctx context.Context, patientID uuid.UUID, prefs *domain.TimePrefs) ([]domain.HistorizedParameter, error)

	// IngestChanges validates and stores one change group, then publishes a
	// history-updated event asynchronously
	IngestChanges(ctx context.Context, patientID uuid.UUID, group domain.ChangeDateParameterGroup) error
}

// ReadingsService defines the business logic interface for CBG ingestion
type ReadingsService interface {
	// IngestReadings validates and stores readings, returning how many were stored
	IngestReadings(ctx context.Context, patientID uuid.UUID, readings []ReadingInput) (int, error)
}

// TrendsQuery represents the input of a trend slice computation
type TrendsQuery struct {
	Start      time.Time         // inclusive
	End        time.Time         // exclusive
	TimePrefs  *domain.TimePrefs // nil uses the patient's timezone
	SortByTime bool              // order slices by bucket center instead of first seen
}

// RegisterPatientRequest represents the input for registering a patient
type RegisterPatientRequest struct {
	Timezone string      `json:"timezone"` // IANA name, optional
	BgUnit   domain.Unit `json:"bg_unit"`  // mg/dL or mmol/L, defaults to mg/dL
}

// ReadingInput represents one CBG reading to ingest
type ReadingInput struct {
	Time  time.Time   `json:"time"`
	Value float64     `json:"value"`
	Unit  domain.Unit `json:"unit"` // defaults to the patient's unit
}
