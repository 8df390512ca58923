package services_test

import (
	"context"
	"io"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// MockPatientRepository is a mock implementation of ports.PatientRepository
type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientRepository) GetPatientByID(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func (m *MockPatientRepository) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	args := m.Called(ctx, patientID)
	return args.Bool(0), args.Error(1)
}

// MockReadingRepository is a mock implementation of ports.ReadingRepository
type MockReadingRepository struct {
	mock.Mock
}

func (m *MockReadingRepository) GetReadings(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]domain.GlucoseReading, error) {
	args := m.Called(ctx, patientID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GlucoseReading), args.Error(1)
}

func (m *MockReadingRepository) InsertReadings(ctx context.Context, readings []domain.GlucoseReading) error {
	args := m.Called(ctx, readings)
	return args.Error(0)
}

// MockParameterRepository is a mock implementation of ports.ParameterRepository
type MockParameterRepository struct {
	mock.Mock
}

func (m *MockParameterRepository) GetParameterHistory(ctx context.Context, patientID uuid.UUID) ([]domain.ChangeDateParameterGroup, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChangeDateParameterGroup), args.Error(1)
}

func (m *MockParameterRepository) InsertParameterChanges(ctx context.Context, patientID uuid.UUID, group domain.ChangeDateParameterGroup) error {
	args := m.Called(ctx, patientID, group)
	return args.Error(0)
}

// MockHistoryEventPublisher is a mock implementation of ports.HistoryEventPublisher
type MockHistoryEventPublisher struct {
	mock.Mock
}

func (m *MockHistoryEventPublisher) PublishHistoryUpdated(ctx context.Context, patientID uuid.UUID, changeDate string) error {
	args := m.Called(ctx, patientID, changeDate)
	return args.Error(0)
}

// MockInvalidator records cache invalidations
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) InvalidatePatient(patientID uuid.UUID) {
	m.Called(patientID)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
