package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/IANDYI/trends-service/internal/core/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPatientService_RegisterPatient_Success(t *testing.T) {
	mockRepo := new(MockPatientRepository)
	service := services.NewPatientService(mockRepo)

	mockRepo.On("CreatePatient", mock.Anything, mock.AnythingOfType("*domain.Patient")).Return(nil)

	patient, err := service.RegisterPatient(context.Background(), ports.RegisterPatientRequest{Timezone: "Europe/Paris"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, patient.ID)
	assert.Equal(t, "Europe/Paris", patient.Timezone)
	assert.Equal(t, domain.UnitMilligramPerDeciliter, patient.BgUnit)
	mockRepo.AssertExpectations(t)
}

func TestPatientService_RegisterPatient_InvalidTimezone(t *testing.T) {
	mockRepo := new(MockPatientRepository)
	service := services.NewPatientService(mockRepo)

	_, err := service.RegisterPatient(context.Background(), ports.RegisterPatientRequest{Timezone: "Nowhere/Land"})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
	mockRepo.AssertNotCalled(t, "CreatePatient", mock.Anything, mock.Anything)
}

func TestPatientService_RegisterPatient_InvalidUnit(t *testing.T) {
	mockRepo := new(MockPatientRepository)
	service := services.NewPatientService(mockRepo)

	_, err := service.RegisterPatient(context.Background(), ports.RegisterPatientRequest{BgUnit: domain.UnitGram})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestPatientService_GetPatient_NotFound(t *testing.T) {
	mockRepo := new(MockPatientRepository)
	service := services.NewPatientService(mockRepo)
	patientID := uuid.New()

	mockRepo.On("GetPatientByID", mock.Anything, patientID).
		Return(nil, errors.Join(domain.ErrPatientNotFound, errors.New("operation failed after 1 retries")))

	_, err := service.GetPatient(context.Background(), patientID)
	assert.Equal(t, domain.ErrPatientNotFound, err)
}

func TestPatientService_GetPatient_RepositoryError(t *testing.T) {
	mockRepo := new(MockPatientRepository)
	service := services.NewPatientService(mockRepo)
	patientID := uuid.New()

	mockRepo.On("GetPatientByID", mock.Anything, patientID).Return(nil, errors.New("connection refused"))

	_, err := service.GetPatient(context.Background(), patientID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get patient")
	assert.NotErrorIs(t, err, domain.ErrPatientNotFound)
}
