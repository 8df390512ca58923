package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validGroup() domain.ChangeDateParameterGroup {
	return domain.ChangeDateParameterGroup{
		ChangeDate: "2023-05-01T10:00:00Z",
		Parameters: []domain.Parameter{
			{Name: "MEAL_RATIO", Value: "0.8", Unit: domain.UnitInsulinUnitPerGram, Level: 1, EffectiveDate: "2023-05-01T10:00:00Z", ChangeType: domain.ChangeTypeAdded},
			{Name: "WEIGHT", Value: "72", Unit: domain.UnitKilogram, Level: 1, EffectiveDate: "2023-05-01T09:30:00Z", ChangeType: domain.ChangeTypeUpdated},
		},
	}
}

func TestParameterHistoryService_GetHistory_Success(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, nil, quietLogger())
	patientID := uuid.New()

	patientRepo.On("GetPatientByID", mock.Anything, patientID).Return(&domain.Patient{ID: patientID, Timezone: "Europe/Paris"}, nil)
	parameterRepo.On("GetParameterHistory", mock.Anything, patientID).Return([]domain.ChangeDateParameterGroup{validGroup()}, nil)

	rows, err := service.GetHistory(context.Background(), patientID, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].IsGroupedParameterHeader)
	assert.Equal(t, "May 1, 2023 12:00 pm", rows[0].GroupedParameterHeaderContent)
	assert.Equal(t, "MEAL_RATIO", rows[1].Name)
	assert.Equal(t, "WEIGHT", rows[2].Name)
	assert.Equal(t, domain.ChangeTypeAdded, rows[2].ChangeType)
}

func TestParameterHistoryService_GetHistory_ExplicitPrefs(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, nil, quietLogger())
	patientID := uuid.New()

	patientRepo.On("GetPatientByID", mock.Anything, patientID).Return(&domain.Patient{ID: patientID, Timezone: "Europe/Paris"}, nil)
	parameterRepo.On("GetParameterHistory", mock.Anything, patientID).Return([]domain.ChangeDateParameterGroup{validGroup()}, nil)

	rows, err := service.GetHistory(context.Background(), patientID, &domain.TimePrefs{})
	require.NoError(t, err)
	assert.Equal(t, "May 1, 2023 10:00 am", rows[0].GroupedParameterHeaderContent)
}

func TestParameterHistoryService_GetHistory_Empty(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, nil, quietLogger())
	patientID := uuid.New()

	patientRepo.On("GetPatientByID", mock.Anything, patientID).Return(&domain.Patient{ID: patientID}, nil)
	parameterRepo.On("GetParameterHistory", mock.Anything, patientID).Return([]domain.ChangeDateParameterGroup{}, nil)

	rows, err := service.GetHistory(context.Background(), patientID, nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestParameterHistoryService_GetHistory_InvalidTimezone(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, nil, quietLogger())
	patientID := uuid.New()

	patientRepo.On("GetPatientByID", mock.Anything, patientID).Return(&domain.Patient{ID: patientID}, nil)

	_, err := service.GetHistory(context.Background(), patientID, &domain.TimePrefs{TimezoneAware: true, TimezoneName: "Bad/Zone"})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
	parameterRepo.AssertNotCalled(t, "GetParameterHistory", mock.Anything, mock.Anything)
}

func TestParameterHistoryService_IngestChanges_PublishesEvent(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	publisher := new(MockHistoryEventPublisher)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, publisher, quietLogger())
	patientID := uuid.New()
	group := validGroup()

	published := make(chan struct{})
	patientRepo.On("PatientExists", mock.Anything, patientID).Return(true, nil)
	parameterRepo.On("InsertParameterChanges", mock.Anything, patientID, group).Return(nil)
	publisher.On("PublishHistoryUpdated", mock.Anything, patientID, group.ChangeDate).
		Return(nil).
		Run(func(args mock.Arguments) { close(published) })

	err := service.IngestChanges(context.Background(), patientID, group)
	require.NoError(t, err)

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("history updated event was not published")
	}
	parameterRepo.AssertExpectations(t)
}

func TestParameterHistoryService_IngestChanges_PublishFailureIsNotFatal(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	publisher := new(MockHistoryEventPublisher)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, publisher, quietLogger())
	patientID := uuid.New()
	group := validGroup()

	done := make(chan struct{})
	patientRepo.On("PatientExists", mock.Anything, patientID).Return(true, nil)
	parameterRepo.On("InsertParameterChanges", mock.Anything, patientID, group).Return(nil)
	publisher.On("PublishHistoryUpdated", mock.Anything, patientID, group.ChangeDate).
		Return(errors.New("broker unavailable")).
		Run(func(args mock.Arguments) { close(done) })

	err := service.IngestChanges(context.Background(), patientID, group)
	assert.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher was not called")
	}
}

func TestParameterHistoryService_IngestChanges_PatientNotFound(t *testing.T) {
	patientRepo := new(MockPatientRepository)
	parameterRepo := new(MockParameterRepository)
	service := services.NewParameterHistoryService(patientRepo, parameterRepo, nil, quietLogger())
	patientID := uuid.New()

	patientRepo.On("PatientExists", mock.Anything, patientID).Return(false, nil)

	err := service.IngestChanges(context.Background(), patientID, validGroup())
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
	parameterRepo.AssertNotCalled(t, "InsertParameterChanges", mock.Anything, mock.Anything, mock.Anything)
}

func TestParameterHistoryService_IngestChanges_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *domain.ChangeDateParameterGroup)
	}{
		{"missing change date", func(g *domain.ChangeDateParameterGroup) { g.ChangeDate = "" }},
		{"no parameters", func(g *domain.ChangeDateParameterGroup) { g.Parameters = nil }},
		{"missing name", func(g *domain.ChangeDateParameterGroup) { g.Parameters[0].Name = "" }},
		{"unknown change type", func(g *domain.ChangeDateParameterGroup) { g.Parameters[0].ChangeType = "renamed" }},
		{"invalid effective date", func(g *domain.ChangeDateParameterGroup) { g.Parameters[1].EffectiveDate = "01/05/2023" }},
		{"negative level", func(g *domain.ChangeDateParameterGroup) { g.Parameters[1].Level = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patientRepo := new(MockPatientRepository)
			service := services.NewParameterHistoryService(patientRepo, new(MockParameterRepository), nil, quietLogger())
			group := validGroup()
			tt.mutate(&group)

			err := service.IngestChanges(context.Background(), uuid.New(), group)
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
			patientRepo.AssertNotCalled(t, "PatientExists", mock.Anything, mock.Anything)
		})
	}
}
