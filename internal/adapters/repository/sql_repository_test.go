package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastSettings() ResilienceSettings {
	settings := DefaultResilienceSettings()
	settings.RetryDelay = time.Millisecond
	return settings
}

func TestExecuteWithRetry_SucceedsAfterTransientErrors(t *testing.T) {
	repo := NewSQLRepository(nil, fastSettings(), quietLogger())

	calls := 0
	err := repo.executeWithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	repo := NewSQLRepository(nil, fastSettings(), quietLogger())
	transient := errors.New("connection refused")

	calls := 0
	err := repo.executeWithRetry(context.Background(), func() error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "operation failed after 3 retries")
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_NoRowsIsNotRetried(t *testing.T) {
	repo := NewSQLRepository(nil, fastSettings(), quietLogger())

	calls := 0
	err := repo.executeWithRetry(context.Background(), func() error {
		calls++
		return sql.ErrNoRows
	})

	assert.Equal(t, sql.ErrNoRows, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetry_StopsOnCancelledContext(t *testing.T) {
	settings := fastSettings()
	settings.RetryDelay = time.Hour
	repo := NewSQLRepository(nil, settings, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := repo.executeWithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGroupByChangeDate(t *testing.T) {
	a := domain.Parameter{Name: "A", ChangeType: domain.ChangeTypeAdded}
	b := domain.Parameter{Name: "B", ChangeType: domain.ChangeTypeAdded}
	c := domain.Parameter{Name: "A", ChangeType: domain.ChangeTypeUpdated}

	groups := groupByChangeDate([]parameterRow{
		{changeDate: "2023-01-01T00:00:00Z", parameter: a},
		{changeDate: "2023-01-01T00:00:00Z", parameter: b},
		{changeDate: "2023-02-01T00:00:00Z", parameter: c},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "2023-01-01T00:00:00Z", groups[0].ChangeDate)
	assert.Equal(t, []domain.Parameter{a, b}, groups[0].Parameters)
	assert.Equal(t, []domain.Parameter{c}, groups[1].Parameters)
}

func TestGroupByChangeDate_Empty(t *testing.T) {
	groups := groupByChangeDate(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestInsertParameterChangeQuery_IgnoresRedeliveredRows(t *testing.T) {
	assert.Contains(t, insertParameterChangeQuery, "ON CONFLICT (patient_id, change_date, position) DO NOTHING")
}
