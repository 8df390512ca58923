package history_test

import (
	"testing"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/history"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var utcPrefs = domain.TimePrefs{TimezoneAware: false}

func param(name, value string, unit domain.Unit, level int, effectiveDate string, changeType domain.ChangeType) domain.Parameter {
	return domain.Parameter{
		Name:          name,
		Value:         value,
		Unit:          unit,
		Level:         level,
		EffectiveDate: effectiveDate,
		ChangeType:    changeType,
	}
}

func twoGroups() []domain.ChangeDateParameterGroup {
	return []domain.ChangeDateParameterGroup{
		{
			ChangeDate: "2023-01-01T10:00:00Z",
			Parameters: []domain.Parameter{
				param("A", "10", domain.UnitInsulinUnit, 1, "2023-01-01T10:00:00Z", domain.ChangeTypeAdded),
				param("B", "5", domain.UnitPercent, 1, "2023-01-01T09:00:00Z", domain.ChangeTypeAdded),
				param("C", "1.0", domain.UnitGram, 2, "2023-01-01T08:00:00Z", domain.ChangeTypeAdded),
			},
		},
		{
			ChangeDate: "2023-02-01T11:00:00Z",
			Parameters: []domain.Parameter{
				param("A", "12", domain.UnitInsulinUnit, 1, "2023-02-01T10:00:00Z", domain.ChangeTypeUpdated),
				param("B", "5", domain.UnitPercent, 1, "2023-02-01T09:00:00Z", domain.ChangeTypeDeleted),
				param("D", "3", domain.UnitKilogram, 1, "2023-02-01T11:00:00Z", domain.ChangeTypeUpdated),
			},
		},
	}
}

func names(rows []domain.HistorizedParameter) []string {
	result := make([]string, len(rows))
	for i, row := range rows {
		if row.IsGroupedParameterHeader {
			result[i] = "--"
			continue
		}
		result[i] = row.Name
	}
	return result
}

func TestTransformToHistorizedParameters(t *testing.T) {
	rows := history.TransformToHistorizedParameters(twoGroups(), utcPrefs)

	require.Len(t, rows, 8)
	assert.Equal(t, []string{"--", "A", "B", "D", "--", "A", "B", "C"}, names(rows))

	latest := rows[0]
	assert.True(t, latest.IsGroupedParameterHeader)
	assert.Equal(t, "Feb 1, 2023 11:00 am", latest.GroupedParameterHeaderContent)
	assert.Equal(t, 0, latest.Level)
	assert.Equal(t, "", latest.Name)
	assert.Equal(t, "", latest.Value)
	assert.Equal(t, "", latest.RawData)
	assert.Equal(t, domain.ChangeTypeAdded, latest.ChangeType)
	assert.Equal(t, domain.UnitMilligramPerDeciliter, latest.Unit)
	require.NotNil(t, latest.LatestDate)
	assert.True(t, latest.LatestDate.Equal(time.Date(2023, time.February, 1, 11, 0, 0, 0, time.UTC)))

	updated := rows[1]
	assert.Equal(t, domain.ChangeTypeUpdated, updated.ChangeType)
	assert.Equal(t, "12", updated.Value)
	assert.Equal(t, "10", updated.PreviousValue)
	assert.Equal(t, domain.UnitInsulinUnit, updated.PreviousUnit)
	assert.Equal(t, "A", updated.RawData)
	assert.Equal(t, "Feb 1, 2023 10:00 am", updated.ParameterDate)

	deleted := rows[2]
	assert.Equal(t, domain.ChangeTypeDeleted, deleted.ChangeType)
	assert.Empty(t, deleted.PreviousValue)

	reclassified := rows[3]
	assert.Equal(t, "D", reclassified.Name)
	assert.Equal(t, domain.ChangeTypeAdded, reclassified.ChangeType)
	assert.Empty(t, reclassified.PreviousValue)

	first := rows[4]
	assert.True(t, first.IsGroupedParameterHeader)
	assert.Equal(t, "Jan 1, 2023 10:00 am", first.GroupedParameterHeaderContent)

	for _, row := range rows[5:] {
		assert.False(t, row.IsGroupedParameterHeader)
		assert.Equal(t, domain.ChangeTypeAdded, row.ChangeType)
	}
}

func TestTransformToHistorizedParameters_EmptyHistory(t *testing.T) {
	rows := history.TransformToHistorizedParameters(nil, utcPrefs)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows = history.TransformToHistorizedParameters([]domain.ChangeDateParameterGroup{}, utcPrefs)
	assert.Empty(t, rows)
}

func TestTransformToHistorizedParameters_GroupWithoutParameters(t *testing.T) {
	groups := []domain.ChangeDateParameterGroup{
		{ChangeDate: "2023-01-01T00:00:00Z"},
		{ChangeDate: "2023-01-02T00:00:00Z", Parameters: []domain.Parameter{}},
	}

	rows := history.TransformToHistorizedParameters(groups, utcPrefs)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsGroupedParameterHeader)
	assert.Equal(t, "Jan 1, 1970 12:00 am", rows[0].GroupedParameterHeaderContent)
}

func TestTransformToHistorizedParameters_DoesNotMutateInput(t *testing.T) {
	groups := twoGroups()

	history.TransformToHistorizedParameters(groups, utcPrefs)

	assert.Equal(t, twoGroups(), groups)
	assert.Equal(t, domain.ChangeTypeUpdated, groups[1].Parameters[2].ChangeType)
}

func TestTransformToHistorizedParameters_DeleteUnknownParameter(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	groups := []domain.ChangeDateParameterGroup{
		{
			ChangeDate: "2023-03-01T00:00:00Z",
			Parameters: []domain.Parameter{
				param("GHOST", "1", domain.UnitGram, 1, "2023-03-01T00:00:00Z", domain.ChangeTypeDeleted),
			},
		},
	}

	rows := history.TransformToHistorizedParameters(groups, utcPrefs, history.WithLogger(logger))

	require.Len(t, rows, 2)
	assert.Equal(t, domain.ChangeTypeDeleted, rows[1].ChangeType)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "GHOST", hook.LastEntry().Data["parameter"])
}

func TestTransformToHistorizedParameters_LevelsCompareAsStrings(t *testing.T) {
	groups := []domain.ChangeDateParameterGroup{
		{
			ChangeDate: "2023-03-01T00:00:00Z",
			Parameters: []domain.Parameter{
				param("LOW", "1", domain.UnitGram, 2, "2023-03-01T00:00:00Z", domain.ChangeTypeAdded),
				param("HIGH", "1", domain.UnitGram, 10, "2023-03-01T00:00:00Z", domain.ChangeTypeAdded),
				param("MID", "1", domain.UnitGram, 3, "2023-03-01T00:00:00Z", domain.ChangeTypeAdded),
			},
		},
	}

	rows := history.TransformToHistorizedParameters(groups, utcPrefs)

	assert.Equal(t, []string{"--", "HIGH", "LOW", "MID"}, names(rows))
}

func TestTransformToHistorizedParameters_SameNameOrderedByDate(t *testing.T) {
	groups := []domain.ChangeDateParameterGroup{
		{
			ChangeDate: "2023-03-01T00:00:00Z",
			Parameters: []domain.Parameter{
				param("A", "2", domain.UnitGram, 1, "2023-03-01T12:00:00Z", domain.ChangeTypeUpdated),
				param("A", "1", domain.UnitGram, 1, "2023-03-01T06:00:00Z", domain.ChangeTypeAdded),
			},
		},
	}

	rows := history.TransformToHistorizedParameters(groups, utcPrefs)

	require.Len(t, rows, 3)
	assert.Equal(t, "2", rows[1].Value)
	assert.Equal(t, domain.ChangeTypeUpdated, rows[1].ChangeType)
	assert.Equal(t, "1", rows[1].PreviousValue)
	assert.Equal(t, "1", rows[2].Value)
}

func TestTransformToHistorizedParameters_InvalidEffectiveDate(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	groups := []domain.ChangeDateParameterGroup{
		{
			ChangeDate: "2023-03-01T00:00:00Z",
			Parameters: []domain.Parameter{
				param("A", "1", domain.UnitGram, 1, "not a date", domain.ChangeTypeAdded),
			},
		},
	}

	rows := history.TransformToHistorizedParameters(groups, utcPrefs, history.WithLogger(logger))

	require.Len(t, rows, 2)
	assert.Equal(t, "Invalid date", rows[1].ParameterDate)
	assert.Equal(t, "Jan 1, 1970 12:00 am", rows[0].GroupedParameterHeaderContent)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestTransformToHistorizedParameters_TimezoneAware(t *testing.T) {
	prefs := domain.TimePrefs{TimezoneAware: true, TimezoneName: "Europe/Paris"}

	rows := history.TransformToHistorizedParameters(twoGroups()[:1], prefs)

	require.Len(t, rows, 4)
	assert.Equal(t, "Jan 1, 2023 11:00 am", rows[0].GroupedParameterHeaderContent)
	assert.Equal(t, "A", rows[1].Name)
	assert.Equal(t, "Jan 1, 2023 11:00 am", rows[1].ParameterDate)
}
