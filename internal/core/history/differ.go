// Package history turns a patient's grouped parameter changes into the rows
// of the parameter history table.
package history

import (
	"io"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/format"
	"github.com/sirupsen/logrus"
)

type trackedValue struct {
	value string
	unit  domain.Unit
}

type options struct {
	logger logrus.FieldLogger
}

// Option configures TransformToHistorizedParameters
type Option func(*options)

// WithLogger sets the logger receiving inconsistency warnings
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// TransformToHistorizedParameters replays the change groups in order and
// returns the display rows, newest first. Each group contributes its sorted
// parameter rows followed by a separator row holding the group's latest
// effective date; the full list is then reversed so every separator sits
// above its group.
//
// Updates of untracked parameters are shown as additions. Deleting an
// unknown parameter is tolerated. The input groups are left untouched.
func TransformToHistorizedParameters(history []domain.ChangeDateParameterGroup, prefs domain.TimePrefs, opts ...Option) []domain.HistorizedParameter {
	o := options{logger: discardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	rows := make([]domain.HistorizedParameter, 0)
	current := make(map[string]trackedValue)
	cmp := newRowComparator()

	for _, group := range history {
		if group.Parameters == nil {
			continue
		}

		parameters := make([]domain.Parameter, len(group.Parameters))
		copy(parameters, group.Parameters)
		cmp.sort(parameters)

		latestDate := time.Unix(0, 0).UTC()
		for _, parameter := range parameters {
			row := domain.HistorizedParameter{
				Parameter: parameter,
				RawData:   parameter.Name,
			}

			changeDate, valid := format.ParseDate(parameter.EffectiveDate)
			if valid {
				if latestDate.Before(changeDate) {
					latestDate = changeDate
				}
				row.ParameterDate = format.DateTime(changeDate, prefs)
			} else {
				row.ParameterDate = format.InvalidDate
				o.logger.WithFields(logrus.Fields{
					"parameter":      parameter.Name,
					"effective_date": parameter.EffectiveDate,
				}).Warn("Unparsable parameter effective date")
			}

			tracked, known := current[parameter.Name]
			switch parameter.ChangeType {
			case domain.ChangeTypeAdded:
				if known {
					o.logger.WithField("parameter", parameter.Name).Warn("Parameter added while already present")
				}
				current[parameter.Name] = trackedValue{value: parameter.Value, unit: parameter.Unit}
			case domain.ChangeTypeDeleted:
				if known {
					delete(current, parameter.Name)
				} else {
					o.logger.WithField("parameter", parameter.Name).Warn("Deleting a parameter which is not present")
				}
			case domain.ChangeTypeUpdated:
				if known {
					row.PreviousValue = tracked.value
					row.PreviousUnit = tracked.unit
				} else {
					o.logger.WithField("parameter", parameter.Name).Warn("Updating a parameter which is not present")
					row.ChangeType = domain.ChangeTypeAdded
				}
				current[parameter.Name] = trackedValue{value: parameter.Value, unit: parameter.Unit}
			default:
				o.logger.WithFields(logrus.Fields{
					"parameter":   parameter.Name,
					"change_type": parameter.ChangeType,
				}).Warn("Unknown parameter change type")
			}

			rows = append(rows, row)
		}

		rows = append(rows, separatorRow(latestDate, prefs))
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

func separatorRow(latestDate time.Time, prefs domain.TimePrefs) domain.HistorizedParameter {
	latest := latestDate.In(format.Location(prefs))
	return domain.HistorizedParameter{
		Parameter: domain.Parameter{
			ChangeType: domain.ChangeTypeAdded,
			Unit:       domain.UnitMilligramPerDeciliter,
		},
		PreviousUnit:                  domain.UnitMilligramPerDeciliter,
		IsGroupedParameterHeader:      true,
		GroupedParameterHeaderContent: latest.Format(format.LongDayHourLayout),
		LatestDate:                    &latest,
	}
}
