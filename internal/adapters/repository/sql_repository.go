package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/format"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ResilienceSettings tunes the circuit breakers and the retry loop
type ResilienceSettings struct {
	MaxRequests         uint32        // requests allowed while half-open
	Interval            time.Duration // closed-state counter reset period
	Timeout             time.Duration // open-state duration
	ConsecutiveFailures uint32        // failures tripping the breaker
	MaxRetries          int
	RetryDelay          time.Duration
}

// DefaultResilienceSettings returns the production breaker and retry settings
func DefaultResilienceSettings() ResilienceSettings {
	return ResilienceSettings{
		MaxRequests:         5,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MaxRetries:          3,
		RetryDelay:          1 * time.Second,
	}
}

// SQLRepository implements PatientRepository, ReadingRepository and
// ParameterRepository using PostgreSQL
// Includes retry logic and circuit breakers for resilience
type SQLRepository struct {
	db          *sql.DB
	patientCB   *gobreaker.CircuitBreaker
	readingCB   *gobreaker.CircuitBreaker
	parameterCB *gobreaker.CircuitBreaker
	maxRetries  int
	retryDelay  time.Duration
	logger      logrus.FieldLogger
}

// NewSQLRepository creates a new PostgreSQL repository with circuit breakers
func NewSQLRepository(db *sql.DB, settings ResilienceSettings, logger logrus.FieldLogger) *SQLRepository {
	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > settings.ConsecutiveFailures
			},
			// A missing row is an answer, not a database failure
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, sql.ErrNoRows)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		})
	}

	maxRetries := settings.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &SQLRepository{
		db:          db,
		patientCB:   newBreaker("patients"),
		readingCB:   newBreaker("cbg_readings"),
		parameterCB: newBreaker("parameter_changes"),
		maxRetries:  maxRetries,
		retryDelay:  settings.RetryDelay,
		logger:      logger,
	}
}

// executeWithRetry executes a database operation with retry logic
// sql.ErrNoRows and context cancellation are returned immediately
func (r *SQLRepository) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if i < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", r.maxRetries, lastErr)
}

// withTx runs fn in a transaction, rolling back on error
func (r *SQLRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// PatientRepository implementation

func (r *SQLRepository) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	_, err := r.patientCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `INSERT INTO patients (id, timezone, bg_unit, created_at) VALUES ($1, $2, $3, $4)`
			_, err := r.db.ExecContext(ctx, query, patient.ID, patient.Timezone, string(patient.BgUnit), patient.CreatedAt)
			return err
		})
	})
	return err
}

func (r *SQLRepository) GetPatientByID(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error) {
	result, err := r.patientCB.Execute(func() (interface{}, error) {
		var patient domain.Patient
		var bgUnit string
		err := r.executeWithRetry(ctx, func() error {
			query := `SELECT id, timezone, bg_unit, created_at FROM patients WHERE id = $1`
			row := r.db.QueryRowContext(ctx, query, patientID)
			return row.Scan(&patient.ID, &patient.Timezone, &bgUnit, &patient.CreatedAt)
		})
		if err != nil {
			return nil, err
		}
		patient.BgUnit = domain.Unit(bgUnit)
		return &patient, nil
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, err
	}

	return result.(*domain.Patient), nil
}

func (r *SQLRepository) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	result, err := r.patientCB.Execute(func() (interface{}, error) {
		var exists bool
		err := r.executeWithRetry(ctx, func() error {
			query := `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`
			return r.db.QueryRowContext(ctx, query, patientID).Scan(&exists)
		})
		if err != nil {
			return nil, err
		}
		return exists, nil
	})

	if err != nil {
		return false, err
	}

	return result.(bool), nil
}

// ReadingRepository implementation

func (r *SQLRepository) GetReadings(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]domain.GlucoseReading, error) {
	result, err := r.readingCB.Execute(func() (interface{}, error) {
		var readings []domain.GlucoseReading
		err := r.executeWithRetry(ctx, func() error {
			readings = readings[:0]
			query := `SELECT time, value, unit FROM cbg_readings
				WHERE patient_id = $1 AND time >= $2 AND time < $3
				ORDER BY time ASC`
			rows, err := r.db.QueryContext(ctx, query, patientID, start.UTC(), end.UTC())
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				reading := domain.GlucoseReading{PatientID: patientID}
				var unit string
				if err := rows.Scan(&reading.Time, &reading.Value, &unit); err != nil {
					return err
				}
				reading.Time = reading.Time.UTC()
				reading.Unit = domain.Unit(unit)
				readings = append(readings, reading)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}
		return readings, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]domain.GlucoseReading), nil
}

// InsertReadings upserts readings; a second reading at the same instant replaces the first
func (r *SQLRepository) InsertReadings(ctx context.Context, readings []domain.GlucoseReading) error {
	_, err := r.readingCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			return r.withTx(ctx, func(tx *sql.Tx) error {
				stmt, err := tx.PrepareContext(ctx, `INSERT INTO cbg_readings (patient_id, time, value, unit)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (patient_id, time) DO UPDATE SET value = EXCLUDED.value, unit = EXCLUDED.unit`)
				if err != nil {
					return err
				}
				defer stmt.Close()

				for _, reading := range readings {
					if _, err := stmt.ExecContext(ctx, reading.PatientID, reading.Time.UTC(), reading.Value, string(reading.Unit)); err != nil {
						return err
					}
				}
				return nil
			})
		})
	})
	return err
}

// ParameterRepository implementation

// parameterRow is one stored parameter change with its group key
type parameterRow struct {
	changeDate string
	parameter  domain.Parameter
}

func (r *SQLRepository) GetParameterHistory(ctx context.Context, patientID uuid.UUID) ([]domain.ChangeDateParameterGroup, error) {
	result, err := r.parameterCB.Execute(func() (interface{}, error) {
		var rows []parameterRow
		err := r.executeWithRetry(ctx, func() error {
			rows = rows[:0]
			query := `SELECT change_date, name, value, unit, level, effective_date, change_type
				FROM parameter_changes
				WHERE patient_id = $1
				ORDER BY change_time ASC, change_date ASC, position ASC`
			sqlRows, err := r.db.QueryContext(ctx, query, patientID)
			if err != nil {
				return err
			}
			defer sqlRows.Close()

			for sqlRows.Next() {
				var row parameterRow
				var unit, changeType string
				if err := sqlRows.Scan(
					&row.changeDate,
					&row.parameter.Name,
					&row.parameter.Value,
					&unit,
					&row.parameter.Level,
					&row.parameter.EffectiveDate,
					&changeType,
				); err != nil {
					return err
				}
				row.parameter.Unit = domain.Unit(unit)
				row.parameter.ChangeType = domain.ChangeType(changeType)
				rows = append(rows, row)
			}
			return sqlRows.Err()
		})
		if err != nil {
			return nil, err
		}
		return groupByChangeDate(rows), nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]domain.ChangeDateParameterGroup), nil
}

// insertParameterChangeQuery skips rows already stored for the same group
// position, so a redelivered change group is stored once
const insertParameterChangeQuery = `INSERT INTO parameter_changes (
	id, patient_id, change_date, change_time, position,
	name, value, unit, level, effective_date, change_type, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (patient_id, change_date, position) DO NOTHING`

func (r *SQLRepository) InsertParameterChanges(ctx context.Context, patientID uuid.UUID, group domain.ChangeDateParameterGroup) error {
	changeTime, ok := format.ParseDate(group.ChangeDate)
	if !ok {
		return fmt.Errorf("%w: change date %q", domain.ErrInvalidParameter, group.ChangeDate)
	}

	_, err := r.parameterCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			return r.withTx(ctx, func(tx *sql.Tx) error {
				stmt, err := tx.PrepareContext(ctx, insertParameterChangeQuery)
				if err != nil {
					return err
				}
				defer stmt.Close()

				now := time.Now().UTC()
				for i, p := range group.Parameters {
					if _, err := stmt.ExecContext(ctx,
						uuid.New(),
						patientID,
						group.ChangeDate,
						changeTime.UTC(),
						i,
						p.Name,
						p.Value,
						string(p.Unit),
						p.Level,
						p.EffectiveDate,
						string(p.ChangeType),
						now,
					); err != nil {
						return err
					}
				}
				return nil
			})
		})
	})
	return err
}

// groupByChangeDate folds ordered rows into groups of consecutive equal change dates
func groupByChangeDate(rows []parameterRow) []domain.ChangeDateParameterGroup {
	groups := make([]domain.ChangeDateParameterGroup, 0)
	for _, row := range rows {
		last := len(groups) - 1
		if last < 0 || groups[last].ChangeDate != row.changeDate {
			groups = append(groups, domain.ChangeDateParameterGroup{ChangeDate: row.changeDate})
			last++
		}
		groups[last].Parameters = append(groups[last].Parameters, row.parameter)
	}
	return groups
}

// Ensure SQLRepository implements the interfaces
var _ ports.PatientRepository = (*SQLRepository)(nil)
var _ ports.ReadingRepository = (*SQLRepository)(nil)
var _ ports.ParameterRepository = (*SQLRepository)(nil)
