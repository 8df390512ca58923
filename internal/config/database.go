package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// InitDatabase creates the schema if it does not exist yet
// dropTables wipes existing tables first; never set it outside development
func InitDatabase(db *sql.DB, dropTables bool, logger logrus.FieldLogger) error {
	if dropTables {
		logger.Warn("Dropping existing tables (database.drop_tables=true)")
		for _, table := range []string{"parameter_changes", "cbg_readings", "patients"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE"); err != nil {
				logger.WithError(err).WithField("table", table).Warn("Failed to drop table")
			}
		}
	}

	for _, schema := range tableSchemas {
		logger.WithField("table", schema.table).Info("Creating table")
		if _, err := db.Exec(schema.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", schema.table, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			logger.WithError(err).Warn("Failed to create index")
		}
	}

	logger.Info("Database schema initialized successfully")
	return nil
}

// tableSchemas are created in order; later tables reference earlier ones
var tableSchemas = []struct {
	table string
	ddl   string
}{
	{
		table: "patients",
		ddl: `
	CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY,
		timezone TEXT NOT NULL DEFAULT '',
		bg_unit TEXT NOT NULL DEFAULT 'mg/dL',
		created_at TIMESTAMPTZ DEFAULT now(),
		CONSTRAINT chk_bg_unit CHECK (bg_unit IN ('mg/dL', 'mmol/L'))
	);`,
	},
	{
		table: "cbg_readings",
		ddl: `
	CREATE TABLE IF NOT EXISTS cbg_readings (
		patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		time TIMESTAMPTZ NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		unit TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT now(),
		UNIQUE (patient_id, time),
		CONSTRAINT chk_reading_value CHECK (value > 0),
		CONSTRAINT chk_reading_unit CHECK (unit IN ('mg/dL', 'mmol/L'))
	);`,
	},
	{
		table: "parameter_changes",
		ddl: `
	CREATE TABLE IF NOT EXISTS parameter_changes (
		id UUID PRIMARY KEY,
		patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		change_date TEXT NOT NULL,
		change_time TIMESTAMPTZ,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		effective_date TEXT NOT NULL,
		change_type TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT now(),
		UNIQUE (patient_id, change_date, position),
		CONSTRAINT chk_change_type CHECK (change_type IN ('added', 'updated', 'deleted'))
	);`,
	},
}

// indexes are best effort; the unique index also covers tables created
// before the UNIQUE constraint existed
var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_cbg_readings_patient_time ON cbg_readings(patient_id, time)",
	"CREATE INDEX IF NOT EXISTS idx_parameter_changes_patient_id ON parameter_changes(patient_id)",
	"CREATE INDEX IF NOT EXISTS idx_parameter_changes_change_time ON parameter_changes(patient_id, change_time)",
	"CREATE UNIQUE INDEX IF NOT EXISTS uq_parameter_changes_position ON parameter_changes(patient_id, change_date, position)",
}

// ConnectDatabase establishes a connection to PostgreSQL with retry logic
func ConnectDatabase(databaseURL string, maxRetries int, retryDelay time.Duration, logger logrus.FieldLogger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		attempt := logger.WithFields(logrus.Fields{"attempt": i + 1, "max_retries": maxRetries})

		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			attempt.WithError(err).Warn("Failed to open database connection")
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
				continue
			}
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}

		if err = db.Ping(); err != nil {
			attempt.WithError(err).Warn("Failed to ping database")
			db.Close()
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
				continue
			}
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		logger.Info("Database connection established successfully")
		return db, nil
	}

	return nil, fmt.Errorf("failed to connect to database: %w", err)
}
