// Package db provides the durable inventory for LEGION2: hosts, ports,
// vulnerabilities, scripts, scan history, projects and tags. It supports
// PostgreSQL through lib/pq and an embedded SQLite database through
// modernc.org/sqlite, handles migrations, and owns the merge semantics
// that fold tool results into the inventory.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/logging"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultSQLitePath      = "legion.db"
	sqliteBusyTimeoutMS    = 5000

	// SQLite primary result codes.
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// sanitizeDBError converts raw driver errors into coded errors that don't
// expose SQL details or credentials. The original error is kept as Cause.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewDatabaseError(errors.CodeNotFound, "Resource not found").WithOperation(operation)
	}

	var dbErr *errors.DatabaseError
	if stderrors.As(err, &dbErr) {
		return err
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Referenced resource does not exist")
		case "23502", "23514": // not_null_violation, check_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Data validation failed")
		case "40001", "40P01": // serialization_failure, deadlock_detected
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConflict, "Concurrent write conflict")
		case "08000", "08003", "08006", "57P01":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
				fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		// Extended result codes keep the primary code in the low byte.
		switch liteErr.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConflict, "Database is busy")
		case sqliteConstraint:
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Constraint violation")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
				fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("Database operation failed: %s", operation))
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}

// DB wraps sqlx.DB with additional functionality.
type DB struct {
	*sqlx.DB
}

// Config holds database configuration.
type Config struct {
	Driver          string        `yaml:"driver" json:"driver" mapstructure:"driver"`
	Path            string        `yaml:"path" json:"path" mapstructure:"path"`
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	Port            int           `yaml:"port" json:"port" mapstructure:"port"`
	Database        string        `yaml:"database" json:"database" mapstructure:"database"`
	Username        string        `yaml:"username" json:"username" mapstructure:"username"`
	Password        string        `yaml:"password" json:"password" mapstructure:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration: a local SQLite file.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		Path:            defaultSQLitePath,
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
	}
}

// Validate checks that the settings needed by the chosen driver are present.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errors.ErrConfigInvalid("database.path", c.Path)
		}
	case DriverPostgres:
		if c.Host == "" {
			return errors.ErrConfigInvalid("database.host", c.Host)
		}
		if c.Database == "" {
			return errors.ErrConfigInvalid("database.database", c.Database)
		}
		if c.Username == "" {
			return errors.ErrConfigInvalid("database.username", c.Username)
		}
	default:
		return errors.ErrConfigInvalid("database.driver", c.Driver)
	}
	return nil
}

// dsn builds the driver-specific connection string.
func (c *Config) dsn() string {
	if c.Driver == DriverSQLite {
		q := url.Values{}
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMS))
		if c.Path != ":memory:" {
			q.Add("_pragma", "journal_mode(WAL)")
		}
		return "file:" + c.Path + "?" + q.Encode()
	}
	// lib/pq escapes values in key=value form.
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Connect opens the configured database and verifies the connection.
// Returned errors never contain the DSN.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, config.Driver, config.dsn())
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	if config.Driver == DriverSQLite {
		// SQLite allows a single writer; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Failed to verify database connection", err)
	}

	if config.Driver == DriverSQLite {
		logging.Default().InfoDatabase("Opened database", "driver", config.Driver, "path", config.Path)
	} else {
		logging.Default().InfoDatabase("Connected to database",
			"driver", config.Driver, "host", config.Host, "port", config.Port, "database", config.Database)
	}
	return &DB{DB: db}, nil
}

// ConnectAndMigrate connects to the database and applies pending migrations.
func ConnectAndMigrate(ctx context.Context, config *Config) (*DB, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := NewMigrator(db.DB).Up(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "Migration failed", err)
	}
	return db, nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
