package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewStore(&DB{DB: sqlx.NewDb(mockDB, "sqlmock")}), mock
}

func TestSanitizeDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"no rows", sql.ErrNoRows, errors.CodeNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, errors.CodeConflict},
		{"foreign key", &pq.Error{Code: "23503"}, errors.CodeValidation},
		{"check violation", &pq.Error{Code: "23514"}, errors.CodeValidation},
		{"deadlock", &pq.Error{Code: "40P01"}, errors.CodeDatabaseConflict},
		{"connection", &pq.Error{Code: "08006"}, errors.CodeDatabaseConnection},
		{"other pq", &pq.Error{Code: "42601"}, errors.CodeDatabaseQuery},
		{"wrapped", fmt.Errorf("exec: %w", &pq.Error{Code: "23505"}), errors.CodeConflict},
		{"plain", fmt.Errorf("boom"), errors.CodeDatabaseQuery},
		{"already coded", errors.ErrNotFoundWithID("host", "x"), errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeDBError("op", tt.err)
			assert.Equal(t, tt.want, errors.GetCode(got))
		})
	}

	assert.NoError(t, sanitizeDBError("op", nil))
}

func TestDeleteHostRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM scripts`).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM vulnerabilities`).WithArgs("h1").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	err := store.DeleteHost(context.Background(), "h1")
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseConflict, errors.GetCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM hosts WHERE ip = \?`).WithArgs("10.0.0.1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO hosts`).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err := store.Merge(context.Background(), results.Set{
		Hosts: []results.Host{{IP: "10.0.0.1", Status: results.StatusUp}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseQuery, errors.GetCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountsQuery(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM hosts\) AS hosts`).
		WillReturnRows(sqlmock.NewRows([]string{"hosts", "ports", "vulnerabilities"}).AddRow(3, 12, 4))

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InventoryCounts{Hosts: 3, Ports: 12, Vulnerabilities: 4}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default sqlite", DefaultConfig(), false},
		{"sqlite without path", Config{Driver: DriverSQLite}, true},
		{"postgres complete", Config{Driver: DriverPostgres, Host: "db", Database: "legion", Username: "legion"}, false},
		{"postgres without database", Config{Driver: DriverPostgres, Host: "db", Username: "legion"}, true},
		{"unknown driver", Config{Driver: "mysql"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	c := Config{Driver: DriverSQLite, Path: "/tmp/legion.db"}
	dsn := c.dsn()
	assert.Contains(t, dsn, "file:/tmp/legion.db?")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "journal_mode%28WAL%29")

	mem := Config{Driver: DriverSQLite, Path: ":memory:"}
	assert.NotContains(t, mem.dsn(), "journal_mode")

	pg := Config{Driver: DriverPostgres, Host: "db", Port: 5433, Database: "legion", Username: "u", Password: "p", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 dbname=legion user=u password=p sslmode=require", pg.dsn())
}

func TestMigratorStatus(t *testing.T) {
	ctx := context.Background()
	db, err := ConnectAndMigrate(ctx, &Config{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	status, err := NewMigrator(db.DB).Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, status)
	assert.Equal(t, "001_initial_schema", status[0].Name)
	assert.True(t, status[0].Applied)

	// Running again is a no-op.
	require.NoError(t, NewMigrator(db.DB).Up(ctx))
}
