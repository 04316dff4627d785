package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	createTrackingSQL = regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")
	checkAppliedSQL   = regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")
	recordSQL         = regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"000002_add_index.up.sql":        {Data: []byte("CREATE INDEX idx_products_name ON products (name)")},
		"000001_create_catalog.up.sql":   {Data: []byte("CREATE TABLE products (id TEXT PRIMARY KEY)")},
		"000001_create_catalog.down.sql": {Data: []byte("DROP TABLE products")},
		"README.md":                      {Data: []byte("docs")},
	}
}

func TestMigrationNames_SortedUpFilesOnly(t *testing.T) {
	names, err := migrationNames(testMigrations())

	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_catalog.up.sql", "000002_add_index.up.sql"}, names)
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	mock.ExpectQuery(checkAppliedSQL).WithArgs("000001_create_catalog.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(checkAppliedSQL).WithArgs("000002_add_index.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX idx_products_name")).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(recordSQL).WithArgs("000002_add_index.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = RunMigrations(context.Background(), mock, testMigrations(), slog.Default())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	syntaxErr := &pgconn.PgError{Code: "42601", Message: "syntax error"}

	mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(checkAppliedSQL).WithArgs("000001_create_catalog.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE products")).WillReturnError(syntaxErr)
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, testMigrations(), slog.Default())

	require.Error(t, err)
	assert.ErrorIs(t, err, syntaxErr)
	assert.Contains(t, err.Error(), "execute migration 000001_create_catalog.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_CanceledDuringRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTrackingSQL).WillReturnError(fmt.Errorf("dial: %w", io.EOF))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = RunMigrations(ctx, mock, testMigrations(), slog.Default())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", fmt.Errorf("read: %w", io.EOF), true},
		{"connect error", &pgconn.ConnectError{}, true},
		{"refused message", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"pg error", &pgconn.PgError{Code: "23505", Message: "connection refused"}, false},
		{"plain", errors.New("relation does not exist"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectionError(tt.err))
		})
	}
}
