package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ---------------------------------------------------------------------------
// RunMigrations
// ---------------------------------------------------------------------------

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	files := fstest.MapFS{
		"002_orders.up.sql":   {Data: []byte("CREATE TABLE orders (id TEXT)")},
		"001_stock.up.sql":    {Data: []byte("CREATE TABLE stock (id INT)")},
		"001_stock.down.sql":  {Data: []byte("DROP TABLE stock")},
		"README.md":           {Data: []byte("ignored")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	// 001 already applied
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_stock.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_orders.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE orders (id TEXT)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_orders.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, files, newTestLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RollsBackOnFailure(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	files := fstest.MapFS{"001_bad.up.sql": {Data: []byte("CREATE TABLE")}}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_bad.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, files, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_bad.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// WithTx
// ---------------------------------------------------------------------------

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE warehouse_stock").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE warehouse_stock SET reserved = 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	sentinel := errors.New("insufficient stock")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTx(context.Background(), mock, func(pgx.Tx) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err = WithTx(context.Background(), mock, func(pgx.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
}

// ---------------------------------------------------------------------------
// TraceQuery / DSN / backoff
// ---------------------------------------------------------------------------

func TestTraceQuery_LogsSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetSlowQueryLogging(0, nil)

	_, end := TraceQuery(context.Background(), "GetOrder", "SELECT 1")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "GetOrder")
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "furniture", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/furniture?sslmode=disable", cfg.DSN())
}

func TestRetryBackoff_WithinJitter(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := retryBackoff(attempt)
		assert.GreaterOrEqual(t, d, base*3/4)
		assert.LessOrEqual(t, d, base*5/4)
	}
}

func TestConn_PrefersBoundTransaction(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	assert.Equal(t, DBTX(mock), Conn(ctx, mock))

	mock.ExpectBegin()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	bound := ContextWithTx(ctx, tx)
	got, ok := TxFromContext(bound)
	require.True(t, ok)
	assert.Equal(t, tx, got)
	assert.Equal(t, DBTX(tx), Conn(bound, mock))
}
