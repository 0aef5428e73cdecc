package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/referee-finder/internal/config"
)

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:              "localhost",
		Port:              5432,
		User:              "referee",
		Password:          "secret",
		Name:              "referee_finder",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    3 * time.Second,
	}
}

func TestPoolConfig(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		pc, err := PoolConfig(testDatabaseConfig(), zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, int32(5), pc.MaxConns)
		assert.Equal(t, int32(1), pc.MinConns)
		assert.Equal(t, time.Hour, pc.MaxConnLifetime)
		assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
		assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
		assert.Equal(t, "referee_finder", pc.ConnConfig.Database)
		assert.Equal(t, "referee", pc.ConnConfig.User)
		assert.Equal(t, "secret", pc.ConnConfig.Password)
		assert.NotNil(t, pc.AfterRelease)
	})

	t.Run("zero values keep pgx defaults", func(t *testing.T) {
		cfg := testDatabaseConfig()
		cfg.MaxConns = 0
		cfg.MaxConnLifetime = 0

		pc, err := PoolConfig(cfg, zerolog.Nop())
		require.NoError(t, err)

		assert.Positive(t, pc.MaxConns)
		assert.Positive(t, pc.MaxConnLifetime)
	})

	t.Run("invalid ssl mode fails to parse", func(t *testing.T) {
		cfg := testDatabaseConfig()
		cfg.SSLMode = "sometimes"

		_, err := PoolConfig(cfg, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse database config")
	})
}

func TestNew_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	// 192.0.2.1 is TEST-NET-1 (RFC 5737), guaranteed unroutable.
	cfg := testDatabaseConfig()
	cfg.Host = "192.0.2.1"
	cfg.ConnectTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestHealthStatus_JSON(t *testing.T) {
	t.Run("empty error is omitted", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "healthy", TotalConns: 2, MaxConns: 5})
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "healthy", raw["status"])
		assert.NotContains(t, raw, "error")
		assert.Equal(t, float64(5), raw["max_conns"])
	})

	t.Run("error is reported", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "unhealthy", Error: "connection refused"})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"error":"connection refused"`)
	})
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM referees").WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectCommit()

		err = WithTransaction(ctx, mock, zerolog.Nop(), func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "DELETE FROM referees")
			return err
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = WithTransaction(ctx, mock, zerolog.Nop(), func(tx pgx.Tx) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports rollback failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

		boom := errors.New("boom")
		err = WithTransaction(ctx, mock, zerolog.Nop(), func(tx pgx.Tx) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "rollback error: connection lost")
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = WithTransaction(ctx, mock, zerolog.Nop(), func(tx pgx.Tx) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err = WithTransaction(ctx, mock, zerolog.Nop(), func(tx pgx.Tx) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.False(t, called)
	})
}

func TestDB_CloseNilPool(t *testing.T) {
	assert.NotPanics(t, func() {
		(&DB{}).Close()
	})
}
