package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/canopy-network/stakedrop/pkg/retry"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPoolConfigForComponent(t *testing.T) {
	t.Setenv("POSTGRES_CONN_MAX_LIFETIME", "90s")

	q := PoolConfigForComponent("query")
	assert.Equal(t, int32(20), q.MaxConns)
	assert.Equal(t, 90*time.Second, q.ConnMaxLifetime)

	u := PoolConfigForComponent("bogus")
	assert.Equal(t, "unknown", u.Component)
	assert.Equal(t, int32(2), u.MinConns)
}

func TestGetExecutorDefaultsToPool(t *testing.T) {
	c := &Client{}
	assert.Nil(t, c.GetExecutor(context.Background()), "no tx in context falls back to the (nil) pool")
}

func TestDialErrorStopsOnBadCredentials(t *testing.T) {
	badPassword := fmt.Errorf("failed to ping postgres: %w", &pgconn.PgError{Code: "28P01"})
	assert.True(t, retry.IsPermanent(dialError(badPassword)))
	assert.True(t, retry.IsPermanent(dialError(&pgconn.PgError{Code: "3D000"})))
	assert.False(t, retry.IsPermanent(dialError(&pgconn.PgError{Code: "57P03"})), "server starting up")
	assert.False(t, retry.IsPermanent(dialError(errors.New("connection refused"))))

	calls := 0
	cfg := retry.Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	err := retry.WithBackoff(context.Background(), cfg, zaptest.NewLogger(t), "postgres_connection", func() error {
		calls++
		return dialError(badPassword)
	})
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Equal(t, 1, calls)
}
