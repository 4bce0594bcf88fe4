package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/stakedrop/pkg/retry"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Executor is implemented by both *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// PoolConfig defines connection pool settings for a specific component
type PoolConfig struct {
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Component       string
}

// New connects to POSTGRES_URL, retrying with backoff until the pool answers a ping.
func New(ctx context.Context, logger *zap.Logger, poolConfig *PoolConfig) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/stakedrop")
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	poolConf := PoolConfigForComponent("")
	if poolConfig != nil {
		poolConf = poolConfig
	}
	config.MinConns = poolConf.MinConns
	config.MaxConns = poolConf.MaxConns
	config.MaxConnLifetime = poolConf.ConnMaxLifetime
	config.MaxConnIdleTime = poolConf.ConnMaxIdleTime

	client := Client{Logger: logger}
	err = retry.WithBackoff(connCtx, retry.ConfigFromEnv(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return retry.Permanent(fmt.Errorf("failed to create postgres connection pool: %w", openErr))
		}
		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return dialError(fmt.Errorf("failed to ping postgres: %w", pingErr))
		}
		client.Pool = pool

		logger.Info("PostgreSQL connection pool configured",
			zap.String("database", config.ConnConfig.Database),
			zap.String("component", poolConf.Component),
			zap.Int32("min_conns", poolConf.MinConns),
			zap.Int32("max_conns", poolConf.MaxConns),
		)
		return nil
	})
	if err != nil {
		return Client{}, err
	}
	return client, nil
}

// dialError stops the connection retry on credential and missing database errors.
func dialError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "3D000":
			return retry.Permanent(err)
		}
	}
	return err
}

func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := c.GetExecutor(ctx).Exec(ctx, query, args...)
	return err
}

// Query executes a query that returns rows. The caller must close rows.
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	return c.GetExecutor(ctx).Query(ctx, query, args...)
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return c.GetExecutor(ctx).QueryRow(ctx, query, args...)
}

// BeginFunc runs fn in a transaction that is committed when fn returns nil.
// Client methods called with the ctx passed to fn run inside the transaction.
func (c *Client) BeginFunc(ctx context.Context, fn func(ctx context.Context) error) error {
	return pgx.BeginFunc(ctx, c.Pool, func(tx pgx.Tx) error {
		return fn(c.WithTx(ctx, tx))
	})
}

func (c *Client) Close() {
	c.Pool.Close()
}

func (c *Client) Health(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

type ctxKey string

const txKey ctxKey = "pgx_tx"

// WithTx returns ctx carrying tx.
func (c *Client) WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetExecutor returns the transaction in ctx, or the pool.
func (c *Client) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return c.Pool
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// PoolConfigForComponent returns fixed pool settings for each binary.
func PoolConfigForComponent(component string) *PoolConfig {
	var minConns, maxConns int32
	switch component {
	case "worker":
		minConns, maxConns = 2, 10
	case "query":
		minConns, maxConns = 2, 20
	case "admin":
		minConns, maxConns = 1, 5
	case "snapshot":
		minConns, maxConns = 1, 4
	default:
		minConns, maxConns = 2, 20
		component = "unknown"
	}
	return &PoolConfig{
		MinConns:        minConns,
		MaxConns:        maxConns,
		ConnMaxLifetime: utils.EnvDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: 30 * time.Minute,
		Component:       component,
	}
}
