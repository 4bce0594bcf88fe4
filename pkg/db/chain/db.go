package chain

import (
	"context"
	"fmt"

	"github.com/canopy-network/stakedrop/pkg/db/clickhouse"
	"go.uber.org/zap"
)

// DB is the per-chain ledger database. It holds snapshot-on-change rows: one row per holder for
// every height at which its amount changed.
type DB struct {
	clickhouse.Client
	Name    string
	ChainID uint64
}

// DatabaseName returns the ledger database name for chainID.
func DatabaseName(chainID uint64) string {
	return clickhouse.SanitizeName(fmt.Sprintf("chain_%d", chainID))
}

// New opens a dedicated pool for chainID and makes sure the ledger tables exist.
func New(ctx context.Context, logger *zap.Logger, chainID uint64, poolConfig *clickhouse.PoolConfig) (*DB, error) {
	dbName := DatabaseName(chainID)
	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.Uint64("chainID", chainID),
	), poolConfig)
	if err != nil {
		return nil, err
	}

	chainDB := &DB{Client: client, Name: dbName, ChainID: chainID}
	if err := chainDB.InitializeDB(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return chainDB, nil
}

// InitializeDB creates the database, both ledger tables and the sync watermark.
func (db *DB) InitializeDB(ctx context.Context) error {
	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}
	for _, table := range []Table{Validators, Accounts} {
		if err := db.initTable(ctx, table); err != nil {
			return fmt.Errorf("init %s: %w", table, err)
		}
	}
	if err := db.initSync(ctx); err != nil {
		return fmt.Errorf("init %s: %w", syncTable, err)
	}
	db.Logger.Info("Chain ledger ready", zap.String("database", db.Name))
	return nil
}
