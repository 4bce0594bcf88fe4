package snapshots

import (
	"context"
	"fmt"

	"github.com/canopy-network/stakedrop/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB persists published snapshots, their claims and resolved block times.
type DB struct {
	postgres.Client
}

// New connects and creates the tables when missing.
func New(ctx context.Context, logger *zap.Logger, poolConfig *postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("store", "snapshots")), poolConfig)
	if err != nil {
		return nil, err
	}
	db := &DB{Client: client}
	if err := db.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) InitializeDB(ctx context.Context) error {
	for _, init := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"snapshots", db.initSnapshots},
		{"snapshot_claims", db.initClaims},
		{"block_times", db.initBlockTimes},
	} {
		db.Logger.Debug("Initialize table", zap.String("table", init.name))
		if err := init.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", init.name, err)
		}
	}
	return nil
}
