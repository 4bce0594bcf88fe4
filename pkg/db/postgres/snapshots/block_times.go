package snapshots

import (
	"context"
	"time"

	"github.com/canopy-network/stakedrop/pkg/db/postgres"
)

func (db *DB) initBlockTimes(ctx context.Context) error {
	return db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS block_times (
			chain_id BIGINT NOT NULL,
			height BIGINT NOT NULL,
			block_time TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (chain_id, height)
		)
	`)
}

// BlockTimeStore is a persistent block time cache for one chain.
type BlockTimeStore struct {
	db      *DB
	chainID uint64
}

func (db *DB) BlockTimes(chainID uint64) *BlockTimeStore {
	return &BlockTimeStore{db: db, chainID: chainID}
}

func (s *BlockTimeStore) Get(ctx context.Context, height uint64) (time.Time, bool, error) {
	var t time.Time
	err := s.db.QueryRow(ctx, `SELECT block_time FROM block_times WHERE chain_id = $1 AND height = $2`,
		s.chainID, height).Scan(&t)
	if postgres.IsNoRows(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}

// Put records a block time. Block times never change, so conflicts are ignored.
func (s *BlockTimeStore) Put(ctx context.Context, height uint64, t time.Time) error {
	return s.db.Exec(ctx, `
		INSERT INTO block_times (chain_id, height, block_time) VALUES ($1, $2, $3)
		ON CONFLICT (chain_id, height) DO NOTHING
	`, s.chainID, height, t.UTC())
}
