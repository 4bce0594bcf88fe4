package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/stakedrop/pkg/db/clickhouse"
)

const syncTable = "ledger_sync"

// initSync creates the per-table watermark of the ledger sync.
func (db *DB) initSync(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			ledger LowCardinality(String),
			height UInt64,
			updated_at DateTime64(6)
		) ENGINE = %s
		ORDER BY (ledger)
	`, db.Name, syncTable, db.OnCluster(), db.Engine(clickhouse.ReplacingMergeTree, "height"))
	return db.Exec(ctx, query)
}

// SyncedHeight returns the last height fully mirrored into table, 0 when it never synced.
func (db *DB) SyncedHeight(ctx context.Context, table Table) (uint64, error) {
	var h uint64
	query := fmt.Sprintf(`SELECT max(height) FROM "%s"."%s" FINAL WHERE ledger = ?`, db.Name, syncTable)
	if err := db.QueryRow(ctx, query, string(table)).Scan(&h); err != nil {
		if clickhouse.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return h, nil
}

// SetSyncedHeight records that every height of table up to h is mirrored.
func (db *DB) SetSyncedHeight(ctx context.Context, table Table, h uint64) error {
	if !table.valid() {
		return fmt.Errorf("unknown ledger table %q", table)
	}
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (ledger, height, updated_at) VALUES (?, ?, ?)`, db.Name, syncTable)
	return db.Exec(ctx, query, string(table), h, time.Now().UTC())
}
