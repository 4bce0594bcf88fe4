package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/canopy-network/stakedrop/pkg/db/clickhouse"
)

// Table selects which ledger a query runs against.
type Table string

const (
	// Validators holds validator staked amounts.
	Validators Table = "validators"
	// Accounts holds liquid account balances.
	Accounts Table = "accounts"
)

// amountColumn is the column carrying the tracked quantity.
func (t Table) amountColumn() string {
	if t == Validators {
		return "staked_amount"
	}
	return "amount"
}

func (t Table) valid() bool {
	return t == Validators || t == Accounts
}

// Holding is one ledger row: Address held Amount from Height on.
type Holding struct {
	Address    string
	Amount     uint64
	Height     uint64
	HeightTime time.Time
}

// initTable creates a snapshot-on-change table.
//
// ReplacingMergeTree(height) ORDER BY (address, height) collapses re-inserted heights, so
// readers must use FINAL.
func (db *DB) initTable(ctx context.Context, table Table) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			address String CODEC(ZSTD(1)),
			%s UInt64 CODEC(Delta, ZSTD(3)),
			height UInt64 CODEC(DoubleDelta, LZ4),
			height_time DateTime64(6) CODEC(DoubleDelta, LZ4)
		) ENGINE = %s
		ORDER BY (address, height)
		SETTINGS index_granularity = 8192
	`, db.Name, table, db.OnCluster(), table.amountColumn(), db.Engine(clickhouse.ReplacingMergeTree, "height"))
	return db.Exec(ctx, query)
}

// InsertHoldings writes rows to table in a single batch.
func (db *DB) InsertHoldings(ctx context.Context, table Table, rows []Holding) error {
	if !table.valid() {
		return fmt.Errorf("unknown ledger table %q", table)
	}
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (address, %s, height, height_time) VALUES`,
		db.Name, table, table.amountColumn())
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, r := range rows {
		if err := batch.Append(r.Address, r.Amount, r.Height, r.HeightTime); err != nil {
			return err
		}
	}
	return batch.Send()
}

// Baseline returns, per address, the last row at or before height.
func (db *DB) Baseline(ctx context.Context, table Table, height uint64) ([]Holding, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown ledger table %q", table)
	}
	col := table.amountColumn()
	query := fmt.Sprintf(`
		SELECT address,
		       argMax(%s, height) AS last_amount,
		       max(height) AS last_height,
		       argMax(height_time, height) AS last_time
		FROM "%s"."%s" FINAL
		WHERE height <= ?
		GROUP BY address
		ORDER BY address
	`, col, db.Name, table)
	return db.queryHoldings(ctx, query, height)
}

// Changes returns every row with from < height < to ordered by (address, height).
func (db *DB) Changes(ctx context.Context, table Table, from, to uint64) ([]Holding, error) {
	if !table.valid() {
		return nil, fmt.Errorf("unknown ledger table %q", table)
	}
	query := fmt.Sprintf(`
		SELECT address, %s, height, height_time
		FROM "%s"."%s" FINAL
		WHERE height > ? AND height < ?
		ORDER BY address, height
	`, table.amountColumn(), db.Name, table)
	return db.queryHoldings(ctx, query, from, to)
}

// LatestHeight returns the highest height stored in table, 0 when empty.
func (db *DB) LatestHeight(ctx context.Context, table Table) (uint64, error) {
	if !table.valid() {
		return 0, fmt.Errorf("unknown ledger table %q", table)
	}
	var h uint64
	query := fmt.Sprintf(`SELECT max(height) FROM "%s"."%s"`, db.Name, table)
	if err := db.QueryRow(ctx, query).Scan(&h); err != nil {
		if clickhouse.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return h, nil
}

func (db *DB) queryHoldings(ctx context.Context, query string, args ...interface{}) ([]Holding, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Holding, 0)
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Address, &h.Amount, &h.Height, &h.HeightTime); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
