package snapshots

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/db/postgres"
	"github.com/canopy-network/stakedrop/pkg/merkle"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound is returned when a snapshot or claim does not exist.
var ErrNotFound = errors.New("snapshots: not found")

// Snapshot is the summary row of a published manifest. ID is the Merkle root.
type Snapshot struct {
	ID                 string     `json:"id"`
	ChainID            uint64     `json:"chainId"`
	Subject            string     `json:"subject"`
	StartHeight        uint64     `json:"startBlockHeight"`
	EndHeight          uint64     `json:"endBlockHeight"`
	StartDate          *time.Time `json:"startDate,omitempty"`
	EndDate            *time.Time `json:"endDate,omitempty"`
	AverageTotalStaked string     `json:"averageTotalStaked"`
	DroppedAmount      string     `json:"droppedAmount"`
	TotalClaimable     string     `json:"totalClaimable"`
	APY                float64    `json:"apy"`
	Width              int        `json:"width"`
	Height             int        `json:"height"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func (db *DB) initSnapshots(ctx context.Context) error {
	err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			chain_id BIGINT NOT NULL,
			root TEXT NOT NULL,
			subject TEXT NOT NULL,
			start_height BIGINT NOT NULL,
			end_height BIGINT NOT NULL,
			start_date TIMESTAMPTZ,
			end_date TIMESTAMPTZ,
			average_total NUMERIC(78, 0) NOT NULL,
			dropped NUMERIC(78, 0) NOT NULL,
			claimable NUMERIC(78, 0) NOT NULL,
			apy DOUBLE PRECISION NOT NULL DEFAULT 0,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			manifest JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chain_id, root)
		)
	`)
	if err != nil {
		return err
	}
	return db.Exec(ctx, `CREATE INDEX IF NOT EXISTS snapshots_chain_end_idx ON snapshots (chain_id, end_height DESC)`)
}

func (db *DB) initClaims(ctx context.Context) error {
	return db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS snapshot_claims (
			chain_id BIGINT NOT NULL,
			root TEXT NOT NULL,
			address TEXT NOT NULL,
			average NUMERIC(78, 0) NOT NULL,
			value NUMERIC(78, 0) NOT NULL,
			node TEXT NOT NULL,
			proof TEXT[] NOT NULL DEFAULT '{}',
			PRIMARY KEY (chain_id, root, address),
			FOREIGN KEY (chain_id, root) REFERENCES snapshots (chain_id, root) ON DELETE CASCADE
		)
	`)
}

func numeric(v *big.Int) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(v), Exp: 0, Valid: true}
}

func hexes(hs []merkle.Hash) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Hex()
	}
	return out
}

// SaveSnapshot stores m and its claims in one transaction. Manifests are immutable, so saving
// the same root twice is a no-op.
func (db *DB) SaveSnapshot(ctx context.Context, subject string, m *airdrop.Manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	root := m.MerkleTree.Root.Hex()

	return db.BeginFunc(ctx, func(ctx context.Context) error {
		exec := db.GetExecutor(ctx)
		tag, err := exec.Exec(ctx, `
			INSERT INTO snapshots (chain_id, root, subject, start_height, end_height, start_date, end_date,
			                       average_total, dropped, claimable, apy, width, height, manifest)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (chain_id, root) DO NOTHING
		`, m.ChainID, root, subject, m.StartHeight, m.EndHeight, m.StartDate, m.EndDate,
			numeric(m.AverageTotalStaked.Int()), numeric(m.DroppedAmount.Int()), numeric(m.TotalClaimable.Int()),
			m.APY, m.MerkleTree.Width, m.MerkleTree.Height, string(raw))
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", root, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, c := range m.MerkleTree.Claims {
			batch.Queue(`
				INSERT INTO snapshot_claims (chain_id, root, address, average, value, node, proof)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, m.ChainID, root, c.Address, numeric(c.AverageStake.Int()), numeric(c.Value.Int()), c.Node.Hex(), hexes(c.Proof))
		}
		results := exec.SendBatch(ctx, batch)
		for range m.MerkleTree.Claims {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert claims of %s: %w", root, err)
			}
		}
		return results.Close()
	})
}

const snapshotColumns = `root, chain_id, subject, start_height, end_height, start_date, end_date,
	average_total::text, dropped::text, claimable::text, apy, width, height, created_at`

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	err := row.Scan(&s.ID, &s.ChainID, &s.Subject, &s.StartHeight, &s.EndHeight, &s.StartDate, &s.EndDate,
		&s.AverageTotalStaked, &s.DroppedAmount, &s.TotalClaimable, &s.APY, &s.Width, &s.Height, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetSnapshot(ctx context.Context, chainID uint64, root string) (*Snapshot, error) {
	s, err := scanSnapshot(db.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE chain_id = $1 AND root = $2`, chainID, root))
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSnapshots returns the newest snapshots of chainID first.
func (db *DB) ListSnapshots(ctx context.Context, chainID uint64, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE chain_id = $1
		ORDER BY end_height DESC, created_at DESC LIMIT $2`, chainID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetManifest returns the stored manifest document.
func (db *DB) GetManifest(ctx context.Context, chainID uint64, root string) (*airdrop.Manifest, error) {
	var raw []byte
	err := db.QueryRow(ctx, `SELECT manifest FROM snapshots WHERE chain_id = $1 AND root = $2`, chainID, root).Scan(&raw)
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var m airdrop.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", root, err)
	}
	return &m, nil
}

// GetClaim returns the claim of a canonical address in snapshot root.
func (db *DB) GetClaim(ctx context.Context, chainID uint64, root, address string) (*airdrop.Claim, error) {
	var (
		average, value, node string
		proof                []string
	)
	err := db.QueryRow(ctx, `
		SELECT average::text, value::text, node, proof
		FROM snapshot_claims
		WHERE chain_id = $1 AND root = $2 AND address = $3
	`, chainID, root, address).Scan(&average, &value, &node, &proof)
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c := &airdrop.Claim{Address: address, Proof: make([]merkle.Hash, len(proof))}
	avg, ok1 := new(big.Int).SetString(average, 10)
	val, ok2 := new(big.Int).SetString(value, 10)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("claim %s: malformed stored amount", address)
	}
	c.AverageStake, c.Value = airdrop.NewAmount(avg), airdrop.NewAmount(val)
	if c.Node, err = merkle.HashFromHex(node); err != nil {
		return nil, err
	}
	for i, p := range proof {
		if c.Proof[i], err = merkle.HashFromHex(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}
