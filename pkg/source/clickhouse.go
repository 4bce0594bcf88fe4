package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/canopy-network/stakedrop/pkg/db/chain"
	"github.com/canopy-network/stakedrop/pkg/twab"
)

// Ledger is the read side of chain.DB.
type Ledger interface {
	Baseline(ctx context.Context, table chain.Table, height uint64) ([]chain.Holding, error)
	Changes(ctx context.Context, table chain.Table, from, to uint64) ([]chain.Holding, error)
}

// ClickHouse reads events from the indexed snapshot-on-change ledger.
type ClickHouse struct {
	ledger  Ledger
	subject Subject
}

func NewClickHouse(ledger Ledger, subject Subject) *ClickHouse {
	return &ClickHouse{ledger: ledger, subject: subject}
}

func (s *ClickHouse) Events(ctx context.Context, iv twab.Interval) ([]twab.ChangeEvent, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	table := s.subject.Table()

	base, err := s.ledger.Baseline(ctx, table, iv.Start)
	if err != nil {
		return nil, fmt.Errorf("baseline %s at %d: %w", table, iv.Start, err)
	}
	changes, err := s.ledger.Changes(ctx, table, iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("changes %s in [%d, %d): %w", table, iv.Start, iv.End, err)
	}

	events := make([]twab.ChangeEvent, 0, len(base)+len(changes))
	for _, rows := range [][]chain.Holding{base, changes} {
		for _, h := range rows {
			events = append(events, twab.ChangeEvent{
				Address:  h.Address,
				Position: h.Height,
				Value:    new(big.Int).SetUint64(h.Amount),
			})
		}
	}
	return events, nil
}
