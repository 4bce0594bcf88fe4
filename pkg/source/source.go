// Package source produces the balance change events a snapshot averages over.
//
// Every Source honours the same contract for an interval [From, To): for each address it returns
// its last event at or before From (the baseline) plus every event with From <= position < To.
// Events outside that window are allowed; the averaging code clamps them away.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/canopy-network/stakedrop/pkg/db/chain"
	"github.com/canopy-network/stakedrop/pkg/twab"
)

// Subject names the balance being tracked.
type Subject string

const (
	// Stake tracks validator staked amounts.
	Stake Subject = "stake"
	// Balance tracks liquid account balances.
	Balance Subject = "account"
)

func ParseSubject(s string) (Subject, error) {
	switch Subject(strings.ToLower(strings.TrimSpace(s))) {
	case Stake, "":
		return Stake, nil
	case Balance, "balance":
		return Balance, nil
	default:
		return "", fmt.Errorf("unknown balance subject %q", s)
	}
}

// Table maps the subject to its ledger table.
func (s Subject) Table() chain.Table {
	if s == Balance {
		return chain.Accounts
	}
	return chain.Validators
}

type Source interface {
	Events(ctx context.Context, iv twab.Interval) ([]twab.ChangeEvent, error)
}
