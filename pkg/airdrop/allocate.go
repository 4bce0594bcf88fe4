package airdrop

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"github.com/canopy-network/stakedrop/pkg/merkle"
	"github.com/canopy-network/stakedrop/pkg/twab"
)

// ClaimRecord is the share of one participant.
type ClaimRecord struct {
	Address string
	Average *big.Int
	Value   *big.Int
	Leaf    merkle.Hash
}

// Allocate splits dropped proportionally to each average, rounding every share down.
// Zero averages are skipped. Records are returned sorted by address.
func Allocate(averages []twab.Result, dropped *big.Int) ([]ClaimRecord, error) {
	if dropped == nil || dropped.Sign() < 0 {
		return nil, ErrNegativeAmount
	}

	participants := make([]twab.Result, 0, len(averages))
	seen := make(map[string]struct{}, len(averages))
	total := new(big.Int)
	for _, r := range averages {
		if r.Average == nil || r.Average.Sign() == 0 {
			continue
		}
		if r.Average.Sign() < 0 {
			return nil, fmt.Errorf("average for %s: %w", r.Address, ErrNegativeAmount)
		}
		if _, dup := seen[r.Address]; dup {
			return nil, fmt.Errorf("duplicate average for %s", r.Address)
		}
		seen[r.Address] = struct{}{}
		participants = append(participants, r)
		total.Add(total, r.Average)
	}
	if total.Sign() == 0 {
		return nil, ErrNoParticipants
	}
	slices.SortFunc(participants, func(a, b twab.Result) int { return cmp.Compare(a.Address, b.Address) })

	claims := make([]ClaimRecord, 0, len(participants))
	for _, p := range participants {
		value := new(big.Int).Mul(p.Average, dropped)
		value.Quo(value, total)
		leaf, err := LeafHash(p.Address, value)
		if err != nil {
			return nil, fmt.Errorf("leaf for %s: %w", p.Address, err)
		}
		claims = append(claims, ClaimRecord{
			Address: p.Address,
			Average: new(big.Int).Set(p.Average),
			Value:   value,
			Leaf:    leaf,
		})
	}
	return claims, nil
}

// Totals returns the sum of averages and of claim values.
func Totals(claims []ClaimRecord) (averageTotal, claimable *big.Int) {
	averageTotal, claimable = new(big.Int), new(big.Int)
	for _, c := range claims {
		averageTotal.Add(averageTotal, c.Average)
		claimable.Add(claimable, c.Value)
	}
	return averageTotal, claimable
}
