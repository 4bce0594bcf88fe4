// Package snapshot runs one distribution end to end: it resolves the period to heights, loads
// balance change events, averages them per address, allocates the dropped amount and builds
// the Merkle manifest.
package snapshot

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/canopy-network/stakedrop/pkg/source"
)

var (
	// ErrNoWindow means a request carries neither dates nor heights.
	ErrNoWindow = errors.New("snapshot: request needs start/end dates or heights")
	// ErrInvalidDropped means the dropped amount is missing, malformed or negative.
	ErrInvalidDropped = errors.New("snapshot: dropped amount must be a non-negative integer")
	// ErrZeroStartHeight means a height window starts at 0. Canopy has no block 0 and its RPC
	// answers height 0 with the latest state.
	ErrZeroStartHeight = errors.New("snapshot: start height must be at least 1")
	// ErrWrongChain means the request targets a chain this process does not serve.
	ErrWrongChain = errors.New("snapshot: request is for another chain")
)

// Request describes one snapshot. Dates take precedence over heights. All fields serialize to
// JSON so a Request can be a workflow input.
type Request struct {
	ChainID     uint64         `json:"chainId"`
	Subject     source.Subject `json:"subject"`
	StartDate   *time.Time     `json:"startDate,omitempty"`
	EndDate     *time.Time     `json:"endDate,omitempty"`
	StartHeight uint64         `json:"startHeight,omitempty"`
	EndHeight   uint64         `json:"endHeight,omitempty"`
	// Dropped is a base-10 integer string.
	Dropped string `json:"dropped"`
}

// HasDates reports whether the window is expressed in time.
func (r Request) HasDates() bool {
	return r.StartDate != nil && r.EndDate != nil
}

func (r Request) DroppedAmount() (*big.Int, error) {
	v, ok := new(big.Int).SetString(r.Dropped, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDropped, r.Dropped)
	}
	return v, nil
}

func (r Request) Validate() error {
	if _, err := r.DroppedAmount(); err != nil {
		return err
	}
	if _, err := source.ParseSubject(string(r.Subject)); err != nil {
		return err
	}
	switch {
	case r.HasDates():
		if !r.EndDate.After(*r.StartDate) {
			return fmt.Errorf("snapshot: end date %s is not after start date %s",
				r.EndDate.Format(time.RFC3339), r.StartDate.Format(time.RFC3339))
		}
	case r.EndHeight > 0:
		if r.StartHeight == 0 {
			return ErrZeroStartHeight
		}
		if r.EndHeight <= r.StartHeight {
			return fmt.Errorf("snapshot: end height %d is not after start height %d", r.EndHeight, r.StartHeight)
		}
	default:
		return ErrNoWindow
	}
	return nil
}
