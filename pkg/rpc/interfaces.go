package rpc

import (
	"context"
	"time"

	"github.com/canopy-network/canopy/fsm"
)

// Client captures the RPC calls a snapshot needs: head and block time lookups for resolving
// dates, and full validator or account sets for rebuilding balance histories.
type Client interface {
	ChainHead(ctx context.Context) (uint64, error)
	BlockByHeight(ctx context.Context, height uint64) (*Block, error)
	BlockTime(ctx context.Context, height uint64) (time.Time, error)
	ValidatorsByHeight(ctx context.Context, height uint64) ([]*fsm.Validator, error)
	AccountsByHeight(ctx context.Context, height uint64) ([]*Account, error)
}
