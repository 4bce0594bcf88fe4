// Package cache holds read-through stores for height to block time lookups. A block time never
// changes once committed, so entries are never expired or invalidated.
package cache

import (
	"context"
	"time"
)

// BlockTimes maps heights of one chain to their block timestamps. A miss is (zero, false, nil).
type BlockTimes interface {
	Get(ctx context.Context, height uint64) (time.Time, bool, error)
	Put(ctx context.Context, height uint64, t time.Time) error
}
