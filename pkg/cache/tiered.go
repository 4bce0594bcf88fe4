package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Tiered reads tiers in order and back-fills the faster tiers on a hit. Tier errors are logged
// and treated as misses so a broken backing store only costs an extra upstream lookup.
type Tiered struct {
	logger *zap.Logger
	tiers  []BlockTimes
}

func NewTiered(logger *zap.Logger, tiers ...BlockTimes) *Tiered {
	return &Tiered{logger: logger, tiers: tiers}
}

func (t *Tiered) Get(ctx context.Context, height uint64) (time.Time, bool, error) {
	for i, tier := range t.tiers {
		ts, ok, err := tier.Get(ctx, height)
		if err != nil {
			t.logger.Warn("block time cache read failed", zap.Int("tier", i), zap.Uint64("height", height), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			if err := t.tiers[j].Put(ctx, height, ts); err != nil {
				t.logger.Warn("block time cache backfill failed", zap.Int("tier", j), zap.Uint64("height", height), zap.Error(err))
			}
		}
		return ts, true, nil
	}
	return time.Time{}, false, nil
}

// Put writes every tier and returns the first error after trying all of them.
func (t *Tiered) Put(ctx context.Context, height uint64, ts time.Time) error {
	var first error
	for i, tier := range t.tiers {
		if err := tier.Put(ctx, height, ts); err != nil {
			t.logger.Warn("block time cache write failed", zap.Int("tier", i), zap.Uint64("height", height), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
