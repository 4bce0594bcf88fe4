package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stakedrop/pkg/cache"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"go.uber.org/zap"
)

// ErrTimestampAfterHead is returned when no committed block is at or after the requested time.
var ErrTimestampAfterHead = errors.New("resolver: timestamp is after the chain head")

// BlockTimeSource is the upstream oracle, normally an rpc.Client.
type BlockTimeSource interface {
	ChainHead(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, height uint64) (time.Time, error)
}

type Opts struct {
	// MaxConcurrency bounds outstanding upstream lookups. Default 4.
	MaxConcurrency int
	// MinHeight is the lowest height searched, usually 1 (genesis has no block time).
	MinHeight uint64
}

// Resolver maps timestamps to block heights by binary search over block times.
// Lookups go through cache first; a cache miss or cache failure falls through to the source.
type Resolver struct {
	logger    *zap.Logger
	source    BlockTimeSource
	cache     cache.BlockTimes
	pool      pond.Pool
	minHeight uint64
}

func New(logger *zap.Logger, source BlockTimeSource, c cache.BlockTimes, opts Opts) *Resolver {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.MinHeight == 0 {
		opts.MinHeight = 1
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Resolver{
		logger:    logger,
		source:    source,
		cache:     c,
		pool:      pond.NewPool(opts.MaxConcurrency),
		minHeight: opts.MinHeight,
	}
}

// Close waits for in-flight lookups and releases the worker pool.
func (r *Resolver) Close() {
	r.pool.StopAndWait()
}

// BlockTime is a cached read of the block time at height.
func (r *Resolver) BlockTime(ctx context.Context, height uint64) (time.Time, error) {
	if ts, ok, err := r.cache.Get(ctx, height); err == nil && ok {
		return ts, nil
	} else if err != nil {
		r.logger.Warn("block time cache read failed", zap.Uint64("height", height), zap.Error(err))
	}

	var ts time.Time
	task := r.pool.SubmitErr(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := r.source.BlockTime(ctx, height)
		if err != nil {
			return err
		}
		ts = t
		return nil
	})
	if err := task.Wait(); err != nil {
		return time.Time{}, fmt.Errorf("block time at %d: %w", height, err)
	}

	if err := r.cache.Put(ctx, height, ts); err != nil {
		r.logger.Warn("block time cache write failed", zap.Uint64("height", height), zap.Error(err))
	}
	return ts, nil
}

// ResolvePosition returns the lowest height whose block time is at or after ts. Block times are
// assumed non-decreasing with height.
func (r *Resolver) ResolvePosition(ctx context.Context, ts time.Time) (uint64, error) {
	head, err := r.source.ChainHead(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain head: %w", err)
	}
	if head < r.minHeight {
		return 0, ErrTimestampAfterHead
	}

	headTime, err := r.BlockTime(ctx, head)
	if err != nil {
		return 0, err
	}
	if headTime.Before(ts) {
		return 0, fmt.Errorf("%s vs head %d at %s: %w", ts.UTC().Format(time.RFC3339), head, headTime.Format(time.RFC3339), ErrTimestampAfterHead)
	}

	lo, hi := r.minHeight, head
	for lo < hi {
		mid := lo + (hi-lo)/2
		t, err := r.BlockTime(ctx, mid)
		if err != nil {
			return 0, err
		}
		if t.Before(ts) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	r.logger.Debug("resolved timestamp", zap.Time("ts", ts), zap.Uint64("height", lo))
	return lo, nil
}

// ResolveInterval turns a date range into the height interval [height(start), height(end)).
// Both ends are searched concurrently.
func (r *Resolver) ResolveInterval(ctx context.Context, start, end time.Time) (twab.Interval, error) {
	if !end.After(start) {
		return twab.Interval{}, twab.ErrInvalidInterval
	}

	var (
		wg       sync.WaitGroup
		from, to uint64
		errs     [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		from, errs[0] = r.ResolvePosition(ctx, start)
	}()
	go func() {
		defer wg.Done()
		to, errs[1] = r.ResolvePosition(ctx, end)
	}()
	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return twab.Interval{}, err
	}
	iv, err := twab.NewInterval(from, to)
	if err != nil {
		return twab.Interval{}, fmt.Errorf("%s to %s resolves to heights %d..%d: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), from, to, err)
	}
	return iv, nil
}
