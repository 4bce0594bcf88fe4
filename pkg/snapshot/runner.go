package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/stakedrop/pkg/airdrop"
	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"go.uber.org/zap"
)

// PositionResolver maps a date window to a height interval.
type PositionResolver interface {
	ResolveInterval(ctx context.Context, start, end time.Time) (twab.Interval, error)
}

// Runner executes snapshot requests. It is safe for concurrent use when its collaborators are.
type Runner struct {
	logger    *zap.Logger
	resolver  PositionResolver
	source    source.Source
	bySubject map[source.Subject]source.Source
	chainID   uint64
	workers   int
}

// NewRunner builds a Runner. resolver may be nil when only height based requests are run.
// src serves every subject unless ForSubject registers a dedicated source.
func NewRunner(logger *zap.Logger, resolver PositionResolver, src source.Source, workers int) *Runner {
	return &Runner{
		logger:    logger,
		resolver:  resolver,
		source:    src,
		bySubject: make(map[source.Subject]source.Source),
		workers:   workers,
	}
}

// ForSubject routes requests for subject to src. Call it before the Runner is shared.
func (r *Runner) ForSubject(subject source.Subject, src source.Source) *Runner {
	r.bySubject[subject] = src
	return r
}

// ForChain makes the Runner reject requests for any chain other than chainID.
func (r *Runner) ForChain(chainID uint64) *Runner {
	r.chainID = chainID
	return r
}

func (r *Runner) check(req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if r.chainID != 0 && req.ChainID != r.chainID {
		return fmt.Errorf("%w: serving chain %d, got %d", ErrWrongChain, r.chainID, req.ChainID)
	}
	return nil
}

func (r *Runner) sourceFor(subject source.Subject) source.Source {
	if subject == "" {
		subject = source.Stake
	}
	if src, ok := r.bySubject[subject]; ok {
		return src
	}
	return r.source
}

// Interval resolves the height window of req.
func (r *Runner) Interval(ctx context.Context, req Request) (twab.Interval, error) {
	if err := r.check(req); err != nil {
		return twab.Interval{}, err
	}
	if !req.HasDates() {
		return twab.NewInterval(req.StartHeight, req.EndHeight)
	}
	if r.resolver == nil {
		return twab.Interval{}, fmt.Errorf("snapshot: date window given but no position resolver configured")
	}
	iv, err := r.resolver.ResolveInterval(ctx, *req.StartDate, *req.EndDate)
	if err != nil {
		return twab.Interval{}, fmt.Errorf("resolve window: %w", err)
	}
	return iv, nil
}

// Compute builds the manifest of req over an already resolved interval. Any failure aborts the
// whole snapshot.
func (r *Runner) Compute(ctx context.Context, req Request, iv twab.Interval) (*airdrop.Manifest, error) {
	start := time.Now()
	if err := r.check(req); err != nil {
		return nil, err
	}
	dropped, err := req.DroppedAmount()
	if err != nil {
		return nil, err
	}

	events, err := r.sourceFor(req.Subject).Events(ctx, iv)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	averages, err := twab.ComputeFromEvents(ctx, events, iv, r.workers)
	if err != nil {
		return nil, err
	}

	params := airdrop.ManifestParams{ChainID: req.ChainID, Interval: iv, Dropped: dropped}
	if req.HasDates() {
		params.StartDate, params.EndDate = *req.StartDate, *req.EndDate
	}
	m, err := airdrop.Build(averages, params)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Snapshot computed",
		zap.Uint64("chainID", req.ChainID),
		zap.String("subject", string(req.Subject)),
		zap.Uint64("start", iv.Start),
		zap.Uint64("end", iv.End),
		zap.Int("events", len(events)),
		zap.Int("claims", len(m.MerkleTree.Claims)),
		zap.String("root", m.MerkleTree.Root.Hex()),
		zap.Duration("took", time.Since(start)))
	return m, nil
}

// Run resolves and computes req in one call.
func (r *Runner) Run(ctx context.Context, req Request) (*airdrop.Manifest, error) {
	iv, err := r.Interval(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Compute(ctx, req, iv)
}
