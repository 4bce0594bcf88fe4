package source

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stakedrop/pkg/db/chain"
	"github.com/canopy-network/stakedrop/pkg/rpc"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"go.uber.org/zap"
)

// ErrHeightZero is returned for intervals starting at height 0, which the node RPC resolves to
// the latest height instead of a historical state.
var ErrHeightZero = errors.New("source: rpc intervals must start at height 1 or above")

// Mirror receives the derived change rows, normally a chain.DB.
type Mirror interface {
	InsertHoldings(ctx context.Context, table chain.Table, rows []chain.Holding) error
}

type RPCOpts struct {
	// MaxConcurrency bounds heights fetched at once. Default 8.
	MaxConcurrency int
	// Step samples every Step-th height. Default 1 (every height).
	Step uint64
	// ChunkSize is how many heights are held in memory between diffs. Default 64.
	ChunkSize int
	// Mirror, when set, gets every change row written back to the ledger.
	Mirror Mirror
}

// RPC rebuilds change events by fetching full holder sets at each height and diffing
// consecutive heights. The state at From is emitted in full as the baseline; a holder that
// disappears gets a zero-valued event.
type RPC struct {
	logger  *zap.Logger
	client  rpc.Client
	subject Subject
	opts    RPCOpts
	pool    pond.Pool
}

func NewRPC(logger *zap.Logger, client rpc.Client, subject Subject, opts RPCOpts) *RPC {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.Step == 0 {
		opts.Step = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 64
	}
	return &RPC{
		logger:  logger,
		client:  client,
		subject: subject,
		opts:    opts,
		pool:    pond.NewPool(opts.MaxConcurrency),
	}
}

// Close stops the fetch pool.
func (s *RPC) Close() {
	s.pool.StopAndWait()
}

type heightState struct {
	height   uint64
	time     time.Time
	holdings map[string]uint64
}

func (s *RPC) Events(ctx context.Context, iv twab.Interval) ([]twab.ChangeEvent, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	if iv.Start == 0 {
		return nil, ErrHeightZero
	}

	heights := make([]uint64, 0)
	for h := iv.Start; h < iv.End; h += s.opts.Step {
		heights = append(heights, h)
	}

	var (
		events []twab.ChangeEvent
		prev   map[string]uint64
	)
	for start := 0; start < len(heights); start += s.opts.ChunkSize {
		end := min(start+s.opts.ChunkSize, len(heights))
		states, err := s.fetchChunk(ctx, heights[start:end])
		if err != nil {
			return nil, err
		}

		rows := make([]chain.Holding, 0)
		for _, st := range states {
			for _, d := range diff(prev, st.holdings) {
				events = append(events, twab.ChangeEvent{
					Address:  d.address,
					Position: st.height,
					Value:    new(big.Int).SetUint64(d.amount),
				})
				rows = append(rows, chain.Holding{Address: d.address, Amount: d.amount, Height: st.height, HeightTime: st.time})
			}
			prev = st.holdings
		}

		if s.opts.Mirror != nil && len(rows) > 0 {
			if err := s.opts.Mirror.InsertHoldings(ctx, s.subject.Table(), rows); err != nil {
				return nil, fmt.Errorf("mirror %d rows: %w", len(rows), err)
			}
		}
		s.logger.Debug("Diffed height chunk",
			zap.Uint64("from", heights[start]),
			zap.Uint64("to", heights[end-1]),
			zap.Int("rows", len(rows)))
	}
	return events, nil
}

// fetchChunk loads holder sets for heights concurrently, keeping height order.
func (s *RPC) fetchChunk(ctx context.Context, heights []uint64) ([]heightState, error) {
	states := make([]heightState, len(heights))
	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, h := range heights {
		group.SubmitErr(func() error {
			holdings, err := s.holdersAt(groupCtx, h)
			if err != nil {
				return err
			}
			st := heightState{height: h, holdings: holdings}
			if s.opts.Mirror != nil {
				if st.time, err = s.client.BlockTime(groupCtx, h); err != nil {
					return err
				}
			}
			states[i] = st
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return states, nil
}

func (s *RPC) holdersAt(ctx context.Context, height uint64) (map[string]uint64, error) {
	out := make(map[string]uint64)
	if s.subject == Balance {
		accounts, err := s.client.AccountsByHeight(ctx, height)
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			out[a.Address] += a.Amount
		}
		return out, nil
	}

	validators, err := s.client.ValidatorsByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	for _, v := range validators {
		out[hex.EncodeToString(v.Address)] += v.StakedAmount
	}
	return out, nil
}

type delta struct {
	address string
	amount  uint64
}

// diff lists the holdings of next that differ from prev, plus zeroes for holders that left.
// A nil prev yields every non-zero holding.
func diff(prev, next map[string]uint64) []delta {
	out := make([]delta, 0)
	for addr, amt := range next {
		old, ok := prev[addr]
		if prev == nil && amt == 0 {
			continue
		}
		if !ok || old != amt {
			out = append(out, delta{address: addr, amount: amt})
		}
	}
	for addr, old := range prev {
		if _, ok := next[addr]; !ok && old != 0 {
			out = append(out, delta{address: addr, amount: 0})
		}
	}
	return out
}
