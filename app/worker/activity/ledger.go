package activity

import (
	"context"
	"errors"

	"github.com/canopy-network/stakedrop/app/worker/types"
	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

var errLedgerDisabled = errors.New("ledger sync needs an RPC client and a ClickHouse ledger")

// LedgerHead returns the chain head and the last height mirrored into the subject's ledger.
func (ac *Context) LedgerHead(ctx context.Context, in types.LedgerSyncInput) (types.ActivityLedgerHeadOutput, error) {
	if ac.RPC == nil || ac.Ledger == nil {
		return types.ActivityLedgerHeadOutput{}, temporal.NewNonRetryableApplicationError(errLedgerDisabled.Error(), "ledger_disabled", errLedgerDisabled)
	}
	head, err := ac.RPC.ChainHead(ctx)
	if err != nil {
		return types.ActivityLedgerHeadOutput{}, err
	}
	synced, err := ac.Ledger.SyncedHeight(ctx, in.Subject.Table())
	if err != nil {
		return types.ActivityLedgerHeadOutput{}, err
	}
	return types.ActivityLedgerHeadOutput{Head: head, Synced: synced}, nil
}

// SyncLedgerRange diffs holder sets over [From, To), writes the change rows to the ledger and
// advances the watermark to To-1. Rows re-written by a retry collapse in the ledger.
func (ac *Context) SyncLedgerRange(ctx context.Context, in types.ActivitySyncRangeInput) (types.ActivitySyncRangeOutput, error) {
	if ac.RPC == nil || ac.Ledger == nil {
		return types.ActivitySyncRangeOutput{}, temporal.NewNonRetryableApplicationError(errLedgerDisabled.Error(), "ledger_disabled", errLedgerDisabled)
	}
	iv, err := twab.NewInterval(in.From, in.To)
	if err != nil {
		return types.ActivitySyncRangeOutput{}, nonRetryable(err)
	}

	src := source.NewRPC(ac.Logger, ac.RPC, in.Subject, source.RPCOpts{
		MaxConcurrency: ac.MaxConcurrency,
		Mirror:         ac.Ledger,
	})
	defer src.Close()

	events, err := src.Events(ctx, iv)
	if err != nil {
		return types.ActivitySyncRangeOutput{}, err
	}
	if err := ac.Ledger.SetSyncedHeight(ctx, in.Subject.Table(), in.To-1); err != nil {
		return types.ActivitySyncRangeOutput{}, err
	}
	activity.RecordHeartbeat(ctx, in.To-1)

	ac.Logger.Debug("Ledger range synced",
		zap.String("subject", string(in.Subject)),
		zap.Uint64("from", in.From),
		zap.Uint64("to", in.To),
		zap.Int("rows", len(events)))
	return types.ActivitySyncRangeOutput{Rows: len(events)}, nil
}
