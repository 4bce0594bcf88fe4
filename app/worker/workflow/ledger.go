package workflow

import (
	"time"

	"github.com/canopy-network/stakedrop/app/worker/types"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// LedgerSyncWorkflow mirrors the chain into the ClickHouse ledger from the last synced height
// towards the head, one batch per activity, stopping after MaxBatches.
func (wc *Context) LedgerSyncWorkflow(ctx workflow.Context, in types.LedgerSyncInput) (types.LedgerSyncOutput, error) {
	in = in.WithDefaults()
	logger := workflow.GetLogger(ctx)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: wc.Config.SyncTimeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
		TaskQueue: wc.Config.Queue,
	})

	var head types.ActivityLedgerHeadOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.LedgerHead, in).Get(ctx, &head); err != nil {
		return types.LedgerSyncOutput{}, err
	}
	if head.Head == 0 {
		return types.LedgerSyncOutput{}, sdktemporal.NewApplicationError("unable to get head block", "no_blocks_found")
	}

	from := max(head.Synced, in.FromHeight)
	out := types.LedgerSyncOutput{From: from, To: from}
	for batch := 0; batch < in.MaxBatches && from < head.Head; batch++ {
		to := min(from+in.BatchSize, head.Head+1)

		var res types.ActivitySyncRangeOutput
		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.SyncLedgerRange, types.ActivitySyncRangeInput{
			Subject: in.Subject,
			From:    from,
			To:      to,
		}).Get(ctx, &res); err != nil {
			return out, err
		}
		out.Rows += res.Rows
		out.To = to - 1
		from = to - 1
	}
	out.CaughtUp = from >= head.Head

	logger.Info("Ledger synced", "subject", in.Subject, "from", out.From, "to", out.To,
		"rows", out.Rows, "head", head.Head, "caughtUp", out.CaughtUp)
	return out, nil
}
