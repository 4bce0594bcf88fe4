package workflow

import (
	"time"

	"github.com/canopy-network/stakedrop/app/worker/types"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SnapshotWorkflow resolves the window, computes and stores the manifest, then publishes it.
// Compute is all-or-nothing: a failure leaves no stored manifest and nothing is published.
func (wc *Context) SnapshotWorkflow(ctx workflow.Context, in types.SnapshotInput) (types.SnapshotOutput, error) {
	logger := workflow.GetLogger(ctx)
	req := in.Request

	if !req.HasDates() && req.EndHeight == 0 && in.Cron != "" {
		start, end, err := snapshot.Window(in.Cron, workflow.Now(ctx).UTC())
		if err != nil {
			return types.SnapshotOutput{}, sdktemporal.NewNonRetryableApplicationError(err.Error(), "invalid_request", err)
		}
		req.StartDate, req.EndDate = &start, &end
	}

	retry := &sdktemporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    5,
	}

	var window types.ActivityResolveWindowOutput
	resolveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: wc.Config.ResolveTimeout,
		RetryPolicy:         retry,
		TaskQueue:           wc.Config.Queue,
	})
	if err := workflow.ExecuteActivity(resolveCtx, wc.ActivityContext.ResolveWindow, req).Get(ctx, &window); err != nil {
		logger.Error("Resolve window failed", "error", err.Error())
		return types.SnapshotOutput{}, err
	}
	logger.Info("Window resolved", "start", window.StartHeight, "end", window.EndHeight)

	var computed types.ActivityComputeSnapshotOutput
	computeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: wc.Config.ComputeTimeout,
		RetryPolicy:         retry,
		TaskQueue:           wc.Config.Queue,
	})
	err := workflow.ExecuteActivity(computeCtx, wc.ActivityContext.ComputeSnapshot, types.ActivityComputeSnapshotInput{
		Request:     req,
		StartHeight: window.StartHeight,
		EndHeight:   window.EndHeight,
	}).Get(ctx, &computed)
	if err != nil {
		logger.Error("Compute snapshot failed", "error", err.Error())
		return types.SnapshotOutput{}, err
	}

	out := types.SnapshotOutput{Published: computed.Published}

	// publishing is best effort; the snapshot is already stored
	var published types.ActivityPublishSnapshotOutput
	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: wc.Config.PublishTimeout,
		RetryPolicy:         &sdktemporal.RetryPolicy{MaximumAttempts: 3},
		TaskQueue:           wc.Config.Queue,
	})
	if err := workflow.ExecuteActivity(publishCtx, wc.ActivityContext.PublishSnapshot, computed.Published).Get(ctx, &published); err != nil {
		logger.Warn("Publish snapshot failed", "root", computed.Published.Root, "error", err.Error())
	}
	out.StreamID = published.StreamID

	logger.Info("Snapshot workflow completed",
		"root", computed.Published.Root,
		"claims", computed.Published.Claims,
		"duration_ms", computed.DurationMs)
	return out, nil
}
