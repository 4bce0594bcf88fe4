package activity

import (
	"context"
	"time"

	"github.com/canopy-network/stakedrop/app/worker/types"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/twab"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// ResolveWindow maps the request window to block heights.
func (ac *Context) ResolveWindow(ctx context.Context, req snapshot.Request) (types.ActivityResolveWindowOutput, error) {
	iv, err := ac.Runner.Interval(ctx, req)
	if err != nil {
		return types.ActivityResolveWindowOutput{}, nonRetryable(err)
	}
	return types.ActivityResolveWindowOutput{StartHeight: iv.Start, EndHeight: iv.End}, nil
}

// ComputeSnapshot builds the manifest over the resolved heights and stores it.
func (ac *Context) ComputeSnapshot(ctx context.Context, in types.ActivityComputeSnapshotInput) (types.ActivityComputeSnapshotOutput, error) {
	start := time.Now()

	iv, err := twab.NewInterval(in.StartHeight, in.EndHeight)
	if err != nil {
		return types.ActivityComputeSnapshotOutput{}, nonRetryable(err)
	}
	m, err := ac.Runner.Compute(ctx, in.Request, iv)
	if err != nil {
		return types.ActivityComputeSnapshotOutput{}, nonRetryable(err)
	}

	subject := string(in.Request.Subject)
	if err := ac.Store.SaveSnapshot(ctx, subject, m); err != nil {
		return types.ActivityComputeSnapshotOutput{}, temporal.NewApplicationErrorWithCause("unable to store snapshot", "store_error", err)
	}

	out := types.ActivityComputeSnapshotOutput{Published: snapshot.NewPublished(subject, m)}
	if ac.OutputDir != "" {
		out.ManifestPath = snapshot.ManifestPath(ac.OutputDir, m)
		if err := snapshot.WriteManifest(out.ManifestPath, m); err != nil {
			return types.ActivityComputeSnapshotOutput{}, err
		}
	}
	out.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0

	ac.Logger.Info("Snapshot stored",
		zap.Uint64("chainID", m.ChainID),
		zap.String("root", out.Published.Root),
		zap.Int("claims", out.Published.Claims),
		zap.Float64("duration_ms", out.DurationMs))
	return out, nil
}

// PublishSnapshot notifies subscribers that a snapshot is available.
func (ac *Context) PublishSnapshot(ctx context.Context, msg snapshot.Published) (types.ActivityPublishSnapshotOutput, error) {
	if ac.Publisher == nil {
		return types.ActivityPublishSnapshotOutput{}, nil
	}
	id, err := ac.Publisher.Publish(ctx, msg)
	if err != nil {
		return types.ActivityPublishSnapshotOutput{}, err
	}
	return types.ActivityPublishSnapshotOutput{StreamID: id}, nil
}
