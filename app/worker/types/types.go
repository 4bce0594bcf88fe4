package types

import "github.com/canopy-network/stakedrop/pkg/snapshot"

// SnapshotInput starts a SnapshotWorkflow. When Request carries no window and Cron is set, the
// workflow uses the latest complete cron period as of its start time.
type SnapshotInput struct {
	Request snapshot.Request `json:"request"`
	Cron    string           `json:"cron,omitempty"`
}

type ActivityResolveWindowOutput struct {
	StartHeight uint64 `json:"startHeight"`
	EndHeight   uint64 `json:"endHeight"`
}

type ActivityComputeSnapshotInput struct {
	Request     snapshot.Request `json:"request"`
	StartHeight uint64           `json:"startHeight"`
	EndHeight   uint64           `json:"endHeight"`
}

type ActivityComputeSnapshotOutput struct {
	Published    snapshot.Published `json:"published"`
	ManifestPath string             `json:"manifestPath,omitempty"`
	DurationMs   float64            `json:"durationMs"`
}

type ActivityPublishSnapshotOutput struct {
	StreamID string `json:"streamId"`
}

// SnapshotOutput is the result of a SnapshotWorkflow.
type SnapshotOutput struct {
	Published snapshot.Published `json:"published"`
	StreamID  string             `json:"streamId,omitempty"`
}
