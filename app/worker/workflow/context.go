package workflow

import (
	"time"

	"github.com/canopy-network/stakedrop/app/worker/activity"
	"github.com/canopy-network/stakedrop/app/worker/types"
)

const (
	SnapshotWorkflowName   = types.SnapshotWorkflowName
	LedgerSyncWorkflowName = types.LedgerSyncWorkflowName
)

// Config holds activity timeouts.
type Config struct {
	ResolveTimeout time.Duration
	ComputeTimeout time.Duration
	PublishTimeout time.Duration
	SyncTimeout    time.Duration
	// Queue is the task queue activities run on.
	Queue string
}

func DefaultConfig(queue string) Config {
	return Config{
		ResolveTimeout: 5 * time.Minute,
		ComputeTimeout: 2 * time.Hour,
		PublishTimeout: 30 * time.Second,
		SyncTimeout:    30 * time.Minute,
		Queue:          queue,
	}
}

type Context struct {
	ActivityContext *activity.Context
	Config          Config
}
