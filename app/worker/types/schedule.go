package types

import (
	"fmt"
	"time"

	"github.com/canopy-network/stakedrop/pkg/temporal"
	"go.temporal.io/sdk/client"
)

const SnapshotWorkflowName = "SnapshotWorkflow"

// ScheduleOptions builds the per-chain schedule firing SnapshotWorkflow on in.Cron. Each run
// snapshots the cron period that just closed.
func ScheduleOptions(queue string, in SnapshotInput) client.ScheduleOptions {
	chainID := in.Request.ChainID
	return client.ScheduleOptions{
		ID:   temporal.SnapshotScheduleID(chainID),
		Spec: temporal.CronSpec(in.Cron),
		Action: &client.ScheduleWorkflowAction{
			ID:                       fmt.Sprintf(temporal.WorkflowIDScheduledSnapshot, chainID),
			Workflow:                 SnapshotWorkflowName,
			TaskQueue:                queue,
			Args:                     []interface{}{in},
			WorkflowExecutionTimeout: 6 * time.Hour,
			WorkflowTaskTimeout:      time.Minute,
		},
	}
}

// WorkflowID names a manual run. Date windows are keyed by their unix bounds.
func WorkflowID(in SnapshotInput) string {
	req := in.Request
	if req.HasDates() {
		return temporal.SnapshotWorkflowID(req.ChainID, string(req.Subject), uint64(req.StartDate.Unix()), uint64(req.EndDate.Unix()))
	}
	return temporal.SnapshotWorkflowID(req.ChainID, string(req.Subject), req.StartHeight, req.EndHeight)
}
