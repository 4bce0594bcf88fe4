package types

import (
	"fmt"
	"time"

	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/canopy-network/stakedrop/pkg/temporal"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

const LedgerSyncWorkflowName = "LedgerSyncWorkflow"

// LedgerSyncInput drives one LedgerSyncWorkflow run for a chain ledger table.
type LedgerSyncInput struct {
	Subject source.Subject `json:"subject"`
	// FromHeight is where a ledger that never synced starts. Default 1.
	FromHeight uint64 `json:"fromHeight,omitempty"`
	// BatchSize heights are mirrored per activity. Default 500.
	BatchSize uint64 `json:"batchSize,omitempty"`
	// MaxBatches caps the work of one run; the schedule picks up the rest. Default 20.
	MaxBatches int `json:"maxBatches,omitempty"`
}

func (in LedgerSyncInput) WithDefaults() LedgerSyncInput {
	if in.Subject == "" {
		in.Subject = source.Stake
	}
	if in.FromHeight == 0 {
		in.FromHeight = 1
	}
	if in.BatchSize == 0 {
		in.BatchSize = 500
	}
	if in.MaxBatches <= 0 {
		in.MaxBatches = 20
	}
	return in
}

type ActivityLedgerHeadOutput struct {
	Head   uint64 `json:"head"`
	Synced uint64 `json:"synced"`
}

// ActivitySyncRangeInput mirrors heights [From, To). From is re-read as the diff baseline.
type ActivitySyncRangeInput struct {
	Subject source.Subject `json:"subject"`
	From    uint64         `json:"from"`
	To      uint64         `json:"to"`
}

type ActivitySyncRangeOutput struct {
	Rows int `json:"rows"`
}

type LedgerSyncOutput struct {
	From     uint64 `json:"from"`
	To       uint64 `json:"to"`
	Rows     int    `json:"rows"`
	CaughtUp bool   `json:"caughtUp"`
}

// LedgerScheduleOptions fires LedgerSyncWorkflow on cron. Runs that would overlap a running
// sync are skipped.
func LedgerScheduleOptions(queue string, chainID uint64, cron string, in LedgerSyncInput) client.ScheduleOptions {
	in = in.WithDefaults()
	return client.ScheduleOptions{
		ID:      temporal.LedgerSyncScheduleID(chainID, string(in.Subject)),
		Spec:    temporal.CronSpec(cron),
		Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
		Action: &client.ScheduleWorkflowAction{
			ID:                       fmt.Sprintf(temporal.WorkflowIDLedgerSync, chainID, in.Subject),
			Workflow:                 LedgerSyncWorkflowName,
			TaskQueue:                queue,
			Args:                     []interface{}{in},
			WorkflowExecutionTimeout: 2 * time.Hour,
			WorkflowTaskTimeout:      time.Minute,
		},
	}
}
