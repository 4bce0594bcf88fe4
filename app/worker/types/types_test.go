package types

import (
	"testing"
	"time"

	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

func TestScheduleOptions(t *testing.T) {
	opts := ScheduleOptions("snapshot", SnapshotInput{
		Request: snapshot.Request{ChainID: 5, Subject: source.Stake, Dropped: "100"},
		Cron:    "0 0 * * 1",
	})
	assert.Equal(t, "snapshot:5", opts.ID)
	assert.Equal(t, []string{"0 0 * * 1"}, opts.Spec.CronExpressions)

	action, ok := opts.Action.(*client.ScheduleWorkflowAction)
	require.True(t, ok)
	assert.Equal(t, SnapshotWorkflowName, action.Workflow)
	assert.Equal(t, "snapshot:5:scheduled", action.ID)
	assert.Equal(t, "snapshot", action.TaskQueue)
	require.Len(t, action.Args, 1)
	in := action.Args[0].(SnapshotInput)
	assert.Equal(t, "0 0 * * 1", in.Cron)
	assert.False(t, in.Request.HasDates())
}

func TestWorkflowID(t *testing.T) {
	byHeight := SnapshotInput{Request: snapshot.Request{ChainID: 1, Subject: source.Stake, StartHeight: 10, EndHeight: 30}}
	assert.Equal(t, "snapshot:1:stake:10-30", WorkflowID(byHeight))

	start := time.Unix(1000, 0).UTC()
	end := time.Unix(2000, 0).UTC()
	byDate := SnapshotInput{Request: snapshot.Request{ChainID: 1, Subject: source.Balance, StartDate: &start, EndDate: &end}}
	assert.Equal(t, "snapshot:1:account:1000-2000", WorkflowID(byDate))
}

func TestLedgerScheduleOptions(t *testing.T) {
	opts := LedgerScheduleOptions("snapshot", 3, "*/5 * * * *", LedgerSyncInput{Subject: source.Balance})
	assert.Equal(t, "ledger:3:account", opts.ID)
	assert.Equal(t, enums.SCHEDULE_OVERLAP_POLICY_SKIP, opts.Overlap)

	action := opts.Action.(*client.ScheduleWorkflowAction)
	assert.Equal(t, LedgerSyncWorkflowName, action.Workflow)
	in := action.Args[0].(LedgerSyncInput)
	assert.Equal(t, uint64(500), in.BatchSize)
	assert.Equal(t, uint64(1), in.FromHeight)
	assert.Equal(t, 20, in.MaxBatches)
}
