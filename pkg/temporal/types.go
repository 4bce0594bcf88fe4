package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
)

const DefaultNamespace = "stakedrop"

// QueueSnapshot carries snapshot workflows and their activities.
const QueueSnapshot = "snapshot"

const (
	// ScheduleSnapshot is the per-chain schedule id, e.g. "snapshot:1".
	ScheduleSnapshot = "snapshot:%d"
	// WorkflowIDSnapshot identifies one snapshot run by chain, subject and height window.
	WorkflowIDSnapshot = "snapshot:%d:%s:%d-%d"
	// WorkflowIDScheduledSnapshot prefixes runs started by the schedule; Temporal appends the time.
	WorkflowIDScheduledSnapshot = "snapshot:%d:scheduled"

	// ScheduleLedgerSync keeps a chain ledger table at the head, e.g. "ledger:1:stake".
	ScheduleLedgerSync   = "ledger:%d:%s"
	WorkflowIDLedgerSync = "ledger:%d:%s:scheduled"
)

func SnapshotScheduleID(chainID uint64) string {
	return fmt.Sprintf(ScheduleSnapshot, chainID)
}

func SnapshotWorkflowID(chainID uint64, subject string, start, end uint64) string {
	return fmt.Sprintf(WorkflowIDSnapshot, chainID, subject, start, end)
}

func LedgerSyncScheduleID(chainID uint64, subject string) string {
	return fmt.Sprintf(ScheduleLedgerSync, chainID, subject)
}

// CronSpec returns a schedule spec firing on a standard five field cron expression.
func CronSpec(expr string) client.ScheduleSpec {
	return client.ScheduleSpec{CronExpressions: []string{expr}}
}
