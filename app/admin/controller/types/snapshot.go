package types

import (
	"time"

	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/source"
)

// LoginRequest contains credentials for admin authentication
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SnapshotRequest asks for one snapshot. Either dates or heights bound the window.
type SnapshotRequest struct {
	ChainID     uint64     `json:"chainId"`
	Subject     string     `json:"subject"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	StartHeight uint64     `json:"startHeight,omitempty"`
	EndHeight   uint64     `json:"endHeight,omitempty"`
	Dropped     string     `json:"droppedAmount"`
}

type SnapshotStarted struct {
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
}

// ScheduleRequest creates or replaces the recurring snapshot of a chain.
type ScheduleRequest struct {
	ChainID uint64 `json:"chainId"`
	Subject string `json:"subject"`
	Dropped string `json:"droppedAmount"`
	Cron    string `json:"cron"`
}

type ScheduleResponse struct {
	ScheduleID string `json:"scheduleId"`
	// NextStart and NextEnd bound the window the next run will cover.
	NextStart time.Time `json:"nextStart"`
	NextEnd   time.Time `json:"nextEnd"`
}

type HealthResponse struct {
	Store    string `json:"store"`
	Temporal string `json:"temporal"`
	Pollers  int    `json:"pollers"`
}

// ToRequest maps the body onto a snapshot request, resolving the subject alias.
func (r SnapshotRequest) ToRequest() (snapshot.Request, error) {
	subject, err := source.ParseSubject(r.Subject)
	if err != nil {
		return snapshot.Request{}, err
	}
	return snapshot.Request{
		ChainID:     r.ChainID,
		Subject:     subject,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		StartHeight: r.StartHeight,
		EndHeight:   r.EndHeight,
		Dropped:     r.Dropped,
	}, nil
}
