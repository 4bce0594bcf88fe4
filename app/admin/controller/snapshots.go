package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/canopy-network/stakedrop/app/admin/controller/types"
	workertypes "github.com/canopy-network/stakedrop/app/worker/types"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/source"
	"github.com/canopy-network/stakedrop/pkg/temporal"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func chainID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func (c *Controller) HandleSnapshotsList(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := c.App.Store.ListSnapshots(r.Context(), id, limit)
	if err != nil {
		c.App.Logger.Error("List snapshots failed", zap.Uint64("chainID", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if list == nil {
		list = []snapshots.Snapshot{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (c *Controller) HandleSnapshotDetail(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	s, err := c.App.Store.GetSnapshot(r.Context(), id, mux.Vars(r)["root"])
	if errors.Is(err, snapshots.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleSnapshotStart validates the request and starts a SnapshotWorkflow for it. Starting the
// same window twice while the first run is open returns the open run.
func (c *Controller) HandleSnapshotStart(w http.ResponseWriter, r *http.Request) {
	var body types.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req, err := body.ToRequest()
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := workertypes.SnapshotInput{Request: req}
	workflowID := workertypes.WorkflowID(in)
	runID, err := c.App.Workflows.StartWorkflow(r.Context(), workflowID, workertypes.SnapshotWorkflowName, in)
	if err != nil {
		c.App.Logger.Error("Start snapshot failed", zap.String("workflowID", workflowID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "unable to start snapshot")
		return
	}
	c.App.Logger.Info("Snapshot requested",
		zap.String("user", c.currentUser(r)),
		zap.String("workflowID", workflowID),
		zap.String("runID", runID))
	writeJSON(w, http.StatusAccepted, types.SnapshotStarted{WorkflowID: workflowID, RunID: runID})
}

// HandleScheduleUpsert creates or replaces the recurring snapshot of a chain.
func (c *Controller) HandleScheduleUpsert(w http.ResponseWriter, r *http.Request) {
	var body types.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	subject, err := source.ParseSubject(body.Subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := snapshot.Request{ChainID: body.ChainID, Subject: subject, Dropped: body.Dropped}
	if _, err := req.DroppedAmount(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	schedule, err := cron.ParseStandard(body.Cron)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cron: "+err.Error())
		return
	}
	next := schedule.Next(time.Now().UTC())
	start, end, err := snapshot.Window(body.Cron, next)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := workertypes.ScheduleOptions(c.App.Queue, workertypes.SnapshotInput{Request: req, Cron: body.Cron})
	if err := c.App.Workflows.EnsureSchedule(r.Context(), opts); err != nil {
		c.App.Logger.Error("Ensure schedule failed", zap.String("scheduleID", opts.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "unable to save schedule")
		return
	}
	c.App.Logger.Info("Schedule saved", zap.String("user", c.currentUser(r)), zap.String("scheduleID", opts.ID))
	writeJSON(w, http.StatusOK, types.ScheduleResponse{
		ScheduleID: temporal.SnapshotScheduleID(body.ChainID),
		NextStart:  start,
		NextEnd:    end,
	})
}
