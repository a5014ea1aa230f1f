package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arcwave/relaycore/cron"
	"github.com/arcwave/relaycore/pipeline"
	"github.com/arcwave/relaycore/sysstate"
)

// handleSystemState runs the configured signal probes and reports both the
// raw signal map and how a "run" action would be treated, per spec
// section 4.8's skip/boost/run priority rules. Admin-only: this exposes
// host-level disk and provider-health signals.
func handleSystemState(ctx *pipeline.Context, deps Deps) {
	httpReq := requestBody(ctx)
	if deps.SysState == nil || httpReq == nil {
		writeJSONError(ctx, http.StatusServiceUnavailable, "unavailable", "system-state detector not configured")
		return
	}
	signals := deps.SysState.ActiveSignals(httpReq.Context())
	action := deps.SysState.Evaluate(httpReq.Context(), sysstate.ActionRun)
	writeJSON(ctx, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"action":  action,
	})
}

type createScheduleRequest struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// handleCreateSchedule parses and validates a cron expression, computes
// its next fire time relative to now, and persists the bookkeeping record
// so a restarted process can resume from a consistent baseline instead of
// "now of restart," per spec section 4.7's schedule-bookkeeping addition.
func handleCreateSchedule(ctx *pipeline.Context, deps Deps) {
	httpReq := requestBody(ctx)
	if deps.Schedules == nil || httpReq == nil {
		writeJSONError(ctx, http.StatusServiceUnavailable, "unavailable", "schedule store not configured")
		return
	}
	var req createScheduleRequest
	if err := json.NewDecoder(httpReq.Body).Decode(&req); err != nil {
		writeJSONError(ctx, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeJSONError(ctx, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	schedule, err := cron.Parse(req.Expr)
	if err != nil {
		writeJSONError(ctx, http.StatusBadRequest, "invalid_cron", err.Error())
		return
	}
	now := time.Now()
	if err := cron.ValidateFrequency(schedule, now); err != nil {
		writeJSONError(ctx, http.StatusBadRequest, "invalid_cron", err.Error())
		return
	}
	if err := deps.Schedules.RecordFire(req.Name, schedule, now); err != nil {
		writeJSONError(ctx, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	due, err := deps.Schedules.DueSince(req.Name, now)
	if err != nil {
		writeJSONError(ctx, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(ctx, http.StatusCreated, map[string]interface{}{"name": req.Name, "due": due})
}
