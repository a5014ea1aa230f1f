package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcwave/relaycore/complexity"
	"github.com/arcwave/relaycore/cron"
	"github.com/arcwave/relaycore/errs"
	"github.com/arcwave/relaycore/fallback"
	"github.com/arcwave/relaycore/localslot"
	"github.com/arcwave/relaycore/modelrouter"
	"github.com/arcwave/relaycore/pipeline"
	"github.com/arcwave/relaycore/pricing"
	"github.com/arcwave/relaycore/provider"
	"github.com/arcwave/relaycore/sysstate"
)

// chainEntry is one (provider, model) candidate in a fallback chain.
type chainEntry struct {
	provider string
	model    string
}

// chainFor expands a named preset into its ordered (provider, model)
// candidates, directly off pricing.Table's rows, per SPEC_FULL.md's
// "named chains... are preset constants" rule.
func chainFor(name modelrouter.ChainName) []chainEntry {
	switch name {
	case modelrouter.ChainHighCapability:
		return []chainEntry{{"anthropic", "claude-opus-4"}, {"openai", "o1"}}
	case modelrouter.ChainBalanced:
		return []chainEntry{{"anthropic", "claude-sonnet-4"}, {"openai", "gpt-4o"}}
	case modelrouter.ChainCostOptimized:
		return []chainEntry{{"openai", "gpt-4o-mini"}, {"anthropic", "claude-haiku-4"}}
	case modelrouter.ChainLocal:
		return []chainEntry{{"ollama", "llama3.1:70b"}, {"ollama", "llama3.1:8b"}, {"ollama", "qwen2.5:3b"}}
	case modelrouter.ChainCloud:
		return []chainEntry{{"anthropic", "claude-sonnet-4"}, {"openai", "gpt-4o"}}
	default:
		return nil
	}
}

// slotWeight derives the local-scheduler weight for a row from its
// capability tier: stronger (lower-numbered) tiers stand in for bigger
// local models and claim more of the weighted budget.
func slotWeight(tier int) int {
	w := 5 - tier
	if w < 1 {
		return 1
	}
	return w
}

// fallbackAvailability adapts fallback.Registry's string-keyed IsAvailable
// to the pricing.Provider-keyed modelrouter.Availability interface — the
// two packages were grounded independently and never shared a provider
// type, so a one-line bridge is cheaper than forcing either to depend on
// the other's vocabulary.
type fallbackAvailability struct {
	reg *fallback.Registry
}

func (a fallbackAvailability) IsAvailable(p pricing.Provider) bool {
	return a.reg.IsAvailable(string(p))
}

// Deps bundles the subsystems the completion stage and the rest of the
// router need, constructed once at startup.
type Deps struct {
	Providers *provider.Registry
	Models    *modelrouter.Registry
	Health    *fallback.Registry
	Slots     *localslot.Scheduler
	Schedules *cron.Store
	SysState  *sysstate.Detector
	Metrics   interface {
		TrackRequest(provider, model, endpoint string, status int, latencyMs float64, tokens int64)
		TrackFallbackAttempt(provider, outcome string)
	}
	LocalOnly func() bool
}

// completionRequest is the OpenAI-compatible wire shape accepted at
// POST /v1/chat/completions.
type completionRequest = provider.ChatRequest

func writeJSONError(ctx *pipeline.Context, status int, code, message string) {
	body, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{"type": code, "message": message},
	})
	ctx.Response = &pipeline.Response{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

func writeJSON(ctx *pipeline.Context, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeJSONError(ctx, http.StatusInternalServerError, "encode_error", err.Error())
		return
	}
	ctx.Response = &pipeline.Response{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// newRouteHandlerStage builds the order=200 stage implementing the
// request-handling core's data flow: health/model listing for the small
// auxiliary endpoints, and complexity→model-selection→fallback dispatch
// for chat completions.
func newRouteHandlerStage(log zerolog.Logger, deps Deps) pipeline.StageFunc {
	return func(ctx *pipeline.Context, next pipeline.Next) {
		if ctx.Request.Parsed == nil {
			writeJSONError(ctx, http.StatusNotFound, "not_found", "no route")
			return
		}
		path := ctx.Request.Parsed.Path
		method := ctx.Request.Method

		switch {
		case path == "/api/health" && method == http.MethodGet:
			writeJSON(ctx, http.StatusOK, map[string]string{"status": "ok"})
		case path == "/v1/models" && method == http.MethodGet:
			handleModels(ctx, deps)
		case path == "/v1/chat/completions" && method == http.MethodPost:
			handleChatCompletion(ctx, log, deps)
		case path == "/v1/admin/system-state" && method == http.MethodGet:
			handleSystemState(ctx, deps)
		case path == "/v1/admin/schedules" && method == http.MethodPost:
			handleCreateSchedule(ctx, deps)
		default:
			writeJSONError(ctx, http.StatusNotFound, "not_found", "no route for "+method+" "+path)
		}
	}
}

func handleModels(ctx *pipeline.Context, deps Deps) {
	type modelInfo struct {
		ID       string `json:"id"`
		Object   string `json:"object"`
		Provider string `json:"provider"`
	}
	data := make([]modelInfo, 0, len(pricing.Table))
	for _, row := range pricing.Table {
		if !deps.Models.IsRegistered(row.Model) {
			continue
		}
		data = append(data, modelInfo{ID: row.Model, Object: "model", Provider: string(row.Provider)})
	}
	writeJSON(ctx, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

func requestBody(ctx *pipeline.Context) *http.Request {
	r, _ := ctx.State[stateHTTPRequest].(*http.Request)
	return r
}

func handleChatCompletion(ctx *pipeline.Context, log zerolog.Logger, deps Deps) {
	httpReq := requestBody(ctx)
	if httpReq == nil {
		writeJSONError(ctx, http.StatusInternalServerError, "internal_error", "missing request body")
		return
	}

	var req completionRequest
	if err := json.NewDecoder(httpReq.Body).Decode(&req); err != nil {
		writeJSONError(ctx, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
		return
	}
	if req.Model != "" && !deps.Models.IsRegistered(req.Model) {
		// Caller named a model this deployment doesn't serve; fall through
		// to complexity-based selection rather than failing outright.
		req.Model = ""
	}
	if len(req.Messages) == 0 {
		writeJSONError(ctx, http.StatusBadRequest, "invalid_request", "messages field is required and must not be empty")
		return
	}
	if len(req.Tools) > 0 {
		if err := provider.ValidateToolDefinitions(req.Tools); err != nil {
			writeJSONError(ctx, http.StatusBadRequest, "invalid_tools", err.Error())
			return
		}
	}

	prompt := ""
	for _, m := range req.Messages {
		if s, ok := m.Content.(string); ok {
			prompt += s + "\n"
		}
	}
	estimate := complexity.Estimate(prompt)
	localOnly := deps.LocalOnly != nil && deps.LocalOnly()

	constraints := modelrouter.Constraints{
		MinTier:      complexity.TierFloor(estimate.Level),
		RequireTools: len(req.Tools) > 0,
		LocalOnly:    localOnly,
	}
	avail := fallbackAvailability{reg: deps.Health}
	selection, ok := modelrouter.SelectModel(deps.Models, avail, constraints)
	if !ok {
		writeJSONError(ctx, http.StatusServiceUnavailable, "no_model_available", "no registered model satisfies the current request")
		return
	}

	chainName := modelrouter.ChainForLevel(estimate.Level, localOnly)
	entries := []chainEntry{{string(selection.Row.Provider), selection.Row.Model}}
	seenProviders := map[string]bool{string(selection.Row.Provider): true}
	for _, e := range chainFor(chainName) {
		if seenProviders[e.provider] {
			continue
		}
		seenProviders[e.provider] = true
		entries = append(entries, e)
	}

	chain := make(fallback.Chain, 0, len(entries))
	modelFor := make(map[string]string, len(entries))
	for _, e := range entries {
		chain = append(chain, e.provider)
		modelFor[e.provider] = e.model
	}

	start := time.Now()
	var result *provider.ChatResponse
	var usedProvider, usedModel string

	invoke := func(invokeCtx context.Context, providerName string) error {
		model := modelFor[providerName]
		prov, ok := deps.Providers.Get(providerName)
		if !ok {
			return errs.NonTransient("provider " + providerName + " is not registered in this deployment")
		}

		var release func()
		if providerName == "ollama" {
			weight := slotWeight(selection.Row.CapabilityTier)
			r, err := deps.Slots.Acquire(invokeCtx, weight)
			if err != nil {
				return errs.Transient("local slot scheduler: " + err.Error())
			}
			release = r
		}

		reqCopy := req
		reqCopy.Model = model
		resp, err := prov.ChatCompletion(invokeCtx, &reqCopy)
		if release != nil {
			release()
		}
		if err != nil {
			if deps.Metrics != nil {
				outcome := "non_transient"
				if errs.IsTransient(err) {
					outcome = "transient"
				}
				deps.Metrics.TrackFallbackAttempt(providerName, outcome)
			}
			return err
		}

		if deps.Metrics != nil {
			deps.Metrics.TrackFallbackAttempt(providerName, "success")
		}
		result = resp
		usedProvider = providerName
		usedModel = model
		return nil
	}

	err := fallback.CompleteWithFallback(httpReq.Context(), deps.Health, chain, invoke)
	latencyMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		log.Error().Err(err).Str("chain_name", string(chainName)).Msg("fallback chain exhausted")
		status := http.StatusBadGateway
		if !fallback.IsTransientCause(err) {
			status = http.StatusBadRequest
		}
		if deps.Metrics != nil {
			deps.Metrics.TrackRequest("", "", "/v1/chat/completions", status, latencyMs, 0)
		}
		writeJSONError(ctx, status, "provider_error", err.Error())
		return
	}

	if deps.Metrics != nil {
		deps.Metrics.TrackRequest(usedProvider, usedModel, "/v1/chat/completions", http.StatusOK, latencyMs, int64(result.Usage.TotalTokens))
	}
	if selection.Warning != "" {
		ctx.Headers["X-Relaycore-Warning"] = selection.Warning
	}
	ctx.Headers["X-Relaycore-Used-Provider"] = usedProvider
	ctx.Headers["X-Relaycore-Used-Model"] = usedModel
	writeJSON(ctx, http.StatusOK, result)
}
