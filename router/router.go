// Package router wires the request-handling core's pipeline.Dispatcher
// into chi as the outer HTTP router, composed alongside chi's own request
// ID/recoverer/tracing middleware rather than replacing either layer.
//
// Grounded on teacher router.go's chi.NewRouter()+chimw chain construction
// for the HTTP boundary, generalized so the actual cross-cutting logic
// (CORS, auth, rate limiting, role guard) lives in the pipeline package
// instead of bespoke chi middleware functions.
package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/arcwave/relaycore/auth"
	"github.com/arcwave/relaycore/config"
	"github.com/arcwave/relaycore/observability"
	"github.com/arcwave/relaycore/pipeline"
	"github.com/arcwave/relaycore/ratelimit"
)

// stateHTTPRequest is the pipeline.Context.State key the HTTP adapter
// stashes the original *http.Request under, so the route-handler stage can
// reach the request body and context.Context. Per pipeline's own
// invariant, State is opaque cross-stage scratch never read outside the
// pipeline — the route-handler stage is itself a pipeline stage, just one
// defined in this package instead of pipeline/.
const stateHTTPRequest = "http.request"

// adminRoleRequired restricts the /v1/admin/* surface (system-state
// inspection, schedule bookkeeping) to RoleAdmin.
func adminRoleRequired(path string) (pipeline.Role, bool) {
	if strings.HasPrefix(path, "/v1/admin/") {
		return pipeline.RoleAdmin, true
	}
	return pipeline.RoleNone, false
}

// NewRouter assembles the pipeline dispatcher and mounts it under chi.
func NewRouter(cfg *config.Config, log zerolog.Logger, deps Deps, authCfg *auth.Config, global *ratelimit.GlobalLimiter, endpoint *ratelimit.EndpointLimiter, metrics *observability.Metrics, tracer *observability.Tracer) http.Handler {
	disp := pipeline.NewDispatcher()
	disp.Use("cors", pipeline.OrderCORS, pipeline.NewCORSStage(pipeline.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}))
	disp.Use("request-log", pipeline.OrderRequestLog, pipeline.NewRequestLogStage(log))
	disp.Use("error-handler", pipeline.OrderErrorHandler, pipeline.NewErrorHandlerStage(log))
	disp.Use("rate-limit-global", pipeline.OrderRateLimit, pipeline.NewGlobalRateLimitStage(global))
	disp.Use("auth", pipeline.OrderAuth, pipeline.NewAuthStage(authCfg, roleForKey(cfg)))
	disp.Use("rate-limit-endpoint", pipeline.OrderEndpointLimit, pipeline.NewEndpointRateLimitStage(endpoint))
	disp.Use("role-guard", pipeline.OrderRole, pipeline.NewRoleGuardStage(adminRoleRequired))
	disp.Use("route-handler", pipeline.OrderRouteHandler, newRouteHandlerStage(log, deps))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if tracer != nil {
		r.Use(observability.TracingMiddleware(tracer))
	}

	if metrics != nil {
		r.Get("/metrics", metrics.Handler())
	}
	r.Handle("/*", pipelineHandler(disp, cfg))

	return r
}

// roleForKey assigns RoleAdmin to the configured admin key and RoleUser to
// any other key the auth stage validated, per spec section 4.2's role
// model (two roles: user, admin).
func roleForKey(cfg *config.Config) func(key string) pipeline.Role {
	return func(key string) pipeline.Role {
		if cfg.AdminAPIKey != "" && auth.TimingSafeEqual(key, cfg.AdminAPIKey) {
			return pipeline.RoleAdmin
		}
		return pipeline.RoleUser
	}
}

// pipelineHandler adapts net/http to the pipeline dispatcher: build a
// RequestContext from the incoming request, run the dispatcher, translate
// the resulting Response (or its absence) back onto the ResponseWriter.
func pipelineHandler(disp *pipeline.Dispatcher, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes)
		}

		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		reqCtx := pipeline.NewRequestContext(r.Method, r.URL.RequestURI(), headers)
		if key, ok := auth.ExtractBearer(headers["Authorization"]); ok {
			reqCtx.WalletKey = key
		}

		pctx := pipeline.NewContext(reqCtx)
		pctx.State[stateHTTPRequest] = r

		disp.Execute(pctx)

		resp := pctx.Response
		if resp == nil {
			resp = &pipeline.Response{Status: http.StatusNotFound}
		}

		for k, v := range pctx.Headers {
			if v != "" {
				w.Header().Set(k, v)
			}
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if w.Header().Get("Content-Type") == "" && len(resp.Body) > 0 {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.Status)
		if len(resp.Body) > 0 {
			_, _ = w.Write(resp.Body)
		}
	}
}
