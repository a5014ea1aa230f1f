package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics is the gateway's Prometheus metrics registry, replacing the
// teacher's hand-rolled atomic counter/gauge/histogram maps with
// promauto-registered collectors and promhttp's exposition handler.
//
// Grounded on the domain-stack pick of github.com/prometheus/client_golang
// (the only metrics library anywhere in the retrieval pack's go.mod files),
// restructured around promauto.With(registry) so every gateway process
// gets its own isolated registry instead of relying on the global default.
type Metrics struct {
	logger   zerolog.Logger
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	tokensTotal       *prometheus.CounterVec
	providerHealthy   *prometheus.GaugeVec
	fallbackAttempts  *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec
}

// NewMetrics creates a new metrics registry with every gateway collector
// pre-registered.
func NewMetrics(logger zerolog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		logger:   logger.With().Str("component", "metrics").Logger(),
		registry: reg,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycore_gateway_requests_total",
			Help: "Total completion requests handled, by provider/model/endpoint/status.",
		}, []string{"provider", "model", "endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relaycore_gateway_request_duration_ms",
			Help:    "Request latency in milliseconds, by provider/model/endpoint/status.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider", "model", "endpoint", "status"}),

		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycore_gateway_tokens_total",
			Help: "Total tokens processed, by provider/model/endpoint/status.",
		}, []string{"provider", "model", "endpoint", "status"}),

		providerHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relaycore_provider_healthy",
			Help: "1 if the provider's last health check succeeded, else 0.",
		}, []string{"provider"}),

		fallbackAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycore_fallback_attempts_total",
			Help: "Total fallback-chain attempts, by provider/outcome (success, transient, non_transient).",
		}, []string{"provider", "outcome"}),

		rateLimitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relaycore_rate_limit_rejected_total",
			Help: "Total requests rejected by a rate limiter, by limiter (global, endpoint).",
		}, []string{"limiter"}),
	}
}

// TrackRequest records a completed request with all relevant labels.
func (m *Metrics) TrackRequest(provider, model, endpoint string, statusCode int, latencyMs float64, tokens int64) {
	status := fmt.Sprintf("%d", statusCode)
	m.requestsTotal.WithLabelValues(provider, model, endpoint, status).Inc()
	m.requestDuration.WithLabelValues(provider, model, endpoint, status).Observe(latencyMs)
	m.tokensTotal.WithLabelValues(provider, model, endpoint, status).Add(float64(tokens))
}

// TrackProviderHealth records provider health status.
func (m *Metrics) TrackProviderHealth(provider string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	m.providerHealthy.WithLabelValues(provider).Set(val)
}

// TrackFallbackAttempt records one fallback-chain attempt's outcome.
func (m *Metrics) TrackFallbackAttempt(provider, outcome string) {
	m.fallbackAttempts.WithLabelValues(provider, outcome).Inc()
}

// TrackRateLimitRejection records a 429 issued by the named limiter.
func (m *Metrics) TrackRateLimitRejection(limiter string) {
	m.rateLimitRejected.WithLabelValues(limiter).Inc()
}

// Handler returns an http.HandlerFunc that serves /metrics in Prometheus
// text exposition format, via promhttp against this registry's own
// collectors only (no process/Go runtime collectors, to keep exposition
// scoped to gateway-specific signals).
func (m *Metrics) Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return h.ServeHTTP
}
