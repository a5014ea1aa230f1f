package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcwave/relaycore/auth"
	"github.com/arcwave/relaycore/clock"
	"github.com/arcwave/relaycore/config"
	"github.com/arcwave/relaycore/cron"
	"github.com/arcwave/relaycore/fallback"
	"github.com/arcwave/relaycore/kv"
	"github.com/arcwave/relaycore/localslot"
	"github.com/arcwave/relaycore/logger"
	"github.com/arcwave/relaycore/modelrouter"
	"github.com/arcwave/relaycore/observability"
	"github.com/arcwave/relaycore/pricing"
	"github.com/arcwave/relaycore/provider"
	"github.com/arcwave/relaycore/ratelimit"
	"github.com/arcwave/relaycore/redisclient"
	"github.com/arcwave/relaycore/router"
	"github.com/arcwave/relaycore/sysstate"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("relaycore gateway starting")

	apiKey, err := auth.Bootstrap(cfg.APIKey, cfg.BindHost, ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("auth bootstrap refused to start")
	}
	if apiKey != cfg.APIKey {
		log.Warn().Str("bind_host", cfg.BindHost).Msg("no API_KEY configured for a non-localhost bind; generated one and appended it to .env")
	}
	authCfg := auth.NewConfig(apiKey, cfg.BindHost, cfg.AllowedOrigins, clock.Real())

	store, err := kv.Open(cfg.KVPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.KVPath).Msg("failed to open persistent store")
	}
	defer store.Close()

	// Initialize Redis (optional; the client is only pinged here and no
	// rate-limit state is written to it — the in-process limiters hold every
	// bucket, so its absence is never fatal).
	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without distributed rate-limit mirror")
	} else if err := rc.Ping(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed — continuing without distributed rate-limit mirror")
	} else {
		log.Info().Msg("redis connected")
	}

	healthReg := fallback.NewRegistry(clock.Real(), store)
	if err := healthReg.LoadSnapshot(); err != nil {
		log.Warn().Err(err).Msg("failed to load provider health snapshot — starting clean")
	}

	modelReg := modelrouter.NewRegistry()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	defer pool.Close()

	registry := provider.NewRegistry()
	registerProviders(cfg, registry, modelReg, pool, log)

	globalLimiter := ratelimit.NewGlobalLimiter(cfg.RateLimitGet, cfg.RateLimitMutation, 60_000, clock.Real())
	endpointLimiter := ratelimit.NewEndpointLimiter(nil, ratelimit.TierLimits{
		Public: cfg.RateLimitRPM,
		User:   cfg.RateLimitRPM * 2,
		Admin:  cfg.RateLimitRPM * 4,
	}, 60_000, clock.Real())
	sweeper := ratelimit.NewSweeper(globalLimiter, endpointLimiter, 10*time.Minute, log)
	sweeper.Start()

	slots := localslot.NewScheduler(nil, cfg.OllamaNumGPU == 0)

	schedules := cron.NewStore(store)

	sysDetector := sysstate.NewDetector(map[sysstate.Signal]sysstate.Probe{
		sysstate.SignalServerDown:   diskOrHealthProbe(healthReg, registry),
		sysstate.SignalDiskPressure: diskPressureProbe("."),
	}, 0, clock.Real())

	metrics := observability.NewMetrics(log)
	traceExporter := observability.NewLogExporter(log)
	tracer := observability.NewTracer(log, traceExporter, 1.0)

	deps := router.Deps{
		Providers: registry,
		Models:    modelReg,
		Health:    healthReg,
		Slots:     slots,
		Schedules: schedules,
		SysState:  sysDetector,
		Metrics:   metrics,
		LocalOnly: cfg.IsLocalOnly,
	}

	r := router.NewRouter(cfg, log, deps, authCfg, globalLimiter, endpointLimiter, metrics, tracer)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.DefaultTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	healthPoller := provider.NewHealthPoller(registry, log, 30*time.Second)
	healthPoller.OnStatusChange(func(name string, healthy bool, status provider.HealthStatus) {
		metrics.TrackProviderHealth(name, healthy)
		if healthy {
			healthReg.RecordSuccess(name)
			log.Info().Str("provider", name).Msg("provider recovered")
		} else {
			healthReg.RecordFailure(name)
			log.Error().Str("provider", name).Str("error", status.Error).Msg("provider degraded")
		}
	})
	healthPoller.Start()

	modelSyncer := provider.NewModelSyncer(registry, log, 5*time.Minute)
	modelSyncer.Start()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	healthPoller.Stop()
	modelSyncer.Stop()
	sweeper.Stop()
	tracer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("gateway stopped gracefully")
	}
}

// registerProviders wires the three connectors the candidate set covers
// (anthropic, openai, ollama — spec section 6's closed ENABLED_PROVIDERS
// list) and registers each provider's pricing.Table rows with modelReg so
// modelrouter.SelectModel can consider them.
func registerProviders(cfg *config.Config, registry *provider.Registry, modelReg *modelrouter.Registry, pool *provider.ConnectionPool, log zerolog.Logger) {
	enabled := enabledSet(cfg.EnabledProviders)

	if enabled("openai") {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			openaiProvider := provider.NewOpenAIProvider(provider.ProviderConfig{
				Name:    "openai",
				APIKey:  key,
				Timeout: cfg.ProviderTimeout("openai"),
				Pool:    pool,
			})
			registry.Register(openaiProvider)
			registerModels(modelReg, pricing.OpenAI)
			log.Info().Msg("registered openai provider")
		}
	}

	if enabled("anthropic") {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			anthropicProvider := provider.NewAnthropicProvider(provider.ProviderConfig{
				Name:    "anthropic",
				APIKey:  key,
				Timeout: cfg.ProviderTimeout("anthropic"),
			})
			registry.Register(anthropicProvider)
			registerModels(modelReg, pricing.Anthropic)
			log.Info().Msg("registered anthropic provider")
		}
	}

	if enabled("ollama") {
		if baseURL := cfg.OllamaHost; baseURL != "" {
			ollamaProvider := provider.NewOllamaProvider(provider.ProviderConfig{
				Name:    "ollama",
				BaseURL: baseURL,
				Timeout: cfg.ProviderTimeout("ollama"),
				Pool:    pool,
			})
			registry.Register(ollamaProvider)
			registerModels(modelReg, pricing.Ollama)
			log.Info().Str("url", baseURL).Msg("registered ollama provider")
		}
	}

	log.Info().Int("providers", len(registry.List())).Msg("provider registration complete")
}

// registerModels registers every pricing.Table row belonging to p with
// modelReg, so a deployment need not separately repeat the model list.
func registerModels(modelReg *modelrouter.Registry, p pricing.Provider) {
	for _, row := range pricing.Table {
		if row.Provider == p {
			modelReg.Register(row.Model)
		}
	}
}

// enabledSet returns a membership test over cfg.EnabledProviders; an empty
// list means "no restriction" (every configured credential is tried), per
// the teacher's original opt-out-by-omission behavior.
func enabledSet(list []string) func(name string) bool {
	if len(list) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(list))
	for _, n := range list {
		set[strings.ToLower(n)] = true
	}
	return func(name string) bool { return set[strings.ToLower(name)] }
}

// diskOrHealthProbe reports the "server unhealthy" signal of spec 4.8 as
// true when at least one provider is registered and every registered
// provider is currently cooling — the gateway
// itself has no independent liveness signal beyond its ability to serve
// any provider at all.
func diskOrHealthProbe(reg *fallback.Registry, providers *provider.Registry) sysstate.Probe {
	return func(ctx context.Context) (bool, error) {
		names := providers.List()
		if len(names) == 0 {
			return false, nil
		}
		for _, name := range names {
			if reg.StateOf(name) != fallback.StateCooling {
				return false, nil
			}
		}
		return true, nil
	}
}

// diskPressureProbe reports true once the filesystem backing path is at or
// above the 90% full threshold spec 4.8 names.
func diskPressureProbe(path string) sysstate.Probe {
	return func(ctx context.Context) (bool, error) {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(path, &stat); err != nil {
			return false, err
		}
		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bavail * uint64(stat.Bsize)
		if total == 0 {
			return false, nil
		}
		used := float64(total-free) / float64(total)
		return used >= 0.90, nil
	}
}
