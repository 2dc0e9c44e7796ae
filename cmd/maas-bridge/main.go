// Command maas-bridge serves MAAS resources through the maas:// addressing
// scheme over a small HTTP host: /resolve dispatches URIs through the
// resource registry, /metrics exposes Prometheus metrics, /health reports
// liveness.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/pkg/cache"
	"github.com/maasops/maas-bridge/pkg/failure"
	"github.com/maasops/maas-bridge/pkg/kinds"
	"github.com/maasops/maas-bridge/pkg/logging"
	"github.com/maasops/maas-bridge/pkg/maas"
	"github.com/maasops/maas-bridge/pkg/resource"
)

type config struct {
	MAASURL           string        `env:"MAAS_URL,required"`
	MAASAuthorization string        `env:"MAAS_AUTHORIZATION"`
	RedisURL          string        `env:"REDIS_URL"`
	Port              string        `env:"PORT" envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty         bool          `env:"LOG_PRETTY" envDefault:"false"`
	CacheEnabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheDefaultTTL   time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"5m"`
	ResolveTimeout    time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	store := buildStore(cfg, logger)

	backend, err := maas.New(maas.Config{
		BaseURL:       cfg.MAASURL,
		Authorization: cfg.MAASAuthorization,
		Timeout:       cfg.ResolveTimeout,
		Retry:         maas.DefaultRetryConfig(),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create MAAS client")
	}

	registry := resource.NewHostRegistry(logger)
	auditor := resource.NewLogAuditor(logger)
	if _, err := kinds.RegisterAll(registry, store, backend, auditor, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register resource kinds")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resolve", resolveHandler(registry, cfg.ResolveTimeout))

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("maas_url", cfg.MAASURL).
		Bool("redis", cfg.RedisURL != "").
		Msg("Starting maas-bridge")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// buildStore selects the Redis store when REDIS_URL is set, the in-process
// store otherwise.
func buildStore(cfg config, logger zerolog.Logger) cache.Store {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Enabled = cfg.CacheEnabled
	cacheConfig.DefaultTTL = cfg.CacheDefaultTTL

	if cfg.RedisURL == "" {
		return cache.NewMemoryStore(cacheConfig, logger)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")
	return cache.NewRedisStore(redisClient, cacheConfig, logger)
}

// errorBody is the protocol-level rendering of a typed failure.
type errorBody struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Issues  []failure.Issue `json:"issues,omitempty"`
}

// resolveHandler dispatches ?uri= through the registry.
func resolveHandler(registry *resource.HostRegistry, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		if uri == "" {
			writeFailure(w, failure.New(http.StatusBadRequest, failure.CodeInvalidParameters,
				"missing uri query parameter"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		envelope, err := registry.Resolve(ctx, uri)
		if err != nil {
			writeFailure(w, failure.Normalize(err, "resource", ""))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope)
	}
}

func writeFailure(w http.ResponseWriter, f *failure.Failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	json.NewEncoder(w).Encode(errorBody{
		Status:  f.Status,
		Code:    string(f.Code),
		Message: f.Message,
		Issues:  f.Issues,
	})
}
