package maas

import (
	"context"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	backendRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maas_bridge_backend_retries_total",
		Help: "Total number of backend retry attempts",
	})

	backendRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maas_bridge_backend_retry_exhausted_total",
		Help: "Total number of times backend retry attempts were exhausted",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the
	// initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff and jitter. fn
// reports whether its error is retriable; non-retriable errors return
// immediately. The last error is returned unwrapped so that typed backend
// failures and raw transport errors keep their identity for the
// normalizer. Context cancellation during backoff returns the context's
// error.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() (bool, error)) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	exhausted := false
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		retriable, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Backend request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !retriable {
			break
		}
		if attempt >= config.MaxAttempts {
			exhausted = true
			break
		}

		backendRetriesTotal.Inc()

		// Jitter of plus or minus 20% avoids synchronized retries.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		logger.Debug().
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying backend request after backoff")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if exhausted {
		backendRetryExhaustedTotal.Inc()
		logger.Warn().Int("max_attempts", config.MaxAttempts).Msg("Backend retry attempts exhausted")
	}
	return lastErr
}
