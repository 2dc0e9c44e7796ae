// Package maas implements the HTTP client for the MAAS region REST API.
// Resource handlers consume it only through the narrow fetch contract
// Get(ctx, path, query): backend HTTP statuses come back as pre-typed
// failures, transport errors come back raw for the error normalizer to
// classify. Retry policy lives here, not in the handler core.
package maas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/pkg/failure"
)

// Prometheus metrics for backend requests.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maas_bridge_backend_requests_total",
		Help: "Total MAAS backend requests by status",
	}, []string{"status"})

	backendRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "maas_bridge_backend_request_duration_seconds",
		Help:    "MAAS backend request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)

// maxErrorBodyBytes bounds how much of an error body ends up in messages.
const maxErrorBodyBytes = 512

// Config holds the backend client configuration.
type Config struct {
	// BaseURL is the MAAS API root, e.g. "http://maas.example.com:5240/MAAS/api/2.0".
	BaseURL string

	// Authorization, when set, is sent verbatim as the Authorization
	// header. Request signing is owned by the deployment, not this
	// client.
	Authorization string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// Retry controls backoff on retriable failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Client is the MAAS backend HTTP client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a backend client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger.With().Str("component", "maas-client").Logger(),
	}, nil
}

// Get fetches a backend resource and returns its body. HTTP error
// statuses are returned as typed failures; transport errors are returned
// raw. The context is observed by the underlying transport, so a caller
// abort surfaces promptly.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		backendRequestDuration.Observe(time.Since(start).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return false, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.config.Authorization != "" {
			req.Header.Set("Authorization", c.config.Authorization)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			backendRequestsTotal.WithLabelValues("transport_error").Inc()
			c.logger.Warn().Err(err).Str("path", path).Msg("Backend request failed")
			// Transport errors stay raw; the normalizer classifies them.
			// Retriable unless the caller aborted.
			return ctx.Err() == nil, err
		}
		defer resp.Body.Close()

		backendRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			msg := readErrorBody(resp.Body)
			if msg == "" {
				msg = resp.Status
			}
			c.logger.Warn().
				Str("path", path).
				Int("status", resp.StatusCode).
				Msg("Backend returned error status")
			// 5xx is retriable, 4xx is not.
			return resp.StatusCode >= 500, failure.FromStatus(resp.StatusCode, msg)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return true, fmt.Errorf("read response body: %w", err)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("path", path).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Backend fetch succeeded")
	return body, nil
}

// readErrorBody returns a bounded, trimmed error body for diagnostics.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
