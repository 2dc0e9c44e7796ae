package cache

import (
	"context"
	"time"
)

// Store is the shared payload cache consumed by resource handlers. Cache
// faults are non-fatal by contract: Get never fails (a lookup fault is a
// miss so the caller falls back to the backend), Set is best-effort (a
// write fault never fails the request that produced the payload).
type Store interface {
	// Get returns the entry for key, or false on a miss. Expired entries
	// are treated as misses and removed lazily; there is no background
	// sweep.
	Get(ctx context.Context, key Key) (*Entry, bool)

	// Set stores an entry under key. Best-effort.
	Set(ctx context.Context, key Key, entry *Entry)

	// Enabled is the global kill-switch, independent of per-handler
	// options.
	Enabled() bool

	// TTLFor returns the default TTL for a resource kind.
	TTLFor(kind string) time.Duration

	// Invalidate removes every entry for the kind and returns the count
	// removed.
	Invalidate(ctx context.Context, kind string) int

	// InvalidateID removes only entries for the kind whose key encodes
	// the given resource id, and returns the count removed.
	InvalidateID(ctx context.Context, kind, id string) int
}

// Config holds store-wide cache settings.
type Config struct {
	// Enabled is the global kill-switch.
	Enabled bool

	// DefaultTTL applies to kinds without a dedicated TTL.
	DefaultTTL time.Duration

	// KindTTLs overrides the default per resource kind.
	KindTTLs map[string]time.Duration
}

// DefaultConfig returns the stock cache configuration. Detail kinds get a
// longer TTL than list kinds, whose membership churns with deployments.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		DefaultTTL: 5 * time.Minute,
		KindTTLs: map[string]time.Duration{
			"machine":  5 * time.Minute,
			"machines": 1 * time.Minute,
			"device":   5 * time.Minute,
			"devices":  1 * time.Minute,
			"subnet":   10 * time.Minute,
			"subnets":  5 * time.Minute,
			"zones":    15 * time.Minute,
			"domains":  15 * time.Minute,
			"tag":      2 * time.Minute,
			"tags":     5 * time.Minute,
		},
	}
}

// ttlFor resolves the TTL for a kind against the config.
func (c Config) ttlFor(kind string) time.Duration {
	if ttl, ok := c.KindTTLs[kind]; ok {
		return ttl
	}
	return c.DefaultTTL
}
