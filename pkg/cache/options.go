package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Directives are the Cache-Control flags attached to cached responses.
type Directives struct {
	Private        bool `json:"private,omitempty"`
	MustRevalidate bool `json:"must_revalidate,omitempty"`
	Immutable      bool `json:"immutable,omitempty"`
}

// Options are the per-handler cache settings. Handlers replace them
// atomically via SetCacheOptions; they are never mutated in place.
type Options struct {
	// Enabled switches caching for the handler. The store's global
	// kill-switch still applies on top.
	Enabled bool

	// TTL overrides the store's per-kind default when positive.
	TTL time.Duration

	// Directives are synthesized into the Cache-Control header.
	Directives Directives

	// KeyQueryParams, when non-nil, is the allow-list of query parameter
	// names that participate in cache-key derivation. Nil means every
	// validated parameter participates.
	KeyQueryParams []string
}

// DefaultOptions enables caching with the store's per-kind TTL.
func DefaultOptions() Options {
	return Options{Enabled: true}
}

// Fingerprint encodes the option fields that affect stored entries, so
// that entries written under different options never collide.
func (o Options) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ttl=%d", o.TTL/time.Second)
	if o.Directives.Private {
		b.WriteString(",private")
	}
	if o.Directives.MustRevalidate {
		b.WriteString(",must-revalidate")
	}
	if o.Directives.Immutable {
		b.WriteString(",immutable")
	}
	if o.KeyQueryParams != nil {
		names := append([]string(nil), o.KeyQueryParams...)
		sort.Strings(names)
		b.WriteString(",keys=" + strings.Join(names, "+"))
	}
	return b.String()
}

// CacheControl renders the Cache-Control header value for these options
// with the effective TTL.
func (o Options) CacheControl(ttl time.Duration) string {
	parts := []string{fmt.Sprintf("max-age=%d", int(ttl.Seconds()))}
	if o.Directives.Private {
		parts = append(parts, "private")
	}
	if o.Directives.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	if o.Directives.Immutable {
		parts = append(parts, "immutable")
	}
	return strings.Join(parts, ", ")
}
