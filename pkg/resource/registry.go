package resource

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/pkg/failure"
	"github.com/maasops/maas-bridge/pkg/uritemplate"
)

// ResolveFunc is the resolution callback bound to a registered template.
type ResolveFunc func(ctx context.Context, uri string) (*Envelope, error)

// Registry is the host-side registration contract a handler binds into.
type Registry interface {
	Register(name string, template *uritemplate.Template, resolve ResolveFunc)
}

// registration is one bound {name, template, callback} triple.
type registration struct {
	name     string
	template *uritemplate.Template
	resolve  ResolveFunc
}

// HostRegistry is an in-process Registry that also dispatches incoming
// URIs. Templates are tried in registration order; the first match wins.
type HostRegistry struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	entries []registration
}

var _ Registry = (*HostRegistry)(nil)

// NewHostRegistry creates an empty registry.
func NewHostRegistry(logger zerolog.Logger) *HostRegistry {
	return &HostRegistry{
		logger: logger.With().Str("component", "resource-registry").Logger(),
	}
}

// Register binds a named template to its resolution callback.
func (r *HostRegistry) Register(name string, template *uritemplate.Template, resolve ResolveFunc) {
	r.mu.Lock()
	r.entries = append(r.entries, registration{name: name, template: template, resolve: resolve})
	r.mu.Unlock()

	r.logger.Info().
		Str("name", name).
		Str("template", template.Raw()).
		Msg("Resource registered")
}

// Resolve dispatches a URI to the first registered template that matches
// it. An unmatched URI reports as resource_not_found.
func (r *HostRegistry) Resolve(ctx context.Context, uri string) (*Envelope, error) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, entry := range entries {
		if _, ok := entry.template.Match(uri); ok {
			return entry.resolve(ctx, uri)
		}
	}

	return nil, failure.New(http.StatusNotFound, failure.CodeNotFound,
		"no registered resource matches %q", uri)
}

// Names returns the registered resource names in registration order.
func (r *HostRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, entry := range r.entries {
		names[i] = entry.name
	}
	return names
}
