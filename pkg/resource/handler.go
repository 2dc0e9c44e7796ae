// Package resource implements the generic resource-handler framework: URI
// matching, parameter validation, cache-through fetching against the MAAS
// backend, payload-shape validation, and response-envelope construction.
// Concrete resource kinds are values built from Definition, not subtypes.
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/pkg/cache"
	"github.com/maasops/maas-bridge/pkg/failure"
	"github.com/maasops/maas-bridge/pkg/params"
	"github.com/maasops/maas-bridge/pkg/uritemplate"
)

// payloadValidate checks backend payload shapes against their struct tags.
var payloadValidate = validator.New()

// Backend is the narrow fetch contract the handler consumes. Failures are
// returned as pre-typed failures when the backend client already
// classified the HTTP status, or as raw transport errors for the
// normalizer.
type Backend interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Definition parameterizes the generic handler for one resource kind.
type Definition struct {
	// Kind is the resource kind label used in failures, cache keys, and
	// audit events.
	Kind string

	// Template is the compiled URI template the handler answers.
	Template *uritemplate.Template

	// Params validates extracted parameters. Optional; nil passes raw
	// parameters through as strings.
	Params *params.Schema

	// NewPayload returns a fresh destination for decoding the backend
	// payload; its validator struct tags define the payload shape.
	// Optional; nil skips shape validation.
	NewPayload func() any

	// BackendPath builds the backend request path and query from the
	// validated parameters.
	BackendPath func(v params.Values) (string, url.Values, error)

	// ResourceID extracts the resource id for detail kinds. It scopes
	// both the cache key and id-scoped invalidation. Nil for list kinds.
	ResourceID func(v params.Values) string

	// List marks list semantics: all validated query parameters are
	// forwarded to the backend as filter criteria, and the kind's cache
	// entries are invalidated whenever any filter parameter is present.
	// Filter predicates are cheap to recompute but expensive to key
	// precisely, so a filtered request trades a cache miss for
	// correctness.
	List bool
}

// Handler is the generic detail/list resource handler.
type Handler struct {
	def     Definition
	store   cache.Store
	backend Backend
	auditor Auditor
	logger  zerolog.Logger

	mu   sync.RWMutex
	opts cache.Options
}

// NewHandler builds a handler from a definition. The cache store is passed
// by reference so all handlers share one store without hidden global
// state.
func NewHandler(def Definition, store cache.Store, backend Backend, auditor Auditor, logger zerolog.Logger) (*Handler, error) {
	if def.Kind == "" {
		return nil, fmt.Errorf("definition needs a kind label")
	}
	if def.Template == nil {
		return nil, fmt.Errorf("definition for %s needs a template", def.Kind)
	}
	if def.BackendPath == nil {
		return nil, fmt.Errorf("definition for %s needs a backend path builder", def.Kind)
	}
	if !def.List && def.ResourceID == nil {
		return nil, fmt.Errorf("detail definition for %s needs a resource id extractor", def.Kind)
	}
	if store == nil || backend == nil {
		return nil, fmt.Errorf("definition for %s needs a cache store and a backend", def.Kind)
	}
	if auditor == nil {
		auditor = NopAuditor{}
	}

	return &Handler{
		def:     def,
		store:   store,
		backend: backend,
		auditor: auditor,
		logger:  logger.With().Str("component", "resource-handler").Str("kind", def.Kind).Logger(),
		opts:    cache.DefaultOptions(),
	}, nil
}

// Kind returns the resource kind label.
func (h *Handler) Kind() string {
	return h.def.Kind
}

// Template returns the handler's compiled URI template.
func (h *Handler) Template() *uritemplate.Template {
	return h.def.Template
}

// CacheOptions returns the active cache options.
func (h *Handler) CacheOptions() cache.Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opts
}

// SetCacheOptions replaces the active options for subsequent requests.
// In-flight requests keep the options they started with.
func (h *Handler) SetCacheOptions(opts cache.Options) {
	h.mu.Lock()
	h.opts = opts
	h.mu.Unlock()
}

// InvalidateCache removes every cached entry for the handler's kind and
// returns the count removed.
func (h *Handler) InvalidateCache(ctx context.Context) int {
	return h.store.Invalidate(ctx, h.def.Kind)
}

// InvalidateCacheByID removes only cached entries scoped to the given
// resource id and returns the count removed.
func (h *Handler) InvalidateCacheByID(ctx context.Context, id string) int {
	return h.store.InvalidateID(ctx, h.def.Kind, id)
}

// Register binds the handler into a host registry under the given name.
func (h *Handler) Register(name string, reg Registry) {
	reg.Register(name, h.def.Template, h.Resolve)
}

// Resolve runs the full resolution state machine for one URI:
// match, validate, cache lookup, backend fetch, payload validation,
// best-effort cache store, envelope construction. Every error it returns
// is a typed failure.
func (h *Handler) Resolve(ctx context.Context, uri string) (*Envelope, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := h.logger.With().Str("request_id", requestID).Str("uri", uri).Logger()

	match, ok := h.def.Template.Match(uri)
	if !ok {
		err := failure.New(http.StatusBadRequest, failure.CodeInvalidParameters,
			"uri does not match the %s template %s", h.def.Kind, h.def.Template.Raw())
		return nil, h.fail(ctx, logger, requestID, uri, "", start, err)
	}

	values, err := h.validateParams(match)
	if err != nil {
		return nil, h.fail(ctx, logger, requestID, uri, "", start, err)
	}

	id := ""
	if h.def.ResourceID != nil {
		id = h.def.ResourceID(values)
	}

	opts := h.CacheOptions()
	canonical, _, _ := strings.Cut(uri, "?")
	useCache := opts.Enabled && h.store.Enabled()

	// Filtered list requests invalidate the whole kind before resolving.
	if h.def.List && len(match.Query) > 0 {
		h.store.Invalidate(ctx, h.def.Kind)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = h.store.TTLFor(h.def.Kind)
	}

	key := cache.Key{
		Kind:        h.def.Kind,
		URI:         canonical,
		ID:          id,
		Params:      h.keyParams(values, opts),
		Fingerprint: opts.Fingerprint(),
	}

	if useCache {
		if entry, ok := h.store.Get(ctx, key); ok {
			logger.Debug().Str("key", key.String()).Msg("Cache hit")
			h.audit(ctx, Event{
				RequestID: requestID,
				Kind:      h.def.Kind,
				URI:       uri,
				Outcome:   "success",
				Status:    http.StatusOK,
				CacheHit:  true,
				Duration:  time.Since(start),
			})
			resolvesTotal.WithLabelValues(h.def.Kind, "success").Inc()
			resolveDuration.WithLabelValues(h.def.Kind).Observe(time.Since(start).Seconds())
			return newEnvelope(canonical, entry, opts, ttl, true), nil
		}
	}

	path, query, err := h.def.BackendPath(values)
	if err != nil {
		return nil, h.fail(ctx, logger, requestID, uri, id, start, err)
	}

	payload, err := h.backend.Get(ctx, path, query)
	if err != nil {
		return nil, h.fail(ctx, logger, requestID, uri, id, start, err)
	}

	if err := h.validatePayload(payload); err != nil {
		return nil, h.fail(ctx, logger, requestID, uri, id, start, err)
	}

	entry := cache.NewEntry(payload, ttl, opts.Directives)
	if useCache {
		h.store.Set(ctx, key, entry)
	}

	logger.Debug().
		Str("key", key.String()).
		Dur("duration", time.Since(start)).
		Msg("Resolved from backend")
	h.audit(ctx, Event{
		RequestID: requestID,
		Kind:      h.def.Kind,
		URI:       uri,
		Outcome:   "success",
		Status:    http.StatusOK,
		Duration:  time.Since(start),
	})
	resolvesTotal.WithLabelValues(h.def.Kind, "success").Inc()
	resolveDuration.WithLabelValues(h.def.Kind).Observe(time.Since(start).Seconds())
	return newEnvelope(canonical, entry, opts, ttl, false), nil
}

// validateParams merges path and query parameters (path wins on name
// collision) and applies the schema.
func (h *Handler) validateParams(match *uritemplate.Match) (params.Values, error) {
	raw := make(map[string]string, len(match.Params)+len(match.Query))
	for name, val := range match.Query {
		raw[name] = val
	}
	for name, val := range match.Params {
		raw[name] = val
	}

	if h.def.Params == nil {
		values := make(params.Values, len(raw))
		for name, val := range raw {
			values[name] = val
		}
		return values, nil
	}
	return h.def.Params.Validate(raw, h.def.Kind)
}

// keyParams renders the validated parameters that participate in cache-key
// derivation. Path parameters always participate; query parameters are
// restricted to the options allow-list when one is set.
func (h *Handler) keyParams(values params.Values, opts cache.Options) map[string]string {
	pathNames := make(map[string]bool)
	for _, name := range h.def.Template.Names() {
		pathNames[name] = true
	}

	var allowed map[string]bool
	if opts.KeyQueryParams != nil {
		allowed = make(map[string]bool, len(opts.KeyQueryParams))
		for _, name := range opts.KeyQueryParams {
			allowed[name] = true
		}
	}

	out := make(map[string]string, len(values))
	for name, val := range values {
		if !pathNames[name] && allowed != nil && !allowed[name] {
			continue
		}
		out[name] = fmt.Sprintf("%v", val)
	}
	return out
}

// validatePayload decodes the backend payload into the kind's payload
// struct and checks its validator tags. Decode faults are unexpected
// errors; tag findings are schema-validation errors.
func (h *Handler) validatePayload(payload []byte) error {
	if h.def.NewPayload == nil {
		return nil
	}

	dest := h.def.NewPayload()
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", h.def.Kind, err)
	}

	// List payloads are slices of structs; validate each element.
	val := reflect.ValueOf(dest)
	for val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	if val.Kind() == reflect.Slice {
		return payloadValidate.Var(val.Interface(), "dive")
	}
	return payloadValidate.Struct(dest)
}

// fail normalizes err, records it, and returns the typed failure.
func (h *Handler) fail(ctx context.Context, logger zerolog.Logger, requestID, uri, id string, start time.Time, err error) error {
	f := failure.Normalize(err, h.def.Kind, id)

	logger.Warn().
		Err(f).
		Int("status", f.Status).
		Str("code", string(f.Code)).
		Dur("duration", time.Since(start)).
		Msg("Resolution failed")

	h.audit(ctx, Event{
		RequestID: requestID,
		Kind:      h.def.Kind,
		URI:       uri,
		Outcome:   string(f.Code),
		Status:    f.Status,
		Duration:  time.Since(start),
	})
	resolvesTotal.WithLabelValues(h.def.Kind, string(f.Code)).Inc()
	resolveDuration.WithLabelValues(h.def.Kind).Observe(time.Since(start).Seconds())
	return f
}

// audit emits an event to the sink. The sink never influences control
// flow.
func (h *Handler) audit(ctx context.Context, event Event) {
	h.auditor.Record(ctx, event)
}
