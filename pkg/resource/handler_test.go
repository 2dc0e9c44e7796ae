package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/pkg/cache"
	"github.com/maasops/maas-bridge/pkg/failure"
	"github.com/maasops/maas-bridge/pkg/params"
	"github.com/maasops/maas-bridge/pkg/uritemplate"
)

// fakeBackend is a scripted Backend implementation.
type fakeBackend struct {
	mu        sync.Mutex
	calls     int
	lastPath  string
	lastQuery url.Values
	payload   []byte
	err       error
}

func (b *fakeBackend) Get(_ context.Context, path string, query url.Values) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.lastPath = path
	b.lastQuery = query
	if b.err != nil {
		return nil, b.err
	}
	return b.payload, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// recordingAuditor captures events for assertions.
type recordingAuditor struct {
	mu     sync.Mutex
	events []Event
}

func (a *recordingAuditor) Record(_ context.Context, event Event) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

func (a *recordingAuditor) last(t *testing.T) Event {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return a.events[len(a.events)-1]
}

type machinePayload struct {
	SystemID string `json:"system_id" validate:"required"`
	Hostname string `json:"hostname" validate:"required"`
}

func machineDef() Definition {
	return Definition{
		Kind:     "machine",
		Template: uritemplate.MustCompile("maas://machine/{system_id}/details"),
		Params: params.NewSchema(
			params.Field{Name: "system_id", Type: params.TypeString, Required: true, Rules: "alphanum"},
		),
		NewPayload: func() any { return &machinePayload{} },
		BackendPath: func(v params.Values) (string, url.Values, error) {
			return fmt.Sprintf("machines/%s/", v.String("system_id")), nil, nil
		},
		ResourceID: func(v params.Values) string { return v.String("system_id") },
	}
}

func machinesListDef() Definition {
	return Definition{
		Kind:     "machines",
		Template: uritemplate.MustCompile("maas://machines/list"),
		Params: params.NewSchema(
			params.Field{Name: "zone", Type: params.TypeString},
			params.Field{Name: "hostname", Type: params.TypeString},
		),
		NewPayload: func() any { return &[]machinePayload{} },
		BackendPath: func(v params.Values) (string, url.Values, error) {
			query := make(url.Values, len(v))
			for name, val := range v {
				query.Set(name, fmt.Sprintf("%v", val))
			}
			return "machines/", query, nil
		},
		List: true,
	}
}

func newTestHandler(t *testing.T, def Definition, backend Backend) (*Handler, *cache.MemoryStore, *recordingAuditor) {
	t.Helper()

	store := cache.NewMemoryStore(cache.DefaultConfig(), zerolog.Nop())
	auditor := &recordingAuditor{}
	h, err := NewHandler(def, store, backend, auditor, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return h, store, auditor
}

func TestNewHandler_Validation(t *testing.T) {
	backend := &fakeBackend{}
	store := cache.NewMemoryStore(cache.DefaultConfig(), zerolog.Nop())

	tests := []struct {
		name string
		def  Definition
	}{
		{name: "missing kind", def: func() Definition { d := machineDef(); d.Kind = ""; return d }()},
		{name: "missing template", def: func() Definition { d := machineDef(); d.Template = nil; return d }()},
		{name: "missing backend path", def: func() Definition { d := machineDef(); d.BackendPath = nil; return d }()},
		{name: "detail without id extractor", def: func() Definition { d := machineDef(); d.ResourceID = nil; return d }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHandler(tt.def, store, backend, nil, zerolog.Nop()); err == nil {
				t.Error("NewHandler succeeded, want error")
			}
		})
	}
}

// Scenario: cache disabled; every request goes to the backend, the
// response still carries cache-control metadata but no Age header.
func TestHandler_ResolveFreshWithCacheDisabled(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123","hostname":"web01"}`)}
	h, _, auditor := newTestHandler(t, machineDef(), backend)
	h.SetCacheOptions(cache.Options{Enabled: false})

	envelope, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(envelope.Contents) != 1 {
		t.Fatalf("Contents = %d, want 1", len(envelope.Contents))
	}
	content := envelope.Contents[0]
	if content.URI != "maas://machine/abc123/details" {
		t.Errorf("URI = %q", content.URI)
	}
	if content.Text != string(backend.payload) {
		t.Errorf("Text = %q, want the serialized payload", content.Text)
	}
	if content.MimeType != "application/json" {
		t.Errorf("MimeType = %q", content.MimeType)
	}
	if content.Headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", content.Headers["Content-Type"])
	}
	if content.Headers["Cache-Control"] == "" {
		t.Error("Cache-Control should be present even with caching disabled")
	}
	if content.Headers["ETag"] == "" {
		t.Error("ETag should be present")
	}
	if _, ok := content.Headers["Age"]; ok {
		t.Error("Age should be absent on a fresh response")
	}

	if _, err := h.Resolve(context.Background(), "maas://machine/abc123/details"); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 with caching disabled", backend.callCount())
	}

	event := auditor.last(t)
	if event.Outcome != "success" || event.CacheHit {
		t.Errorf("audit event = %+v, want fresh success", event)
	}
}

// Scenario: cache enabled; the second identical request is served from
// cache without touching the backend and reports its Age.
func TestHandler_ResolveCacheHit(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123","hostname":"web01"}`)}
	h, _, auditor := newTestHandler(t, machineDef(), backend)

	first, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	second, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (second request served from cache)", backend.callCount())
	}
	if first.Contents[0].Text != second.Contents[0].Text {
		t.Error("cached response should carry the identical serialized payload")
	}

	age, ok := second.Contents[0].Headers["Age"]
	if !ok {
		t.Fatal("cache hit should carry an Age header")
	}
	if n, err := strconv.Atoi(age); err != nil || n < 0 {
		t.Errorf("Age = %q, want a non-negative integer", age)
	}
	if _, ok := first.Contents[0].Headers["Age"]; ok {
		t.Error("fresh response should not carry an Age header")
	}

	if event := auditor.last(t); !event.CacheHit {
		t.Errorf("audit event = %+v, want cache hit", event)
	}
}

// Scenario: a filtered list request forwards the filter to the backend
// and invalidates the kind's entries before responding.
func TestHandler_ListFilterForwardingAndInvalidation(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`[{"system_id":"abc123","hostname":"web01"}]`)}
	h, _, _ := newTestHandler(t, machinesListDef(), backend)
	ctx := context.Background()

	// Unfiltered request populates the cache.
	if _, err := h.Resolve(ctx, "maas://machines/list"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := h.Resolve(ctx, "maas://machines/list"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if backend.callCount() != 1 {
		t.Fatalf("backend calls = %d, want 1 (unfiltered repeat should hit)", backend.callCount())
	}

	// Filtered request: forwards the filter and flushes the kind.
	if _, err := h.Resolve(ctx, "maas://machines/list?zone=default"); err != nil {
		t.Fatalf("filtered Resolve failed: %v", err)
	}
	if backend.callCount() != 2 {
		t.Fatalf("backend calls = %d, want 2", backend.callCount())
	}
	if backend.lastQuery.Get("zone") != "default" {
		t.Errorf("forwarded query = %v, want the zone filter", backend.lastQuery)
	}

	// The unfiltered entry was invalidated by the filtered request.
	if _, err := h.Resolve(ctx, "maas://machines/list"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if backend.callCount() != 3 {
		t.Errorf("backend calls = %d, want 3 (cache was flushed by the filtered request)", backend.callCount())
	}
}

// Scenario: the backend payload fails shape validation; the caller gets a
// 422 with the structured issues.
func TestHandler_PayloadValidationFailure(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123"}`)}
	h, store, _ := newTestHandler(t, machineDef(), backend)

	_, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	if err == nil {
		t.Fatal("Resolve succeeded, want validation failure")
	}

	var f *failure.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is %T, want *failure.Failure", err)
	}
	if f.Status != 422 || f.Code != failure.CodeValidation {
		t.Errorf("got (%d, %s), want (422, %s)", f.Status, f.Code, failure.CodeValidation)
	}
	if len(f.Issues) == 0 {
		t.Error("failure should carry the structured validation issues")
	}

	// Invalid payloads are never cached.
	if store.Len() != 0 {
		t.Errorf("store has %d entries after a validation failure, want 0", store.Len())
	}
}

func TestHandler_BackendNotFound(t *testing.T) {
	backend := &fakeBackend{err: failure.FromStatus(404, "Not Found")}
	h, _, auditor := newTestHandler(t, machineDef(), backend)

	_, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	var f *failure.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is %T, want *failure.Failure", err)
	}
	if f.Status != 404 || f.Code != failure.CodeNotFound {
		t.Errorf("got (%d, %s), want (404, %s)", f.Status, f.Code, failure.CodeNotFound)
	}
	if f.Message != "machine 'abc123' not found" {
		t.Errorf("Message = %q, want it to name kind and id", f.Message)
	}
	if event := auditor.last(t); event.Outcome != string(failure.CodeNotFound) {
		t.Errorf("audit outcome = %q, want %q", event.Outcome, failure.CodeNotFound)
	}
}

func TestHandler_UnmatchedURI(t *testing.T) {
	h, _, _ := newTestHandler(t, machineDef(), &fakeBackend{})

	_, err := h.Resolve(context.Background(), "maas://subnet/5/details")
	var f *failure.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is %T, want *failure.Failure", err)
	}
	if f.Status != 400 || f.Code != failure.CodeInvalidParameters {
		t.Errorf("got (%d, %s), want (400, %s)", f.Status, f.Code, failure.CodeInvalidParameters)
	}
}

func TestHandler_InvalidParameters(t *testing.T) {
	backend := &fakeBackend{}
	h, _, _ := newTestHandler(t, machineDef(), backend)

	_, err := h.Resolve(context.Background(), "maas://machine/not%20valid!/details")
	var f *failure.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is %T, want *failure.Failure", err)
	}
	if f.Status != 400 || f.Code != failure.CodeInvalidParameters {
		t.Errorf("got (%d, %s), want (400, %s)", f.Status, f.Code, failure.CodeInvalidParameters)
	}
	if backend.callCount() != 0 {
		t.Error("validation failures must not reach the backend")
	}
}

func TestHandler_CancelledFetch(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("round trip: %w", context.Canceled)}
	h, _, _ := newTestHandler(t, machineDef(), backend)

	_, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	var f *failure.Failure
	if !errors.As(err, &f) {
		t.Fatalf("error is %T, want *failure.Failure", err)
	}
	if f.Status != failure.StatusAborted || f.Code != failure.CodeAborted {
		t.Errorf("got (%d, %s), want (%d, %s)", f.Status, f.Code, failure.StatusAborted, failure.CodeAborted)
	}
}

func TestHandler_SetCacheOptions(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123","hostname":"web01"}`)}
	h, _, _ := newTestHandler(t, machineDef(), backend)

	h.SetCacheOptions(cache.Options{
		Enabled:    true,
		TTL:        90 * time.Second,
		Directives: cache.Directives{Private: true},
	})

	envelope, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := envelope.Contents[0].Headers["Cache-Control"]; got != "max-age=90, private" {
		t.Errorf("Cache-Control = %q, want the overridden TTL and directives", got)
	}

	opts := h.CacheOptions()
	if opts.TTL != 90*time.Second || !opts.Directives.Private {
		t.Errorf("CacheOptions() = %+v, want the replaced options", opts)
	}
}

func TestHandler_InvalidateCacheByID(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123","hostname":"web01"}`)}
	h, _, _ := newTestHandler(t, machineDef(), backend)
	ctx := context.Background()

	if _, err := h.Resolve(ctx, "maas://machine/abc123/details"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if removed := h.InvalidateCacheByID(ctx, "abc123"); removed != 1 {
		t.Errorf("InvalidateCacheByID = %d, want 1", removed)
	}

	if _, err := h.Resolve(ctx, "maas://machine/abc123/details"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 after id-scoped invalidation", backend.callCount())
	}
}

// A cache backend outage degrades every lookup to a miss and every write
// to a drop; resolutions still succeed against the backend.
func TestHandler_CacheFaultFallsBackToBackend(t *testing.T) {
	unreachable := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer unreachable.Close()
	store := cache.NewRedisStore(unreachable, cache.DefaultConfig(), zerolog.Nop())

	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123","hostname":"web01"}`)}
	h, err := NewHandler(machineDef(), store, backend, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	envelope, err := h.Resolve(context.Background(), "maas://machine/abc123/details")
	if err != nil {
		t.Fatalf("Resolve with a faulting cache failed: %v", err)
	}
	if envelope.Contents[0].Text != string(backend.payload) {
		t.Errorf("Text = %q, want the backend payload", envelope.Contents[0].Text)
	}

	// The write was dropped, so the next request fetches again.
	if _, err := h.Resolve(context.Background(), "maas://machine/abc123/details"); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 (every lookup is a miss)", backend.callCount())
	}
}

func TestHandler_KeyQueryParamAllowList(t *testing.T) {
	backend := &fakeBackend{payload: []byte(`{"system_id":"abc123","hostname":"web01"}`)}
	h, _, _ := newTestHandler(t, machineDef(), backend)
	ctx := context.Background()

	// With an empty (non-nil) allow-list, query parameters do not
	// participate in the key, so both URIs share one entry.
	h.SetCacheOptions(cache.Options{Enabled: true, KeyQueryParams: []string{}})

	if _, err := h.Resolve(ctx, "maas://machine/abc123/details?verbose=1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := h.Resolve(ctx, "maas://machine/abc123/details?verbose=2"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (excluded query param must not change the key)", backend.callCount())
	}

	// Without an allow-list every validated parameter participates.
	h.SetCacheOptions(cache.Options{Enabled: true})
	if _, err := h.Resolve(ctx, "maas://machine/abc123/details?verbose=3"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := h.Resolve(ctx, "maas://machine/abc123/details?verbose=4"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if backend.callCount() != 3 {
		t.Errorf("backend calls = %d, want 3 (relevant query params key separately)", backend.callCount())
	}
}
