// Package testutil provides testing utilities for the MAAS bridge.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock MAAS endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockMAAS is a configurable mock MAAS region API for testing.
type MockMAAS struct {
	server *httptest.Server

	mu        sync.RWMutex
	responses map[string]MockResponse

	// Tracking
	requestCount int
	lastPath     string
	lastQuery    url.Values
}

// NewMockMAAS creates a mock region API. Unconfigured paths return 404.
func NewMockMAAS() *MockMAAS {
	mock := &MockMAAS{
		responses: make(map[string]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastPath = r.URL.Path
		mock.lastQuery = r.URL.Query()
		resp, ok := mock.responses[r.URL.Path]
		mock.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Not Found"))
			return
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockMAAS) URL() string {
	return m.server.URL
}

// Close shuts the mock server down.
func (m *MockMAAS) Close() {
	m.server.Close()
}

// SetResponse configures the response served for a path.
func (m *MockMAAS) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	m.responses[path] = resp
	m.mu.Unlock()
}

// RequestCount returns the number of requests served.
func (m *MockMAAS) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockMAAS) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// LastPath returns the path of the most recent request.
func (m *MockMAAS) LastPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPath
}
