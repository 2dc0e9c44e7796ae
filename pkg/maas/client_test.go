package maas

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/maasops/maas-bridge/internal/testutil"
	"github.com/maasops/maas-bridge/pkg/failure"
)

func newTestClient(t *testing.T, mock *testutil.MockMAAS) *Client {
	t.Helper()

	cfg := DefaultConfig(mock.URL())
	cfg.Retry = RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	client, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, zerolog.Nop()); err == nil {
		t.Error("New without a base URL should fail")
	}
}

func TestClient_Get(t *testing.T) {
	mock := testutil.NewMockMAAS()
	defer mock.Close()

	body := `{"system_id":"abc123","hostname":"web01"}`
	mock.SetResponse("/machines/abc123/", testutil.MockResponse{StatusCode: 200, Body: body})

	client := newTestClient(t, mock)
	got, err := client.Get(context.Background(), "machines/abc123/", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != body {
		t.Errorf("body = %s, want %s", got, body)
	}
}

func TestClient_GetForwardsQuery(t *testing.T) {
	mock := testutil.NewMockMAAS()
	defer mock.Close()
	mock.SetResponse("/machines/", testutil.MockResponse{StatusCode: 200, Body: `[]`})

	client := newTestClient(t, mock)
	query := url.Values{"zone": []string{"default"}, "hostname": []string{"web01"}}
	if _, err := client.Get(context.Background(), "machines/", query); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	forwarded := mock.LastQuery()
	if forwarded.Get("zone") != "default" || forwarded.Get("hostname") != "web01" {
		t.Errorf("forwarded query = %v, want zone and hostname filters", forwarded)
	}
}

func TestClient_GetStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  failure.Code
		wantCalls int
	}{
		{name: "404 becomes not found, no retry", status: 404, wantCode: failure.CodeNotFound, wantCalls: 1},
		{name: "401 becomes unauthorized, no retry", status: 401, wantCode: failure.CodeUnauthorized, wantCalls: 1},
		{name: "409 passes through, no retry", status: 409, wantCode: failure.CodeBackend, wantCalls: 1},
		{name: "500 retried then passed through", status: 500, wantCode: failure.CodeBackend, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockMAAS()
			defer mock.Close()
			mock.SetResponse("/machines/abc123/", testutil.MockResponse{StatusCode: tt.status, Body: "backend says no"})

			client := newTestClient(t, mock)
			_, err := client.Get(context.Background(), "machines/abc123/", nil)
			if err == nil {
				t.Fatal("Get succeeded, want failure")
			}

			var f *failure.Failure
			if !errors.As(err, &f) {
				t.Fatalf("error is %T, want *failure.Failure", err)
			}
			if f.Status != tt.status {
				t.Errorf("Status = %d, want %d (never reclassified)", f.Status, tt.status)
			}
			if f.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", f.Code, tt.wantCode)
			}
			if mock.RequestCount() != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", mock.RequestCount(), tt.wantCalls)
			}
		})
	}
}

func TestClient_GetTransportErrorStaysRaw(t *testing.T) {
	cfg := DefaultConfig("http://127.0.0.1:1")
	cfg.Timeout = 200 * time.Millisecond
	cfg.Retry.MaxAttempts = 1

	client, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Get(context.Background(), "machines/", nil)
	if err == nil {
		t.Fatal("Get against a closed port should fail")
	}
	var f *failure.Failure
	if errors.As(err, &f) {
		t.Errorf("transport error was pre-typed as %v; it must stay raw for the normalizer", f)
	}
}

func TestClient_GetObservesCancellation(t *testing.T) {
	mock := testutil.NewMockMAAS()
	defer mock.Close()
	mock.SetResponse("/machines/", testutil.MockResponse{
		StatusCode: 200,
		Body:       `[]`,
		Delay:      time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := newTestClient(t, mock)
	_, err := client.Get(ctx, "machines/", nil)
	if err == nil {
		t.Fatal("Get should fail once the caller aborts")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want a cancellation for the normalizer to classify", err)
	}
}
