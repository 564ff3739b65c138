package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"
)

func TestGetCorrelationID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"from context", context.WithValue(context.Background(), CorrelationIDKey, "abc-123"), "abc-123"},
		{"empty context", context.Background(), ""},
		{"wrong type", context.WithValue(context.Background(), CorrelationIDKey, 12345), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCorrelationID(tt.ctx); got != tt.want {
				t.Errorf("GetCorrelationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	var capturedID string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetCorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if _, err := uuid.Parse(capturedID); err != nil {
		t.Errorf("Generated ID %q is not a valid UUID: %v", capturedID, err)
	}
	if got := rec.Header().Get(CorrelationIDHeader); got != capturedID {
		t.Errorf("Response header ID %q != captured ID %q", got, capturedID)
	}
}

func TestCorrelationIDMiddleware_PropagatesExistingID(t *testing.T) {
	var capturedID string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set(CorrelationIDHeader, "existing-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if capturedID != "existing-id" {
		t.Errorf("Captured ID %q != expected %q", capturedID, "existing-id")
	}
	if got := rec.Header().Get(CorrelationIDHeader); got != "existing-id" {
		t.Errorf("Response header ID %q != expected %q", got, "existing-id")
	}
}

func TestLoggingMiddleware_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		writeHeader bool
	}{
		{"ok status", http.StatusOK, true},
		{"bad request", http.StatusBadRequest, true},
		{"conflict", http.StatusConflict, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"default status (no explicit write)", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.writeHeader {
					w.WriteHeader(tt.statusCode)
				}
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/timesheets", nil))

			if rec.Code != tt.statusCode {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.statusCode)
			}
		})
	}
}

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	handler := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Error == "" || resp.Version != EnvelopeVersion {
		t.Errorf("response = %+v; want failure envelope", resp)
	}
}

func TestMiddlewareChain_WithPanic(t *testing.T) {
	var capturedID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetCorrelationID(r.Context())
		panic("simulated panic")
	})
	handler := correlationIDMiddleware(recoveryMiddleware(loggingMiddleware(inner)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if capturedID == "" {
		t.Error("Correlation ID should have been generated before panic")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if rec.Header().Get(CorrelationIDHeader) != capturedID {
		t.Error("correlation ID missing from panic response")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{Rate: 1, Burst: 1, Interval: time.Hour})
	t.Cleanup(func() { limiter.Close() })

	handler := rateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := call("/v1/timesheets", "10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first request = %d; want 200", got)
	}
	if got := call("/v1/timesheets", "10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("second request = %d; want 429", got)
	}
	if got := call("/v1/health", "10.0.0.1"); got != http.StatusOK {
		t.Errorf("health = %d; want 200 regardless of limit", got)
	}
	if got := call("/v1/timesheets", "10.0.0.2"); got != http.StatusOK {
		t.Errorf("other client = %d; want 200", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.5:40000", "192.168.1.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:1", "198.51.100.2"},
		{"no port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
