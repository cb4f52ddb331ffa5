package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"labbook/pkg/auth"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockParser struct {
	parseFunc func(raw string) (auth.Principal, error)
}

func (m *mockParser) Parse(raw string) (auth.Principal, error) {
	return m.parseFunc(raw)
}

func okHandler(called *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(called, 1)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	parser := &mockParser{parseFunc: func(raw string) (auth.Principal, error) {
		if raw == "good" {
			return auth.Principal{ID: "u1", Role: model.RoleStudent}, nil
		}
		return auth.Principal{}, auth.ErrInvalidToken
	}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var principal auth.Principal
			h := Authenticate(parser, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				principal, _ = auth.FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/mine", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK && principal.ID != "u1" {
				t.Errorf("expected principal on context, got %+v", principal)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handle := AdminOnly(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		principal  *auth.Principal
		wantStatus int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"student", &auth.Principal{ID: "s", Role: model.RoleStudent}, http.StatusForbidden},
		{"admin", &auth.Principal{ID: "a", Role: model.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			handle(rec, req, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, nil, logger.Discard())
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatal("expected first two requests to pass")
	}
	if rl.Allow("k") {
		t.Error("expected third request to be limited")
	}
	if !rl.Allow("other") {
		t.Error("expected separate key to have its own budget")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("k") {
		t.Error("expected window to slide")
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, nil, logger.Discard())
	defer rl.Stop()

	var called int32
	h := RateLimit(rl)(okHandler(&called))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: "u1", Role: model.RoleStudent}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestPrincipalOrIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := PrincipalOrIP(req); got != "ip:10.0.0.1" {
		t.Errorf("unexpected key %s", got)
	}

	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: "u9", Role: model.RoleTeacher}))
	if got := PrincipalOrIP(req); got != "user:u9" {
		t.Errorf("unexpected key %s", got)
	}
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var called int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&called, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Errorf("request %d: expected 201, got %d", i, rec.Code)
		}
	}

	if called != 1 {
		t.Errorf("expected handler to run once, ran %d times", called)
	}
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var called int32
	h := Idempotency(store, "")(okHandler(&called))

	for _, id := range []string{"u1", "u2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		req.Header.Set("Idempotency-Key", "same")
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{ID: id, Role: model.RoleStudent}))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if called != 2 {
		t.Errorf("expected each user to reach the handler, got %d calls", called)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestContentTypeValidation(t *testing.T) {
	var called int32
	h := ContentTypeValidation(logger.Discard())(okHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/bookings/id/1/approve", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected bodyless PUT to pass, got %d", rec.Code)
	}
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestRequestLogging_SetsRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected request id to be propagated, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}
	if RequestID(context.Background()) != "" {
		t.Error("expected empty id without middleware")
	}
}
