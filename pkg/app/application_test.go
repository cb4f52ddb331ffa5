package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labbook/internal/health"
	"labbook/pkg/auth"
	"labbook/pkg/config"
	"labbook/pkg/contracts"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type staticParser map[string]auth.Principal

func (p staticParser) Parse(raw string) (auth.Principal, error) {
	principal, ok := p[raw]
	if !ok {
		return auth.Principal{}, errors.New("unknown token")
	}
	return principal, nil
}

type whoami struct{}

func (whoami) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		p, _ := auth.FromContext(r.Context())
		_, _ = w.Write([]byte(p.ID))
	})
}

func newTestApp(t *testing.T, closers ...contracts.Closer) *Application {
	t.Helper()
	cfg := &config.Config{
		Port:              "0",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1024,
		ShutdownTimeout:   time.Second,
		Log:               logger.Discard(),
	}
	a := NewApplication(cfg)
	a.SetApp(
		contracts.Handlers{whoami{}},
		staticParser{"good": {ID: "u1", Role: model.RoleStudent}},
		map[string]health.Check{"mongo": func(context.Context) error { return nil }},
		closers...,
	)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a
}

func TestHealthSkipsAuthentication(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != "u1" {
				t.Errorf("expected principal u1, got %q", rec.Body.String())
			}
		})
	}
}
