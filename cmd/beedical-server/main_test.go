package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/AmalSalhi1/BeedicalApp/internal/config"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/dependent"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/directory"
	"github.com/AmalSalhi1/BeedicalApp/internal/domain/scheduling"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/auth"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/metrics"
)

// newTestServer wires the real handlers over an in-memory slot store. The
// directory and dependents repositories are never reached by these tests.
func newTestServer(t *testing.T, env string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Env:                env,
		CORSOrigins:        []string{"*"},
		RequestTimeout:     time.Second,
		PublishHorizonDays: 7,
	}
	logger := zerolog.Nop()
	store := scheduling.NewMemoryStore()
	depSvc := dependent.NewService(nil, time.UTC, logger)
	registry := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(registry)
	pub := scheduling.NewPublisher(store, nil, time.UTC, m, logger)
	coord := scheduling.NewCoordinator(store, depSvc, time.UTC, time.Second, m, logger)

	authMW := auth.DevAuthMiddleware()
	if env != "development" {
		authMW = optionalAuth(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte("test-secret"), Logger: logger}))
	}

	return newServer(cfg, routes{
		directory:  directory.NewHandler(directory.NewService(nil, nil, 0, logger)),
		dependents: dependent.NewHandler(depSvc),
		scheduling: scheduling.NewHandler(coord, pub, cfg.PublishHorizonDays),
		metrics:    metrics.Handler(registry),
	}, authMW, logger)
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t, "production")
	rec := do(h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), version) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on every response")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id")
	}
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, "development")
	rec := do(h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "beedical_slots_published_total") {
		t.Errorf("expected booking metrics, got %s", rec.Body.String())
	}
}

func TestServer_Auth(t *testing.T) {
	h := newTestServer(t, "production")

	tests := []struct {
		name   string
		method string
		target string
		header map[string]string
		want   int
	}{
		{"public availability", http.MethodGet, "/api/v1/doctors/6f1b7c52-3f5e-4f7a-9a55-0d8f3c1e2b10/availability", nil, http.StatusOK},
		{"appointments need an actor", http.MethodGet, "/api/v1/appointments", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/appointments", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"admin needs a role", http.MethodPost, "/api/v1/admin/sweep", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, tt.method, tt.target, tt.header); rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_DevAdmin(t *testing.T) {
	h := newTestServer(t, "development")
	rec := do(h, http.MethodPost, "/api/v1/admin/sweep", map[string]string{auth.DevUserHeader: "ops"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"completed":0`) {
		t.Errorf("unexpected sweep response %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		logger := newLogger(&config.Config{Env: "production", LogLevel: tt.level})
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("newLogger(%q) level = %s, want %s", tt.level, got, tt.want)
		}
	}
}
