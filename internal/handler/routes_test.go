package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"localstack-relay/internal/config"
	"localstack-relay/internal/metrics"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	emulator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<ok/>`))
	}))
	defer emulator.Close()

	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: true, Path: "/_relay/metrics"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	relayHandler := NewRelayHandler(newTestRelayService(t, emulator), logger)
	health := NewHealthHandler(cfg, "test")

	e := echo.New()
	RegisterRoutes(e, cfg, metrics.New(), relayHandler, health)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"GET healthz", http.MethodGet, "/_relay/healthz", http.StatusOK},
		{"GET status", http.MethodGet, "/_relay/status", http.StatusOK},
		{"GET metrics", http.MethodGet, "/_relay/metrics", http.StatusOK},
		{"GET object", http.MethodGet, "http://mybucket.s3.amazonaws.com/key.txt", http.StatusOK},
		{"POST query API", http.MethodPost, "http://sts.amazonaws.com/", http.StatusOK},
		{"DELETE object", http.MethodDelete, "http://s3.amazonaws.com/mybucket/key.txt", http.StatusOK},
		{"origin form root", http.MethodGet, "/", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_MetricsDisabled(t *testing.T) {
	var relayed bool
	emulator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		relayed = true
	}))
	defer emulator.Close()

	cfg := &config.Config{
		Metrics: config.MetricsConfig{Enabled: false, Path: "/_relay/metrics"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := echo.New()
	RegisterRoutes(e, cfg, metrics.New(), NewRelayHandler(newTestRelayService(t, emulator), logger), NewHealthHandler(cfg, "test"))

	req := httptest.NewRequest(http.MethodGet, "/_relay/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if !relayed {
		t.Error("expected /_relay/metrics to be relayed when metrics are disabled")
	}
}
