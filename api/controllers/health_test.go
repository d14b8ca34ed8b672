package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/types"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "dev", Port: "8080"}}
}

func TestHealthReadyAllDependenciesUp(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	HealthReady(testConfig(), nil, stubPinger{}, stubPinger{})(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if env := w.Header().Get("X-DeshCart-Env"); env != "dev" {
		t.Fatalf("missing env header, got %q", env)
	}
}

func TestHealthReadyDegradedOnRedisFailure(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	HealthReady(testConfig(), nil, stubPinger{}, stubPinger{err: errors.New("conn refused")})(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", w.Code)
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := envelope.Data.(map[string]any)
	checks := data["checks"].(map[string]any)
	if checks["redis"] != "down" || checks["db"] != "ok" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}
