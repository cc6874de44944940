package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckAllHealthy(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("database", func(ctx context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(ctx context.Context) error { return nil })

	status := checker.Check(context.Background())
	if status.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", status.Status)
	}
	if len(status.Dependencies) != 2 {
		t.Errorf("expected 2 dependencies, got %d", len(status.Dependencies))
	}
}

func TestHealthCheckRequiredFailure(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("database", func(ctx context.Context) error { return errors.New("connection refused") })

	status := checker.Check(context.Background())
	if status.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", status.Status)
	}
	if status.Dependencies["database"].Message != "connection refused" {
		t.Errorf("expected failure message, got %+v", status.Dependencies["database"])
	}
}

func TestHealthCheckOptionalFailureDegrades(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("database", func(ctx context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(ctx context.Context) error { return errors.New("down") })

	status := checker.Check(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", status.Status)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	checker := NewHealthChecker()
	checker.AddCheck("database", func(ctx context.Context) error { return errors.New("down") })

	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, checker)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if status.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy body, got %s", status.Status)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness must always be 200, got %d", rec.Code)
	}
}
