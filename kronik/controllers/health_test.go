package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeStats struct {
	cpuErr error
}

func (f fakeStats) CPUPercent(ctx context.Context) (float64, error) {
	return 12.5, f.cpuErr
}
func (f fakeStats) MemoryPercent(ctx context.Context) (float64, error) { return 40, nil }
func (f fakeStats) Uptime(ctx context.Context) (float64, error)        { return 3600, nil }

func TestHealthCheck(t *testing.T) {
	hc := NewHealthControllerWithStats(fakeStats{})
	hc.now = func() time.Time { return time.Unix(1700000000, 0) }
	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	hc.HealthCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %v", rr.Header().Get("Content-Type"))
	}

	var got HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := HealthStatus{Status: "healthy", Timestamp: 1700000000, Uptime: 3600, CPUUsage: 12.5, MemoryUsage: 40}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestHealthCheckMetricFailure(t *testing.T) {
	hc := NewHealthControllerWithStats(fakeStats{cpuErr: errors.New("no /proc")})
	rr := httptest.NewRecorder()
	hc.HealthCheck(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&got)
	for _, key := range []string{"status", "timestamp", "uptime", "cpu_usage", "memory_usage"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q in %v", key, got)
		}
	}
}
