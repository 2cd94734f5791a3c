package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kronik/kronik/utils/logging"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// HostStats reads host metrics for the status endpoint.
type HostStats interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	Uptime(ctx context.Context) (float64, error)
}

type systemStats struct{}

func (systemStats) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		return 0, err
	}
	return percents[0], nil
}

func (systemStats) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (systemStats) Uptime(ctx context.Context) (float64, error) {
	secs, err := host.UptimeWithContext(ctx)
	return float64(secs), err
}

type HealthStatus struct {
	Status      string  `json:"status"`
	Timestamp   float64 `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

type HealthController struct {
	stats HostStats
	now   func() time.Time
}

func NewHealthController() *HealthController {
	return NewHealthControllerWithStats(systemStats{})
}

func NewHealthControllerWithStats(stats HostStats) *HealthController {
	return &HealthController{stats: stats, now: time.Now}
}

// HealthCheck reports host metrics. A metric that cannot be read is
// reported as 0 and logged.
func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: float64(h.now().UnixNano()) / float64(time.Second),
	}
	var err error
	if status.Uptime, err = h.stats.Uptime(ctx); err != nil {
		logging.ErrorLogger.Warn("failed to read uptime", zap.Error(err))
	}
	if status.CPUUsage, err = h.stats.CPUPercent(ctx); err != nil {
		logging.ErrorLogger.Warn("failed to read cpu usage", zap.Error(err))
	}
	if status.MemoryUsage, err = h.stats.MemoryPercent(ctx); err != nil {
		logging.ErrorLogger.Warn("failed to read memory usage", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
