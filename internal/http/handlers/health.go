package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/gorm"

	"github.com/m3undle/m3undle/pkg/duration"
	"github.com/m3undle/m3undle/pkg/httpclient"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	breakers  *httpclient.BreakerManager
	db        *gorm.DB
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithBreakerManager sets the breaker manager reported by the health check.
func (h *HealthHandler) WithBreakerManager(manager *httpclient.BreakerManager) *HealthHandler {
	h.breakers = manager
	return h
}

// WithDB sets the database connection used for the ping check.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// CPUInfo reports load averages relative to the core count.
type CPUInfo struct {
	Cores     int     `json:"cores"`
	Load1Min  float64 `json:"load_1min"`
	Load5Min  float64 `json:"load_5min"`
	Load15Min float64 `json:"load_15min"`
}

// MemoryInfo reports system memory usage.
type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// BreakerStatus reports one upstream circuit breaker.
type BreakerStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// DatabaseHealth reports the database ping result.
type DatabaseHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status        string          `json:"status"`
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	Uptime        string          `json:"uptime"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	CPU           CPUInfo         `json:"cpu"`
	Memory        MemoryInfo      `json:"memory"`
	Database      DatabaseHealth  `json:"database"`
	Breakers      []BreakerStatus `json:"circuit_breakers,omitempty"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// ProbeOutput is the output for liveness and readiness probes.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including system metrics, database reachability and upstream circuit breaker state",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// GetLivez reports process liveness.
func (h *HealthHandler) GetLivez(ctx context.Context, _ *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetReadyz reports readiness: the database must be configured and reachable.
func (h *HealthHandler) GetReadyz(ctx context.Context, _ *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	if h.databaseHealth(ctx).Status == "ok" {
		out.Body.Status = "ready"
	} else {
		out.Body.Status = "not_ready"
	}
	return out, nil
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	dbHealth := h.databaseHealth(ctx)

	status := "healthy"
	if dbHealth.Status != "ok" {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:        status,
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        duration.Format(uptime.Round(time.Second)),
		UptimeSeconds: uptime.Seconds(),
		CPU:           cpuInfo(),
		Memory:        memoryInfo(),
		Database:      dbHealth,
	}

	if h.breakers != nil {
		stats := h.breakers.AllStats()
		resp.Breakers = make([]BreakerStatus, 0, len(stats))
		for name, s := range stats {
			resp.Breakers = append(resp.Breakers, BreakerStatus{
				Name:     name,
				State:    s.State,
				Failures: s.ConsecutiveFailures,
			})
		}
	}

	return &HealthOutput{Body: resp}, nil
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	if avg, err := load.Avg(); err == nil && avg != nil {
		info.Load1Min = avg.Load1
		info.Load5Min = avg.Load5
		info.Load15Min = avg.Load15
	}
	return info
}

func memoryInfo() MemoryInfo {
	info := MemoryInfo{}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalBytes = vm.Total
		info.AvailableBytes = vm.Available
		info.UsedBytes = vm.Used
		info.UsedPercent = vm.UsedPercent
	}
	return info
}

func (h *HealthHandler) databaseHealth(ctx context.Context) DatabaseHealth {
	if h.db == nil {
		return DatabaseHealth{Status: "not_configured"}
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return DatabaseHealth{Status: "error", Error: err.Error()}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return DatabaseHealth{Status: "error", Error: err.Error()}
	}
	return DatabaseHealth{Status: "ok"}
}
