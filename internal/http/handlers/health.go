package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// CheckFunc reports whether a component is ready.
type CheckFunc func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// WithCheck adds a readiness check.
func (h *HealthHandler) WithCheck(name string, fn CheckFunc) *HealthHandler {
	h.checks[name] = fn
	return h
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ProbeOutput is the output of the liveness and readiness probes.
type ProbeOutput struct {
	Status int
	Body   ProbeResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics",
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
		Description: "Returns 503 until every component check passes",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	cpuInfo := h.getCPUInfo()
	checks, healthy := h.runChecks(ctx)

	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			SystemLoad:    cpuInfo.LoadPercentage1Min / 100,
			CPUInfo:       cpuInfo,
			Memory:        h.getMemoryInfo(),
			Checks:        checks,
		},
	}, nil
}

// GetLivez reports that the process is serving requests.
func (h *HealthHandler) GetLivez(ctx context.Context, input *LivezInput) (*ProbeOutput, error) {
	return &ProbeOutput{Status: http.StatusOK, Body: ProbeResponse{Status: "ok"}}, nil
}

// GetReadyz runs the component checks.
func (h *HealthHandler) GetReadyz(ctx context.Context, input *ReadyzInput) (*ProbeOutput, error) {
	checks, healthy := h.runChecks(ctx)
	if !healthy {
		return &ProbeOutput{
			Status: http.StatusServiceUnavailable,
			Body:   ProbeResponse{Status: "not_ready", Components: checks},
		}, nil
	}
	return &ProbeOutput{Status: http.StatusOK, Body: ProbeResponse{Status: "ok", Components: checks}}, nil
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// getCPUInfo returns CPU load information.
func (h *HealthHandler) getCPUInfo() CPUInfo {
	cores := runtime.NumCPU()
	info := CPUInfo{Cores: cores}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}

	return info
}

// getMemoryInfo returns memory usage information.
func (h *HealthHandler) getMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.FreeMemoryMB = float64(vmStat.Free) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	swapStat, err := mem.SwapMemory()
	if err == nil && swapStat != nil {
		info.SwapTotalMB = float64(swapStat.Total) / 1024 / 1024
		info.SwapUsedMB = float64(swapStat.Used) / 1024 / 1024
	}

	info.ProcessMemory = h.getProcessMemoryInfo(info.TotalMemoryMB)
	return info
}

func (h *HealthHandler) getProcessMemoryInfo(totalSystemMB float64) ProcessMemoryInfo {
	info := ProcessMemoryInfo{Goroutines: runtime.NumGoroutine()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}

	memInfo, err := proc.MemoryInfo()
	if err == nil && memInfo != nil {
		info.MainProcessMB = float64(memInfo.RSS) / 1024 / 1024
		if totalSystemMB > 0 {
			info.PercentageOfSystem = (info.MainProcessMB / totalSystemMB) * 100
		}
	}

	return info
}
