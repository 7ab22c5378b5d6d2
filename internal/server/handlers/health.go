package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/agentstation/statuspage/internal/realtime/hub"
	"github.com/agentstation/statuspage/internal/server/cache"
	"github.com/agentstation/statuspage/internal/server/response"
)

// readyTimeout bounds the store ping of the readiness probe.
const readyTimeout = 2 * time.Second

// HandleHealth handles GET /health.
// @Summary Health check
// @Description Health check endpoint (liveness probe)
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=object}
// @Router /health [get].
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "statuspage",
	})
}

// HandleReady handles GET /api/ready.
// @Summary Readiness check
// @Description Readiness check including the backing store
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=object}
// @Failure 503 {object} response.Response{error=response.Error}
// @Router /api/ready [get].
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log(r).Warn().Err(err).Msg("Store not ready")
		response.ServiceUnavailable(w, "Store not available")
		return
	}

	stats := h.hub.Stats()
	response.OK(w, map[string]any{
		"status":      "ready",
		"connections": stats.Connections,
		"backplane":   stats.Backplane,
	})
}

// ProcessStats describes the server process.
type ProcessStats struct {
	PID           int32   `json:"pid"`
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rss_bytes"`
	CPUPercent    float64 `json:"cpu_percent"`
	OpenFiles     int     `json:"open_files,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Realtime hub.Stats    `json:"realtime"`
	Cache    cache.Stats  `json:"cache"`
	Process  ProcessStats `json:"process"`
}

// HandleStats handles GET /api/stats.
// @Summary Server statistics
// @Description Realtime hub counters, room sizes, cache and process statistics
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=StatsResponse}
// @Router /api/stats [get].
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	response.OK(w, StatsResponse{
		Realtime: h.hub.Stats(),
		Cache:    h.cache.GetStats(),
		Process:  h.processStats(r.Context()),
	})
}

// processStats reads what it can about this process; missing figures stay
// zero.
func (h *Handlers) processStats(ctx context.Context) ProcessStats {
	ps := ProcessStats{
		PID:           int32(os.Getpid()),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	p, err := process.NewProcessWithContext(ctx, ps.PID)
	if err != nil {
		h.logger.Debug().Err(err).Msg("Process stats unavailable")
		return ps
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
		ps.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		ps.CPUPercent = cpu
	}
	if files, err := p.OpenFilesWithContext(ctx); err == nil {
		ps.OpenFiles = len(files)
	}
	return ps
}
