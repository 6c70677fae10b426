package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-board/internal/database"
	"media-board/internal/logging"
	"media-board/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	statusBusy     = "busy"

	healthTimeout = 3 * time.Second
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`

	// MemoryPaused is true while new uploads wait for memory.
	MemoryPaused bool `json:"memoryPaused"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	Media *database.Stats `json:"media,omitempty"`
}

// HealthCheck reports the service status together with result store totals.
// It answers 503 only when the result store cannot be read.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	stats, err := h.db.GetStats(ctx)
	if err != nil {
		logging.Warn("Health check could not read the result store: %v", err)
		response.Status = statusDegraded
		response.Error = "result store unavailable"
		code = http.StatusServiceUnavailable
	} else {
		response.Media = &stats
	}

	if h.memoryPaused() {
		response.MemoryPaused = true
		if response.Status == statusHealthy {
			response.Status = statusBusy
		}
	}

	writeJSONStatusCode(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 503 while new uploads are held back for memory.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.memoryPaused() {
		writeJSONStatusCode(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
		return
	}
	writeJSONStatus(w, "ready")
}

func (h *Handlers) memoryPaused() bool {
	return h.memory != nil && h.memory.IsPaused()
}
