package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/NubleX/LEGION2/internal/logging"
)

const healthCheckTimeout = 5 * time.Second

// Status constants.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// HealthHandler handles health, version and statistics endpoints.
type HealthHandler struct {
	engine    Engine
	logger    *logging.Logger
	build     BuildInfo
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine Engine, build BuildInfo, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		logger:    logger.WithComponent("api.health"),
		build:     build,
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	BuildInfo
	GoVersion string    `json:"go_version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports whether the database is reachable.
//
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Success 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    map[string]string{"database": "ok"},
	}

	status := http.StatusOK
	if err := h.engine.Health(ctx); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		response.Status = StatusUnhealthy
		response.Checks["database"] = "failed: " + err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, r, status, response)
}

// Version reports build information.
//
// @Summary Version information
// @Tags System
// @Produce json
// @Success 200 {object} VersionResponse
// @Router /version [get]
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		BuildInfo: h.build,
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC(),
	})
}

// Statistics returns aggregate scan and inventory counts.
//
// @Summary Scan statistics
// @Tags System
// @Produce json
// @Success 200 {object} stats.Snapshot
// @Failure 500 {object} ErrorResponse
// @Router /statistics [get]
func (h *HealthHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.engine.Statistics(r.Context())
	if err != nil {
		handleEngineError(w, r, err, "collect statistics", h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}
