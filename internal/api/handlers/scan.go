package handlers

import (
	"net/http"
	"time"

	"github.com/NubleX/LEGION2/internal/api/middleware"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/scanning"
)

// ScanHandler handles scan job endpoints.
type ScanHandler struct {
	engine Engine
	logger *logging.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(engine Engine, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		engine: engine,
		logger: logger.WithComponent("api.scans"),
	}
}

// ScanAcceptedResponse acknowledges a queued scan.
type ScanAcceptedResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// RangeAcceptedResponse acknowledges a queued range scan. IDs holds the
// discovery job; per-host jobs are announced on the event stream.
type RangeAcceptedResponse struct {
	IDs       []string  `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

// CancelAllResponse reports how many jobs were asked to stop.
type CancelAllResponse struct {
	Cancelled int       `json:"cancelled"`
	Timestamp time.Time `json:"timestamp"`
}

// StartScan queues a scan of one target.
//
// @Summary Start a scan
// @Tags Scans
// @Accept json
// @Produce json
// @Param request body scanning.Request true "Scan request"
// @Success 202 {object} ScanAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Router /scans [post]
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req scanning.Request
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	id, err := h.engine.StartScan(r.Context(), req)
	if err != nil {
		handleEngineError(w, r, err, "start scan", h.logger)
		return
	}

	h.logger.Info("Scan queued via API",
		"request_id", middleware.GetRequestID(r),
		"job_id", id,
		"target", req.Target,
		"scan_type", req.ScanType)

	writeJSON(w, r, http.StatusAccepted, ScanAcceptedResponse{
		ID:        id,
		Status:    string(scanning.StatusQueued),
		Timestamp: time.Now().UTC(),
	})
}

// ScanRange queues a discovery sweep of a network range.
//
// @Summary Scan a network range
// @Tags Scans
// @Accept json
// @Produce json
// @Param request body scanning.RangeRequest true "Range request"
// @Success 202 {object} RangeAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Router /scans/range [post]
func (h *ScanHandler) ScanRange(w http.ResponseWriter, r *http.Request) {
	var req scanning.RangeRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ids, err := h.engine.ScanNetworkRange(r.Context(), req)
	if err != nil {
		handleEngineError(w, r, err, "start range scan", h.logger)
		return
	}

	writeJSON(w, r, http.StatusAccepted, RangeAcceptedResponse{IDs: ids, Timestamp: time.Now().UTC()})
}

// ListScans returns the jobs of the running server, optionally filtered by
// status.
//
// @Summary List scan jobs
// @Tags Scans
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {array} scanning.Job
// @Router /scans [get]
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	jobs := h.engine.ListScans(r.Context())

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if string(j.Status) == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	if jobs == nil {
		jobs = []scanning.Job{}
	}

	writeJSON(w, r, http.StatusOK, jobs)
}

// GetScan returns one job.
//
// @Summary Get a scan job
// @Tags Scans
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} scanning.Job
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id} [get]
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.engine.GetScan(r.Context(), pathVar(r, "id"))
	if err != nil {
		handleEngineError(w, r, err, "get scan", h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

// CancelScan requests cancellation of a job. Cancellation is asynchronous;
// the job settles as cancelled shortly after.
//
// @Summary Cancel a scan job
// @Tags Scans
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} ScanAcceptedResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id} [delete]
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if err := h.engine.CancelScan(r.Context(), id); err != nil {
		handleEngineError(w, r, err, "cancel scan", h.logger)
		return
	}

	h.logger.Info("Scan cancellation requested via API",
		"request_id", middleware.GetRequestID(r),
		"job_id", id)

	status := "cancelling"
	if job, err := h.engine.GetScan(r.Context(), id); err == nil && job.Status.Terminal() {
		status = string(job.Status)
	}
	writeJSON(w, r, http.StatusAccepted, ScanAcceptedResponse{ID: id, Status: status, Timestamp: time.Now().UTC()})
}

// CancelAllScans requests cancellation of every unfinished job.
//
// @Summary Cancel all scan jobs
// @Tags Scans
// @Produce json
// @Success 202 {object} CancelAllResponse
// @Router /scans/cancel-all [post]
func (h *ScanHandler) CancelAllScans(w http.ResponseWriter, r *http.Request) {
	n := h.engine.CancelAllScans(r.Context())
	h.logger.Info("All scans cancelled via API",
		"request_id", middleware.GetRequestID(r),
		"cancelled", n)
	writeJSON(w, r, http.StatusAccepted, CancelAllResponse{Cancelled: n, Timestamp: time.Now().UTC()})
}
