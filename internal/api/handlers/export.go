package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/NubleX/LEGION2/internal/export"
	"github.com/NubleX/LEGION2/internal/logging"
)

// ExportHandler serves inventory exports.
type ExportHandler struct {
	engine Engine
	logger *logging.Logger
	now    func() time.Time
}

// NewExportHandler creates a new export handler.
func NewExportHandler(engine Engine, logger *logging.Logger) *ExportHandler {
	return &ExportHandler{
		engine: engine,
		logger: logger.WithComponent("api.export"),
		now:    time.Now,
	}
}

// Export writes the selected hosts, or every host, as a download.
//
// @Summary Export hosts
// @Tags Hosts
// @Produce json
// @Produce text/csv
// @Produce application/xml
// @Param format query string false "json, csv or xml" default(json)
// @Param ids query string false "Comma-separated host IDs"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /export [get]
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	// Buffered so a missing host still produces a clean error response.
	var buf bytes.Buffer
	if err := h.engine.ExportHosts(r.Context(), &buf, format, getQueryList(r, "ids")); err != nil {
		handleEngineError(w, r, err, "export hosts", h.logger)
		return
	}

	filename := fmt.Sprintf("legion-hosts-%s.%s", h.now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("Export write failed", "error", err)
	}
}
