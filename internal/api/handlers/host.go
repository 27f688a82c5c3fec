package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/NubleX/LEGION2/internal/api/middleware"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/logging"
)

// HostHandler handles inventory host endpoints.
type HostHandler struct {
	engine Engine
	logger *logging.Logger
}

// NewHostHandler creates a new host handler.
func NewHostHandler(engine Engine, logger *logging.Logger) *HostHandler {
	return &HostHandler{
		engine: engine,
		logger: logger.WithComponent("api.hosts"),
	}
}

// DeleteHostsRequest lists hosts to delete.
type DeleteHostsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

// DeleteHostsResponse reports a batch delete. Errors lists the ids that
// could not be deleted and why.
type DeleteHostsResponse struct {
	Requested int      `json:"requested"`
	Deleted   int      `json:"deleted"`
	Errors    []string `json:"errors,omitempty"`
}

// TagRequest attaches a tag to a host.
type TagRequest struct {
	Tag string `json:"tag" validate:"required,max=64"`
}

// ListHosts returns hosts matching the query filter.
//
// @Summary List hosts
// @Tags Hosts
// @Produce json
// @Param status query string false "up, down or unknown"
// @Param os_family query string false "OS family"
// @Param has_vulnerabilities query bool false "Only hosts with (or without) findings"
// @Param min_severity query string false "Minimum finding severity"
// @Param min_ports query int false "Minimum open ports"
// @Param max_ports query int false "Maximum open ports"
// @Param search query string false "Substring of IP, hostname or OS"
// @Param tag query string false "Tag"
// @Param last_seen_days query int false "Seen within this many days"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} PaginatedResponse
// @Failure 400 {object} ErrorResponse
// @Router /hosts [get]
func (h *HostHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	params, err := getPaginationParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	filter, err := parseHostFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	filter.Limit = params.PageSize
	filter.Offset = params.Offset

	hosts, total, err := h.engine.GetHosts(r.Context(), filter)
	if err != nil {
		handleEngineError(w, r, err, "list hosts", h.logger)
		return
	}
	if hosts == nil {
		hosts = []db.Host{}
	}

	writeJSON(w, r, http.StatusOK, PaginatedResponse{
		Data: hosts,
		Pagination: Pagination{
			Page:       params.Page,
			PageSize:   params.PageSize,
			TotalItems: total,
			TotalPages: (total + params.PageSize - 1) / params.PageSize,
		},
	})
}

func parseHostFilter(r *http.Request) (db.HostFilter, error) {
	q := r.URL.Query()
	f := db.HostFilter{
		Status:      q.Get("status"),
		OSFamily:    q.Get("os_family"),
		MinSeverity: q.Get("min_severity"),
		Search:      q.Get("search"),
		Tag:         q.Get("tag"),
	}

	if v := q.Get("has_vulnerabilities"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid has_vulnerabilities parameter: %w", err)
		}
		f.HasVulnerabilities = &b
	}
	for key, dest := range map[string]**int{"min_ports": &f.MinPorts, "max_ports": &f.MaxPorts} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, fmt.Errorf("invalid %s parameter: %w", key, err)
			}
			*dest = &n
		}
	}
	days, err := getQueryParamInt(r, "last_seen_days", 0)
	if err != nil {
		return f, fmt.Errorf("invalid last_seen_days parameter: %w", err)
	}
	f.LastSeenDays = days
	return f, nil
}

// GetHost returns one host with its ports, findings, tags and recent scans.
//
// @Summary Get host details
// @Tags Hosts
// @Produce json
// @Param id path string true "Host ID or IP address"
// @Success 200 {object} db.HostDetails
// @Failure 404 {object} ErrorResponse
// @Router /hosts/{id} [get]
func (h *HostHandler) GetHost(w http.ResponseWriter, r *http.Request) {
	details, err := h.engine.GetHostDetails(r.Context(), pathVar(r, "id"))
	if err != nil {
		handleEngineError(w, r, err, "get host", h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, details)
}

// DeleteHost removes a host and everything it owns.
//
// @Summary Delete a host
// @Tags Hosts
// @Param id path string true "Host ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /hosts/{id} [delete]
func (h *HostHandler) DeleteHost(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if err := h.engine.DeleteHost(r.Context(), id); err != nil {
		handleEngineError(w, r, err, "delete host", h.logger)
		return
	}
	h.logger.Info("Host deleted via API", "request_id", middleware.GetRequestID(r), "host_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteHosts removes several hosts. Missing ids do not stop the rest.
//
// @Summary Delete several hosts
// @Tags Hosts
// @Accept json
// @Produce json
// @Param request body DeleteHostsRequest true "Host IDs"
// @Success 200 {object} DeleteHostsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /hosts/delete [post]
func (h *HostHandler) DeleteHosts(w http.ResponseWriter, r *http.Request) {
	var req DeleteHostsRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	n, err := h.engine.DeleteHosts(r.Context(), req.IDs)
	if err != nil && n == 0 {
		handleEngineError(w, r, err, "delete hosts", h.logger)
		return
	}

	resp := DeleteHostsResponse{Requested: len(req.IDs), Deleted: n}
	for _, e := range splitJoined(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// TagHost attaches a tag to a host.
//
// @Summary Tag a host
// @Tags Hosts
// @Accept json
// @Param id path string true "Host ID"
// @Param request body TagRequest true "Tag"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /hosts/{id}/tags [post]
func (h *HostHandler) TagHost(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.engine.TagHost(r.Context(), pathVar(r, "id"), req.Tag); err != nil {
		handleEngineError(w, r, err, "tag host", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UntagHost removes a tag from a host.
//
// @Summary Remove a host tag
// @Tags Hosts
// @Param id path string true "Host ID"
// @Param tag path string true "Tag"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /hosts/{id}/tags/{tag} [delete]
func (h *HostHandler) UntagHost(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.UntagHost(r.Context(), pathVar(r, "id"), pathVar(r, "tag")); err != nil {
		handleEngineError(w, r, err, "untag host", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePort removes one port of a host. Its findings stay on the host.
//
// @Summary Delete a host port
// @Tags Hosts
// @Param id path string true "Host ID"
// @Param port_id path string true "Port ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /hosts/{id}/ports/{port_id} [delete]
func (h *HostHandler) DeletePort(w http.ResponseWriter, r *http.Request) {
	hostID, portID := pathVar(r, "id"), pathVar(r, "port_id")
	if err := h.engine.DeletePort(r.Context(), hostID, portID); err != nil {
		handleEngineError(w, r, err, "delete port", h.logger)
		return
	}
	h.logger.Info("Port deleted via API", "request_id", middleware.GetRequestID(r),
		"host_id", hostID, "port_id", portID)
	w.WriteHeader(http.StatusNoContent)
}

// ListVulnerabilities returns findings across the inventory, most severe first.
//
// @Summary List vulnerabilities
// @Tags Hosts
// @Produce json
// @Param host_id query string false "Only findings of this host"
// @Param min_severity query string false "low, medium, high or critical"
// @Param limit query int false "Maximum findings returned"
// @Success 200 {array} db.HostVulnerability
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /vulnerabilities [get]
func (h *HostHandler) ListVulnerabilities(w http.ResponseWriter, r *http.Request) {
	limit, err := getQueryParamInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit parameter: %w", err))
		return
	}
	q := r.URL.Query()
	vulns, err := h.engine.ListVulnerabilities(r.Context(), db.VulnerabilityFilter{
		HostID:      q.Get("host_id"),
		MinSeverity: q.Get("min_severity"),
		Limit:       limit,
	})
	if err != nil {
		handleEngineError(w, r, err, "list vulnerabilities", h.logger)
		return
	}
	if vulns == nil {
		vulns = []db.HostVulnerability{}
	}
	writeJSON(w, r, http.StatusOK, vulns)
}
