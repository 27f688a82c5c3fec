// Package handlers provides HTTP request handlers for the LEGION API.
// Handlers translate requests into Engine calls and engine errors into
// HTTP statuses; they hold no state of their own.
package handlers

//go:generate mockgen -destination=mocks/engine_mock.go -package=mocks . Engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/NubleX/LEGION2/internal/api/middleware"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/export"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/scanning"
	"github.com/NubleX/LEGION2/internal/stats"
)

// Engine is the command surface the handlers drive.
type Engine interface {
	StartScan(ctx context.Context, req scanning.Request) (string, error)
	CancelScan(ctx context.Context, id string) error
	CancelAllScans(ctx context.Context) int
	ScanNetworkRange(ctx context.Context, req scanning.RangeRequest) ([]string, error)
	GetScan(ctx context.Context, id string) (scanning.Job, error)
	ListScans(ctx context.Context) []scanning.Job
	GetHosts(ctx context.Context, f db.HostFilter) ([]db.Host, int, error)
	GetHostDetails(ctx context.Context, id string) (*db.HostDetails, error)
	DeleteHost(ctx context.Context, id string) error
	DeleteHosts(ctx context.Context, ids []string) (int, error)
	DeletePort(ctx context.Context, hostID, portID string) error
	ListVulnerabilities(ctx context.Context, f db.VulnerabilityFilter) ([]db.HostVulnerability, error)
	ExportHosts(ctx context.Context, w io.Writer, format export.Format, ids []string) error
	Statistics(ctx context.Context) (stats.Snapshot, error)
	TagHost(ctx context.Context, hostID, tag string) error
	UntagHost(ctx context.Context, hostID, tag string) error
	CreateProject(ctx context.Context, name, description string) (*db.Project, error)
	ListProjects(ctx context.Context) ([]db.Project, error)
	Subscribe() *events.Subscription
	Health(ctx context.Context) error
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// PaginationParams holds pagination parameters.
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// getPaginationParams extracts page and page_size query parameters.
func getPaginationParams(r *http.Request) (PaginationParams, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 50
		maxPageSize     = 1000
	)

	page, err := getQueryParamInt(r, "page", defaultPage)
	if err != nil {
		return PaginationParams{}, fmt.Errorf("invalid page parameter: %w", err)
	}
	pageSize, err := getQueryParamInt(r, "page_size", defaultPageSize)
	if err != nil {
		return PaginationParams{}, fmt.Errorf("invalid page_size parameter: %w", err)
	}

	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return PaginationParams{Page: page, PageSize: pageSize, Offset: (page - 1) * pageSize}, nil
}

func getQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	if value := r.URL.Query().Get(key); value != "" {
		return strconv.Atoi(value)
	}
	return defaultValue, nil
}

// getQueryList reads a comma-separated or repeated query parameter.
func getQueryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes an error response with an explicit status.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		response.Code = string(code)
	}
	writeJSON(w, r, statusCode, response)
}

// StatusForError maps an engine error to an HTTP status.
func StatusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidTarget, errors.CodeValidation, errors.CodeToolNotFound:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConflict, errors.CodeDatabaseConflict:
		return http.StatusConflict
	case errors.CodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleEngineError writes err with its mapped status. Server-side failures
// are logged and their detail withheld from the client.
func handleEngineError(w http.ResponseWriter, r *http.Request, err error, operation string, logger *logging.Logger) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Failed to "+operation,
			"request_id", middleware.GetRequestID(r),
			"error", err)
		if status == http.StatusInternalServerError {
			err = fmt.Errorf("failed to %s", operation)
		}
	}
	writeError(w, r, status, err)
}

// parseJSON decodes a request body strictly and validates it.
func parseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.NewScanError(errors.CodeValidation, "request body is empty")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewScanError(errors.CodeValidation,
				fmt.Sprintf("request body too large (max %d bytes)", maxErr.Limit))
		}
		return errors.WrapScanError(errors.CodeValidation, "invalid JSON", err)
	}

	if err := validate.Struct(dest); err != nil {
		return errors.WrapScanError(errors.CodeValidation, "invalid request", err)
	}
	return nil
}
