package handlers

import (
	"net/http"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/logging"
)

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	engine Engine
	logger *logging.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(engine Engine, logger *logging.Logger) *ProjectHandler {
	return &ProjectHandler{engine: engine, logger: logger.WithComponent("api.projects")}
}

// ProjectRequest creates a project.
type ProjectRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

// ListProjects returns every project.
//
// @Summary List projects
// @Tags Projects
// @Produce json
// @Success 200 {array} db.Project
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.engine.ListProjects(r.Context())
	if err != nil {
		handleEngineError(w, r, err, "list projects", h.logger)
		return
	}
	if projects == nil {
		projects = []db.Project{}
	}
	writeJSON(w, r, http.StatusOK, projects)
}

// CreateProject stores a new project.
//
// @Summary Create a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body ProjectRequest true "Project"
// @Success 201 {object} db.Project
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	project, err := h.engine.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		handleEngineError(w, r, err, "create project", h.logger)
		return
	}
	writeJSON(w, r, http.StatusCreated, project)
}
