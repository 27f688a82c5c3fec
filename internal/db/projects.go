package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/NubleX/LEGION2/internal/errors"
)

// CreateProject stores a new project. Names are unique.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewDatabaseError(errors.CodeValidation, "project name is required")
	}

	now := s.now()
	p := &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strPtr(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (:id, :name, :description, :created_at, :updated_at)`, p)
	if err != nil {
		err = sanitizeDBError("create project", err)
		if errors.IsCode(err, errors.CodeConflict) {
			return nil, errors.NewDatabaseError(errors.CodeConflict, "project already exists: "+name)
		}
		return nil, err
	}
	return p, nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.GetContext(ctx, &p, s.db.Rebind(
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrNotFoundWithID("project", id)
	}
	if err != nil {
		return nil, sanitizeDBError("get project", err)
	}
	return &p, nil
}

// ListProjects returns every project ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	projects := []Project{}
	if err := s.db.SelectContext(ctx, &projects,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY name`); err != nil {
		return nil, sanitizeDBError("list projects", err)
	}
	return projects, nil
}

// UpdateProjectDescription replaces a project's description.
func (s *Store) UpdateProjectDescription(ctx context.Context, id, description string) (*Project, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE projects SET description = ?, updated_at = ? WHERE id = ?`),
		strPtr(description), s.now(), id)
	if err != nil {
		return nil, sanitizeDBError("update project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.ErrNotFoundWithID("project", id)
	}
	return s.GetProject(ctx, id)
}
