// Package handler contains the HTTP handlers for the DialMap API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/dialmap/dialmap/internal/api/middleware"
	"github.com/dialmap/dialmap/internal/api/response"
	"github.com/dialmap/dialmap/internal/store"
	"github.com/dialmap/dialmap/pkg/models"
)

// NewCreateProjectHandler returns the handler for POST /api/v1/projects.
func NewCreateProjectHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		now := time.Now().UTC()
		project := &models.Project{
			ID:          uuid.New(),
			TenantID:    tenantID,
			Name:        req.Name,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.CreateProject(r.Context(), project); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create project", nil)
			return
		}

		response.Created(w, project)
	}
}

// NewListProjectsHandler returns the handler for GET /api/v1/projects.
func NewListProjectsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		projects, err := st.ListProjects(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects", nil)
			return
		}
		if projects == nil {
			projects = []*models.Project{}
		}
		response.JSON(w, projects)
	}
}

// NewGetProjectHandler returns the handler for GET /api/v1/projects/{projectID}.
func NewGetProjectHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectID must be a UUID", nil)
			return
		}

		project, err := st.GetProject(r.Context(), projectID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get project", nil)
			return
		}
		response.JSON(w, project)
	}
}

// NewDeleteProjectHandler returns the handler for DELETE /api/v1/projects/{projectID}.
// Jobs, logs, nodes, test cases, and runs are cascade-deleted.
func NewDeleteProjectHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "projectID must be a UUID", nil)
			return
		}

		err = st.DeleteProject(r.Context(), projectID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete project", nil)
			return
		}
		response.NoContent(w)
	}
}
