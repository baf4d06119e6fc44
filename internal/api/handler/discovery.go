package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/dialmap/dialmap/internal/api/middleware"
	"github.com/dialmap/dialmap/internal/api/response"
	"github.com/dialmap/dialmap/internal/cache"
	"github.com/dialmap/dialmap/internal/store"
	"github.com/dialmap/dialmap/pkg/models"
)

// DiscoveryEngine is the interface the handlers depend on for running and
// resuming crawls.
type DiscoveryEngine interface {
	Run(ctx context.Context, job *models.DiscoveryJob)
	Resume(ctx context.Context, job *models.DiscoveryJob, input string) error
}

var validInputTypes = map[string]bool{
	"":                        true,
	models.InputTypePhone:     true,
	models.InputTypeSIP:       true,
	models.InputTypeText:      true,
	models.InputTypeSimulated: true,
}

// NewDiscoverHandler returns the handler for
// POST /api/v1/projects/{projectID}/discover. The crawl runs in the
// background; the queued job is returned immediately for polling.
func NewDiscoverHandler(st store.Store, engine DiscoveryEngine) http.HandlerFunc {
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

		var req struct {
			EntryPoint string `json:"entry_point"`
			InputType  string `json:"input_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.EntryPoint) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "entry_point is required", nil)
			return
		}
		if !validInputTypes[req.InputType] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"input_type must be one of phone, sip, text, simulated", nil)
			return
		}

		if _, err := st.GetProject(r.Context(), projectID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project", nil)
			return
		}

		now := time.Now().UTC()
		job := &models.DiscoveryJob{
			ID:         uuid.New(),
			TenantID:   tenantID,
			ProjectID:  projectID,
			EntryPoint: req.EntryPoint,
			InputType:  req.InputType,
			Status:     models.JobStatusQueued,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := st.CreateDiscoveryJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create discovery job", nil)
			return
		}

		go engine.Run(context.Background(), job)

		response.Accepted(w, job)
	}
}

// jobResponse augments the stored job with its decoded artifact bundle.
type jobResponse struct {
	*models.DiscoveryJob
	Artifacts json.RawMessage `json:"artifacts,omitempty"`
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}. The
// cached status, when present, overrides the stored one so hot polling sees
// transitions as soon as the engine publishes them.
func NewGetJobHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		job, err := st.GetDiscoveryJob(r.Context(), jobID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get job", nil)
			return
		}

		if status, found, err := ca.GetJobStatus(r.Context(), job.ID); err == nil && found {
			job.Status = status
		}

		response.JSON(w, jobResponse{DiscoveryJob: job, Artifacts: job.Artifacts})
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/projects/{projectID}/jobs.
func NewListJobsHandler(st store.Store) http.HandlerFunc {
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

		if _, err := st.GetProject(r.Context(), projectID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project", nil)
			return
		}

		jobs, err := st.ListDiscoveryJobs(r.Context(), projectID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.DiscoveryJob{}
		}
		response.JSON(w, jobs)
	}
}

// NewResumeJobHandler returns the handler for POST /api/v1/jobs/{jobID}/resume.
// Only valid while the job is waiting_for_input.
func NewResumeJobHandler(st store.Store, engine DiscoveryEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Input == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "input is required", nil)
			return
		}

		job, err := st.GetDiscoveryJob(r.Context(), jobID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get job", nil)
			return
		}

		if job.Status != models.JobStatusWaitingForInput {
			response.Error(w, http.StatusConflict, "JOB_NOT_WAITING",
				"Job is not waiting for input", map[string]string{"status": job.Status})
			return
		}

		if err := engine.Resume(context.Background(), job, req.Input); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resume job", nil)
			return
		}

		response.Accepted(w, map[string]any{
			"id":     job.ID,
			"status": models.JobStatusRunning,
		})
	}
}

// NewListJobLogsHandler returns the handler for GET /api/v1/jobs/{jobID}/logs.
func NewListJobLogsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		if _, err := st.GetDiscoveryJob(r.Context(), jobID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get job", nil)
			return
		}

		logs, err := st.ListLogs(r.Context(), jobID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list logs", nil)
			return
		}
		if logs == nil {
			logs = []*models.DiscoveryLog{}
		}
		response.JSON(w, logs)
	}
}

// NewListNodesHandler returns the handler for
// GET /api/v1/projects/{projectID}/nodes. Nodes appear incrementally while
// a crawl is in progress; readers see a partially-populated tree.
func NewListNodesHandler(st store.Store) http.HandlerFunc {
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

		if _, err := st.GetProject(r.Context(), projectID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load project", nil)
			return
		}

		nodes, err := st.ListNodes(r.Context(), projectID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list nodes", nil)
			return
		}
		if nodes == nil {
			nodes = []*models.IVRNode{}
		}
		response.JSON(w, nodes)
	}
}
