package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialmap/dialmap/internal/api"
	mw "github.com/dialmap/dialmap/internal/api/middleware"
	"github.com/dialmap/dialmap/internal/cache"
	"github.com/dialmap/dialmap/internal/store"
	"github.com/dialmap/dialmap/pkg/models"
)

// --- stub store that returns empty results (all auth fails) ---

type stubStore struct{}

func (s *stubStore) Ping(_ context.Context) error { return nil }
func (s *stubStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *stubStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateProject(_ context.Context, _ *models.Project) error       { return nil }
func (s *stubStore) GetProject(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.Project, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) ListProjects(_ context.Context, _ uuid.UUID) ([]*models.Project, error) {
	return nil, nil
}
func (s *stubStore) DeleteProject(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateDiscoveryJob(_ context.Context, _ *models.DiscoveryJob) error {
	return nil
}
func (s *stubStore) GetDiscoveryJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.DiscoveryJob, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) ListDiscoveryJobs(_ context.Context, _ uuid.UUID) ([]*models.DiscoveryJob, error) {
	return nil, nil
}
func (s *stubStore) UpdateJobStatus(_ context.Context, _ uuid.UUID, _ string, _ ...store.JobUpdateOption) error {
	return nil
}
func (s *stubStore) AppendLog(_ context.Context, _ *models.DiscoveryLog) error { return nil }
func (s *stubStore) ListLogs(_ context.Context, _ uuid.UUID) ([]*models.DiscoveryLog, error) {
	return nil, nil
}
func (s *stubStore) CreateNode(_ context.Context, _ *models.IVRNode) error { return nil }
func (s *stubStore) ListNodes(_ context.Context, _ uuid.UUID) ([]*models.IVRNode, error) {
	return nil, nil
}
func (s *stubStore) CountNodes(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }
func (s *stubStore) CreateTestCases(_ context.Context, _ []*models.TestCase) error {
	return nil
}
func (s *stubStore) ListTestCases(_ context.Context, _ uuid.UUID) ([]*models.TestCase, error) {
	return nil, nil
}
func (s *stubStore) GetTestCase(_ context.Context, _ uuid.UUID) (*models.TestCase, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) CreateTestRun(_ context.Context, _ *models.TestRun) error { return nil }
func (s *stubStore) ListTestRuns(_ context.Context, _ uuid.UUID) ([]*models.TestRun, error) {
	return nil, nil
}

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubStore{}),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	projectID := uuid.NewString()
	jobID := uuid.NewString()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/projects"},
		{"GET", "/api/v1/projects"},
		{"GET", "/api/v1/projects/" + projectID},
		{"DELETE", "/api/v1/projects/" + projectID},
		{"POST", "/api/v1/projects/" + projectID + "/discover"},
		{"GET", "/api/v1/projects/" + projectID + "/jobs"},
		{"GET", "/api/v1/projects/" + projectID + "/nodes"},
		{"GET", "/api/v1/jobs/" + jobID},
		{"POST", "/api/v1/jobs/" + jobID + "/resume"},
		{"GET", "/api/v1/jobs/" + jobID + "/logs"},
		{"GET", "/api/v1/projects/" + projectID + "/testcases"},
		{"GET", "/api/v1/projects/" + projectID + "/runs"},
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Verify stubs satisfy the interfaces they stand in for.
var _ store.Store = (*stubStore)(nil)
var _ cache.Cache = (*stubCache)(nil)
