package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dialmap/dialmap/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrMissingResumeState = errors.New("waiting_for_input requires a resume state")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	// CreateDiscoveryJob inserts the job and clears all prior nodes and test
	// cases for the project in one transaction (destructive restart).
	CreateDiscoveryJob(ctx context.Context, job *models.DiscoveryJob) error
	GetDiscoveryJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.DiscoveryJob, error)
	ListDiscoveryJobs(ctx context.Context, projectID uuid.UUID) ([]*models.DiscoveryJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error

	AppendLog(ctx context.Context, entry *models.DiscoveryLog) error
	ListLogs(ctx context.Context, jobID uuid.UUID) ([]*models.DiscoveryLog, error)

	CreateNode(ctx context.Context, node *models.IVRNode) error
	ListNodes(ctx context.Context, projectID uuid.UUID) ([]*models.IVRNode, error)
	CountNodes(ctx context.Context, projectID uuid.UUID) (int, error)

	CreateTestCases(ctx context.Context, cases []*models.TestCase) error
	ListTestCases(ctx context.Context, projectID uuid.UUID) ([]*models.TestCase, error)
	GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error)

	CreateTestRun(ctx context.Context, run *models.TestRun) error
	ListTestRuns(ctx context.Context, projectID uuid.UUID) ([]*models.TestRun, error)
}

type jobUpdateParams struct {
	Platform    *string
	WaitingFor  *string
	ResumeState []byte
	Artifacts   []byte
}

type JobUpdateOption func(*jobUpdateParams)

// WithPlatform records the detected (or assumed) IVR platform label.
func WithPlatform(platform string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Platform = &platform
	}
}

// WithWaitingFor stores the description of the input the crawl is blocked on
// together with the serialized traversal stack. Only valid when the status
// is waiting_for_input.
func WithWaitingFor(description string, resumeState []byte) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.WaitingFor = &description
		p.ResumeState = resumeState
	}
}

// WithArtifacts stores the serialized artifact bundle on completion.
func WithArtifacts(artifacts []byte) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Artifacts = artifacts
	}
}
