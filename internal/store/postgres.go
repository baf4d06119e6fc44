package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dialmap/dialmap/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, tenant_id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		project.ID, project.TenantID, project.Name, project.Description,
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, description, created_at, updated_at
		 FROM projects WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, tenantID uuid.UUID) ([]*models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, description, created_at, updated_at
		 FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project; jobs, logs, nodes, test cases, and runs
// cascade via foreign keys.
func (s *PostgresStore) DeleteProject(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM projects WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Discovery Jobs ---

// CreateDiscoveryJob inserts the job and clears all prior nodes and test
// cases for the project in one transaction. A fresh discovery is a
// destructive restart: the project's tree always starts empty.
func (s *PostgresStore) CreateDiscoveryJob(ctx context.Context, job *models.DiscoveryJob) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ivr_nodes WHERE project_id = $1`, job.ProjectID); err != nil {
		return fmt.Errorf("clear prior nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM test_cases WHERE project_id = $1`, job.ProjectID); err != nil {
		return fmt.Errorf("clear prior test cases: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO discovery_jobs (id, tenant_id, project_id, entry_point, input_type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.TenantID, job.ProjectID, job.EntryPoint, job.InputType,
		job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create discovery job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create job tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDiscoveryJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.DiscoveryJob, error) {
	var j models.DiscoveryJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, project_id, entry_point, input_type, status, platform, waiting_for,
		        resume_state, artifacts, started_at, completed_at, created_at, updated_at
		 FROM discovery_jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&j.ID, &j.TenantID, &j.ProjectID, &j.EntryPoint, &j.InputType, &j.Status, &j.Platform,
		&j.WaitingFor, &j.ResumeState, &j.Artifacts, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get discovery job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ListDiscoveryJobs(ctx context.Context, projectID uuid.UUID) ([]*models.DiscoveryJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, project_id, entry_point, input_type, status, platform, waiting_for,
		        resume_state, artifacts, started_at, completed_at, created_at, updated_at
		 FROM discovery_jobs WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list discovery jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.DiscoveryJob
	for rows.Next() {
		var j models.DiscoveryJob
		if err := rows.Scan(&j.ID, &j.TenantID, &j.ProjectID, &j.EntryPoint, &j.InputType, &j.Status,
			&j.Platform, &j.WaitingFor, &j.ResumeState, &j.Artifacts, &j.StartedAt, &j.CompletedAt,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan discovery job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// validTransitions encodes the discovery job state machine. A job never
// moves out of a terminal state.
var validTransitions = map[string][]string{
	models.JobStatusQueued:          {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning:         {models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusWaitingForInput},
	models.JobStatusWaitingForInput: {models.JobStatusRunning, models.JobStatusFailed},
}

// UpdateJobStatus validates the transition and applies it. Moving to
// waiting_for_input requires WithWaitingFor; any other target status clears
// waiting_for and resume_state so the stored stack exists iff the job is
// paused.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	if status == models.JobStatusWaitingForInput && len(params.ResumeState) == 0 {
		return ErrMissingResumeState
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM discovery_jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE discovery_jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning && currentStatus == models.JobStatusQueued {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusWaitingForInput {
		query += fmt.Sprintf(", waiting_for = $%d, resume_state = $%d", argIdx, argIdx+1)
		args = append(args, params.WaitingFor, params.ResumeState)
		argIdx += 2
	} else {
		query += ", waiting_for = NULL, resume_state = NULL"
	}
	if params.Platform != nil {
		query += fmt.Sprintf(", platform = $%d", argIdx)
		args = append(args, *params.Platform)
		argIdx++
	}
	if params.Artifacts != nil {
		query += fmt.Sprintf(", artifacts = $%d", argIdx)
		args = append(args, params.Artifacts)
		argIdx++
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// --- Discovery Logs ---

func (s *PostgresStore) AppendLog(ctx context.Context, entry *models.DiscoveryLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO discovery_logs (id, job_id, level, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.JobID, entry.Level, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, jobID uuid.UUID) ([]*models.DiscoveryLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, level, message, created_at
		 FROM discovery_logs WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.DiscoveryLog
	for rows.Next() {
		var l models.DiscoveryLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// --- IVR Nodes ---

func (s *PostgresStore) CreateNode(ctx context.Context, node *models.IVRNode) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ivr_nodes (id, project_id, parent_id, type, label, content, fingerprint,
		                        is_loop, linked_node_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		node.ID, node.ProjectID, node.ParentID, node.Type, node.Label, node.Content,
		node.Fingerprint, node.IsLoop, node.LinkedNodeID, node.Metadata, node.CreatedAt)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNodes(ctx context.Context, projectID uuid.UUID) ([]*models.IVRNode, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, parent_id, type, label, content, fingerprint,
		        is_loop, linked_node_id, metadata, created_at
		 FROM ivr_nodes WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*models.IVRNode
	for rows.Next() {
		var n models.IVRNode
		if err := rows.Scan(&n.ID, &n.ProjectID, &n.ParentID, &n.Type, &n.Label, &n.Content,
			&n.Fingerprint, &n.IsLoop, &n.LinkedNodeID, &n.Metadata, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

func (s *PostgresStore) CountNodes(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ivr_nodes WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

// --- Test Cases ---

func (s *PostgresStore) CreateTestCases(ctx context.Context, cases []*models.TestCase) error {
	if len(cases) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin test cases tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tc := range cases {
		_, err := tx.Exec(ctx,
			`INSERT INTO test_cases (id, project_id, node_id, name, dtmf_path, expected_prompt, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			tc.ID, tc.ProjectID, tc.NodeID, tc.Name, tc.DTMFPath, tc.ExpectedPrompt, tc.CreatedAt)
		if err != nil {
			return fmt.Errorf("create test case: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit test cases tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTestCases(ctx context.Context, projectID uuid.UUID) ([]*models.TestCase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, node_id, name, dtmf_path, expected_prompt, created_at
		 FROM test_cases WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.TestCase
	for rows.Next() {
		var tc models.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProjectID, &tc.NodeID, &tc.Name, &tc.DTMFPath,
			&tc.ExpectedPrompt, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		cases = append(cases, &tc)
	}
	return cases, rows.Err()
}

func (s *PostgresStore) GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error) {
	var tc models.TestCase
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, node_id, name, dtmf_path, expected_prompt, created_at
		 FROM test_cases WHERE id = $1`, id,
	).Scan(&tc.ID, &tc.ProjectID, &tc.NodeID, &tc.Name, &tc.DTMFPath, &tc.ExpectedPrompt, &tc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test case: %w", err)
	}
	return &tc, nil
}

// --- Test Runs ---

func (s *PostgresStore) CreateTestRun(ctx context.Context, run *models.TestRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO test_runs (id, test_case_id, project_id, result, detail, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.TestCaseID, run.ProjectID, run.Result, run.Detail, run.DurationMs, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create test run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTestRuns(ctx context.Context, projectID uuid.UUID) ([]*models.TestRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, test_case_id, project_id, result, detail, duration_ms, created_at
		 FROM test_runs WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list test runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TestRun
	for rows.Next() {
		var r models.TestRun
		if err := rows.Scan(&r.ID, &r.TestCaseID, &r.ProjectID, &r.Result, &r.Detail,
			&r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
