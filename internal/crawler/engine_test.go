package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialmap/dialmap/internal/config"
	"github.com/dialmap/dialmap/internal/store"
	"github.com/dialmap/dialmap/internal/telephony"
	"github.com/dialmap/dialmap/pkg/models"
)

// --- mock store recording everything the engine persists ---

type mockStore struct {
	mu       sync.Mutex
	statuses []string
	nodes    []*models.IVRNode
	logs     []*models.DiscoveryLog
	cases    []*models.TestCase
}

func (m *mockStore) Ping(_ context.Context) error { return nil }
func (m *mockStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (m *mockStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (m *mockStore) CreateProject(_ context.Context, _ *models.Project) error       { return nil }
func (m *mockStore) GetProject(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.Project, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) ListProjects(_ context.Context, _ uuid.UUID) ([]*models.Project, error) {
	return nil, nil
}
func (m *mockStore) DeleteProject(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (m *mockStore) CreateDiscoveryJob(_ context.Context, _ *models.DiscoveryJob) error {
	return nil
}
func (m *mockStore) GetDiscoveryJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.DiscoveryJob, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) ListDiscoveryJobs(_ context.Context, _ uuid.UUID) ([]*models.DiscoveryJob, error) {
	return nil, nil
}
func (m *mockStore) UpdateJobStatus(_ context.Context, _ uuid.UUID, status string, _ ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}
func (m *mockStore) AppendLog(_ context.Context, entry *models.DiscoveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}
func (m *mockStore) ListLogs(_ context.Context, _ uuid.UUID) ([]*models.DiscoveryLog, error) {
	return nil, nil
}
func (m *mockStore) CreateNode(_ context.Context, node *models.IVRNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = append(m.nodes, node)
	return nil
}
func (m *mockStore) ListNodes(_ context.Context, _ uuid.UUID) ([]*models.IVRNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.IVRNode, len(m.nodes))
	copy(out, m.nodes)
	return out, nil
}
func (m *mockStore) CountNodes(_ context.Context, _ uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes), nil
}
func (m *mockStore) CreateTestCases(_ context.Context, cases []*models.TestCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases = append(m.cases, cases...)
	return nil
}
func (m *mockStore) ListTestCases(_ context.Context, _ uuid.UUID) ([]*models.TestCase, error) {
	return nil, nil
}
func (m *mockStore) GetTestCase(_ context.Context, _ uuid.UUID) (*models.TestCase, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) CreateTestRun(_ context.Context, _ *models.TestRun) error { return nil }
func (m *mockStore) ListTestRuns(_ context.Context, _ uuid.UUID) ([]*models.TestRun, error) {
	return nil, nil
}

func (m *mockStore) statusHistory() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.statuses))
	copy(out, m.statuses)
	return out
}

func (m *mockStore) lastStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[len(m.statuses)-1]
}

func (m *mockStore) nodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

var _ store.Store = (*mockStore)(nil)

// --- mock cache ---

type mockCache struct{}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *mockCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- scripted session: serves fixed transcripts keyed by the DTMF path ---

type scriptSession struct {
	prompts map[string]string
	path    []string
}

func (s *scriptSession) Dial(_ context.Context) (models.AudioResult, error) {
	s.path = nil
	return s.result()
}

func (s *scriptSession) SendDTMF(_ context.Context, digit string) (models.AudioResult, error) {
	s.path = append(s.path, digit)
	return s.result()
}

func (s *scriptSession) Hangup(_ context.Context) error { return nil }

func (s *scriptSession) result() (models.AudioResult, error) {
	key := strings.Join(s.path, "")
	prompt, ok := s.prompts[key]
	if !ok {
		return models.AudioResult{}, fmt.Errorf("no prompt scripted for path %q", key)
	}
	return models.AudioResult{Transcript: prompt, Confidence: 0.9, DurationMs: 1000}, nil
}

func scriptFactory(prompts map[string]string) telephony.Factory {
	return func(_, _ string) (models.Session, error) {
		return &scriptSession{prompts: prompts}, nil
	}
}

func newTestJob(inputType, entryPoint string) *models.DiscoveryJob {
	return &models.DiscoveryJob{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		ProjectID:  uuid.New(),
		EntryPoint: entryPoint,
		InputType:  inputType,
		Status:     models.JobStatusQueued,
	}
}

// --- Run tests ---

func TestRun_SimulatedFlowCompletes(t *testing.T) {
	st := &mockStore{}
	engine := New(st, &mockCache{}, telephony.NewFactory(config.TelephonyConfig{}), 0)

	job := newTestJob(models.InputTypeText,
		"Thank you for calling Acme. Press 1 for Billing. Press 2 for Support.")
	engine.Run(context.Background(), job)

	assert.Equal(t, []string{models.JobStatusRunning, models.JobStatusCompleted}, st.statusHistory())

	require.Len(t, st.nodes, 3)
	root := st.nodes[0]
	assert.Equal(t, models.NodeTypeMenu, root.Type)
	assert.Equal(t, "Main Menu", root.Label)
	assert.Nil(t, root.ParentID)

	// First-listed option is explored first (depth-first).
	assert.Equal(t, "Option 1", st.nodes[1].Label)
	assert.Equal(t, "Option 2", st.nodes[2].Label)
	for _, child := range st.nodes[1:] {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, root.ID, *child.ParentID)
		assert.Equal(t, models.NodeTypePrompt, child.Type)
	}

	// One test case per non-loop node.
	assert.Len(t, st.cases, 3)
}

func TestRun_DemoLineYieldsRootAndThreeChildren(t *testing.T) {
	st := &mockStore{}
	engine := New(st, &mockCache{}, telephony.NewFactory(config.TelephonyConfig{}), 0)

	job := newTestJob(models.InputTypeSimulated, "+18005550199")
	engine.Run(context.Background(), job)

	assert.Equal(t, models.JobStatusCompleted, st.lastStatus())

	require.Len(t, st.nodes, 4)
	root := st.nodes[0]
	assert.Equal(t, models.NodeTypeMenu, root.Type)
	assert.Equal(t, 0, root.Metadata.Depth)

	var digits []string
	for _, child := range st.nodes[1:] {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, root.ID, *child.ParentID)
		assert.Equal(t, 1, child.Metadata.Depth)
		assert.False(t, child.IsLoop)
		digits = append(digits, child.Metadata.Digit)
	}
	assert.Equal(t, []string{"1", "2", "0"}, digits)
}

func TestRun_DetectsLoop(t *testing.T) {
	st := &mockStore{}
	mainMenu := "Main menu. Press 1 to repeat this menu"
	engine := New(st, &mockCache{}, scriptFactory(map[string]string{
		"":  mainMenu,
		"1": mainMenu, // pressing 1 replays the same prompt
	}), 0)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	engine.Run(context.Background(), job)

	assert.Equal(t, models.JobStatusCompleted, st.lastStatus())
	require.Len(t, st.nodes, 2)

	root, loop := st.nodes[0], st.nodes[1]
	assert.False(t, root.IsLoop)
	assert.True(t, loop.IsLoop)
	require.NotNil(t, loop.LinkedNodeID)
	assert.Equal(t, root.ID, *loop.LinkedNodeID)

	// Loop nodes are excluded from test case generation.
	assert.Len(t, st.cases, 1)
}

func TestRun_PrunesBeyondMaxDepth(t *testing.T) {
	st := &mockStore{}
	engine := New(st, &mockCache{}, scriptFactory(map[string]string{
		"":   "Top. Press 1 for More",
		"1":  "Deeper. Press 2 for Even More",
		"12": "Bottom level",
	}), 1)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	engine.Run(context.Background(), job)

	assert.Equal(t, models.JobStatusCompleted, st.lastStatus())
	// The depth-2 frame is pruned before dialing.
	assert.Equal(t, 2, st.nodeCount())
}

func TestRun_SuspendsOnHumanInput(t *testing.T) {
	st := &mockStore{}
	engine := New(st, &mockCache{}, scriptFactory(map[string]string{
		"": "Please enter your 4-digit PIN",
	}), 0)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	engine.Run(context.Background(), job)

	assert.Equal(t, []string{models.JobStatusRunning, models.JobStatusWaitingForInput}, st.statusHistory())
	// The prompting node is persisted before the crawl parks.
	assert.Equal(t, 1, st.nodeCount())
	// No artifacts while suspended.
	assert.Empty(t, st.cases)
}

func TestRun_FailsOnDialError(t *testing.T) {
	st := &mockStore{}
	factory := func(_, _ string) (models.Session, error) {
		return nil, errors.New("backend exploded")
	}
	engine := New(st, &mockCache{}, factory, 0)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	engine.Run(context.Background(), job)

	assert.Equal(t, models.JobStatusFailed, st.lastStatus())

	// The cause lands in the log stream.
	st.mu.Lock()
	defer st.mu.Unlock()
	var found bool
	for _, entry := range st.logs {
		if entry.Level == models.LogLevelError && strings.Contains(entry.Message, "backend exploded") {
			found = true
		}
	}
	assert.True(t, found, "expected failure cause in log stream")
}

// --- Resume tests ---

func TestResume_ContinuesPastInputPrompt(t *testing.T) {
	st := &mockStore{}
	engine := New(st, &mockCache{}, scriptFactory(map[string]string{
		"":      "Main menu. Press 1 for Account Balance",
		"1":     "Please enter your 4-digit PIN",
		"14321": "Your balance is ten dollars. Goodbye",
	}), 0)

	// State as suspend would have left it: the input-demanding frame on top.
	state, err := encodeStack([]Frame{{Path: []string{"1"}, Depth: 1}})
	require.NoError(t, err)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	job.Status = models.JobStatusWaitingForInput
	job.ResumeState = state

	require.NoError(t, engine.Resume(context.Background(), job, "4321"))

	assert.Eventually(t, func() bool {
		return st.lastStatus() == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, st.nodeCount())
	assert.Equal(t, "Your balance is ten dollars. Goodbye", st.nodes[0].Content)
	assert.Equal(t, "14321", st.nodes[0].Metadata.Path)
}

func TestResume_RejectsNonWaitingJob(t *testing.T) {
	engine := New(&mockStore{}, &mockCache{}, scriptFactory(nil), 0)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	job.Status = models.JobStatusRunning

	err := engine.Resume(context.Background(), job, "4321")
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.JobStatusWaitingForInput)
}

func TestResume_RejectsCorruptState(t *testing.T) {
	engine := New(&mockStore{}, &mockCache{}, scriptFactory(nil), 0)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	job.Status = models.JobStatusWaitingForInput
	job.ResumeState = []byte("{not json")

	require.Error(t, engine.Resume(context.Background(), job, "4321"))
}

func TestResume_RejectsEmptyStack(t *testing.T) {
	engine := New(&mockStore{}, &mockCache{}, scriptFactory(nil), 0)

	state, err := encodeStack([]Frame{})
	require.NoError(t, err)

	job := newTestJob(models.InputTypePhone, "+18005550199")
	job.Status = models.JobStatusWaitingForInput
	job.ResumeState = state

	require.Error(t, engine.Resume(context.Background(), job, "4321"))
}

// --- defaults ---

func TestNew_DefaultMaxDepth(t *testing.T) {
	engine := New(&mockStore{}, &mockCache{}, scriptFactory(nil), 0)
	assert.Equal(t, DefaultMaxDepth, engine.maxDepth)

	engine = New(&mockStore{}, &mockCache{}, scriptFactory(nil), 3)
	assert.Equal(t, 3, engine.maxDepth)
}
