package models

import (
	"time"

	"github.com/google/uuid"
)

// Test run results.
const (
	RunResultPassed = "passed"
	RunResultFailed = "failed"
)

// TestCase is a functional test generated from one discovered IVR node:
// replay the node's DTMF path and verify the expected prompt is heard.
type TestCase struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	ProjectID      uuid.UUID `db:"project_id"      json:"project_id"`
	NodeID         uuid.UUID `db:"node_id"         json:"node_id"`
	Name           string    `db:"name"            json:"name"`
	DTMFPath       string    `db:"dtmf_path"       json:"dtmf_path"`
	ExpectedPrompt string    `db:"expected_prompt" json:"expected_prompt"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

// TestRun records one execution of a test case. Execution is currently
// simulated; Detail carries a human-readable explanation of the result.
type TestRun struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	TestCaseID uuid.UUID `db:"test_case_id" json:"test_case_id"`
	ProjectID  uuid.UUID `db:"project_id"  json:"project_id"`
	Result     string    `db:"result"      json:"result"`
	Detail     string    `db:"detail"      json:"detail"`
	DurationMs int       `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
