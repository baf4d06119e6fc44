package models

import (
	"time"

	"github.com/google/uuid"
)

// Discovery job lifecycle states. A job that is not explicitly paused must
// end in completed or failed; waiting_for_input transitions back to running
// when the caller supplies the requested value.
const (
	JobStatusQueued          = "queued"
	JobStatusRunning         = "running"
	JobStatusWaitingForInput = "waiting_for_input"
	JobStatusCompleted       = "completed"
	JobStatusFailed          = "failed"
)

// Entry point input types. Text and simulated entry points are replayed by
// the simulated telephony session; everything else goes through the real
// telephony backend.
const (
	InputTypePhone     = "phone"
	InputTypeSIP       = "sip"
	InputTypeText      = "text"
	InputTypeSimulated = "simulated"
)

// DiscoveryJob tracks one crawl of an IVR system. The API returns a job id
// on POST /api/v1/projects/{id}/discover; the client polls the job until it
// reaches a terminal status or pauses waiting for human input.
type DiscoveryJob struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	TenantID    uuid.UUID  `db:"tenant_id"    json:"tenant_id"`
	ProjectID   uuid.UUID  `db:"project_id"   json:"project_id"`
	EntryPoint  string     `db:"entry_point"  json:"entry_point"`
	InputType   string     `db:"input_type"   json:"input_type"`
	Status      string     `db:"status"       json:"status"`
	Platform    *string    `db:"platform"     json:"platform,omitempty"`
	WaitingFor  *string    `db:"waiting_for"  json:"waiting_for,omitempty"`
	ResumeState []byte     `db:"resume_state" json:"-"`
	Artifacts   []byte     `db:"artifacts"    json:"-"`
	StartedAt   *time.Time `db:"started_at"   json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// Log severities for the discovery log stream.
const (
	LogLevelInfo    = "info"
	LogLevelDebug   = "debug"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// DiscoveryLog is one append-only line in a job's log stream.
type DiscoveryLog struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	JobID     uuid.UUID `db:"job_id"     json:"job_id"`
	Level     string    `db:"level"      json:"level"`
	Message   string    `db:"message"    json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
