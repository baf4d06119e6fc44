package models

import (
	"time"

	"github.com/google/uuid"
)

// IVR node types.
const (
	NodeTypeMenu   = "menu"
	NodeTypePrompt = "prompt"
	NodeTypeInput  = "input"
)

// IVRNode is one discovered state in an IVR call tree. Nodes form a rooted
// tree per project via ParentID. LinkedNodeID is a back-edge set only when
// IsLoop is true; it points at the earlier node with the same fingerprint
// and is never traversed as a tree edge.
type IVRNode struct {
	ID           uuid.UUID    `db:"id"             json:"id"`
	ProjectID    uuid.UUID    `db:"project_id"     json:"project_id"`
	ParentID     *uuid.UUID   `db:"parent_id"      json:"parent_id,omitempty"`
	Type         string       `db:"type"           json:"type"`
	Label        string       `db:"label"          json:"label"`
	Content      string       `db:"content"        json:"content"`
	Fingerprint  string       `db:"fingerprint"    json:"fingerprint"`
	IsLoop       bool         `db:"is_loop"        json:"is_loop"`
	LinkedNodeID *uuid.UUID   `db:"linked_node_id" json:"linked_node_id,omitempty"`
	Metadata     NodeMetadata `db:"metadata"       json:"metadata"`
	CreatedAt    time.Time    `db:"created_at"     json:"created_at"`
}

// NodeMetadata is the free-form bag recorded alongside each node. Stored as
// JSONB; fields mirror what the telephony session reports for the prompt.
type NodeMetadata struct {
	Path       string  `json:"path"`
	Digit      string  `json:"digit,omitempty"`
	Depth      int     `json:"depth"`
	Confidence float64 `json:"confidence"`
	AudioURL   string  `json:"audio_url,omitempty"`
	DurationMs int     `json:"duration_ms"`
}
