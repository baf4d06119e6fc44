package models

import "github.com/google/uuid"

// Artifacts is the bundle produced when a discovery job completes. It is
// stored on the job as JSONB and returned verbatim to API clients.
type Artifacts struct {
	Graph     GraphExport `json:"graph"`
	Report    Report      `json:"report"`
	TestCases int         `json:"test_cases"`
}

// GraphExport serializes the discovered tree: one edge per parent-child
// link, plus one loop-marked back-edge per loop node.
type GraphExport struct {
	Nodes []IVRNode   `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphEdge is one directed edge in the graph export. Loop marks back-edges
// from a loop node to the earlier node it duplicates.
type GraphEdge struct {
	From uuid.UUID `json:"from"`
	To   uuid.UUID `json:"to"`
	Loop bool      `json:"loop,omitempty"`
}

// Report summarizes a completed traversal.
type Report struct {
	JobID           uuid.UUID `json:"job_id"`
	EntryPoint      string    `json:"entry_point"`
	Platform        string    `json:"platform"`
	NodesDiscovered int       `json:"nodes_discovered"`
	LoopsDetected   int       `json:"loops_detected"`
	MaxDepthReached int       `json:"max_depth_reached"`
	TotalNodes      int       `json:"total_nodes"`
	DurationMs      int64     `json:"duration_ms"`
}
