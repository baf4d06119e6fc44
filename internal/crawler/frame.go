package crawler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Frame is one unit of pending traversal work: the DTMF path that reaches a
// menu state from the root, plus its tree position. The DFS frontier is a
// plain slice of frames rather than call-stack recursion so the entire
// pending state can be serialized when a crawl suspends and rehydrated
// verbatim on resume.
type Frame struct {
	Path     []string   `json:"path"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Depth    int        `json:"depth"`
}

// encodeStack serializes the pending frontier for storage on the job.
func encodeStack(stack []Frame) ([]byte, error) {
	data, err := json.Marshal(stack)
	if err != nil {
		return nil, fmt.Errorf("encode traversal stack: %w", err)
	}
	return data, nil
}

// decodeStack rehydrates a frontier previously stored by encodeStack.
func decodeStack(data []byte) ([]Frame, error) {
	var stack []Frame
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("decode traversal stack: %w", err)
	}
	if len(stack) == 0 {
		return nil, fmt.Errorf("decode traversal stack: stack is empty")
	}
	return stack, nil
}
