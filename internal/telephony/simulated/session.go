// Package simulated implements a telephony session that replays a canned
// flow instead of placing a call. It lets demo and test runs share the exact
// traversal code path used for production calling.
package simulated

import (
	"context"
	"fmt"

	"github.com/dialmap/dialmap/internal/menu"
	"github.com/dialmap/dialmap/pkg/models"
)

const invalidOptionPrompt = "Sorry, that is not a valid option. Goodbye."

// flowNode is one state in the simulated call tree.
type flowNode struct {
	prompt   string
	children map[string]*flowNode
}

// Flow is one node of a curated call flow: a prompt plus the prompts
// reachable from it, keyed by DTMF digit.
type Flow struct {
	Prompt   string
	Children map[string]Flow
}

// Catalog maps dialable entry points to curated flows. Entry points not in
// the catalog fall back to parsing the entry point text itself.
type Catalog map[string]Flow

// DefaultCatalog returns the built-in demo flows. Each call returns a fresh
// value so callers cannot mutate shared state.
func DefaultCatalog() Catalog {
	return Catalog{
		"+18005550199": {
			Prompt: "Thank you for calling the DialMap demo line. " +
				"Press 1 for Billing, press 2 for Support, press 0 for an agent.",
			Children: map[string]Flow{
				"1": {Prompt: "You have reached Billing. A specialist will assist you shortly."},
				"2": {Prompt: "You have reached Support. A specialist will assist you shortly."},
				"0": {Prompt: "Connecting you to the next available agent. Goodbye."},
			},
		},
	}
}

// Session replays a flow tree resolved from the entry point. State is just
// the current position in the tree.
type Session struct {
	root    *flowNode
	current *flowNode
}

// NewSession builds a session for the given entry point. Entry points found
// in the catalog replay their curated flow. Otherwise the flow is parsed
// from the entry point text: "Press N for X" phrasing becomes a root menu
// with one synthesized leaf per option, and anything else becomes a
// single-node flow wrapping the raw text.
func NewSession(entryPoint string, catalog Catalog) *Session {
	if flow, ok := catalog[entryPoint]; ok {
		return &Session{root: buildFlow(flow)}
	}
	return &Session{root: parseFlow(entryPoint)}
}

func buildFlow(f Flow) *flowNode {
	node := &flowNode{prompt: f.Prompt, children: map[string]*flowNode{}}
	for digit, child := range f.Children {
		node.children[digit] = buildFlow(child)
	}
	return node
}

func (s *Session) Dial(_ context.Context) (models.AudioResult, error) {
	s.current = s.root
	return s.result(), nil
}

func (s *Session) SendDTMF(_ context.Context, digit string) (models.AudioResult, error) {
	if s.current == nil {
		return models.AudioResult{}, fmt.Errorf("simulated session: dial before sending dtmf")
	}
	child, ok := s.current.children[digit]
	if !ok {
		child = &flowNode{prompt: invalidOptionPrompt}
	}
	s.current = child
	return s.result(), nil
}

func (s *Session) Hangup(_ context.Context) error {
	s.current = nil
	return nil
}

// result synthesizes deterministic capture metadata for the current prompt.
func (s *Session) result() models.AudioResult {
	return models.AudioResult{
		Transcript: s.current.prompt,
		Confidence: 0.92,
		DurationMs: 800 + 60*len(s.current.prompt)/10,
	}
}

// parseFlow derives a flow tree from pasted transcript text. Each extracted
// menu option gets a terminal child prompt; the child wording deliberately
// avoids menu and input phrasing so simulated branches end after one hop.
func parseFlow(text string) *flowNode {
	root := &flowNode{prompt: text, children: map[string]*flowNode{}}
	for _, opt := range menu.ExtractOptions(text) {
		root.children[opt.DTMF] = &flowNode{
			prompt: fmt.Sprintf("You selected %s. Please hold while we connect you.", opt.Label),
		}
	}
	return root
}

// Compile-time check that Session implements models.Session.
var _ models.Session = (*Session)(nil)
