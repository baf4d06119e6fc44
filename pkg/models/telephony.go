// Package models contains shared data models used across the DialMap codebase.
package models

import "context"

// Session is the core capability interface every telephony variant must
// implement. Never construct a concrete session directly — always go
// through the telephony factory and inject this interface.
type Session interface {
	// Dial places the call (or starts the simulated flow) and returns the
	// first prompt heard.
	Dial(ctx context.Context) (AudioResult, error)
	// SendDTMF injects one touch-tone digit and returns the next prompt.
	SendDTMF(ctx context.Context, digit string) (AudioResult, error)
	// Hangup terminates the call. Best-effort; failures are logged by
	// implementations, not propagated.
	Hangup(ctx context.Context) error
}

// AudioResult is what a session reports after each dial or DTMF round-trip:
// the transcript of the prompt that played, plus capture metadata.
type AudioResult struct {
	Transcript   string  `json:"transcript"`
	Confidence   float64 `json:"confidence"`
	AudioURL     string  `json:"audio_url,omitempty"`
	DurationMs   int     `json:"duration_ms"`
	DetectedDTMF string  `json:"detected_dtmf,omitempty"`
}

// MenuOption is one navigable choice extracted from a prompt transcript.
type MenuOption struct {
	DTMF  string `json:"dtmf"`
	Label string `json:"label"`
}
