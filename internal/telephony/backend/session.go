// Package backend implements the real telephony session by delegating to
// the external telephony backend HTTP service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dialmap/dialmap/pkg/models"
)

// Sentinel errors for telephony backend failures.
var (
	ErrBackendMisconfigured = errors.New("telephony backend misconfigured")
	ErrBackendUnreachable   = errors.New("telephony backend unreachable")
	ErrCallFailed           = errors.New("telephony call failed")
)

// Session drives one outbound call through the telephony backend. It holds
// the call id returned by /dial and forwards it on every subsequent request.
type Session struct {
	baseURL    string
	entryPoint string
	callID     string
	client     *http.Client
}

// NewSession creates a session for one call to entryPoint. The call is not
// placed until Dial.
func NewSession(baseURL, entryPoint string, timeout time.Duration) *Session {
	return &Session{
		baseURL:    baseURL,
		entryPoint: entryPoint,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Session) Dial(ctx context.Context) (models.AudioResult, error) {
	var resp dialResponse
	err := s.post(ctx, "/dial", dialRequest{Endpoint: s.entryPoint}, &resp)
	if err != nil {
		return models.AudioResult{}, fmt.Errorf("dial %s: %w", s.entryPoint, err)
	}
	s.callID = resp.CallID
	return resp.audioResult(), nil
}

func (s *Session) SendDTMF(ctx context.Context, digit string) (models.AudioResult, error) {
	if s.callID == "" {
		return models.AudioResult{}, fmt.Errorf("%w: no active call, dial first", ErrCallFailed)
	}
	var resp dialResponse
	err := s.post(ctx, "/send-dtmf", dtmfRequest{CallID: s.callID, Digit: digit}, &resp)
	if err != nil {
		return models.AudioResult{}, fmt.Errorf("send dtmf %q: %w", digit, err)
	}
	return resp.audioResult(), nil
}

// Hangup is best-effort: failures are logged, never propagated, so a dead
// call cannot fail a crawl that already has its result.
func (s *Session) Hangup(ctx context.Context) error {
	if s.callID == "" {
		return nil
	}
	var resp hangupResponse
	if err := s.post(ctx, "/hangup", hangupRequest{CallID: s.callID}, &resp); err != nil {
		slog.Warn("hangup failed", "call_id", s.callID, "error", err)
	}
	s.callID = ""
	return nil
}

func (s *Session) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s%s returned 404 — is TELEPHONY_BACKEND_URL pointing at the right service?",
			ErrBackendMisconfigured, s.baseURL, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", ErrCallFailed, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// --- backend wire types ---

type dialRequest struct {
	Endpoint string `json:"endpoint"`
}

type dtmfRequest struct {
	CallID string `json:"callId"`
	Digit  string `json:"digit"`
}

type hangupRequest struct {
	CallID string `json:"callId"`
}

type dialResponse struct {
	CallID       string  `json:"callId"`
	Transcript   string  `json:"transcript"`
	Confidence   float64 `json:"confidence"`
	AudioURL     string  `json:"audioUrl"`
	DurationMs   int     `json:"durationMs"`
	DetectedDTMF string  `json:"detectedDtmf,omitempty"`
}

func (r dialResponse) audioResult() models.AudioResult {
	return models.AudioResult{
		Transcript:   r.Transcript,
		Confidence:   r.Confidence,
		AudioURL:     r.AudioURL,
		DurationMs:   r.DurationMs,
		DetectedDTMF: r.DetectedDTMF,
	}
}

type hangupResponse struct {
	OK bool `json:"ok"`
}

// Compile-time check that Session implements models.Session.
var _ models.Session = (*Session)(nil)
