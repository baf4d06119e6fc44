// Package crawler implements the IVR discovery engine: an iterative
// depth-first traversal that replays call paths, fingerprints prompts,
// detects loops, persists the discovered tree, and suspends when a node
// demands free-form human input.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dialmap/dialmap/internal/cache"
	"github.com/dialmap/dialmap/internal/fingerprint"
	"github.com/dialmap/dialmap/internal/menu"
	"github.com/dialmap/dialmap/internal/store"
	"github.com/dialmap/dialmap/internal/telephony"
	"github.com/dialmap/dialmap/pkg/models"
)

// DefaultMaxDepth bounds how many DTMF digits deep a crawl will explore.
const DefaultMaxDepth = 5

const jobStatusTTL = 30 * time.Minute

// waitingForInput is the description stored on a paused job.
const waitingForInput = "PIN/ID"

// Engine drives discovery jobs. One engine serves all jobs; each Run or
// Resume invocation owns its own stack and visited-fingerprint map, so
// distinct jobs may crawl concurrently without interacting.
type Engine struct {
	store    store.Store
	cache    cache.Cache
	sessions telephony.Factory
	maxDepth int
}

// New creates an Engine. maxDepth <= 0 selects DefaultMaxDepth.
func New(st store.Store, ca cache.Cache, sessions telephony.Factory, maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{store: st, cache: ca, sessions: sessions, maxDepth: maxDepth}
}

// Run executes a fresh traversal for a queued job. It blocks until the job
// reaches completed, failed, or waiting_for_input; callers that want
// fire-and-forget semantics run it in a goroutine.
func (e *Engine) Run(ctx context.Context, job *models.DiscoveryJob) {
	defer e.recoverPanic(ctx, job)

	e.setStatus(ctx, job.ID, models.JobStatusRunning)
	e.log(ctx, job.ID, models.LogLevelInfo,
		fmt.Sprintf("discovery started for %s", job.EntryPoint))

	stack := []Frame{{Path: []string{}, Depth: 0}}
	e.crawlAndFinish(ctx, job, stack)
}

// Resume continues a job paused in waiting_for_input. The supplied input is
// appended to the top frame's path before re-entering the crawl loop, so
// the retried frame replays past the prompt that demanded it.
func (e *Engine) Resume(ctx context.Context, job *models.DiscoveryJob, input string) error {
	if job.Status != models.JobStatusWaitingForInput {
		return fmt.Errorf("job %s is %s, not %s", job.ID, job.Status, models.JobStatusWaitingForInput)
	}

	stack, err := decodeStack(job.ResumeState)
	if err != nil {
		return err
	}
	top := &stack[len(stack)-1]
	top.Path = append(top.Path, input)

	e.setStatus(ctx, job.ID, models.JobStatusRunning)
	e.log(ctx, job.ID, models.LogLevelInfo, "discovery resumed with caller input")

	go func() {
		defer e.recoverPanic(context.Background(), job)
		e.crawlAndFinish(context.Background(), job, stack)
	}()
	return nil
}

// crawlAndFinish runs the traversal loop and drives the job to its next
// status: completed on an empty stack, failed on any error, or
// waiting_for_input when the loop suspends (in which case crawl has already
// persisted the paused state).
func (e *Engine) crawlAndFinish(ctx context.Context, job *models.DiscoveryJob, stack []Frame) {
	start := time.Now()
	platform, suspended, err := e.crawl(ctx, job, stack)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}
	if suspended {
		return
	}

	if err := e.generateArtifacts(ctx, job, platform, start); err != nil {
		e.fail(ctx, job, err)
		return
	}
	e.log(ctx, job.ID, models.LogLevelInfo, "discovery completed")
}

// crawl is the main loop: iterative depth-first search over an explicit
// frame stack. Returns the detected platform label, whether the traversal
// suspended for human input, and any fatal error. There is no per-node
// retry; a single bad frame aborts the whole job.
func (e *Engine) crawl(ctx context.Context, job *models.DiscoveryJob, stack []Frame) (string, bool, error) {
	visited := map[string]uuid.UUID{}
	platform := PlatformUnknown

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.Depth > e.maxDepth {
			e.log(ctx, job.ID, models.LogLevelDebug,
				fmt.Sprintf("max depth %d exceeded at path %q, pruning", e.maxDepth, pathString(fr.Path)))
			continue
		}

		// Fresh call per frame: the engine re-dials from the root and
		// replays the whole path rather than keeping calls alive.
		session, err := e.sessions(job.EntryPoint, job.InputType)
		if err != nil {
			return platform, false, err
		}

		result, err := session.Dial(ctx)
		if err != nil {
			return platform, false, err
		}
		if platform == PlatformUnknown {
			platform = DetectPlatform(result.Transcript)
		}
		for _, digit := range fr.Path {
			result, err = session.SendDTMF(ctx, digit)
			if err != nil {
				return platform, false, err
			}
		}

		fp := fingerprint.Fingerprint(result.Transcript)
		linkedID, isLoop := visited[fp]

		node := e.buildNode(job, fr, result, fp)
		if isLoop {
			node.IsLoop = true
			node.LinkedNodeID = &linkedID
		}
		if err := e.store.CreateNode(ctx, node); err != nil {
			return platform, false, err
		}

		if isLoop {
			e.log(ctx, job.ID, models.LogLevelInfo,
				fmt.Sprintf("loop detected at path %q, branch abandoned", pathString(fr.Path)))
			session.Hangup(ctx)
			continue
		}
		visited[fp] = node.ID

		options := menu.ExtractOptions(result.Transcript)
		switch {
		case len(options) > 0:
			// Reverse push so the first-listed option is popped first,
			// preserving depth-first order on a LIFO stack.
			for i := len(options) - 1; i >= 0; i-- {
				childPath := make([]string, len(fr.Path), len(fr.Path)+1)
				copy(childPath, fr.Path)
				childPath = append(childPath, options[i].DTMF)
				stack = append(stack, Frame{
					Path:     childPath,
					ParentID: &node.ID,
					Depth:    fr.Depth + 1,
				})
			}
			session.Hangup(ctx)

		case menu.NeedsHumanInput(result.Transcript):
			// Push the current frame back unchanged so it is retried once
			// the caller supplies the value, then suspend the whole crawl.
			stack = append(stack, fr)
			session.Hangup(ctx)
			if err := e.suspend(ctx, job, stack); err != nil {
				return platform, false, err
			}
			return platform, true, nil

		default:
			e.log(ctx, job.ID, models.LogLevelDebug,
				fmt.Sprintf("leaf node at path %q", pathString(fr.Path)))
			session.Hangup(ctx)
		}
	}

	return platform, false, nil
}

// buildNode assembles the persisted record for one visited menu state.
func (e *Engine) buildNode(job *models.DiscoveryJob, fr Frame, result models.AudioResult, fp string) *models.IVRNode {
	nodeType := models.NodeTypePrompt
	label := "Option " + lastDigit(fr.Path)
	if fr.Depth == 0 {
		nodeType = models.NodeTypeMenu
		label = "Main Menu"
	}
	return &models.IVRNode{
		ID:          uuid.New(),
		ProjectID:   job.ProjectID,
		ParentID:    fr.ParentID,
		Type:        nodeType,
		Label:       label,
		Content:     result.Transcript,
		Fingerprint: fp,
		Metadata: models.NodeMetadata{
			Path:       pathString(fr.Path),
			Digit:      lastDigit(fr.Path),
			Depth:      fr.Depth,
			Confidence: result.Confidence,
			AudioURL:   result.AudioURL,
			DurationMs: result.DurationMs,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// suspend persists the pending frontier and parks the job until resume.
func (e *Engine) suspend(ctx context.Context, job *models.DiscoveryJob, stack []Frame) error {
	state, err := encodeStack(stack)
	if err != nil {
		return err
	}
	if err := e.store.UpdateJobStatus(ctx, job.ID, models.JobStatusWaitingForInput,
		store.WithWaitingFor(waitingForInput, state)); err != nil {
		return fmt.Errorf("mark job waiting: %w", err)
	}
	_ = e.cache.SetJobStatus(ctx, job.ID, models.JobStatusWaitingForInput, jobStatusTTL)
	e.log(ctx, job.ID, models.LogLevelInfo,
		"node requires caller input ("+waitingForInput+"), discovery paused")
	return nil
}

// fail marks the job terminally failed. The log stream is the failure
// reporting channel; the job record carries only status and platform.
func (e *Engine) fail(ctx context.Context, job *models.DiscoveryJob, cause error) {
	e.log(ctx, job.ID, models.LogLevelError, cause.Error())
	if err := e.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
		store.WithPlatform(PlatformUnknown)); err != nil {
		slog.Error("mark job failed", "job_id", job.ID, "error", err)
	}
	_ = e.cache.SetJobStatus(ctx, job.ID, models.JobStatusFailed, jobStatusTTL)
}

func (e *Engine) setStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if err := e.store.UpdateJobStatus(ctx, jobID, status); err != nil {
		slog.Error("update job status", "job_id", jobID, "status", status, "error", err)
	}
	_ = e.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL)
}

// recoverPanic converts a panic anywhere in the traversal into a failed job,
// so no job is ever silently left running.
func (e *Engine) recoverPanic(ctx context.Context, job *models.DiscoveryJob) {
	if r := recover(); r != nil {
		slog.Error("panic in discovery crawl", "job_id", job.ID, "error", r)
		e.fail(ctx, job, fmt.Errorf("panic: %v", r))
	}
}

// log appends to the job's durable log stream and mirrors to slog.
func (e *Engine) log(ctx context.Context, jobID uuid.UUID, level, message string) {
	entry := &models.DiscoveryLog{
		ID:        uuid.New(),
		JobID:     jobID,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AppendLog(ctx, entry); err != nil {
		slog.Error("append discovery log", "job_id", jobID, "error", err)
	}
	slog.Log(ctx, slogLevel(level), message, "job_id", jobID)
}

func slogLevel(level string) slog.Level {
	switch level {
	case models.LogLevelDebug:
		return slog.LevelDebug
	case models.LogLevelWarning:
		return slog.LevelWarn
	case models.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func pathString(path []string) string {
	return strings.Join(path, "")
}

func lastDigit(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
