package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dialmap/dialmap/internal/cache"
	"github.com/dialmap/dialmap/internal/store"
	"github.com/dialmap/dialmap/pkg/models"
)

// generateArtifacts runs after a traversal drains its stack: it exports the
// discovered graph, summarizes traversal metrics, generates one test case
// per non-loop node, and marks the job completed with the bundle attached.
func (e *Engine) generateArtifacts(ctx context.Context, job *models.DiscoveryJob, platform string, started time.Time) error {
	nodes, err := e.store.ListNodes(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("load nodes for artifacts: %w", err)
	}

	graph, loops, maxDepth := buildGraph(nodes)

	cases := generateTestCases(nodes)
	if err := e.store.CreateTestCases(ctx, cases); err != nil {
		return fmt.Errorf("store generated test cases: %w", err)
	}

	durationMs := time.Since(started).Milliseconds()
	if job.StartedAt != nil {
		durationMs = time.Since(*job.StartedAt).Milliseconds()
	}

	bundle := models.Artifacts{
		Graph: graph,
		Report: models.Report{
			JobID:           job.ID,
			EntryPoint:      job.EntryPoint,
			Platform:        platform,
			NodesDiscovered: len(nodes) - loops,
			LoopsDetected:   loops,
			MaxDepthReached: maxDepth,
			TotalNodes:      len(nodes),
			DurationMs:      durationMs,
		},
		TestCases: len(cases),
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}

	if err := e.store.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted,
		store.WithPlatform(platform), store.WithArtifacts(payload)); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	_ = e.cache.SetJobStatus(ctx, job.ID, models.JobStatusCompleted, jobStatusTTL)
	_ = e.cache.Set(ctx, cache.ArtifactsKey(job.ID), payload, jobStatusTTL)

	e.log(ctx, job.ID, models.LogLevelInfo, fmt.Sprintf(
		"artifacts generated: %d nodes, %d loops, %d test cases",
		len(nodes), loops, len(cases)))
	return nil
}

// buildGraph assembles the exportable graph: one edge per parent-child link,
// plus a loop-marked back-edge from each loop node to the node it duplicates.
// Also returns the loop count and the deepest path length seen.
func buildGraph(nodes []*models.IVRNode) (models.GraphExport, int, int) {
	graph := models.GraphExport{
		Nodes: make([]models.IVRNode, 0, len(nodes)),
		Edges: []models.GraphEdge{},
	}
	loops := 0
	maxDepth := 0
	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, *n)
		if n.ParentID != nil {
			graph.Edges = append(graph.Edges, models.GraphEdge{From: *n.ParentID, To: n.ID})
		}
		if n.IsLoop {
			loops++
			if n.LinkedNodeID != nil {
				graph.Edges = append(graph.Edges, models.GraphEdge{From: n.ID, To: *n.LinkedNodeID, Loop: true})
			}
		}
		// Depth counts tree levels, not path characters: a resumed frame
		// may carry a multi-digit input as one path element.
		if n.Metadata.Depth > maxDepth {
			maxDepth = n.Metadata.Depth
		}
	}
	return graph, loops, maxDepth
}

// generateTestCases maps each non-loop node to one functional test: replay
// the node's DTMF path and expect its recorded prompt. Loop nodes are
// skipped — their linked original already produces the same test.
func generateTestCases(nodes []*models.IVRNode) []*models.TestCase {
	cases := make([]*models.TestCase, 0, len(nodes))
	for _, n := range nodes {
		if n.IsLoop {
			continue
		}
		name := fmt.Sprintf("Verify %s", n.Label)
		if n.Metadata.Path != "" {
			name = fmt.Sprintf("Verify %s via path %s", n.Label, n.Metadata.Path)
		}
		cases = append(cases, &models.TestCase{
			ID:             uuid.New(),
			ProjectID:      n.ProjectID,
			NodeID:         n.ID,
			Name:           name,
			DTMFPath:       n.Metadata.Path,
			ExpectedPrompt: n.Content,
			CreatedAt:      time.Now().UTC(),
		})
	}
	return cases
}
