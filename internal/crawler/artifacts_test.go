package crawler

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialmap/dialmap/pkg/models"
)

func TestGenerateTestCases(t *testing.T) {
	projectID := uuid.New()
	rootID := uuid.New()
	nodes := []*models.IVRNode{
		{
			ID:        rootID,
			ProjectID: projectID,
			Label:     "Main Menu",
			Content:   "Press 1 for Billing",
			Metadata:  models.NodeMetadata{Path: ""},
		},
		{
			ID:        uuid.New(),
			ProjectID: projectID,
			Label:     "Option 1",
			Content:   "You have reached Billing",
			Metadata:  models.NodeMetadata{Path: "1"},
		},
		{
			ID:           uuid.New(),
			ProjectID:    projectID,
			Label:        "Option 9",
			Content:      "Press 1 for Billing",
			IsLoop:       true,
			LinkedNodeID: &rootID,
			Metadata:     models.NodeMetadata{Path: "9"},
		},
	}

	cases := generateTestCases(nodes)
	require.Len(t, cases, 2, "loop nodes must not generate test cases")

	assert.Equal(t, "Verify Main Menu", cases[0].Name)
	assert.Equal(t, "", cases[0].DTMFPath)
	assert.Equal(t, "Press 1 for Billing", cases[0].ExpectedPrompt)

	assert.Equal(t, "Verify Option 1 via path 1", cases[1].Name)
	assert.Equal(t, "1", cases[1].DTMFPath)
	assert.Equal(t, nodes[1].ID, cases[1].NodeID)
}

func TestGenerateTestCases_NoNodes(t *testing.T) {
	assert.Empty(t, generateTestCases(nil))
}

func TestBuildGraph(t *testing.T) {
	projectID := uuid.New()
	rootID := uuid.New()
	childID := uuid.New()
	loopID := uuid.New()
	nodes := []*models.IVRNode{
		{
			ID:        rootID,
			ProjectID: projectID,
			Label:     "Main Menu",
			Metadata:  models.NodeMetadata{Path: "", Depth: 0},
		},
		{
			ID:        childID,
			ProjectID: projectID,
			ParentID:  &rootID,
			Label:     "Option 1",
			Metadata:  models.NodeMetadata{Path: "1", Depth: 1},
		},
		{
			ID:           loopID,
			ProjectID:    projectID,
			ParentID:     &childID,
			Label:        "Option 9",
			IsLoop:       true,
			LinkedNodeID: &rootID,
			Metadata:     models.NodeMetadata{Path: "19", Depth: 2},
		},
	}

	graph, loops, maxDepth := buildGraph(nodes)

	assert.Len(t, graph.Nodes, 3)
	assert.Equal(t, 1, loops)
	assert.Equal(t, 2, maxDepth)

	require.Len(t, graph.Edges, 3)
	assert.Equal(t, models.GraphEdge{From: rootID, To: childID}, graph.Edges[0])
	assert.Equal(t, models.GraphEdge{From: childID, To: loopID}, graph.Edges[1])
	assert.Equal(t, models.GraphEdge{From: loopID, To: rootID, Loop: true}, graph.Edges[2])
}

func TestBuildGraph_DepthCountsLevelsNotDigits(t *testing.T) {
	// A resumed frame carries the caller's whole input as one path element,
	// so "14321" is a depth-2 node, not depth-5.
	nodes := []*models.IVRNode{
		{ID: uuid.New(), Metadata: models.NodeMetadata{Path: "", Depth: 0}},
		{ID: uuid.New(), Metadata: models.NodeMetadata{Path: "14321", Depth: 2}},
	}

	_, _, maxDepth := buildGraph(nodes)
	assert.Equal(t, 2, maxDepth)
}

func TestBuildGraph_NoNodes(t *testing.T) {
	graph, loops, maxDepth := buildGraph(nil)
	assert.Empty(t, graph.Nodes)
	assert.Empty(t, graph.Edges)
	assert.Zero(t, loops)
	assert.Zero(t, maxDepth)
}
