package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T, ids ...string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(id, nil)
	}
	for i := 1; i < len(ids); i++ {
		require.NoError(t, g.AddEdge(ids[i-1], ids[i]))
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := chain(t, "bucket", "catalog", "views")

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []string{"bucket"}, g.Parents("catalog"))
	assert.Equal(t, []string{"views"}, g.Children("catalog"))
}

func TestGraph_AddNode_ReplacesData(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", 1)
	g.AddNode("a", 2)

	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, 2, n.Data)
	assert.Equal(t, 1, g.NodeCount())
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	assert.Error(t, g.AddEdge("a", "missing"))
	assert.Error(t, g.AddEdge("missing", "a"))
	assert.ErrorContains(t, g.AddEdge("a", "a"), "self-loop")
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := chain(t, "a", "b")
	require.NoError(t, g.AddEdge("a", "b"))

	assert.Equal(t, 1, g.EdgeCount())
}

func TestGraph_Cycle(t *testing.T) {
	g := chain(t, "a", "b", "c")
	assert.Nil(t, g.FindCycle())
	require.NoError(t, g.Validate())

	require.NoError(t, g.AddEdge("c", "a"))

	path := g.FindCycle()
	require.NotEmpty(t, path)
	assert.Equal(t, path[0], path[len(path)-1], "cycle path should be closed")

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, cycleErr.Path, 4)

	_, err = g.TopologicalSort()
	assert.ErrorIs(t, err, ErrCycle)
	_, err = g.ExecutionLevels()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, nil)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "d"))
	require.NoError(t, g.AddEdge("c", "d"))

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)

	pos := map[string]int{}
	for i, n := range sorted {
		pos[n.ID] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
}

func TestGraph_ExecutionLevels(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"email", "sms", "email_joined", "sms_joined", "custom"} {
		g.AddNode(id, nil)
	}
	require.NoError(t, g.AddEdge("email", "email_joined"))
	require.NoError(t, g.AddEdge("sms", "sms_joined"))

	levels, err := g.ExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"custom", "email", "sms"},
		{"email_joined", "sms_joined"},
	}, levels)
}

func TestGraph_ExecutionLevels_Empty(t *testing.T) {
	levels, err := NewGraph().ExecutionLevels()
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := chain(t, "a", "b", "c", "d")

	assert.Equal(t, []string{"a", "b"}, g.Upstream("c"))
	assert.Equal(t, []string{"c", "d"}, g.Downstream("b"))
	assert.Empty(t, g.Upstream("a"))
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := chain(t, "a", "b")
	g.AddNode("lonely", nil)

	assert.Equal(t, []string{"a", "lonely"}, g.Roots())
	assert.Equal(t, []string{"b", "lonely"}, g.Leaves())
}

func TestGraph_Subgraph(t *testing.T) {
	g := chain(t, "a", "b", "c")

	sub := g.Subgraph([]string{"b", "c", "unknown"})
	assert.Equal(t, 2, sub.NodeCount())
	assert.Equal(t, 1, sub.EdgeCount())
	assert.Equal(t, []string{"b"}, sub.Roots())
}

func TestGraph_AddBarrier(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"s1a", "s1b", "s1c", "s2a", "s2b", "s3"} {
		g.AddNode(id, nil)
	}
	// stage 1: s1a -> s1b, s1c independent
	require.NoError(t, g.AddEdge("s1a", "s1b"))
	// stage 2: s2a -> s2b
	require.NoError(t, g.AddEdge("s2a", "s2b"))

	require.NoError(t, g.AddBarrier([]string{"s1a", "s1b", "s1c"}, []string{"s2a", "s2b"}))
	require.NoError(t, g.AddBarrier([]string{"s2a", "s2b"}, []string{"s3"}))

	assert.Equal(t, []string{"s1b", "s1c"}, g.Parents("s2a"))
	for _, id := range []string{"s1a", "s1b", "s1c", "s2a", "s2b"} {
		assert.Contains(t, g.Upstream("s3"), id)
	}

	levels, err := g.ExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, levels[len(levels)-1])
}
