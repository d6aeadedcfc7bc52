package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologicalOrder(t *testing.T) {
	g, x, a, b, c := diamond(t)

	order := g.TopologicalOrder()
	require.Len(t, order, 4)

	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[x], pos[a])
	assert.Less(t, pos[x], pos[b])
	assert.Less(t, pos[a], pos[c])
	assert.Less(t, pos[b], pos[c])
}

func TestTopologicalOrderCoversLiveNodesOnce(t *testing.T) {
	g, x, _, _, _ := diamond(t)

	// Detached nodes are not part of the order.
	_, err := g.NewNode("Abs", []Output{Out(x)}, 1)
	require.NoError(t, err)

	order := g.TopologicalOrder()
	assert.Len(t, order, 4)
	seen := make(map[NodeID]int)
	for _, id := range order {
		seen[id]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "%s appeared %d times", id, count)
	}
}

func TestTopologicalOrderDeterministic(t *testing.T) {
	g, _, _, _, _ := diamond(t)
	first := g.TopologicalOrder()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, g.TopologicalOrder())
	}
}

func TestTopologicalOrderSharedResult(t *testing.T) {
	g := New()
	x := g.MustParameter("Parameter", 1)
	a, _ := g.NewNode("Abs", []Output{Out(x)}, 1)
	require.NoError(t, g.SetResults(a, a, x))

	order := g.TopologicalOrder()
	assert.Equal(t, []NodeID{x, a}, order)
}
