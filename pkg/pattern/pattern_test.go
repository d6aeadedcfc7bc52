package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yding10/openvino/pkg/graph"
)

// buildGraph returns c = Sub(Add(x, y), Mul(x, y)) with c as result.
func buildGraph(t *testing.T) (*graph.Graph, graph.NodeID, graph.NodeID, graph.NodeID, graph.NodeID, graph.NodeID) {
	t.Helper()
	g := graph.New()
	x := g.MustParameter("Parameter", 1)
	y := g.MustParameter("Parameter", 1)
	a, err := g.NewNode("Add", []graph.Output{graph.Out(x), graph.Out(y)}, 1)
	require.NoError(t, err)
	b, err := g.NewNode("Mul", []graph.Output{graph.Out(x), graph.Out(y)}, 1)
	require.NoError(t, err)
	c, err := g.NewNode("Sub", []graph.Output{graph.Out(a), graph.Out(b)}, 1)
	require.NoError(t, err)
	require.NoError(t, g.SetResults(c))
	return g, x, y, a, b, c
}

func TestWildcardMatchesAnything(t *testing.T) {
	g, x, _, a, _, c := buildGraph(t)

	tpl := Any("n")
	for _, id := range []graph.NodeID{x, a, c} {
		b, ok := Match(g, tpl, id)
		require.True(t, ok)
		assert.Equal(t, id, b.Root())
		assert.Equal(t, id, b.MustNode("n"))
	}
}

func TestTypedMatch(t *testing.T) {
	g, x, y, a, b, c := buildGraph(t)

	tpl := KindAs("sub", "Sub",
		KindAs("add", "Add", Any("x1"), Any("y1")),
		KindAs("mul", "Mul", Any("x2"), Any("y2")),
	)
	bind, ok := Match(g, tpl, c)
	require.True(t, ok)
	assert.Equal(t, c, bind.MustNode("sub"))
	assert.Equal(t, a, bind.MustNode("add"))
	assert.Equal(t, b, bind.MustNode("mul"))
	assert.Equal(t, x, bind.MustNode("x1"))
	assert.Equal(t, y, bind.MustNode("y1"))
	assert.Equal(t, x, bind.MustNode("x2"))
	assert.Equal(t, y, bind.MustNode("y2"))
}

func TestMatchFailures(t *testing.T) {
	g, x, _, a, _, c := buildGraph(t)

	t.Run("kind mismatch", func(t *testing.T) {
		_, ok := Match(g, Kind("Mul", Any(""), Any("")), a)
		assert.False(t, ok)
	})

	t.Run("input count mismatch", func(t *testing.T) {
		_, ok := Match(g, Kind("Add", Any("only")), a)
		assert.False(t, ok)
		_, ok = Match(g, Kind("Parameter", Any("x")), x)
		assert.False(t, ok)
	})

	t.Run("child mismatch short-circuits", func(t *testing.T) {
		calls := 0
		counting := Pred("", func(n *graph.Node) bool {
			calls++
			return false
		})
		_, ok := Match(g, Kind("Sub", counting, counting), c)
		assert.False(t, ok)
		assert.Equal(t, 1, calls)
	})

	t.Run("absent node", func(t *testing.T) {
		_, ok := Match(g, Any("n"), "ghost")
		assert.False(t, ok)
	})
}

func TestPredTemplate(t *testing.T) {
	g, _, _, a, b, _ := buildGraph(t)

	binary := Pred("op", func(n *graph.Node) bool {
		return n.Kind == "Add" || n.Kind == "Mul"
	}, Any(""), Any(""))

	ba, ok := Match(g, binary, a)
	require.True(t, ok)
	assert.Equal(t, a, ba.MustNode("op"))

	bb, ok := Match(g, binary, b)
	require.True(t, ok)
	assert.Equal(t, b, bb.MustNode("op"))
}

func TestMatchDeterministic(t *testing.T) {
	g, _, _, _, _, c := buildGraph(t)
	tpl := Kind("Sub", KindAs("a", "Add", Any("x"), Any("y")), Any("b"))

	first, ok := Match(g, tpl, c)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := Match(g, tpl, c)
		require.True(t, ok)
		assert.Equal(t, first.Root(), again.Root())
		assert.Equal(t, first.MustNode("a"), again.MustNode("a"))
		assert.Equal(t, first.MustNode("x"), again.MustNode("x"))
		assert.Equal(t, first.MustNode("y"), again.MustNode("y"))
		assert.Equal(t, first.MustNode("b"), again.MustNode("b"))
	}
}

func TestMatchDoesNotMutate(t *testing.T) {
	g, _, _, _, _, c := buildGraph(t)
	rev := g.Revision()
	Match(g, Kind("Sub", Any("a"), Any("b")), c)
	Match(g, Kind("Nope"), c)
	assert.Equal(t, rev, g.Revision())
}
