package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yding10/openvino/pkg/graph"
	"github.com/yding10/openvino/pkg/provenance"
)

func openMemStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenWithOptions(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDocumentRoundTrip(t *testing.T) {
	g := graph.New()
	prov := provenance.NewStore()
	x := g.MustParameter("Parameter", 1)
	unusedParam := g.MustParameter("Parameter", 1)
	c, err := g.NewNodeWithPayload("Const", 2.5, nil, 1)
	require.NoError(t, err)
	mul, err := g.NewNode("Mul", []graph.Output{graph.Out(x), graph.Out(c)}, 1)
	require.NoError(t, err)
	require.NoError(t, g.SetResults(mul))
	prov.AddTags(x, "user/x")
	prov.AddTags(mul, "user/mul", "scaled")

	doc, err := Encode(g, prov)
	require.NoError(t, err)

	g2, prov2, err := Decode(doc)
	require.NoError(t, err)

	assert.Equal(t, g.Parameters(), g2.Parameters())
	assert.Equal(t, g.Results(), g2.Results())
	assert.True(t, g2.Exists(unusedParam), "unused parameters survive the round trip")

	n, err := g2.Node(mul)
	require.NoError(t, err)
	assert.Equal(t, "Mul", n.Kind)
	assert.Equal(t, []graph.Output{graph.Out(x), graph.Out(c)}, n.Inputs)

	assert.Equal(t, []string{"user/x"}, prov2.Tags(x))
	assert.Equal(t, []string{"scaled", "user/mul"}, prov2.Tags(mul))
	assert.Empty(t, prov2.Tags(c))
}

func TestEncodeOrdersInputsFirst(t *testing.T) {
	g := graph.New()
	x := g.MustParameter("Parameter", 1)
	a, _ := g.NewNode("Abs", []graph.Output{graph.Out(x)}, 1)
	b, _ := g.NewNode("Neg", []graph.Output{graph.Out(a)}, 1)
	require.NoError(t, g.SetResults(b))

	doc, err := Encode(g, nil)
	require.NoError(t, err)

	pos := make(map[string]int)
	for i, nd := range doc.Nodes {
		pos[nd.ID] = i
	}
	assert.Less(t, pos[string(x)], pos[string(a)])
	assert.Less(t, pos[string(a)], pos[string(b)])
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openMemStore(t)

	doc := &GraphDocument{
		Nodes: []NodeDocument{
			{ID: "p", Kind: "Parameter", Outputs: 1},
			{ID: "abs", Kind: "Abs", Inputs: []graph.Output{graph.Out("p")}, Outputs: 1, Tags: []string{"user/abs"}},
		},
		Parameters: []string{"p"},
		Results:    []string{"abs"},
	}
	require.NoError(t, store.SaveSnapshot("run-1", doc))

	loaded, err := store.LoadSnapshot("run-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Results, loaded.Results)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "abs", loaded.Nodes[1].ID)
	assert.Equal(t, []string{"user/abs"}, loaded.Nodes[1].Tags)

	_, err = store.LoadSnapshot("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditJournalAppendOrder(t *testing.T) {
	store := openMemStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendAudit("run-1", AuditEntry{
			Rule: []string{"fold-constants", "add-zero", "mul-one"}[i],
			Pass: i,
			At:   time.Now().UTC(),
		}))
	}
	// A second run's journal must stay separate.
	require.NoError(t, store.AppendAudit("run-2", AuditEntry{Rule: "other"}))

	entries, err := store.Audit("run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "fold-constants", entries[0].Rule)
	assert.Equal(t, "add-zero", entries[1].Rule)
	assert.Equal(t, "mul-one", entries[2].Rule)
	assert.Equal(t, 2, entries[2].Pass)

	other, err := store.Audit("run-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "other", other[0].Rule)

	empty, err := store.Audit("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
