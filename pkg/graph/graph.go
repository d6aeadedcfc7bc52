// Package graph implements the dataflow graph model for the rewrite engine.
//
// A Graph is a directed acyclic graph of operation nodes. Each node carries an
// operation kind from an open vocabulary (the engine never enumerates kinds),
// an ordered list of input references, and an output arity. Nodes are held in
// an arena indexed by stable NodeID, so structural surgery never invalidates
// references held elsewhere.
//
// The graph distinguishes two designated node lists:
//   - Parameters: the graph's inputs. Part of the graph signature, never pruned.
//   - Results: the graph's outputs. Liveness is defined as backward
//     reachability from the result set.
//
// Example Usage:
//
//	g := graph.New()
//	x := g.MustParameter("Parameter", 1)
//	y := g.MustParameter("Parameter", 1)
//	sum, _ := g.NewNode("Add", []graph.Output{graph.Out(x), graph.Out(y)}, 1)
//	g.SetResults(sum)
//
//	g.IsLive(sum) // true
//	g.IsLive(x)   // true, feeds a result
//
// Thread Safety:
//
//	A Graph is owned by a single goroutine for the duration of a rewrite
//	pass. Reachability snapshots taken during replacement must observe a
//	consistent graph state, so callers must not interleave mutation across
//	goroutines.
package graph

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrNotFound      = errors.New("node not found")
	ErrInvalidInput  = errors.New("invalid input reference")
	ErrArityMismatch = errors.New("output arity mismatch")
	ErrAlreadyExists = errors.New("node already exists")
	ErrProtected     = errors.New("node is a parameter or result")
)

// liveCacheSize bounds the number of cached liveness snapshots. Replacement
// needs the snapshot for at most two adjacent revisions.
const liveCacheSize = 8

// NodeID is a strongly-typed unique identifier for graph nodes.
//
// IDs are stable for the lifetime of the node: surgery on the graph rewires
// edges but never renames nodes.
type NodeID string

// Output identifies one output port of a node. Node inputs are Outputs of
// other nodes, so an edge in the graph is (consumer, input slot) -> Output.
type Output struct {
	Node NodeID `json:"node"`
	Port int    `json:"port"`
}

// Out is shorthand for the first (and usually only) output of a node.
func Out(id NodeID) Output {
	return Output{Node: id}
}

// Use describes one use of a node: the consuming node and the index of the
// input slot on that consumer through which the node is referenced.
type Use struct {
	Node  NodeID
	Input int
}

// Node is a single operation in the dataflow graph.
//
// Kind is an open operation-kind tag ("Add", "Convolution", ...). The engine
// treats it as opaque; rewrite rules attach meaning through kind predicates.
// Payload carries kind-specific data (for example the value of a constant)
// and is likewise opaque to the core.
type Node struct {
	ID      NodeID   `json:"id"`
	Kind    string   `json:"kind"`
	Payload any      `json:"payload,omitempty"`
	Inputs  []Output `json:"inputs"`
	Outputs int      `json:"outputs"`
}

// clone returns a deep copy so callers cannot mutate arena state through
// returned nodes.
func (n *Node) clone() *Node {
	c := *n
	c.Inputs = make([]Output, len(n.Inputs))
	copy(c.Inputs, n.Inputs)
	return &c
}

// Graph is an arena of operation nodes with designated parameter and result
// lists and an incrementally maintained consumer index.
type Graph struct {
	nodes map[NodeID]*Node
	uses  map[NodeID]map[Use]struct{}

	parameters []NodeID
	results    []NodeID

	// revision increments on every structural mutation. Liveness snapshots
	// are cached per revision.
	revision  uint64
	seq       uint64
	liveCache *lru.Cache[uint64, map[NodeID]struct{}]
}

// New creates an empty graph.
func New() *Graph {
	cache, err := lru.New[uint64, map[NodeID]struct{}](liveCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Graph{
		nodes:     make(map[NodeID]*Node),
		uses:      make(map[NodeID]map[Use]struct{}),
		liveCache: cache,
	}
}

// NewNode creates a node with a freshly minted ID.
//
// Every input must reference a node already present in the graph, and the
// referenced port must be within the source's output arity; otherwise
// ErrInvalidInput is returned and the graph is left unmodified. Because a new
// node can only reference pre-existing nodes, creation can never introduce a
// cycle.
func (g *Graph) NewNode(kind string, inputs []Output, outputs int) (NodeID, error) {
	return g.NewNodeWithPayload(kind, nil, inputs, outputs)
}

// NewNodeWithPayload is NewNode with kind-specific payload attached.
func (g *Graph) NewNodeWithPayload(kind string, payload any, inputs []Output, outputs int) (NodeID, error) {
	if outputs < 1 {
		return "", fmt.Errorf("%w: node %q needs at least one output", ErrInvalidInput, kind)
	}
	for _, in := range inputs {
		src, ok := g.nodes[in.Node]
		if !ok {
			return "", fmt.Errorf("%w: input %s absent from graph", ErrInvalidInput, in.Node)
		}
		if in.Port < 0 || in.Port >= src.Outputs {
			return "", fmt.Errorf("%w: port %d out of range for %s", ErrInvalidInput, in.Port, in.Node)
		}
	}

	g.seq++
	id := NodeID(fmt.Sprintf("%s-%d", kind, g.seq))
	for g.Exists(id) {
		// Deserialized graphs may occupy minted-looking ids.
		g.seq++
		id = NodeID(fmt.Sprintf("%s-%d", kind, g.seq))
	}
	n := &Node{
		ID:      id,
		Kind:    kind,
		Payload: payload,
		Inputs:  make([]Output, len(inputs)),
		Outputs: outputs,
	}
	copy(n.Inputs, inputs)
	g.insert(n)
	return id, nil
}

// AddNode inserts a node with a caller-supplied ID, used when deserializing
// graphs. The same input validation as NewNode applies.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: missing node id", ErrInvalidInput)
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, n.ID)
	}
	if n.Outputs < 1 {
		return fmt.Errorf("%w: node %s needs at least one output", ErrInvalidInput, n.ID)
	}
	for _, in := range n.Inputs {
		src, ok := g.nodes[in.Node]
		if !ok {
			return fmt.Errorf("%w: input %s absent from graph", ErrInvalidInput, in.Node)
		}
		if in.Port < 0 || in.Port >= src.Outputs {
			return fmt.Errorf("%w: port %d out of range for %s", ErrInvalidInput, in.Port, in.Node)
		}
	}
	g.insert(n.clone())
	return nil
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	for i, in := range n.Inputs {
		g.addUse(in.Node, Use{Node: n.ID, Input: i})
	}
	g.bump()
}

func (g *Graph) addUse(src NodeID, u Use) {
	set, ok := g.uses[src]
	if !ok {
		set = make(map[Use]struct{})
		g.uses[src] = set
	}
	set[u] = struct{}{}
}

func (g *Graph) dropUse(src NodeID, u Use) {
	if set, ok := g.uses[src]; ok {
		delete(set, u)
		if len(set) == 0 {
			delete(g.uses, src)
		}
	}
}

func (g *Graph) bump() {
	g.revision++
}

// Revision returns the current mutation counter. It increments on every
// structural change; two calls returning the same value bracket a span with
// no mutation in between.
func (g *Graph) Revision() uint64 {
	return g.revision
}

// Exists reports whether id is present in the arena (live or not).
func (g *Graph) Exists(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n.clone(), nil
}

// Kind returns the operation kind of id, or "" when absent.
func (g *Graph) Kind(id NodeID) string {
	if n, ok := g.nodes[id]; ok {
		return n.Kind
	}
	return ""
}

// Inputs returns the ordered input references of id.
func (g *Graph) Inputs(id NodeID) ([]Output, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]Output, len(n.Inputs))
	copy(out, n.Inputs)
	return out, nil
}

// Uses returns the set of uses of id: every (consumer, input slot) edge that
// references one of id's outputs. The reverse index is maintained
// incrementally, so this is O(degree).
func (g *Graph) Uses(id NodeID) []Use {
	set := g.uses[id]
	uses := make([]Use, 0, len(set))
	for u := range set {
		uses = append(uses, u)
	}
	return uses
}

// NodeCount returns the number of nodes in the arena, including detached
// nodes not reachable from any result.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Parameters returns the ordered parameter list.
func (g *Graph) Parameters() []NodeID {
	out := make([]NodeID, len(g.parameters))
	copy(out, g.parameters)
	return out
}

// Results returns the ordered result list.
func (g *Graph) Results() []NodeID {
	out := make([]NodeID, len(g.results))
	copy(out, g.results)
	return out
}

// MarkParameter designates an existing node as a graph input. Parameter
// nodes must not have inputs of their own and are never pruned by
// replacement, they are part of the graph signature.
func (g *Graph) MarkParameter(id NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(n.Inputs) > 0 {
		return fmt.Errorf("%w: parameter %s must not have inputs", ErrInvalidInput, id)
	}
	for _, p := range g.parameters {
		if p == id {
			return nil
		}
	}
	g.parameters = append(g.parameters, id)
	g.bump()
	return nil
}

// MustParameter creates a new input node of the given kind and marks it as a
// parameter. It panics on error, which only happens for outputs < 1; intended
// for graph construction code.
func (g *Graph) MustParameter(kind string, outputs int) NodeID {
	id, err := g.NewNode(kind, nil, outputs)
	if err != nil {
		panic(err)
	}
	if err := g.MarkParameter(id); err != nil {
		panic(err)
	}
	return id
}

// SetResults designates the graph's output nodes, replacing any previous
// result list.
func (g *Graph) SetResults(ids ...NodeID) error {
	for _, id := range ids {
		if _, ok := g.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	g.results = make([]NodeID, len(ids))
	copy(g.results, ids)
	g.bump()
	return nil
}

// Rewire redirects every consumer edge referencing an output of old to the
// corresponding output of new, and substitutes new for old in the result
// list. It does not touch provenance and does not prune; it is the raw edge
// surgery underneath replacement.
func (g *Graph) Rewire(old, new NodeID) error {
	if old == new {
		return nil
	}
	if _, ok := g.nodes[old]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, old)
	}
	if _, ok := g.nodes[new]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, new)
	}

	for u := range g.uses[old] {
		consumer := g.nodes[u.Node]
		in := consumer.Inputs[u.Input]
		in.Node = new
		consumer.Inputs[u.Input] = in
		g.addUse(new, u)
	}
	delete(g.uses, old)

	for i, r := range g.results {
		if r == old {
			g.results[i] = new
		}
	}
	g.bump()
	return nil
}

// Remove deletes the given nodes from the arena and detaches them from the
// consumer index. Parameters and current results are protected and cause
// ErrProtected; callers remove orphaned interior nodes only.
func (g *Graph) Remove(ids ...NodeID) error {
	doomed := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := g.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		doomed[id] = struct{}{}
	}
	for _, p := range g.parameters {
		if _, dead := doomed[p]; dead {
			return fmt.Errorf("%w: %s", ErrProtected, p)
		}
	}
	for _, r := range g.results {
		if _, dead := doomed[r]; dead {
			return fmt.Errorf("%w: %s", ErrProtected, r)
		}
	}
	for id := range doomed {
		n := g.nodes[id]
		for i, in := range n.Inputs {
			g.dropUse(in.Node, Use{Node: id, Input: i})
		}
		delete(g.uses, id)
		delete(g.nodes, id)
	}
	g.bump()
	return nil
}
