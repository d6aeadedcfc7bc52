// Package pattern implements structural template matching over dataflow
// graphs.
//
// A Template is an immutable tree describing the shape a subgraph must have:
// each position is either a wildcard, matching any node, or a typed matcher
// carrying a kind predicate and one child template per expected input.
// Templates are reusable across any number of match attempts and graphs.
//
// Matching is recursive, top-down, and deterministic: there is no
// backtracking across alternative interpretations. It never mutates the
// graph.
//
// Example Usage:
//
//	// Add(Neg(x), y)
//	tpl := pattern.Kind("Add",
//		pattern.KindAs("neg", "Neg", pattern.Any("x")),
//		pattern.Any("y"),
//	)
//	if b, ok := pattern.Match(g, tpl, root); ok {
//		x, _ := b.Node("x")
//		// ...
//	}
package pattern

import (
	"github.com/yding10/openvino/pkg/graph"
)

// KindPredicate decides whether a node's operation kind (and, if needed, its
// payload) is acceptable at a typed template position.
type KindPredicate func(n *graph.Node) bool

// Template is one position in a pattern tree. Construct with Any, Kind,
// KindAs or Pred; the zero value matches nothing.
type Template struct {
	capture  string
	wildcard bool
	pred     KindPredicate
	children []*Template
}

// Any returns a wildcard template: it matches any node unconditionally,
// regardless of kind or input count, and binds it under capture. An empty
// capture matches without binding.
func Any(capture string) *Template {
	return &Template{capture: capture, wildcard: true}
}

// Kind returns a typed template matching nodes of exactly the given kind
// with one input per child template.
func Kind(kind string, children ...*Template) *Template {
	return KindAs("", kind, children...)
}

// KindAs is Kind with the matched node bound under capture.
func KindAs(capture, kind string, children ...*Template) *Template {
	return Pred(capture, func(n *graph.Node) bool { return n.Kind == kind }, children...)
}

// Pred returns a typed template with an arbitrary kind predicate.
func Pred(capture string, pred KindPredicate, children ...*Template) *Template {
	return &Template{capture: capture, pred: pred, children: children}
}

// Bindings maps capture names to the concrete nodes bound during a
// successful match.
type Bindings struct {
	root   graph.NodeID
	byName map[string]graph.NodeID
}

// Root returns the node the template was matched against.
func (b *Bindings) Root() graph.NodeID {
	return b.root
}

// Node returns the node bound under capture.
func (b *Bindings) Node(capture string) (graph.NodeID, bool) {
	id, ok := b.byName[capture]
	return id, ok
}

// MustNode is Node for captures the template guarantees to bind; it panics
// when the capture is absent, which indicates a template/transform mismatch.
func (b *Bindings) MustNode(capture string) graph.NodeID {
	id, ok := b.byName[capture]
	if !ok {
		panic("pattern: no binding for capture " + capture)
	}
	return id
}

// Match attempts to match tpl against the subgraph rooted at root.
//
// A wildcard matches any node. A typed template matches iff its predicate
// holds for the candidate, the candidate has exactly as many inputs as the
// template has children, and each child matches the corresponding input's
// source node. Matching short-circuits on the first failure.
//
// On success the returned Bindings maps every named capture to its node; on
// failure it returns (nil, false). Failure is the normal no-match outcome,
// not an error.
func Match(g *graph.Graph, tpl *Template, root graph.NodeID) (*Bindings, bool) {
	b := &Bindings{root: root, byName: make(map[string]graph.NodeID)}
	if !matchAt(g, tpl, root, b) {
		return nil, false
	}
	return b, true
}

func matchAt(g *graph.Graph, tpl *Template, id graph.NodeID, b *Bindings) bool {
	if tpl == nil {
		return false
	}
	n, err := g.Node(id)
	if err != nil {
		return false
	}
	if tpl.wildcard {
		bind(tpl, id, b)
		return true
	}
	if tpl.pred == nil || !tpl.pred(n) {
		return false
	}
	if len(n.Inputs) != len(tpl.children) {
		return false
	}
	for i, child := range tpl.children {
		if !matchAt(g, child, n.Inputs[i].Node, b) {
			return false
		}
	}
	bind(tpl, id, b)
	return true
}

func bind(tpl *Template, id graph.NodeID, b *Bindings) {
	if tpl.capture != "" {
		b.byName[tpl.capture] = id
	}
}
