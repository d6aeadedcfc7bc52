// Package rewrite drives pattern-based graph rewriting: a registration-ordered
// rule set, a single-pass engine visiting live nodes results-first, and the
// atomic node-replacement primitive that rewires edges and migrates
// provenance.
package rewrite

import (
	"fmt"
	"sort"

	"github.com/yding10/openvino/pkg/graph"
	"github.com/yding10/openvino/pkg/provenance"
)

// Report describes the effect of one replacement.
type Report struct {
	// Removed lists the orphaned nodes: live before the rewiring, unreachable
	// after it, and pruned from the graph.
	Removed []graph.NodeID
	// Inserted lists the freshly constructed ancestors of the replacement
	// root that became part of the graph through this call.
	Inserted []graph.NodeID
	// MergedTags is the union of the orphans' provenance tags, merged into
	// every inserted node.
	MergedTags []string
}

// Changed reports whether the replacement altered the graph.
func (r *Report) Changed() bool {
	return r != nil && (len(r.Removed) > 0 || len(r.Inserted) > 0)
}

// Replace substitutes new for old in g: every consumer edge referencing an
// output of old is redirected to the corresponding output of new, and if old
// was a result node, new takes its place.
//
// Provenance migrates with the surgery. Nodes that were reachable from the
// results before the rewiring but not after ("orphans") are pruned, and the
// union of their tags is merged into every freshly constructed ancestor of
// new ("inserted" nodes); the replacement thereby inherits the historical
// attribution of everything it made unreachable. Pre-existing nodes that
// stay live, such as inputs shared between old and new, keep exactly their
// prior tags. Parameter nodes are part of the graph signature and are never
// pruned nor treated as orphans. The merge goes through the store's
// forwarding path, so provenance groups observe replacement merges.
//
// old and new must have equal output arity; otherwise ErrArityMismatch is
// returned and the graph is left untouched. prov may be nil when provenance
// tracking is disabled, in which case only the surgery is performed.
//
// The whole operation is a single transactional step on the owning
// goroutine: no reader on that goroutine can observe rewired edges with
// unmerged tags.
func Replace(g *graph.Graph, prov *provenance.Store, old, new graph.NodeID) (*Report, error) {
	if old == new {
		return &Report{}, nil
	}
	oldNode, err := g.Node(old)
	if err != nil {
		return nil, fmt.Errorf("replace: old: %w", err)
	}
	newNode, err := g.Node(new)
	if err != nil {
		return nil, fmt.Errorf("replace: new: %w", err)
	}
	if oldNode.Outputs != newNode.Outputs {
		return nil, fmt.Errorf("replace %s -> %s: %w: %d != %d",
			old, new, graph.ErrArityMismatch, oldNode.Outputs, newNode.Outputs)
	}

	if _, downstream := g.Ancestors(new)[old]; downstream {
		// Redirecting old's consumers would reach new's own inputs and close
		// a cycle.
		return nil, fmt.Errorf("replace %s -> %s: %w: replacement depends on the node it replaces",
			old, new, graph.ErrInvalidInput)
	}

	params := make(map[graph.NodeID]struct{})
	for _, p := range g.Parameters() {
		params[p] = struct{}{}
	}

	oldLive := g.LiveSet()
	if err := g.Rewire(old, new); err != nil {
		return nil, fmt.Errorf("replace %s -> %s: %w", old, new, err)
	}
	newLive := g.LiveSet()

	orphaned := make(map[graph.NodeID]struct{})
	for id := range oldLive {
		if _, still := newLive[id]; still {
			continue
		}
		if _, isParam := params[id]; isParam {
			continue
		}
		orphaned[id] = struct{}{}
	}

	inserted := make(map[graph.NodeID]struct{})
	for id := range g.Ancestors(new) {
		if _, preexisting := oldLive[id]; !preexisting {
			inserted[id] = struct{}{}
		}
	}

	var merged map[string]struct{}
	if prov != nil {
		merged = prov.UnionOf(orphaned)
		for id := range inserted {
			prov.MergeTags(id, merged)
		}
	}

	if len(orphaned) > 0 {
		doomed := make([]graph.NodeID, 0, len(orphaned))
		for id := range orphaned {
			doomed = append(doomed, id)
		}
		if err := g.Remove(doomed...); err != nil {
			return nil, fmt.Errorf("replace %s -> %s: prune: %w", old, new, err)
		}
		if prov != nil {
			prov.Forget(doomed...)
		}
	}

	return buildReport(orphaned, inserted, merged), nil
}

func buildReport(orphaned, inserted map[graph.NodeID]struct{}, merged map[string]struct{}) *Report {
	rep := &Report{
		Removed:    make([]graph.NodeID, 0, len(orphaned)),
		Inserted:   make([]graph.NodeID, 0, len(inserted)),
		MergedTags: make([]string, 0, len(merged)),
	}
	for id := range orphaned {
		rep.Removed = append(rep.Removed, id)
	}
	for id := range inserted {
		rep.Inserted = append(rep.Inserted, id)
	}
	for tag := range merged {
		rep.MergedTags = append(rep.MergedTags, tag)
	}
	sort.Slice(rep.Removed, func(i, j int) bool { return rep.Removed[i] < rep.Removed[j] })
	sort.Slice(rep.Inserted, func(i, j int) bool { return rep.Inserted[i] < rep.Inserted[j] })
	sort.Strings(rep.MergedTags)
	return rep
}
