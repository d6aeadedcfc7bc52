// Liveness and reachability queries.
//
// A node is live iff it is a result node or is (transitively) an input of a
// live node. Queries are pure: they never mutate the graph and are safe to
// call repeatedly mid-rewrite. Snapshots are cached per graph revision so
// the replacement operator's before/after pair costs two traversals at most.

package graph

// liveSet returns the cached backward-reachability closure of the result
// set for the current revision. The returned map is shared; callers inside
// the package must not mutate it.
func (g *Graph) liveSet() map[NodeID]struct{} {
	if cached, ok := g.liveCache.Get(g.revision); ok {
		return cached
	}

	live := make(map[NodeID]struct{})
	stack := make([]NodeID, 0, len(g.results))
	for _, r := range g.results {
		if _, ok := g.nodes[r]; ok {
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := live[id]; seen {
			continue
		}
		live[id] = struct{}{}
		for _, in := range g.nodes[id].Inputs {
			if _, seen := live[in.Node]; !seen {
				stack = append(stack, in.Node)
			}
		}
	}

	g.liveCache.Add(g.revision, live)
	return live
}

// IsLive reports whether id is reachable from the graph's result set.
func (g *Graph) IsLive(id NodeID) bool {
	_, ok := g.liveSet()[id]
	return ok
}

// LiveSet returns a snapshot of the set of live nodes.
func (g *Graph) LiveSet() map[NodeID]struct{} {
	live := g.liveSet()
	out := make(map[NodeID]struct{}, len(live))
	for id := range live {
		out[id] = struct{}{}
	}
	return out
}

// Ancestors returns the upward closure of id through input edges, including
// id itself. Nodes absent from the arena are skipped.
func (g *Graph) Ancestors(id NodeID) map[NodeID]struct{} {
	anc := make(map[NodeID]struct{})
	if _, ok := g.nodes[id]; !ok {
		return anc
	}
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := anc[cur]; seen {
			continue
		}
		anc[cur] = struct{}{}
		for _, in := range g.nodes[cur].Inputs {
			if _, present := g.nodes[in.Node]; !present {
				continue
			}
			if _, seen := anc[in.Node]; !seen {
				stack = append(stack, in.Node)
			}
		}
	}
	return anc
}
