package graph

// TopologicalOrder returns the live nodes ordered so that every node appears
// after all of its inputs (parameters first, results last). The order is
// deterministic for a fixed graph: results are walked in result-list order
// and inputs in input-list order.
//
// The rewrite pass engine iterates this order reversed, visiting a node only
// after all of its consumers.
func (g *Graph) TopologicalOrder() []NodeID {
	order := make([]NodeID, 0, len(g.nodes))
	done := make(map[NodeID]struct{}, len(g.nodes))

	// Iterative DFS with an explicit expansion flag; emit on post-visit so
	// inputs precede their consumers.
	type frame struct {
		id       NodeID
		expanded bool
	}
	var stack []frame
	for i := len(g.results) - 1; i >= 0; i-- {
		if _, ok := g.nodes[g.results[i]]; ok {
			stack = append(stack, frame{id: g.results[i]})
		}
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := done[f.id]; ok {
			continue
		}
		if f.expanded {
			done[f.id] = struct{}{}
			order = append(order, f.id)
			continue
		}
		stack = append(stack, frame{id: f.id, expanded: true})
		ins := g.nodes[f.id].Inputs
		for i := len(ins) - 1; i >= 0; i-- {
			src := ins[i].Node
			if _, ok := done[src]; ok {
				continue
			}
			if _, present := g.nodes[src]; present {
				stack = append(stack, frame{id: src})
			}
		}
	}
	return order
}
