// Package provenance tracks the lineage of graph nodes across rewrites.
//
// Every node owns a set of provenance tags: string markers recording that the
// node's computation descends from some original, user-meaningful node. The
// store also keeps group-forwarding links: a node may designate another node
// as its forwarding target, after which any tag added directly to the target
// is mirrored onto the forwarder as well. Forwarding is many-to-one and does
// not chain through intermediate targets.
//
// Records are keyed by graph.NodeID and live outside the graph arena, so the
// store survives node surgery; the replacement operator is responsible for
// merging tags of orphaned nodes and forgetting their records afterwards.
//
// Example Usage:
//
//	prov := provenance.NewStore()
//	prov.AddTag(n, "user/conv1")
//	prov.GroupAbove(g, fusedRoot, boundary)
//	prov.AddTag(fusedRoot, "fused") // mirrored onto the whole group
//
// Thread Safety:
//
//	All methods are safe for concurrent use, though a graph under rewrite is
//	single-owner; the lock exists for readers observing a finished graph.
package provenance

import (
	"sort"
	"sync"

	"github.com/yding10/openvino/pkg/graph"
)

// Store holds per-node tag sets and group-forwarding links.
type Store struct {
	mu   sync.RWMutex
	tags map[graph.NodeID]map[string]struct{}

	// forwarders is keyed by forwarding target; the value is the set of
	// nodes that mirror tags added to the target. One level only.
	forwarders map[graph.NodeID]map[graph.NodeID]struct{}
}

// NewStore creates an empty provenance store.
func NewStore() *Store {
	return &Store{
		tags:       make(map[graph.NodeID]map[string]struct{}),
		forwarders: make(map[graph.NodeID]map[graph.NodeID]struct{}),
	}
}

// AddTag inserts tag into id's tag set and mirrors it onto every node whose
// forwarding target is id. Insertion is idempotent.
func (s *Store) AddTag(id graph.NodeID, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addTagLocked(id, tag)
}

// AddTags inserts several tags at once.
func (s *Store) AddTags(id graph.NodeID, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		s.addTagLocked(id, tag)
	}
}

func (s *Store) addTagLocked(id graph.NodeID, tag string) {
	s.insertLocked(id, tag)
	for member := range s.forwarders[id] {
		s.insertLocked(member, tag)
	}
}

func (s *Store) insertLocked(id graph.NodeID, tag string) {
	set, ok := s.tags[id]
	if !ok {
		set = make(map[string]struct{})
		s.tags[id] = set
	}
	set[tag] = struct{}{}
}

// MergeTags adds every tag in the set to id through the same mirroring path
// as AddTag, so group members observe tags merged during replacement.
func (s *Store) MergeTags(id graph.NodeID, tags map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tag := range tags {
		s.addTagLocked(id, tag)
	}
}

// Tags returns id's tag set as a sorted slice.
func (s *Store) Tags(id graph.NodeID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tags[id]))
	for tag := range s.tags[id] {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TagSet returns a copy of id's tag set.
func (s *Store) TagSet(id graph.NodeID) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.tags[id]))
	for tag := range s.tags[id] {
		out[tag] = struct{}{}
	}
	return out
}

// HasTag reports whether id carries tag.
func (s *Store) HasTag(id graph.NodeID, tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tags[id][tag]
	return ok
}

// UnionOf returns the union of the tag sets of every node in ids.
func (s *Store) UnionOf(ids map[graph.NodeID]struct{}) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	union := make(map[string]struct{})
	for id := range ids {
		for tag := range s.tags[id] {
			union[tag] = struct{}{}
		}
	}
	return union
}

// Forget drops the records of the given nodes: their tag sets, their
// forwarding groups, and their membership in any other node's group. Called
// by the replacement operator after orphans are pruned.
func (s *Store) Forget(ids ...graph.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.tags, id)
		delete(s.forwarders, id)
	}
	for target, members := range s.forwarders {
		for _, id := range ids {
			delete(members, id)
		}
		if len(members) == 0 {
			delete(s.forwarders, target)
		}
	}
}

// GroupAbove marks every ancestor of root (through input edges, stopping at
// and excluding any node in boundary; root itself excluded) as a forwarder
// whose target is root. After grouping, any tag added to root, directly or
// via a replacement merge, is mirrored onto every group member.
//
// Passing root itself in the boundary yields an empty group.
func (s *Store) GroupAbove(g *graph.Graph, root graph.NodeID, boundary ...graph.NodeID) {
	stop := make(map[graph.NodeID]struct{}, len(boundary))
	for _, b := range boundary {
		stop[b] = struct{}{}
	}
	if _, ok := stop[root]; ok {
		return
	}

	members := make(map[graph.NodeID]struct{})
	var walk func(id graph.NodeID)
	walk = func(id graph.NodeID) {
		ins, err := g.Inputs(id)
		if err != nil {
			return
		}
		for _, in := range ins {
			if _, ok := stop[in.Node]; ok {
				continue
			}
			if _, seen := members[in.Node]; seen {
				continue
			}
			members[in.Node] = struct{}{}
			walk(in.Node)
		}
	}
	walk(root)

	if len(members) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.forwarders[root]
	if !ok {
		group = make(map[graph.NodeID]struct{}, len(members))
		s.forwarders[root] = group
	}
	for m := range members {
		group[m] = struct{}{}
	}
}

// GroupMembers returns the sorted forwarder set of target.
func (s *Store) GroupMembers(target graph.NodeID) []graph.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]graph.NodeID, 0, len(s.forwarders[target]))
	for m := range s.forwarders[target] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TagsAbove adds the given tags to start and to every node above it, not
// crossing boundary outputs: an input whose source output is in boundary is
// neither tagged nor recursed into. An empty boundary tags everything above
// start, all the way to the parameters. One-shot; no forwarding link is
// established.
func (s *Store) TagsAbove(g *graph.Graph, start graph.NodeID, boundary []graph.Output, tags ...string) {
	stop := make(map[graph.Output]struct{}, len(boundary))
	for _, b := range boundary {
		stop[b] = struct{}{}
	}

	visited := make(map[graph.NodeID]struct{})
	var walk func(id graph.NodeID)
	walk = func(id graph.NodeID) {
		if _, seen := visited[id]; seen {
			return
		}
		visited[id] = struct{}{}
		s.AddTags(id, tags...)
		ins, err := g.Inputs(id)
		if err != nil {
			return
		}
		for _, in := range ins {
			if _, ok := stop[in]; ok {
				continue
			}
			walk(in.Node)
		}
	}
	walk(start)
}
