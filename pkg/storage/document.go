// Package storage persists optimization artifacts: graph snapshots and the
// append-only audit journal of replacements, backed by BadgerDB.
//
// The on-disk and on-the-wire representation of a graph is GraphDocument, a
// JSON document listing nodes in topological order together with the
// provenance tags attached to each node. The same document serves as the
// CLI's file format and as the value stored under a snapshot key.
package storage

import (
	"fmt"
	"sort"

	"github.com/yding10/openvino/pkg/graph"
	"github.com/yding10/openvino/pkg/provenance"
)

// NodeDocument is the serialized form of one operation node.
type NodeDocument struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	Payload any            `json:"payload,omitempty"`
	Inputs  []graph.Output `json:"inputs,omitempty"`
	Outputs int            `json:"outputs"`
	Tags    []string       `json:"tags,omitempty"`
}

// GraphDocument is the serialized form of a graph plus its provenance.
// Nodes are listed in topological order (inputs before consumers) so the
// document can be decoded in a single forward scan.
type GraphDocument struct {
	Nodes      []NodeDocument `json:"nodes"`
	Parameters []string       `json:"parameters,omitempty"`
	Results    []string       `json:"results"`
}

// Encode captures the live portion of g, with tags from prov, as a
// document. prov may be nil. Detached nodes are not captured; parameters
// are always captured even when no result reaches them.
func Encode(g *graph.Graph, prov *provenance.Store) (*GraphDocument, error) {
	order := g.TopologicalOrder()
	inOrder := make(map[graph.NodeID]struct{}, len(order))
	for _, id := range order {
		inOrder[id] = struct{}{}
	}
	// Unused parameters are part of the signature; prepend them.
	var ids []graph.NodeID
	for _, p := range g.Parameters() {
		if _, ok := inOrder[p]; !ok {
			ids = append(ids, p)
		}
	}
	ids = append(ids, order...)

	doc := &GraphDocument{Nodes: make([]NodeDocument, 0, len(ids))}
	for _, id := range ids {
		n, err := g.Node(id)
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		nd := NodeDocument{
			ID:      string(n.ID),
			Kind:    n.Kind,
			Payload: n.Payload,
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
		}
		if prov != nil {
			nd.Tags = prov.Tags(id)
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, p := range g.Parameters() {
		doc.Parameters = append(doc.Parameters, string(p))
	}
	for _, r := range g.Results() {
		doc.Results = append(doc.Results, string(r))
	}
	return doc, nil
}

// Decode rebuilds a graph and provenance store from a document. Node order
// in the document must be topologically valid (inputs before consumers);
// Encode always produces such documents.
func Decode(doc *GraphDocument) (*graph.Graph, *provenance.Store, error) {
	g := graph.New()
	prov := provenance.NewStore()
	for _, nd := range doc.Nodes {
		n := &graph.Node{
			ID:      graph.NodeID(nd.ID),
			Kind:    nd.Kind,
			Payload: nd.Payload,
			Inputs:  nd.Inputs,
			Outputs: nd.Outputs,
		}
		if err := g.AddNode(n); err != nil {
			return nil, nil, fmt.Errorf("decode node %s: %w", nd.ID, err)
		}
		tags := append([]string(nil), nd.Tags...)
		sort.Strings(tags)
		prov.AddTags(graph.NodeID(nd.ID), tags...)
	}
	for _, p := range doc.Parameters {
		if err := g.MarkParameter(graph.NodeID(p)); err != nil {
			return nil, nil, fmt.Errorf("decode parameter %s: %w", p, err)
		}
	}
	results := make([]graph.NodeID, len(doc.Results))
	for i, r := range doc.Results {
		results[i] = graph.NodeID(r)
	}
	if err := g.SetResults(results...); err != nil {
		return nil, nil, fmt.Errorf("decode results: %w", err)
	}
	return g, prov, nil
}
