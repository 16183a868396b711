// Package ranking selects the most central parts of a ranked reference graph.
package ranking

import (
	"strings"

	"github.com/phobologic/docref/internal/graph"
)

// Select returns a new Graph with only the top-ranked nodes, optionally
// restricted to one kind, and the edges between them. g must already be
// ranked. If limit is <= 0 every node of the kind is kept.
func Select(g *graph.Graph, limit int, kind graph.NodeKind) *graph.Graph {
	var nodes []graph.Node
	for i := range g.Nodes {
		if kind == "" || g.Nodes[i].Kind == kind {
			nodes = append(nodes, g.Nodes[i])
		}
	}
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}

	selected := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		selected[nodes[i].Key()] = struct{}{}
	}

	edges := []graph.Edge{}
	for i := range g.Edges {
		e := &g.Edges[i]
		_, srcOK := selected[e.Source]
		_, tgtOK := selected[e.Target]
		if srcOK && tgtOK {
			edges = append(edges, *e)
		}
	}

	if nodes == nil {
		nodes = []graph.Node{}
	}
	return &graph.Graph{Nodes: nodes, Edges: edges}
}

// FilterByID returns a new Graph containing only nodes whose id contains
// substr (case-insensitive), with every edge touching them. Neighbors on the
// far side of those edges are kept so the edges stay resolvable.
func FilterByID(g *graph.Graph, substr string) *graph.Graph {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	for i := range g.Nodes {
		if strings.Contains(strings.ToLower(g.Nodes[i].ID), lower) {
			matched[g.Nodes[i].Key()] = struct{}{}
		}
	}

	keep := make(map[string]struct{}, len(matched))
	edges := []graph.Edge{}
	for i := range g.Edges {
		e := &g.Edges[i]
		_, srcOK := matched[e.Source]
		_, tgtOK := matched[e.Target]
		if srcOK || tgtOK {
			edges = append(edges, *e)
			keep[e.Source] = struct{}{}
			keep[e.Target] = struct{}{}
		}
	}
	for k := range matched {
		keep[k] = struct{}{}
	}

	nodes := []graph.Node{}
	for i := range g.Nodes {
		if _, ok := keep[g.Nodes[i].Key()]; ok {
			nodes = append(nodes, g.Nodes[i])
		}
	}

	return &graph.Graph{Nodes: nodes, Edges: edges}
}
