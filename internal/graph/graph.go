// Package graph flattens the reference index into a directed graph of features
// and code files and ranks its nodes with PageRank.
package graph

import (
	"math"
	"sort"

	"github.com/phobologic/docref/internal/model"
)

// NodeKind distinguishes feature nodes from code file nodes.
type NodeKind string

const (
	FeatureNode NodeKind = "feature"
	CodeNode    NodeKind = "code"
)

// Edge kinds. An edge may carry several kinds when two nodes are linked in
// more than one way; each kind counts as a separate PageRank edge.
const (
	EdgeRelated   = "related"
	EdgeDependsOn = "depends_on"
	EdgeInterface = "interface"
	EdgeTerm      = "term"
	EdgeCode      = "code"
	EdgeTest      = "test"
	EdgeImport    = "import"
)

// Node is a feature or code file in the reference graph.
type Node struct {
	Kind NodeKind `json:"kind"`
	ID   string   `json:"id"`
	Rank float64  `json:"rank"`
	In   int      `json:"in"`
	Out  int      `json:"out"`
}

// Key identifies a node across kinds.
func (n Node) Key() string {
	return key(n.Kind, n.ID)
}

// Edge points from the node that relies on something to the node it relies on.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kinds  []string `json:"kinds"`
}

// Graph is the flattened reference graph. Node keys have the form kind:id.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func key(kind NodeKind, id string) string {
	return string(kind) + ":" + id
}

// Build derives the reference graph from an index.
//
// Feature edges follow related, depends_on, interface use (user to provider)
// and term use (user to the feature whose document defines the term). Code
// edges run from a feature to the code it documents or is tested by, and
// from an importing file to the file it imports.
func Build(idx *model.Index) *Graph {
	b := &builder{
		nodes: make(map[string]*Node),
		edges: make(map[[2]string]map[string]struct{}),
	}

	for id := range idx.Features {
		b.node(FeatureNode, id)
	}
	for p := range idx.Code {
		b.node(CodeNode, p)
	}

	providers := make(map[string][]string)
	byFile := make(map[string]string)
	for id, f := range idx.Features {
		for _, iid := range f.InterfacesProvided {
			providers[iid] = append(providers[iid], id)
		}
		byFile[f.File] = id
	}

	for id, f := range idx.Features {
		src := key(FeatureNode, id)
		for _, other := range f.RelatedFeatures {
			b.link(src, key(FeatureNode, other), EdgeRelated)
		}
		for _, other := range f.DependsOn {
			b.link(src, key(FeatureNode, other), EdgeDependsOn)
		}
		for _, iid := range f.InterfacesUsed {
			for _, other := range providers[iid] {
				b.link(src, key(FeatureNode, other), EdgeInterface)
			}
		}
		for _, term := range f.TermsUsed {
			e := idx.Terms[term]
			if e == nil {
				continue
			}
			if owner, ok := byFile[e.Definition.File]; ok {
				b.link(src, key(FeatureNode, owner), EdgeTerm)
			}
		}
		for _, p := range f.CodeUses {
			b.link(src, key(CodeNode, p), EdgeCode)
		}
		for _, p := range f.TestedBy {
			b.link(src, key(CodeNode, p), EdgeTest)
		}
	}

	for p, c := range idx.Code {
		for _, imp := range c.Imports {
			b.link(key(CodeNode, p), key(CodeNode, imp), EdgeImport)
		}
	}

	return b.graph()
}

type builder struct {
	nodes map[string]*Node
	edges map[[2]string]map[string]struct{}
}

func (b *builder) node(kind NodeKind, id string) {
	k := key(kind, id)
	if _, ok := b.nodes[k]; !ok {
		b.nodes[k] = &Node{Kind: kind, ID: id}
	}
}

// link records an edge between two known nodes. Self loops and edges to
// nodes outside the index (unresolved imports, unknown features) are dropped.
func (b *builder) link(src, tgt, kind string) {
	if src == tgt {
		return
	}
	if _, ok := b.nodes[src]; !ok {
		return
	}
	if _, ok := b.nodes[tgt]; !ok {
		return
	}
	pair := [2]string{src, tgt}
	if b.edges[pair] == nil {
		b.edges[pair] = make(map[string]struct{})
	}
	b.edges[pair][kind] = struct{}{}
}

func (b *builder) graph() *Graph {
	g := &Graph{Nodes: []Node{}, Edges: []Edge{}}
	for pair, kinds := range b.edges {
		g.Edges = append(g.Edges, Edge{Source: pair[0], Target: pair[1], Kinds: sortedKeys(kinds)})
		b.nodes[pair[0]].Out += len(kinds)
		b.nodes[pair[1]].In += len(kinds)
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
	for _, k := range sortedKeys(b.nodes) {
		g.Nodes = append(g.Nodes, *b.nodes[k])
	}
	return g
}

// Rank assigns PageRank scores to g's nodes and sorts them by descending rank,
// breaking ties by key.
func Rank(g *Graph) {
	if len(g.Nodes) == 0 {
		return
	}

	if len(g.Edges) == 0 {
		uniform := 1.0 / float64(len(g.Nodes))
		for i := range g.Nodes {
			g.Nodes[i].Rank = uniform
		}
		sortNodes(g.Nodes)
		return
	}

	// Edge from source to target means source relies on target.
	// Each edge kind counts once.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	nodes := make(map[string]struct{}, len(g.Nodes))

	for i := range g.Nodes {
		nodes[g.Nodes[i].Key()] = struct{}{}
	}

	for _, e := range g.Edges {
		for range e.Kinds {
			outEdges[e.Source] = append(outEdges[e.Source], e.Target)
			outDegree[e.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	for i := range g.Nodes {
		g.Nodes[i].Rank = ranks[g.Nodes[i].Key()]
	}
	sortNodes(g.Nodes)
}

func sortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Rank != nodes[j].Rank {
			return nodes[i].Rank > nodes[j].Rank
		}
		return nodes[i].Key() < nodes[j].Key()
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	// Sorted iteration keeps floating point sums, and therefore ties,
	// identical across runs.
	order := sortedKeys(nodes)
	sources := sortedKeys(outEdges)

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range order {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for _, node := range order {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range order {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for _, src := range sources {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range outEdges[src] {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for _, node := range order {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
