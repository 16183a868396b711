package graph

import (
	"math"
	"reflect"
	"testing"

	"github.com/phobologic/docref/internal/model"
)

func makeIndex() *model.Index {
	idx := model.NewIndex("1.0")
	idx.Features["01-auth"] = &model.Feature{
		ID:                 "01-auth",
		File:               "docs/features/01-auth.md",
		CodeUses:           []string{"src/login.ts"},
		InterfacesProvided: []string{"auth/login"},
		TermsDefined:       []string{"Session"},
	}
	idx.Features["02-billing"] = &model.Feature{
		ID:              "02-billing",
		File:            "docs/features/02-billing.md",
		CodeUses:        []string{"src/charge.ts"},
		RelatedFeatures: []string{"01-auth"},
		DependsOn:       []string{"01-auth", "99-missing"},
		InterfacesUsed:  []string{"auth/login"},
		TermsUsed:       []string{"Session"},
		TestedBy:        []string{"tests/charge_test.ts"},
	}
	idx.Code["src/login.ts"] = &model.CodeFile{Path: "src/login.ts", Kind: model.Source}
	idx.Code["src/charge.ts"] = &model.CodeFile{
		Path:    "src/charge.ts",
		Kind:    model.Source,
		Imports: []string{"src/login.ts", "lodash", "src/charge.ts"},
	}
	idx.Code["tests/charge_test.ts"] = &model.CodeFile{Path: "tests/charge_test.ts", Kind: model.Test}
	idx.Terms["Session"] = &model.TermEntry{
		Definition: model.TermLocation{File: "docs/features/01-auth.md", Line: 4, Scope: model.GlobalScope},
	}
	return idx
}

func TestBuild(t *testing.T) {
	t.Parallel()

	g := Build(makeIndex())

	if len(g.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(g.Nodes))
	}

	want := []Edge{
		{Source: "code:src/charge.ts", Target: "code:src/login.ts", Kinds: []string{EdgeImport}},
		{Source: "feature:01-auth", Target: "code:src/login.ts", Kinds: []string{EdgeCode}},
		{Source: "feature:02-billing", Target: "code:src/charge.ts", Kinds: []string{EdgeCode}},
		{Source: "feature:02-billing", Target: "code:tests/charge_test.ts", Kinds: []string{EdgeTest}},
		{Source: "feature:02-billing", Target: "feature:01-auth", Kinds: []string{EdgeDependsOn, EdgeInterface, EdgeRelated, EdgeTerm}},
	}
	if !reflect.DeepEqual(g.Edges, want) {
		t.Errorf("edges = %+v\nwant %+v", g.Edges, want)
	}

	for _, n := range g.Nodes {
		if n.Key() != "feature:01-auth" {
			continue
		}
		if n.In != 4 || n.Out != 1 {
			t.Errorf("01-auth in/out = %d/%d, want 4/1", n.In, n.Out)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	g := Build(model.NewIndex("1.0"))
	if g.Nodes == nil || g.Edges == nil {
		t.Error("expected non-nil slices")
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("expected empty graph, got %+v", g)
	}
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	g := &Graph{Nodes: []Node{
		{Kind: CodeNode, ID: "b.go"},
		{Kind: CodeNode, ID: "a.go"},
		{Kind: FeatureNode, ID: "01-x"},
	}}
	Rank(g)

	expected := 1.0 / 3.0
	for _, n := range g.Nodes {
		if math.Abs(n.Rank-expected) > 1e-9 {
			t.Errorf("%s rank = %f, want %f", n.ID, n.Rank, expected)
		}
	}
	// Ties break by key
	if g.Nodes[0].ID != "a.go" || g.Nodes[2].ID != "01-x" {
		t.Errorf("unexpected order: %s, %s, %s", g.Nodes[0].ID, g.Nodes[1].ID, g.Nodes[2].ID)
	}
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	g := Build(makeIndex())
	Rank(g)

	// Ranks should sum to ~1.0
	var sum float64
	for _, n := range g.Nodes {
		sum += n.Rank
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("rank sum = %f, want ~1.0", sum)
	}

	for i := 1; i < len(g.Nodes); i++ {
		if g.Nodes[i].Rank > g.Nodes[i-1].Rank {
			t.Errorf("nodes not sorted by rank at %d", i)
		}
	}

	rank := make(map[string]float64)
	for _, n := range g.Nodes {
		rank[n.Key()] = n.Rank
	}
	if rank["code:src/login.ts"] <= rank["code:tests/charge_test.ts"] {
		t.Errorf("src/login.ts (%f) should outrank tests/charge_test.ts (%f)",
			rank["code:src/login.ts"], rank["code:tests/charge_test.ts"])
	}
	if rank["feature:01-auth"] <= rank["feature:02-billing"] {
		t.Errorf("01-auth (%f) should outrank 02-billing (%f)",
			rank["feature:01-auth"], rank["feature:02-billing"])
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	Rank(&Graph{}) // should not panic
}
