package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/phobologic/docref/internal/graph"
	"github.com/phobologic/docref/internal/linkcheck"
	"github.com/phobologic/docref/internal/model"
	"github.com/phobologic/docref/internal/workspace"
)

// Arguments structs

type BuildIndexArgs struct{}

type ValidateTermsArgs struct{}

type ValidateNamingArgs struct{}

type ValidateLinksArgs struct {
	Feature   string `json:"feature,omitempty" jsonschema:"Only report interfaces this feature provides or uses"`
	Namespace string `json:"namespace,omitempty" jsonschema:"Only report interface ids in this namespace, e.g. auth"`
}

type DetectOrphansArgs struct{}

type GetFeatureArgs struct {
	ID string `json:"id" jsonschema:"The feature id, e.g. 01-auth"`
}

type FindTermArgs struct {
	Name string `json:"name" jsonschema:"The term or one of its aliases, matched case-insensitively"`
}

type RankArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Keep only the top N nodes"`
	Kind   string `json:"kind,omitempty" jsonschema:"Keep only feature or code nodes"`
	Filter string `json:"filter,omitempty" jsonschema:"Keep nodes whose id contains this text, plus their neighbors"`
}

// FeatureView is a feature with the records it points at resolved.
type FeatureView struct {
	*model.Feature
	Code       []*model.CodeFile  `json:"code"`
	Interfaces []*model.Interface `json:"interfaces"`
}

// TermView is a term entry with its canonical name.
type TermView struct {
	Term string `json:"term"`
	*model.TermEntry
}

type buildSummary struct {
	Stats    any      `json:"stats"`
	Problems []string `json:"problems"`
	Path     string   `json:"path"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "build_index",
		Description: "Rebuilds the reference index from the documentation tree and writes the snapshot",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args BuildIndexArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		res, err := s.ws.Build()
		if err != nil {
			return errorResult(fmt.Sprintf("Build failed: %v", err)), nil, nil
		}
		sum := buildSummary{Stats: res.Stats, Problems: []string{}, Path: s.ws.SnapshotPath()}
		for _, p := range res.Problems {
			sum.Problems = append(sum.Problems, p.Error())
		}
		return jsonResult(sum), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_terms",
		Description: "Checks term definitions and [[Term]] references for undefined, unused, circular and duplicate terms",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ValidateTermsArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		rep, err := s.ws.Terms()
		if err != nil {
			return errorResult(fmt.Sprintf("Term validation failed: %v", err)), nil, nil
		}
		return jsonResult(rep), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_naming",
		Description: "Checks interface and shared-type document names and their cross-references",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ValidateNamingArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		rep, err := s.ws.Naming()
		if err != nil {
			return errorResult(fmt.Sprintf("Naming validation failed: %v", err)), nil, nil
		}
		return jsonResult(rep), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_links",
		Description: "Checks that every used interface has a provider, every provided interface is used, and namespaces are fully covered",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ValidateLinksArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		rep, err := s.ws.Links(linkcheck.Filters{Feature: args.Feature, Namespace: args.Namespace})
		if err != nil {
			return errorResult(fmt.Sprintf("Link validation failed: %v", err)), nil, nil
		}
		return jsonResult(rep), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "detect_orphans",
		Description: "Lists source files that no document references and no other file imports",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DetectOrphansArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		res, err := s.ws.Orphans()
		if err != nil {
			return errorResult(fmt.Sprintf("Orphan detection failed: %v", err)), nil, nil
		}
		return jsonResult(res), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_feature",
		Description: "Returns a feature with its code files, interfaces, terms and related features",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetFeatureArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		idx, err := s.ws.Index()
		if err != nil {
			return errorResult(fmt.Sprintf("Loading index failed: %v", err)), nil, nil
		}
		f := idx.Feature(args.ID)
		if f == nil {
			return errorResult(fmt.Sprintf("No feature %q. Known features: %v", args.ID, featureIDs(idx))), nil, nil
		}

		view := FeatureView{Feature: f, Code: []*model.CodeFile{}, Interfaces: []*model.Interface{}}
		for _, p := range f.CodeUses {
			if c := idx.Code[p]; c != nil {
				view.Code = append(view.Code, c)
			}
		}
		seen := make(map[string]struct{})
		for _, list := range [][]string{f.InterfacesProvided, f.InterfacesUsed} {
			for _, id := range list {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if iface := idx.Interfaces[id]; iface != nil {
					view.Interfaces = append(view.Interfaces, iface)
				}
			}
		}
		return jsonResult(view), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_term",
		Description: "Looks up a term or alias and returns its definition site and every reference",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FindTermArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		idx, err := s.ws.Index()
		if err != nil {
			return errorResult(fmt.Sprintf("Loading index failed: %v", err)), nil, nil
		}
		name, entry := idx.Term(args.Name)
		if entry == nil {
			return errorResult(fmt.Sprintf("No term %q", args.Name)), nil, nil
		}
		return jsonResult(TermView{Term: name, TermEntry: entry}), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rank",
		Description: "Ranks features and code files by PageRank over the reference graph, most central first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RankArgs) (*mcp.CallToolResult, any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		kind := graph.NodeKind(args.Kind)
		if kind != "" && kind != graph.FeatureNode && kind != graph.CodeNode {
			return errorResult(fmt.Sprintf("Unknown kind %q, expected feature or code", args.Kind)), nil, nil
		}
		g, err := s.ws.Rank(workspace.RankOptions{Limit: args.Limit, Kind: kind, Filter: args.Filter})
		if err != nil {
			return errorResult(fmt.Sprintf("Ranking failed: %v", err)), nil, nil
		}
		s.logger.Debug("Ranked reference graph", slog.Int("nodes", len(g.Nodes)), slog.Int("edges", len(g.Edges)))
		return jsonResult(g), nil, nil
	})
}

func featureIDs(idx *model.Index) []string {
	ids := make([]string, 0, len(idx.Features))
	for id := range idx.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
