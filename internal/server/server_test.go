package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/docref/internal/workspace"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "docs/features/01-auth.md", `---
code_references: [src/login.ts]
interfaces:
  provides: [auth/login]
---
`+"```term"+`
term: Session
aliases: [login session]
definition: An authenticated user session.
`+"```"+`
`)
	writeFile(t, dir, "docs/features/02-billing.md", "---\ninterfaces: [auth/login]\n---\nNeeds a [[login session]].\n")
	writeFile(t, dir, "src/login.ts", "export function login() {}\n")
	return dir
}

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	ws, err := workspace.Open(writeProject(t), nil, nil)
	require.NoError(t, err)
	srv := New(ws, "test", "# guidance")

	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverT)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestListTools(t *testing.T) {
	t.Parallel()

	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"build_index",
		"detect_orphans",
		"find_term",
		"get_feature",
		"rank",
		"validate_links",
		"validate_naming",
		"validate_terms",
	}, names)
}

func TestBuildIndexTool(t *testing.T) {
	t.Parallel()

	text, isErr := call(t, connect(t), "build_index", map[string]any{})
	require.False(t, isErr, text)

	var got struct {
		Stats struct {
			Features int `json:"features"`
		} `json:"stats"`
		Problems []string `json:"problems"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, 2, got.Stats.Features)
	assert.Empty(t, got.Problems)
}

func TestFindTermTool(t *testing.T) {
	t.Parallel()

	cs := connect(t)
	text, isErr := call(t, cs, "find_term", map[string]any{"name": "LOGIN SESSION"})
	require.False(t, isErr, text)

	var got struct {
		Term       string `json:"term"`
		UsageCount int    `json:"usage_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, "Session", got.Term)
	assert.Equal(t, 1, got.UsageCount)

	_, isErr = call(t, cs, "find_term", map[string]any{"name": "Ghost"})
	assert.True(t, isErr)
}

func TestGetFeatureTool(t *testing.T) {
	t.Parallel()

	cs := connect(t)
	text, isErr := call(t, cs, "get_feature", map[string]any{"id": "01-auth"})
	require.False(t, isErr, text)

	var got struct {
		ID   string `json:"id"`
		Code []struct {
			Path string `json:"path"`
		} `json:"code"`
		InterfacesProvided []string `json:"interfaces_provided"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, "01-auth", got.ID)
	require.Len(t, got.Code, 1)
	assert.Equal(t, "src/login.ts", got.Code[0].Path)
	assert.Equal(t, []string{"auth/login"}, got.InterfacesProvided)

	text, isErr = call(t, cs, "get_feature", map[string]any{"id": "09-nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "01-auth")
}

func TestValidateLinksTool(t *testing.T) {
	t.Parallel()

	text, isErr := call(t, connect(t), "validate_links", map[string]any{"namespace": "auth"})
	require.False(t, isErr, text)

	var got struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.True(t, got.Success)
}

func TestRankToolRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	text, isErr := call(t, connect(t), "rank", map[string]any{"kind": "term"})
	assert.True(t, isErr)
	assert.Contains(t, text, "term")
}

func TestGuidanceResource(t *testing.T) {
	t.Parallel()

	res, err := connect(t).ReadResource(context.Background(), &mcp.ReadResourceParams{URI: GuidanceURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "# guidance", res.Contents[0].Text)
}

func TestSchemaMap(t *testing.T) {
	t.Parallel()

	m := buildSchemaMap()
	assert.Len(t, m, 8)
	assert.Contains(t, m["get_feature"], `"id"`)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
