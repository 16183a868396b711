// Package server exposes the docref passes as MCP tools over stdio.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/phobologic/docref/internal/workspace"
)

// GuidanceURI is the resource holding agent usage guidance.
const GuidanceURI = "docref://guidance"

// Server serves one workspace.
type Server struct {
	ws        *workspace.Workspace
	logger    *slog.Logger
	guidance  string
	mcpServer *mcp.Server

	// mu serializes tool calls. Passes share the workspace parser and
	// rebuilds replace the snapshot, so only one runs at a time.
	mu sync.Mutex
}

// New creates a server for ws. guidance is published as a markdown resource.
func New(ws *workspace.Workspace, version, guidance string) *Server {
	s := &Server{
		ws:       ws,
		logger:   ws.Logger,
		guidance: guidance,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "docref",
			Version: version,
		}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio", slog.String("root", s.ws.Root))
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session on t. It is used to run the server over
// transports other than stdio.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encoding result: " + err.Error())
	}
	return textResult(string(data))
}
