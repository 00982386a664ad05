package session

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/fibre/kit"
)

// RegisterMCP registers the session tools on an MCP server:
// fibre_tree, fibre_commits, fibre_stats.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerTreeTool(srv)
	s.registerCommitsTool(srv)
	s.registerStatsTool(srv)
}

func (s *Session) endpoint(name string, fn kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, name))(fn)
}

// --- tree ---

type treeRequest struct {
	Format string `json:"format,omitempty"`
}

type treeResponse struct {
	Format   string     `json:"format"`
	Fibers   []TreeNode `json:"fibers,omitempty"`
	HTML     string     `json:"html,omitempty"`
	Markdown string     `json:"markdown,omitempty"`
}

func (s *Session) registerTreeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fibre_tree",
		Description: "Show the committed UI tree: as fibers, as host HTML, or as Markdown.",
		InputSchema: kit.InputSchema(map[string]any{
			"format": map[string]any{"type": "string", "enum": []any{"fibers", "html", "markdown"}, "description": "Output format (default fibers)"},
		}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*treeRequest)
		resp := &treeResponse{Format: r.Format}
		switch r.Format {
		case "", "fibers":
			resp.Format = "fibers"
			fibers, err := s.Tree(ctx)
			if err != nil {
				return nil, err
			}
			resp.Fibers = fibers
		case "html":
			html, err := s.HTML(ctx)
			if err != nil {
				return nil, err
			}
			resp.HTML = string(html)
		case "markdown":
			md, err := s.Markdown(ctx)
			if err != nil {
				return nil, err
			}
			resp.Markdown = md
		default:
			return nil, fmt.Errorf("unknown format %q", r.Format)
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r treeRequest
		if err := kit.DecodeArgs(req, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.endpoint("fibre_tree", endpoint), decode)
}

// --- commits ---

type commitsRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Session) registerCommitsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fibre_commits",
		Description: "List the latest commit batches, newest first, with the host mutations each one applied.",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max batches (default 50)"},
		}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Commits(ctx, req.(*commitsRequest).Limit)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r commitsRequest
		if err := kit.DecodeArgs(req, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.endpoint("fibre_commits", endpoint), decode)
}

// --- stats ---

func (s *Session) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fibre_stats",
		Description: "Renderer and session counters: renders, commits, abandoned passes, units of work, yields.",
		InputSchema: kit.InputSchema(map[string]any{}),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Stats(ctx)
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.endpoint("fibre_stats", endpoint), decode)
}
