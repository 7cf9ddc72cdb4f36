package guard

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/linkguard/internal/kit"
)

// RegisterMCP registers the linkguard tools on an MCP server.
func (c *Control) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "linkguard_classify",
		Description: "Classify a URL or text as benign, defacement, phishing or malware.",
		InputSchema: inputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "URL or text to classify"},
		}, []string{"text"}),
	}, c.wrap("classify", c.Classify), kit.DecodeArgs[ClassifyRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "linkguard_set_feature",
		Description: "Turn a linkguard feature on or off (hide, unclickable, hover, selection, report).",
		InputSchema: inputSchema(map[string]any{
			"name":   map[string]any{"type": "string", "description": "Feature name or flag key"},
			"active": map[string]any{"type": "boolean", "description": "Desired state"},
		}, []string{"name", "active"}),
	}, c.wrap("set_feature", c.SetFeature), kit.DecodeArgs[SetFeatureRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "linkguard_status",
		Description: "Report feature flags, link counts and classifier statistics.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, c.wrap("status", c.Status), func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	})
}

// ServeMCP serves the tools over stdio until ctx ends.
func (c *Control) ServeMCP(ctx context.Context, version string) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: AppName, Version: version}, nil)
	c.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
