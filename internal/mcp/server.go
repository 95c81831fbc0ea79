package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/xbmcnotify/internal/mcp/handlers"
)

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Forwarder  handlers.Forwarder
	Publisher  handlers.Publisher
	Deliveries handlers.DeliveryLister
	Version    string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"xbmcnotify",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
