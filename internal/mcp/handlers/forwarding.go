package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/xbmcnotify/internal/config"
	"github.com/btouchard/xbmcnotify/internal/dispatcher"
)

// Forwarder is the dispatcher surface used by the forwarding tools.
type Forwarder interface {
	ApplyConfiguration(props map[string]string) error
	Resubscribe() error
	State() dispatcher.State
}

// ConfigureForwarding returns a handler that replaces the server and topic sets.
func ConfigureForwarding(f Forwarder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		servers, ok := args["servers"].(string)
		if !ok {
			return mcp.NewToolResultError("servers is required"), nil
		}
		topics, ok := args["topics"].(string)
		if !ok {
			return mcp.NewToolResultError("topics is required"), nil
		}

		err := f.ApplyConfiguration(map[string]string{
			config.KeyServers: servers,
			config.KeyTopics:  topics,
		})
		var fe *config.ForwardingError
		switch {
		case errors.As(err, &fe):
			return mcp.NewToolResultError(fmt.Sprintf("Invalid configuration: %s", err)), nil
		case err != nil:
			return mcp.NewToolResultError(fmt.Sprintf("Configuration applied but subscription failed: %s", err)), nil
		}

		if resub, _ := args["resubscribe"].(bool); resub {
			if err := f.Resubscribe(); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Resubscribe failed: %s", err)), nil
			}
		}

		return mcp.NewToolResultText("Forwarding configuration applied.\n\n" + formatState(f.State())), nil
	}
}

// ForwardingStatus returns a handler that reports the dispatcher state.
func ForwardingStatus(f Forwarder) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(formatState(f.State())), nil
	}
}

func formatState(st dispatcher.State) string {
	var sb strings.Builder

	status := "inactive"
	if st.Active {
		status = "active"
	}
	subscribed := "no"
	if st.Subscribed {
		subscribed = "yes"
	}
	fmt.Fprintf(&sb, "Dispatcher: %s | Subscribed: %s\n", status, subscribed)

	writeList(&sb, "Topics", st.Topics)
	writeList(&sb, "Servers", st.Servers)
	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "%s: (none)\n", label)
		return
	}
	fmt.Fprintf(sb, "%s (%d):\n", label, len(items))
	for _, it := range items {
		fmt.Fprintf(sb, "  - %s\n", it)
	}
}
