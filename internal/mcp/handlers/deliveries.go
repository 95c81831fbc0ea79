package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/xbmcnotify/internal/store"
)

// DeliveryLister reads the delivery journal.
type DeliveryLister interface {
	ListDeliveries(f store.DeliveryFilter) ([]store.DeliveryRecord, error)
}

// ListDeliveries returns a handler that lists recent delivery outcomes.
func ListDeliveries(l DeliveryLister) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		filter := store.DeliveryFilter{
			Limit: 20,
		}
		if s, ok := args["server"].(string); ok {
			filter.Server = s
		}
		if id, ok := args["task_id"].(string); ok {
			filter.TaskID = id
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = min(int(limit), 500)
		}

		records, err := l.ListDeliveries(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list deliveries: %s", err)), nil
		}

		if len(records) == 0 {
			return mcp.NewToolResultText("No deliveries found matching the given filters."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Deliveries (%d found)\n\n", len(records))

		for _, d := range records {
			if d.Succeeded() {
				fmt.Fprintf(&sb, "OK   %s -> %s (HTTP %d, %dms)\n", d.TaskID, d.Server, d.StatusCode, d.DurationMs)
			} else {
				fmt.Fprintf(&sb, "FAIL %s -> %s (%s)\n", d.TaskID, d.Server, d.Error)
			}
			fmt.Fprintf(&sb, "  Topic: %s | Device: %s | At: %s\n", d.Topic, d.DeviceURI, d.CreatedAt.Format("2006-01-02 15:04:05"))
			if d.Message != "" {
				fmt.Fprintf(&sb, "  %q\n", d.Message)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
