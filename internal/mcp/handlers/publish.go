package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/xbmcnotify/internal/bus"
	"github.com/btouchard/xbmcnotify/internal/notification"
)

// Publisher publishes events on the bus.
type Publisher interface {
	Publish(ctx context.Context, evt bus.Event) error
}

// PublishNotification returns a handler that publishes a device notification
// on a topic, as any in-process producer would.
func PublishNotification(p Publisher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		topic, _ := args["topic"].(string)
		if topic == "" {
			return mcp.NewToolResultError("topic is required"), nil
		}

		payload := notification.Payload{}
		payload.DeviceURI, _ = args["device_uri"].(string)
		payload.State, _ = args["state"].(string)
		payload.Value, _ = args["value"].(string)
		payload.Unit, _ = args["unit"].(string)

		n, err := payload.Notification()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid notification: %s", err)), nil
		}

		evt := bus.Event{
			Topic:      topic,
			Payload:    n,
			Properties: map[string]string{"source": "mcp"},
		}
		if err := p.Publish(ctx, evt); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Publish failed: %s", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Published %s notification for %s on %s.", n.Kind(), n.DeviceURI(), topic)), nil
	}
}
