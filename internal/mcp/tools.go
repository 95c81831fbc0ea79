package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/xbmcnotify/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// configure_forwarding: Replace the server and topic sets
	s.AddTool(
		mcp.NewTool("configure_forwarding",
			mcp.WithDescription("Replace the XBMC servers and bus topics notifications are forwarded for. Both lists are comma-separated; the previous configuration is kept if either is malformed."),
			mcp.WithString("servers",
				mcp.Required(),
				mcp.Description("Comma-separated XBMC base URLs, e.g. http://kodi:8080"),
			),
			mcp.WithString("topics",
				mcp.Required(),
				mcp.Description("Comma-separated topics; a trailing /* matches every topic below the prefix"),
			),
			mcp.WithBoolean("resubscribe",
				mcp.Description("Re-register the bus subscription so topic changes take effect immediately"),
			),
		),
		handlers.ConfigureForwarding(deps.Forwarder),
	)

	// forwarding_status: Show dispatcher state
	s.AddTool(
		mcp.NewTool("forwarding_status",
			mcp.WithDescription("Show the configured topics and servers and whether the bus subscription is active."),
		),
		handlers.ForwardingStatus(deps.Forwarder),
	)

	// publish_notification: Publish a device notification on the bus
	s.AddTool(
		mcp.NewTool("publish_notification",
			mcp.WithDescription("Publish a device notification on a bus topic. It is forwarded to the configured servers if the topic is subscribed."),
			mcp.WithString("topic",
				mcp.Required(),
				mcp.Description("Bus topic to publish on"),
			),
			mcp.WithString("device_uri",
				mcp.Required(),
				mcp.Description("Identifier of the device that changed"),
			),
			mcp.WithString("state",
				mcp.Description("Named state the device entered. Mutually exclusive with value."),
			),
			mcp.WithString("value",
				mcp.Description("Measured value. Mutually exclusive with state."),
			),
			mcp.WithString("unit",
				mcp.Description("Unit of value"),
			),
		),
		handlers.PublishNotification(deps.Publisher),
	)

	// list_deliveries: Inspect the delivery journal
	if deps.Deliveries != nil {
		s.AddTool(
			mcp.NewTool("list_deliveries",
				mcp.WithDescription("List recent per-server delivery outcomes, newest first."),
				mcp.WithString("server",
					mcp.Description("Only deliveries to this server"),
				),
				mcp.WithString("task_id",
					mcp.Description("Only deliveries of this task"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of deliveries to return (default: 20)"),
				),
			),
			handlers.ListDeliveries(deps.Deliveries),
		)
	}
}
