package telemetry

import "go.opentelemetry.io/otel/attribute"

// Metric names shared between instruments and views.
const (
	MetricDeliveryRequests = "xbmcnotify.delivery.requests"
	MetricDeliveryDuration = "xbmcnotify.delivery.duration"
	MetricTasksCompleted   = "xbmcnotify.delivery.tasks"
	MetricQueueDepth       = "xbmcnotify.delivery.queue.depth"
)

// Result values recorded on delivery metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Attribute keys used across the service.
var (
	AttrServer = attribute.Key("server")
	AttrResult = attribute.Key("result")
	AttrTopic  = attribute.Key("topic")
)
