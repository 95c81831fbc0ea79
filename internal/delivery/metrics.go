package delivery

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/btouchard/xbmcnotify/internal/telemetry"
)

type metrics struct {
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
	tasks      metric.Int64Counter
	queueDepth metric.Int64UpDownCounter
}

func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("xbmcnotify/delivery")

	m := &metrics{}
	m.requests, _ = meter.Int64Counter(telemetry.MetricDeliveryRequests,
		metric.WithDescription("JSON-RPC notification requests per server and result"),
		metric.WithUnit("{request}"))
	m.duration, _ = meter.Float64Histogram(telemetry.MetricDeliveryDuration,
		metric.WithDescription("Latency of JSON-RPC notification requests"),
		metric.WithUnit("ms"))
	m.tasks, _ = meter.Int64Counter(telemetry.MetricTasksCompleted,
		metric.WithDescription("Delivery tasks executed"),
		metric.WithUnit("{task}"))
	m.queueDepth, _ = meter.Int64UpDownCounter(telemetry.MetricQueueDepth,
		metric.WithDescription("Delivery tasks waiting for a worker"),
		metric.WithUnit("{task}"))
	return m
}
