package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/metric"

	"github.com/btouchard/xbmcnotify/internal/notification"
	"github.com/btouchard/xbmcnotify/internal/store"
	"github.com/btouchard/xbmcnotify/internal/telemetry"
)

// maxDrainBytes bounds how much of a response body is read before closing,
// so keep-alive connections can be reused.
const maxDrainBytes = 64 << 10

// Journal records the outcome of each per-server delivery.
type Journal interface {
	AddDelivery(d *store.DeliveryRecord) error
}

// SenderOptions configures a Sender. Zero values select defaults.
type SenderOptions struct {
	Client         *http.Client
	RequestTimeout time.Duration
	Title          string
	Image          string
	Journal        Journal
	MeterProvider  metric.MeterProvider
}

// Sender executes delivery tasks. Servers are contacted one after the other;
// a failure on one never prevents delivery to the next.
type Sender struct {
	client  *http.Client
	timeout time.Duration
	title   string
	image   string
	journal Journal
	metrics *metrics
}

// NewSender creates a Sender.
func NewSender(opts SenderOptions) *Sender {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	return &Sender{
		client:  opts.Client,
		timeout: opts.RequestTimeout,
		title:   opts.Title,
		image:   opts.Image,
		journal: opts.Journal,
		metrics: newMetrics(opts.MeterProvider),
	}
}

// Execute renders task's notification and posts it to every server of the task.
// Failures are logged and recorded; nothing is returned to the caller.
func (s *Sender) Execute(ctx context.Context, task Task) {
	message, err := notification.Render(task.Notification)
	if err != nil {
		slog.Error("unable to render notification, sending empty message",
			"task_id", task.ID,
			"topic", task.Topic,
			"error", err)
	}

	body, err := json.Marshal(NewShowNotification(s.title, message, s.image))
	if err != nil {
		slog.Error("encoding notification request",
			"task_id", task.ID,
			"error", err)
		return
	}

	for _, server := range task.Servers {
		var pc panics.Catcher
		pc.Try(func() { s.deliver(ctx, task, server, message, body) })
		if r := pc.Recovered(); r != nil {
			slog.Error("delivery panicked",
				"task_id", task.ID,
				"server", server,
				"panic", r.Value)
		}
	}

	if s.metrics.tasks != nil {
		s.metrics.tasks.Add(ctx, 1, metric.WithAttributes(telemetry.AttrTopic.String(task.Topic)))
	}
}

func (s *Sender) deliver(ctx context.Context, task Task, server, message string, body []byte) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	status, err := s.post(reqCtx, server, body)
	elapsed := time.Since(start)

	rec := &store.DeliveryRecord{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		Server:     server,
		Topic:      task.Topic,
		Message:    message,
		StatusCode: status,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  start,
	}
	if task.Notification != nil {
		rec.DeviceURI = task.Notification.DeviceURI()
	}

	result := telemetry.ResultSuccess
	if err != nil {
		result = telemetry.ResultFailure
		rec.Error = err.Error()
		slog.Error("error while delivering notification",
			"task_id", task.ID,
			"server", server,
			"error", err)
	} else {
		slog.Info("notification delivered",
			"task_id", task.ID,
			"server", server,
			"status", status,
			"duration", elapsed)
	}

	attrs := metric.WithAttributes(
		telemetry.AttrServer.String(server),
		telemetry.AttrResult.String(result),
	)
	if s.metrics.requests != nil {
		s.metrics.requests.Add(ctx, 1, attrs)
	}
	if s.metrics.duration != nil {
		s.metrics.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}

	if s.journal != nil {
		if err := s.journal.AddDelivery(rec); err != nil {
			slog.Warn("failed to record delivery", "task_id", task.ID, "server", server, "error", err)
		}
	}
}

func (s *Sender) post(ctx context.Context, server string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint(server), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("posting notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}
