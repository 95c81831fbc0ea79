package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/xbmcnotify/internal/bus"
	"github.com/btouchard/xbmcnotify/internal/delivery"
	"github.com/btouchard/xbmcnotify/internal/dispatcher"
	"github.com/btouchard/xbmcnotify/internal/notification"
	"github.com/btouchard/xbmcnotify/internal/store"
)

func makeReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	return result.Content[0].(mcp.TextContent).Text
}

type nopQueue struct{}

func (nopQueue) Submit(delivery.Task) error { return nil }

func newTestDispatcher(t *testing.T) (*dispatcher.Dispatcher, *bus.Memory) {
	t.Helper()
	b := bus.NewMemory(bus.Config{})
	t.Cleanup(b.Close)
	d := dispatcher.New(dispatcher.BusRegistrar{Bus: b}, nopQueue{})
	require.NoError(t, d.Activate())
	t.Cleanup(d.Deactivate)
	return d, b
}

// --- ConfigureForwarding tests ---

func TestConfigureForwarding_WhenValid_AppliesAndReportsState(t *testing.T) {
	t.Parallel()
	d, b := newTestDispatcher(t)
	handler := ConfigureForwarding(d)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"servers": "http://kodi:8080/, http://tv:8080",
		"topics":  "org/dog/*",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Subscribed: yes")
	assert.Contains(t, text, "http://kodi:8080\n")
	assert.Contains(t, text, "org/dog/*")
	assert.Equal(t, 1, b.SubscriptionCount())
}

func TestConfigureForwarding_WhenMissingArgs_ReturnsError(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)
	handler := ConfigureForwarding(d)

	result, err := handler(context.Background(), makeReq(map[string]any{"topics": "a"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "servers is required")

	result, err = handler(context.Background(), makeReq(map[string]any{"servers": "http://kodi"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "topics is required")
}

func TestConfigureForwarding_WhenInvalidServer_KeepsPriorState(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)
	handler := ConfigureForwarding(d)

	_, err := handler(context.Background(), makeReq(map[string]any{"servers": "http://kodi", "topics": "a"}))
	require.NoError(t, err)

	result, err := handler(context.Background(), makeReq(map[string]any{"servers": "ftp://kodi", "topics": "b"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Invalid configuration")

	st := d.State()
	assert.Equal(t, []string{"http://kodi"}, st.Servers)
	assert.Equal(t, []string{"a"}, st.Topics)
}

func TestConfigureForwarding_WhenResubscribe_UsesNewTopics(t *testing.T) {
	t.Parallel()
	d, b := newTestDispatcher(t)
	handler := ConfigureForwarding(d)

	_, err := handler(context.Background(), makeReq(map[string]any{"servers": "http://kodi", "topics": "a"}))
	require.NoError(t, err)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"servers":     "http://kodi",
		"topics":      "b",
		"resubscribe": true,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, 1, b.SubscriptionCount())
}

// --- ForwardingStatus tests ---

func TestForwardingStatus_WhenUnconfigured_ShowsNone(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)

	result, err := ForwardingStatus(d)(context.Background(), makeReq(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Dispatcher: active | Subscribed: no")
	assert.Contains(t, text, "Topics: (none)")
	assert.Contains(t, text, "Servers: (none)")
}

// --- PublishNotification tests ---

type capturePublisher struct {
	events []bus.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, evt bus.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func TestPublishNotification_WhenState_PublishesTypedPayload(t *testing.T) {
	t.Parallel()
	p := &capturePublisher{}
	handler := PublishNotification(p)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"topic":      "org/dog/StateChanged",
		"device_uri": "dog:1234",
		"state":      "on",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "state notification for dog:1234")

	require.Len(t, p.events, 1)
	assert.Equal(t, "org/dog/StateChanged", p.events[0].Topic)
	assert.Equal(t, notification.StateNotification{Device: "dog:1234", State: "on"}, p.events[0].Payload)
	assert.Equal(t, "mcp", p.events[0].Properties["source"])
}

func TestPublishNotification_WhenValue_PublishesValueVariant(t *testing.T) {
	t.Parallel()
	p := &capturePublisher{}

	_, err := PublishNotification(p)(context.Background(), makeReq(map[string]any{
		"topic":      "org/meter/Reading",
		"device_uri": "meter:1",
		"value":      "21.5",
		"unit":       "C",
	}))
	require.NoError(t, err)

	require.Len(t, p.events, 1)
	assert.Equal(t, notification.ValueNotification{Device: "meter:1", Value: "21.5", Unit: "C"}, p.events[0].Payload)
}

func TestPublishNotification_WhenInvalid_ReturnsError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no topic", map[string]any{"device_uri": "d", "state": "on"}, "topic is required"},
		{"no device", map[string]any{"topic": "t", "state": "on"}, "device_uri is required"},
		{"no state or value", map[string]any{"topic": "t", "device_uri": "d"}, "one of state or value"},
	}
	for _, tt := range tests {
		p := &capturePublisher{}
		result, err := PublishNotification(p)(context.Background(), makeReq(tt.args))
		require.NoError(t, err, tt.name)
		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, resultText(t, result), tt.want, tt.name)
		assert.Empty(t, p.events, tt.name)
	}
}

func TestPublishNotification_WhenBusClosed_ReturnsError(t *testing.T) {
	t.Parallel()
	p := &capturePublisher{err: bus.ErrClosed}

	result, err := PublishNotification(p)(context.Background(), makeReq(map[string]any{
		"topic": "t", "device_uri": "d", "state": "on",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "bus closed")
}

// --- ListDeliveries tests ---

type fakeJournal struct {
	records []store.DeliveryRecord
	got     store.DeliveryFilter
	err     error
}

func (j *fakeJournal) ListDeliveries(f store.DeliveryFilter) ([]store.DeliveryRecord, error) {
	j.got = f
	return j.records, j.err
}

func TestListDeliveries_WhenEmpty_SaysSo(t *testing.T) {
	t.Parallel()

	result, err := ListDeliveries(&fakeJournal{})(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No deliveries found")
}

func TestListDeliveries_FormatsSuccessAndFailure(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j := &fakeJournal{records: []store.DeliveryRecord{
		{TaskID: "t1", Server: "http://kodi", StatusCode: 200, DurationMs: 12, Topic: "org/dog", DeviceURI: "dog:1", Message: "The dog:1 is now in on state.", CreatedAt: at},
		{TaskID: "t1", Server: "http://tv", Error: "connection refused", Topic: "org/dog", DeviceURI: "dog:1", CreatedAt: at},
	}}

	result, err := ListDeliveries(j)(context.Background(), makeReq(map[string]any{
		"server": "http://kodi",
		"limit":  float64(5),
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Deliveries (2 found)")
	assert.Contains(t, text, "OK   t1 -> http://kodi (HTTP 200, 12ms)")
	assert.Contains(t, text, "FAIL t1 -> http://tv (connection refused)")
	assert.Contains(t, text, `"The dog:1 is now in on state."`)
	assert.Equal(t, store.DeliveryFilter{Server: "http://kodi", Limit: 5}, j.got)
}

func TestListDeliveries_WhenStoreFails_ReturnsError(t *testing.T) {
	t.Parallel()

	result, err := ListDeliveries(&fakeJournal{err: errors.New("disk full")})(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "disk full")
}
