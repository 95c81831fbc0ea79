package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

func newTestBus(t *testing.T) *Memory {
	t.Helper()
	b := NewMemory(Config{})
	t.Cleanup(b.Close)
	return b
}

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"org/dog/StateChanged", "org/dog/StateChanged", true},
		{"org/dog/StateChanged", "org/dog/Other", false},
		{"*", "anything/at/all", true},
		{"org/dog/*", "org/dog/StateChanged", true},
		{"org/dog/*", "org/dog/sub/Deep", true},
		{"org/dog/*", "org/dog", false},
		{"org/dog/*", "org/dogs/x", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.topic), "Match(%q, %q)", tt.pattern, tt.topic)
	}
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePattern("a/b"))
	assert.NoError(t, ValidatePattern("*"))
	assert.NoError(t, ValidatePattern("a/b/*"))
	assert.ErrorIs(t, ValidatePattern(""), ErrInvalidTopic)
	assert.ErrorIs(t, ValidatePattern("a/*/b"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidatePattern("a*"), ErrInvalidTopic)
}

func TestMemory_PublishDeliversToMatchingSubscribers(t *testing.T) {
	t.Parallel()
	b := newTestBus(t)

	var rec recorder
	_, err := b.Subscribe([]string{"dog/state/*"}, rec.handle)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, Event{Topic: "dog/state/on"}))
	require.NoError(t, b.Publish(ctx, Event{Topic: "dog/value/temp"}))
	require.NoError(t, b.Publish(ctx, Event{Topic: "dog/state/off"}))

	require.Eventually(t, func() bool { return len(rec.topics()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"dog/state/on", "dog/state/off"}, rec.topics())
}

func TestMemory_UnregisterStopsDelivery(t *testing.T) {
	t.Parallel()
	b := newTestBus(t)

	var rec recorder
	sub, err := b.Subscribe([]string{"t"}, rec.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, b.SubscriptionCount())

	sub.Unregister()
	sub.Unregister()
	assert.Equal(t, 0, b.SubscriptionCount())

	require.NoError(t, b.Publish(context.Background(), Event{Topic: "t"}))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.topics())
}

func TestMemory_SubscribeRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	b := newTestBus(t)

	_, err := b.Subscribe(nil, func(Event) {})
	require.ErrorIs(t, err, ErrInvalidTopic)

	_, err = b.Subscribe([]string{"a/*/b"}, func(Event) {})
	require.ErrorIs(t, err, ErrInvalidTopic)

	_, err = b.Subscribe([]string{"a"}, nil)
	require.Error(t, err)
}

func TestMemory_PublishRejectsWildcardTopic(t *testing.T) {
	t.Parallel()
	b := newTestBus(t)

	err := b.Publish(context.Background(), Event{Topic: "a/*"})
	require.ErrorIs(t, err, ErrInvalidTopic)
}

func TestMemory_HandlerPanicDoesNotKillSubscription(t *testing.T) {
	t.Parallel()
	b := newTestBus(t)

	var rec recorder
	_, err := b.Subscribe([]string{"t"}, func(evt Event) {
		if evt.Payload == "boom" {
			panic("boom")
		}
		rec.handle(evt)
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, Event{Topic: "t", Payload: "boom"}))
	require.NoError(t, b.Publish(ctx, Event{Topic: "t", Payload: "ok"}))

	require.Eventually(t, func() bool { return len(rec.topics()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemory_FullQueueDropsWithoutBlocking(t *testing.T) {
	t.Parallel()
	b := NewMemory(Config{BufferSize: 1})
	release := make(chan struct{})
	t.Cleanup(func() {
		close(release)
		b.Close()
	})

	started := make(chan struct{}, 1)
	_, err := b.Subscribe([]string{"t"}, func(Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, Event{Topic: "t"}))
	<-started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = b.Publish(ctx, Event{Topic: "t"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber queue")
	}
}

func TestMemory_CloseRejectsFurtherUse(t *testing.T) {
	t.Parallel()
	b := NewMemory(Config{})

	_, err := b.Subscribe([]string{"t"}, func(Event) {})
	require.NoError(t, err)

	b.Close()
	b.Close()

	assert.Equal(t, 0, b.SubscriptionCount())
	assert.ErrorIs(t, b.Publish(context.Background(), Event{Topic: "t"}), ErrClosed)
	_, err = b.Subscribe([]string{"t"}, func(Event) {})
	assert.ErrorIs(t, err, ErrClosed)
}
