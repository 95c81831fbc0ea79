package bus

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Memory is an in-process bus. Each subscription is served by its own
// goroutine so a slow handler never blocks publishers or other subscribers.
type Memory struct {
	cfg Config

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	wg     conc.WaitGroup

	publishedCounter metric.Int64Counter
	droppedCounter   metric.Int64Counter
	subscriberGauge  metric.Int64UpDownCounter
}

// Subscription is the live registration returned by Subscribe.
type Subscription struct {
	ID     string
	topics []string

	bus     *Memory
	handler Handler
	ch      chan Event
	done    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-memory bus.
func NewMemory(cfg Config) *Memory {
	b := &Memory{
		cfg:  cfg.normalize(),
		subs: make(map[string]*Subscription),
	}

	meter := otel.Meter("xbmcnotify/bus")
	b.publishedCounter, _ = meter.Int64Counter("xbmcnotify.bus.events.published",
		metric.WithDescription("Number of events published to the bus"),
		metric.WithUnit("{event}"))
	b.droppedCounter, _ = meter.Int64Counter("xbmcnotify.bus.events.dropped",
		metric.WithDescription("Number of events dropped because a subscriber queue was full"),
		metric.WithUnit("{event}"))
	b.subscriberGauge, _ = meter.Int64UpDownCounter("xbmcnotify.bus.subscribers",
		metric.WithDescription("Number of active subscriptions"),
		metric.WithUnit("{subscriber}"))

	return b
}

// Subscribe registers handler for every topic matched by one of the given patterns.
func (b *Memory) Subscribe(topics []string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: at least one topic is required", ErrInvalidTopic)
	}
	for _, t := range topics {
		if err := ValidatePattern(t); err != nil {
			return nil, err
		}
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		topics:  slices.Clone(topics),
		bus:     b,
		handler: handler,
		ch:      make(chan Event, b.cfg.BufferSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[sub.ID] = sub
	b.wg.Go(sub.loop)
	b.mu.Unlock()

	if b.subscriberGauge != nil {
		b.subscriberGauge.Add(context.Background(), 1)
	}

	slog.Debug("bus subscription registered", "subscription_id", sub.ID, "topics", sub.topics)
	return sub, nil
}

// Publish hands evt to every subscription whose patterns match its topic.
// It never blocks on handlers.
func (b *Memory) Publish(ctx context.Context, evt Event) error {
	if err := ValidateTopic(evt.Topic); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	var targets []*Subscription
	for _, sub := range b.subs {
		if sub.matches(evt.Topic) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	topicAttr := metric.WithAttributes(attribute.String("topic", evt.Topic))
	if b.publishedCounter != nil {
		b.publishedCounter.Add(ctx, 1, topicAttr)
	}

	for _, sub := range targets {
		select {
		case <-sub.done:
		case sub.ch <- evt:
		default:
			slog.Warn("bus subscriber queue full, dropping event",
				"subscription_id", sub.ID,
				"topic", evt.Topic)
			if b.droppedCounter != nil {
				b.droppedCounter.Add(ctx, 1, topicAttr)
			}
		}
	}

	return nil
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Memory) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters every subscription and waits for their goroutines to exit.
func (b *Memory) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Unregister()
	}
	b.wg.Wait()
}

func (b *Memory) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub.ID)
	b.mu.Unlock()

	if b.subscriberGauge != nil {
		b.subscriberGauge.Add(context.Background(), -1)
	}
}

// Topics returns the patterns this subscription was registered with.
func (s *Subscription) Topics() []string {
	return slices.Clone(s.topics)
}

// Unregister stops delivery to the handler. Events already queued are discarded.
// Calling it more than once is a no-op.
func (s *Subscription) Unregister() {
	s.once.Do(func() {
		close(s.done)
		s.bus.remove(s)
		slog.Debug("bus subscription unregistered", "subscription_id", s.ID)
	})
}

func (s *Subscription) matches(topic string) bool {
	for _, pattern := range s.topics {
		if Match(pattern, topic) {
			return true
		}
	}
	return false
}

func (s *Subscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.ch:
			// done may have closed while this event was waiting
			select {
			case <-s.done:
				return
			default:
			}
			s.deliver(evt)
		}
	}
}

func (s *Subscription) deliver(evt Event) {
	var pc panics.Catcher
	pc.Try(func() { s.handler(evt) })
	if r := pc.Recovered(); r != nil {
		slog.Error("bus handler panicked",
			"subscription_id", s.ID,
			"topic", evt.Topic,
			"panic", r.Value)
	}
}
