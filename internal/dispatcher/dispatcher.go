// Package dispatcher turns forwarding configuration into a bus subscription
// and routes matching notification events to the delivery queue.
package dispatcher

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/btouchard/xbmcnotify/internal/bus"
	"github.com/btouchard/xbmcnotify/internal/config"
	"github.com/btouchard/xbmcnotify/internal/delivery"
	"github.com/btouchard/xbmcnotify/internal/notification"
)

// Subscription is a live bus registration.
type Subscription interface {
	Unregister()
}

// Registrar registers handlers for a set of topic patterns.
type Registrar interface {
	Subscribe(topics []string, handler bus.Handler) (Subscription, error)
}

// Submitter accepts delivery tasks without waiting for them to run.
type Submitter interface {
	Submit(task delivery.Task) error
}

// Persister stores the last accepted forwarding properties.
type Persister interface {
	SaveForwarding(props map[string]string) error
}

// State is a read-only view of the dispatcher.
type State struct {
	Topics     []string `json:"topics"`
	Servers    []string `json:"servers"`
	Active     bool     `json:"active"`
	Subscribed bool     `json:"subscribed"`
}

// Dispatcher owns the forwarding configuration and the single bus
// subscription derived from it.
type Dispatcher struct {
	registrar Registrar
	queue     Submitter
	persister Persister

	mu      sync.Mutex
	topics  []string
	servers []string
	active  bool
	sub     Subscription
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPersister saves every configuration accepted by ApplyConfiguration through p.
func WithPersister(p Persister) Option {
	return func(d *Dispatcher) { d.persister = p }
}

// New creates an inactive, unconfigured Dispatcher.
func New(registrar Registrar, queue Submitter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registrar: registrar,
		queue:     queue,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ApplyConfiguration replaces the topic and server sets with those in props.
// An empty or nil props is ignored. Malformed props return a
// *config.ForwardingError and leave the current state untouched.
//
// When active, configured, and not yet subscribed, a subscription is
// established. An existing subscription is kept as is: topic changes take
// effect on the next Activate or Resubscribe.
func (d *Dispatcher) ApplyConfiguration(props map[string]string) error {
	return d.apply(props, true)
}

// Restore applies props like ApplyConfiguration but never hands them to the
// persister. Startup configuration goes through here so that only updates
// pushed at runtime are remembered across restarts.
func (d *Dispatcher) Restore(props map[string]string) error {
	return d.apply(props, false)
}

func (d *Dispatcher) apply(props map[string]string, persist bool) error {
	if len(props) == 0 {
		return nil
	}

	slog.Info("received forwarding configuration")

	fwd, err := config.ParseForwarding(props)
	if err != nil {
		slog.Warn("rejected forwarding configuration", "error", err)
		return err
	}
	for _, topic := range fwd.Topics {
		if err := bus.ValidatePattern(topic); err != nil {
			err = &config.ForwardingError{Key: config.KeyTopics, Err: err}
			slog.Warn("rejected forwarding configuration", "error", err)
			return err
		}
	}

	d.mu.Lock()
	d.topics = fwd.Topics
	d.servers = fwd.Servers
	var subErr error
	if d.shouldSubscribeLocked() {
		subErr = d.registerLocked()
	}
	d.mu.Unlock()

	slog.Info("forwarding configuration applied",
		"topics", fwd.Topics,
		"servers", fwd.Servers)

	if persist && d.persister != nil {
		if err := d.persister.SaveForwarding(maps.Clone(props)); err != nil {
			slog.Warn("failed to persist forwarding configuration", "error", err)
		}
	}

	return subErr
}

// OnEvent is the bus handler. Events whose payload is not a notification are
// ignored; others are queued for delivery to a snapshot of the current servers.
func (d *Dispatcher) OnEvent(evt bus.Event) {
	n, ok := evt.Payload.(notification.Notification)
	if !ok {
		slog.Debug("ignoring non-notification event", "topic", evt.Topic, "payload_type", fmt.Sprintf("%T", evt.Payload))
		return
	}

	d.mu.Lock()
	servers := slices.Clone(d.servers)
	d.mu.Unlock()

	slog.Debug("received notification", "topic", evt.Topic, "device_uri", n.DeviceURI())

	task := delivery.NewTask(evt.Topic, n, servers)
	if err := d.queue.Submit(task); err != nil {
		slog.Warn("failed to queue notification", "topic", evt.Topic, "task_id", task.ID, "error", err)
	}
}

// Activate starts the dispatcher and subscribes if a configuration is
// already present.
func (d *Dispatcher) Activate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.active = true
	slog.Info("dispatcher activated")

	if d.shouldSubscribeLocked() {
		return d.registerLocked()
	}
	return nil
}

// Deactivate releases the subscription. Configuration is kept; a later
// Activate subscribes again. Safe to call repeatedly.
func (d *Dispatcher) Deactivate() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		slog.Info("dispatcher deactivated")
	}
	d.active = false
	d.unregisterLocked()
}

// Resubscribe replaces the current subscription with one for the current
// topic set. It does nothing while inactive or unconfigured.
func (d *Dispatcher) Resubscribe() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.unregisterLocked()
	if d.shouldSubscribeLocked() {
		return d.registerLocked()
	}
	return nil
}

// State returns a snapshot of the current configuration and lifecycle.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return State{
		Topics:     slices.Clone(d.topics),
		Servers:    slices.Clone(d.servers),
		Active:     d.active,
		Subscribed: d.sub != nil,
	}
}

func (d *Dispatcher) shouldSubscribeLocked() bool {
	return d.active && d.sub == nil && len(d.topics) > 0 && len(d.servers) > 0
}

func (d *Dispatcher) registerLocked() error {
	if d.sub != nil {
		slog.Debug("subscription already registered", "topics", d.topics)
		return nil
	}

	sub, err := d.registrar.Subscribe(slices.Clone(d.topics), d.OnEvent)
	if err != nil {
		return fmt.Errorf("subscribing to topics: %w", err)
	}
	d.sub = sub

	slog.Info("subscribed to topics", "topics", d.topics)
	return nil
}

func (d *Dispatcher) unregisterLocked() {
	if d.sub == nil {
		return
	}
	d.sub.Unregister()
	d.sub = nil
	slog.Info("unsubscribed from topics")
}
