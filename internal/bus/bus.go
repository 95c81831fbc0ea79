// Package bus provides the topic-filtered publish/subscribe facility the
// dispatcher registers with.
package bus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned when publishing to or subscribing on a closed bus.
	ErrClosed = errors.New("bus closed")
	// ErrInvalidTopic is returned for empty topics or misplaced wildcards.
	ErrInvalidTopic = errors.New("invalid topic")
)

// Event is a message published on a topic. Payload is owned by the publisher
// and must not be mutated by handlers.
type Event struct {
	Topic      string
	Payload    any
	Properties map[string]string
}

// Handler receives events for the topics it was registered for.
// It runs on a goroutine owned by the bus.
type Handler func(Event)

// Config tunes the in-memory bus.
type Config struct {
	// BufferSize is the per-subscription queue length. Events published while
	// the queue is full are dropped.
	BufferSize int
}

func (c Config) normalize() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	return c
}

// Match reports whether topic is selected by pattern. A pattern is either an
// exact topic, "*" for every topic, or a prefix ending in "/*" which selects
// every topic below that prefix.
func Match(pattern, topic string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix) && len(topic) > len(prefix)
	}
	return pattern == topic
}

// ValidatePattern checks a subscription pattern.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidTopic)
	}
	if pattern == "*" {
		return nil
	}
	idx := strings.Index(pattern, "*")
	if idx == -1 {
		return nil
	}
	if idx != len(pattern)-1 || !strings.HasSuffix(pattern, "/*") {
		return fmt.Errorf("%w: wildcard only allowed as trailing /* in %q", ErrInvalidTopic, pattern)
	}
	return nil
}

// ValidateTopic checks a concrete publish topic.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.Contains(topic, "*") {
		return fmt.Errorf("%w: wildcard not allowed in published topic %q", ErrInvalidTopic, topic)
	}
	return nil
}
