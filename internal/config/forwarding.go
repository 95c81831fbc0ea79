package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Forwarding property keys, as pushed by the configuration source.
const (
	KeyServers = "xbmc_servers"
	KeyTopics  = "topics_to_forward"
)

var (
	// ErrMissingKey reports a forwarding property that must be present.
	ErrMissingKey = errors.New("missing required key")
	// ErrInvalidServer reports a server entry that is not an http(s) base URL.
	ErrInvalidServer = errors.New("invalid server address")
)

// ForwardingError is a malformed forwarding configuration.
type ForwardingError struct {
	Key string
	Err error
}

func (e *ForwardingError) Error() string {
	return fmt.Sprintf("forwarding configuration %s: %v", e.Key, e.Err)
}

func (e *ForwardingError) Unwrap() error {
	return e.Err
}

// Forwarding is the parsed form of the forwarding properties.
// Topics and Servers are deduplicated and sorted.
type Forwarding struct {
	Topics  []string
	Servers []string
}

// ParseForwarding parses comma-separated server and topic lists. Entries are
// trimmed and blank entries ignored. Both keys must be present, but either
// list may end up empty.
func ParseForwarding(props map[string]string) (*Forwarding, error) {
	rawServers, ok := props[KeyServers]
	if !ok {
		return nil, &ForwardingError{Key: KeyServers, Err: ErrMissingKey}
	}
	rawTopics, ok := props[KeyTopics]
	if !ok {
		return nil, &ForwardingError{Key: KeyTopics, Err: ErrMissingKey}
	}

	servers := splitList(rawServers)
	for i, s := range servers {
		normalized, err := normalizeServer(s)
		if err != nil {
			return nil, &ForwardingError{Key: KeyServers, Err: err}
		}
		servers[i] = normalized
	}

	return &Forwarding{
		Topics:  dedupe(splitList(rawTopics)),
		Servers: dedupe(servers),
	}, nil
}

// Properties renders f back into forwarding properties.
func (f *Forwarding) Properties() map[string]string {
	return map[string]string{
		KeyServers: strings.Join(f.Servers, ","),
		KeyTopics:  strings.Join(f.Topics, ","),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(items []string) []string {
	slices.Sort(items)
	return slices.Compact(items)
}

func normalizeServer(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidServer, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidServer, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w %q: host is required", ErrInvalidServer, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
