// Package api exposes the dispatcher over HTTP: forwarding configuration,
// event publication and the delivery journal.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/btouchard/xbmcnotify/internal/bus"
	"github.com/btouchard/xbmcnotify/internal/config"
	"github.com/btouchard/xbmcnotify/internal/dispatcher"
	"github.com/btouchard/xbmcnotify/internal/store"
)

// Forwarder is the part of the dispatcher driven by the API.
type Forwarder interface {
	ApplyConfiguration(props map[string]string) error
	Resubscribe() error
	State() dispatcher.State
}

// Publisher publishes events on the bus.
type Publisher interface {
	Publish(ctx context.Context, evt bus.Event) error
}

// DeliveryLister reads the delivery journal.
type DeliveryLister interface {
	ListDeliveries(f store.DeliveryFilter) ([]store.DeliveryRecord, error)
}

// Deps holds what the router needs.
type Deps struct {
	Forwarder  Forwarder
	Publisher  Publisher
	Deliveries DeliveryLister
	// MCP is mounted at /mcp when non-nil.
	MCP       http.Handler
	APIToken  string
	RateLimit config.RateLimitConfig
}

// NewRouter builds the HTTP handler.
func NewRouter(deps *Deps) http.Handler {
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(IPRateLimit(deps.RateLimit.RequestsPerMinute, deps.RateLimit.Burst))
		r.Use(BearerToken(deps.APIToken))

		r.Route("/api", func(r chi.Router) {
			r.Get("/forwarding", h.getForwarding)
			r.Put("/forwarding", h.putForwarding)
			r.Post("/forwarding/resubscribe", h.resubscribe)
			r.Post("/events", h.publishEvent)
			r.Get("/deliveries", h.listDeliveries)
		})

		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
		}
	})

	return r
}
