package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/btouchard/xbmcnotify/internal/bus"
	"github.com/btouchard/xbmcnotify/internal/config"
	"github.com/btouchard/xbmcnotify/internal/notification"
	"github.com/btouchard/xbmcnotify/internal/store"
)

const (
	maxBodyBytes     = 64 << 10
	defaultListLimit = 50
	maxListLimit     = 500
)

type handlers struct {
	deps *Deps
}

// EventRequest is the body of POST /api/events.
type EventRequest struct {
	Topic        string               `json:"topic"`
	Notification notification.Payload `json:"notification"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) getForwarding(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Forwarder.State())
}

func (h *handlers) putForwarding(w http.ResponseWriter, r *http.Request) {
	var props map[string]string
	if err := decodeBody(w, r, &props); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.deps.Forwarder.ApplyConfiguration(props); err != nil {
		var fe *config.ForwardingError
		if errors.As(err, &fe) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("applying forwarding configuration", "error", err)
		writeError(w, http.StatusInternalServerError, "configuration accepted but subscription failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) resubscribe(w http.ResponseWriter, _ *http.Request) {
	if err := h.deps.Forwarder.Resubscribe(); err != nil {
		slog.Error("resubscribing", "error", err)
		writeError(w, http.StatusInternalServerError, "resubscribe failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) publishEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := req.Notification.Notification()
	if err != nil {
		writeError(w, http.StatusBadRequest, "notification: "+err.Error())
		return
	}

	evt := bus.Event{
		Topic:      req.Topic,
		Payload:    n,
		Properties: map[string]string{"source": "api"},
	}
	if err := h.deps.Publisher.Publish(r.Context(), evt); err != nil {
		switch {
		case errors.Is(err, bus.ErrInvalidTopic):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, bus.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			slog.Error("publishing event", "topic", req.Topic, "error", err)
			writeError(w, http.StatusInternalServerError, "publish failed")
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) listDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.deps.Deliveries == nil {
		writeError(w, http.StatusNotFound, "delivery journal disabled")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.deps.Deliveries.ListDeliveries(store.DeliveryFilter{
		Server: r.URL.Query().Get("server"),
		TaskID: r.URL.Query().Get("task_id"),
		Limit:  limit,
	})
	if err != nil {
		slog.Error("listing deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, "listing deliveries failed")
		return
	}
	if records == nil {
		records = []store.DeliveryRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
