package store

import (
	"time"
)

// Store is the persistence interface for xbmcnotify.
type Store interface {
	// Forwarding properties
	SaveForwarding(props map[string]string) error
	LoadForwarding() (map[string]string, error)

	// Delivery journal
	AddDelivery(d *DeliveryRecord) error
	ListDeliveries(f DeliveryFilter) ([]DeliveryRecord, error)

	// Maintenance
	Cleanup(olderThan time.Time) (int64, error)
	Close() error
}

// DeliveryRecord is the outcome of delivering one task to one server.
type DeliveryRecord struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Server     string    `json:"server"`
	Topic      string    `json:"topic"`
	DeviceURI  string    `json:"device_uri"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Succeeded reports whether the server answered at all. Any status code
// counts: the response is not interpreted beyond logging.
func (d DeliveryRecord) Succeeded() bool {
	return d.Error == "" && d.StatusCode > 0
}

// DeliveryFilter specifies criteria for listing deliveries.
type DeliveryFilter struct {
	Server string
	TaskID string
	Limit  int
	Since  time.Time
}
