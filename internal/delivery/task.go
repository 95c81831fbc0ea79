// Package delivery renders notifications and sends them to XBMC servers
// through the JSON-RPC GUI.ShowNotification method.
package delivery

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/btouchard/xbmcnotify/internal/notification"
)

// Task delivers one notification to a fixed set of servers. It is built
// once per event and consumed once by a queue worker.
type Task struct {
	ID           string
	Topic        string
	Notification notification.Notification
	Servers      []string
	EnqueuedAt   time.Time
}

// NewTask creates a Task holding its own copy of servers, so later
// configuration changes cannot affect it.
func NewTask(topic string, n notification.Notification, servers []string) Task {
	return Task{
		ID:           uuid.NewString(),
		Topic:        topic,
		Notification: n,
		Servers:      slices.Clone(servers),
		EnqueuedAt:   time.Now(),
	}
}
