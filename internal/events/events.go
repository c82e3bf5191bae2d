// internal/events/events.go
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type tags what changed. Consumers must not rely on it beyond "reload this session".
type Type string

const (
	SessionChanged Type = "session_changed"
	ActionRecorded Type = "action_recorded"
)

// Notification says something changed for a session. It carries no state.
type Notification struct {
	Type      Type      `json:"type"`
	SessionID uuid.UUID `json:"session_id"`
	MatchID   uuid.UUID `json:"match_id"`
	At        time.Time `json:"at"`
}

// Publisher announces session changes.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Subscriber streams notifications for one match until cancel is called or ctx ends.
// Delivery may duplicate, reorder or drop notifications.
type Subscriber interface {
	Subscribe(ctx context.Context, matchID uuid.UUID) (ch <-chan Notification, cancel func(), err error)
}

// Bus is both ends of the notifier.
type Bus interface {
	Publisher
	Subscriber
}
