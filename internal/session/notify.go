package session

import (
	"context"
	"log/slog"
	"time"
)

// EventKind names a session lifecycle notification.
type EventKind string

// Notification kinds.
const (
	EventLogin  EventKind = "login"
	EventLogout EventKind = "logout"
)

// Event is the payload handed to a Notifier.
type Event struct {
	Kind  EventKind `json:"kind"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
	At    time.Time `json:"at"`
}

// Notifier receives session events. Delivery is fire-and-forget: the store never
// looks at the outcome.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

// LogNotifier writes session events to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, event Event) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "session event",
		slog.String("kind", string(event.Kind)),
		slog.String("email", event.Email),
		slog.String("role", event.Role),
	)
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(ctx context.Context, event Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}
