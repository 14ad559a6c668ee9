// Package bridge is the seam between the CRUD write path and the real-time
// hub. Mutation handlers call PublishTaskEvent after a successful write; the
// data layer never learns about rooms, sessions, or transports, and a
// broadcast failure can never fail the underlying mutation.
package bridge

import (
	"encoding/json"
	"log/slog"
)

// Publisher is what the mutation handlers depend on. Calls are synchronous
// triggers with best-effort delivery; they never return an error.
type Publisher interface {
	PublishTaskEvent(projectKey string, payload any)
}

// Broadcaster is the slice of the ws hub the bridge uses.
type Broadcaster interface {
	Publish(roomKey string, payload []byte) int
}

// Notifier receives every published task event after the room fan-out.
// Implemented by the webhook notify engine.
type Notifier interface {
	Evaluate(projectKey string, payload []byte)
}

// Bridge publishes task change events into the project's room and hands them
// to any registered notifiers.
type Bridge struct {
	hub       Broadcaster
	notifiers []Notifier
}

// New creates a Bridge over hub. Additional notifiers are invoked, in order,
// after the room broadcast.
func New(hub Broadcaster, notifiers ...Notifier) *Bridge {
	return &Bridge{hub: hub, notifiers: notifiers}
}

// PublishTaskEvent fans payload out to every session viewing the project.
// All failures are logged and swallowed.
func (b *Bridge) PublishTaskEvent(projectKey string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("bridge: encode task event", "project", projectKey, "err", err)
		return
	}

	n := b.hub.Publish(projectKey, data)
	slog.Debug("bridge: task event published",
		"project", projectKey, "notified", n)

	for _, nt := range b.notifiers {
		nt.Evaluate(projectKey, data)
	}
}

// Nop is a Publisher that discards every event. Used when the API runs
// without a hub, and as the default in tests.
type Nop struct{}

func (Nop) PublishTaskEvent(string, any) {}
