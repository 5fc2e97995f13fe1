package lifecycle

import (
	"context"

	"croissant/server/logging"
)

const (
	// EventConnectionOpened is emitted when a client channel registers with the hub.
	EventConnectionOpened logging.EventType = "lifecycle.connection_opened"
	// EventConnectionClosed is emitted when a client channel unregisters.
	EventConnectionClosed logging.EventType = "lifecycle.connection_closed"
	// EventConnectionPruned is emitted when the hub drops a stale channel.
	EventConnectionPruned logging.EventType = "lifecycle.connection_pruned"
)

// ConnectionOpenedPayload captures replay details for a new connection.
type ConnectionOpenedPayload struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Replayed   int    `json:"replayed"`
}

// ConnectionClosedPayload captures the reason a connection left and the
// seats it released.
type ConnectionClosedPayload struct {
	Reason        string `json:"reason"`
	ReleasedSeats int    `json:"releasedSeats"`
}

// ConnectionOpened publishes a connection registration event.
func ConnectionOpened(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ConnectionOpenedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionOpened,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// ConnectionClosed publishes a connection teardown event.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ConnectionClosedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionClosed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// ConnectionPruned publishes a warning when a stale connection is dropped.
func ConnectionPruned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ConnectionClosedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionPruned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
