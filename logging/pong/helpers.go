package pong

import (
	"context"
	"strconv"

	"croissant/server/logging"
)

const (
	// EventRoomActivated is emitted when a room gains its second player.
	EventRoomActivated logging.EventType = "pong.room_activated"
	// EventRallyReset is emitted when the ball leaves the field and is served again.
	EventRallyReset logging.EventType = "pong.rally_reset"
)

// RallyPayload captures the serve direction after a reset.
type RallyPayload struct {
	VelX float64 `json:"vx"`
	VelY float64 `json:"vy"`
}

// RoomPayload lists the players of an activated room.
type RoomPayload struct {
	Players []string `json:"players"`
}

// RoomRef builds the actor reference for a zero-based room index.
func RoomRef(index int) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(index + 1), Kind: logging.EntityKindRoom}
}

// RoomActivated publishes a room activation.
func RoomActivated(ctx context.Context, pub logging.Publisher, tick uint64, room int, payload RoomPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRoomActivated,
		Tick:     tick,
		Actor:    RoomRef(room),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPong,
		Payload:  payload,
	})
}

// RallyReset publishes a debug event for a ball that left the field.
func RallyReset(ctx context.Context, pub logging.Publisher, tick uint64, room int, payload RallyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRallyReset,
		Tick:     tick,
		Actor:    RoomRef(room),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryPong,
		Payload:  payload,
	})
}
