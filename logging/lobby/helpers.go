package lobby

import (
	"context"
	"strconv"

	"croissant/server/logging"
)

const (
	// EventSeatTaken is emitted when a label is seated in a room.
	EventSeatTaken logging.EventType = "lobby.seat_taken"
	// EventSeatReleased is emitted when a seat is freed on disconnect.
	EventSeatReleased logging.EventType = "lobby.seat_released"
	// EventRoomFull is emitted when a join finds both seats occupied.
	EventRoomFull logging.EventType = "lobby.room_full"
)

// SeatPayload identifies a seat and its label.
type SeatPayload struct {
	Room  int    `json:"room"`
	Seat  int    `json:"seat"`
	Label string `json:"label"`
}

// SeatTaken publishes a seat assignment.
func SeatTaken(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SeatPayload) {
	publish(ctx, pub, EventSeatTaken, logging.SeverityInfo, tick, actor, payload)
}

// SeatReleased publishes a seat release.
func SeatReleased(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SeatPayload) {
	publish(ctx, pub, EventSeatReleased, logging.SeverityInfo, tick, actor, payload)
}

// RoomFull publishes a debug event for a refused join.
func RoomFull(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SeatPayload) {
	publish(ctx, pub, EventRoomFull, logging.SeverityDebug, tick, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload SeatPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{{ID: strconv.Itoa(payload.Room + 1), Kind: logging.EntityKindRoom}},
		Severity: severity,
		Category: logging.CategoryLobby,
		Payload:  payload,
	})
}
