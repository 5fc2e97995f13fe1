package server

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"croissant/server/internal/chat"
	"croissant/server/internal/net/proto"
	"croissant/server/internal/pong"
	"croissant/server/logging"
	chatLog "croissant/server/logging/chat"
	lobbyLog "croissant/server/logging/lobby"
	pongLog "croissant/server/logging/pong"
)

const (
	viaWS   = "ws"
	viaHTTP = "http"
)

// dispatch decodes one inbound frame and applies its intent. Malformed
// frames and unknown kinds are dropped without a reply.
func (h *Hub) dispatch(ctx context.Context, id string, payload []byte) {
	entry, ok := h.peers[id]
	if !ok {
		return
	}
	intent, err := proto.DecodeIntent(payload)
	if err != nil {
		h.telemetry.RecordRejectedFrame()
		h.logger.Printf("dropping frame from %s: %v", id, err)
		_, span := h.tracer.Start(ctx, "dispatch.rejected")
		span.SetAttributes(attribute.String("conn.id", id))
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}

	ctx, span := h.tracer.Start(ctx, "dispatch."+intent.Kind())
	defer span.End()
	span.SetAttributes(attribute.String("conn.id", id), attribute.Int64("hub.tick", int64(h.tick)))

	switch in := intent.(type) {
	case proto.Send:
		outcome := h.acceptMessage(ctx, connRef(id), entry.sourceKey, in.Text, viaWS)
		span.SetAttributes(attribute.String("chat.outcome", outcome.String()))
		if outcome == chat.SendRateLimited {
			if frame, err := proto.EncodeError(chat.RateLimitedText); err == nil {
				h.sendOne(id, frame)
			}
		}
	case proto.GetRooms:
		h.broadcastRoster()
	case proto.JoinRoom:
		result := h.joinRoom(ctx, id, in.Room, in.Label)
		span.SetAttributes(attribute.Int("pong.room", in.Room+1), attribute.String("pong.join", result.Outcome.String()))
		if result.Outcome == pong.JoinInvalidRoom || result.Outcome == pong.JoinInvalidLabel {
			return
		}
		h.broadcastRoster()
		h.broadcastGameState(in.Room)
	case proto.PongInput:
		span.SetAttributes(attribute.Int("pong.room", in.Room+1), attribute.Int("pong.seat", in.Seat))
		if !h.state.engine.ApplyInput(h.state.rooms, in.Room, in.Seat, in.Direction) {
			return
		}
		h.broadcastGameState(in.Room)
	}
}

// acceptMessage validates, rate limits, appends and broadcasts a chat
// message. It is shared by the socket and HTTP paths.
func (h *Hub) acceptMessage(ctx context.Context, actor logging.EntityRef, sourceKey int, raw, via string) chat.SendOutcome {
	text, ok := chat.NormalizeText(raw)
	if !ok {
		chatLog.MessageRejected(ctx, h.publisher, h.tick, actor, chatLog.RejectionPayload{SourceKey: sourceKey, Via: via})
		return chat.SendInvalid
	}
	now := h.now()
	if !h.state.limiter.CheckAndRecord(sourceKey, now) {
		chatLog.RateLimited(ctx, h.publisher, h.tick, actor, chatLog.RejectionPayload{SourceKey: sourceKey, Via: via})
		return chat.SendRateLimited
	}

	msg := h.state.messages.Append(text, h.state.labels.Next(), now)
	h.telemetry.Add("chat_messages_total", 1)
	frame, err := proto.EncodeMessage(msg)
	if err != nil {
		h.logger.Printf("failed to encode message: %v", err)
		return chat.SendAccepted
	}
	h.broadcastAll(frame)
	chatLog.MessageAccepted(ctx, h.publisher, h.tick, actor, chatLog.MessagePayload{
		Timestamp: msg.Timestamp,
		Sender:    msg.Sender,
		Length:    utf8.RuneCountInString(msg.Text),
		Via:       via,
	})
	return chat.SendAccepted
}

// joinRoom seats label and records id as the owner of the seat. The most
// recent connection to claim a label owns its seat.
func (h *Hub) joinRoom(ctx context.Context, id string, room int, label string) pong.JoinResult {
	wasActive := false
	if current, ok := h.state.rooms.Room(room); ok {
		wasActive = current.Active()
	}
	result := h.state.rooms.Join(room, label)
	actor := connRef(id)
	switch result.Outcome {
	case pong.JoinJoined, pong.JoinAlreadySeated:
		h.seatOwner[seatKey{room: room, seat: result.Seat}] = id
		if result.Outcome == pong.JoinJoined {
			lobbyLog.SeatTaken(ctx, h.publisher, h.tick, actor, lobbyLog.SeatPayload{Room: room, Seat: result.Seat, Label: label})
		}
	case pong.JoinFull:
		lobbyLog.RoomFull(ctx, h.publisher, h.tick, actor, lobbyLog.SeatPayload{Room: room, Seat: -1, Label: label})
	}
	if current, ok := h.state.rooms.Room(room); ok && !wasActive && current.Active() {
		pongLog.RoomActivated(ctx, h.publisher, h.tick, room, pongLog.RoomPayload{Players: current.Players()})
	}
	return result
}

// releaseSeats frees every seat owned by id and reports how many were freed.
func (h *Hub) releaseSeats(ctx context.Context, id string) int {
	released := 0
	for key, owner := range h.seatOwner {
		if owner != id {
			continue
		}
		delete(h.seatOwner, key)
		label, ok := h.state.rooms.Leave(key.room, key.seat)
		if !ok {
			continue
		}
		released++
		lobbyLog.SeatReleased(ctx, h.publisher, h.tick, connRef(id), lobbyLog.SeatPayload{Room: key.room, Seat: key.seat, Label: label})
	}
	return released
}

func pongRallyReset(ctx context.Context, pub logging.Publisher, tick uint64, room pong.Room) {
	pongLog.RallyReset(ctx, pub, tick, room.Index, pongLog.RallyPayload{VelX: room.VelX, VelY: room.VelY})
}

// RoomDiagnostics describes one room in /diagnostics.
type RoomDiagnostics struct {
	Room     int      `json:"room"`
	Players  []string `json:"players"`
	Active   bool     `json:"active"`
	Paddle1Y float64  `json:"paddle1Y"`
	Paddle2Y float64  `json:"paddle2Y"`
	BallX    float64  `json:"ballX"`
	BallY    float64  `json:"ballY"`
}

// Diagnostics is the hub view served by /diagnostics.
type Diagnostics struct {
	ServerTime         int64             `json:"serverTime"`
	UptimeMillis       int64             `json:"uptimeMillis"`
	TickIntervalMillis int64             `json:"tickIntervalMillis"`
	Tick               uint64            `json:"tick"`
	Connections        int               `json:"connections"`
	Messages           int               `json:"messages"`
	MessageCapacity    int               `json:"messageCapacity"`
	Rooms              []RoomDiagnostics `json:"rooms"`
	Telemetry          telemetrySnapshot `json:"telemetry"`
}

func (h *Hub) diagnostics() Diagnostics {
	rooms := make([]RoomDiagnostics, 0, h.state.rooms.Len())
	for i := 0; i < h.state.rooms.Len(); i++ {
		room, _ := h.state.rooms.Room(i)
		rooms = append(rooms, RoomDiagnostics{
			Room:     i + 1,
			Players:  room.Players(),
			Active:   room.Active(),
			Paddle1Y: room.Paddles[0],
			Paddle2Y: room.Paddles[1],
			BallX:    room.BallX,
			BallY:    room.BallY,
		})
	}
	return Diagnostics{
		ServerTime:         h.clock.Now().UnixMilli(),
		UptimeMillis:       h.now(),
		TickIntervalMillis: h.cfg.TickInterval.Milliseconds(),
		Tick:               h.tick,
		Connections:        len(h.peers),
		Messages:           h.state.messages.Len(),
		MessageCapacity:    h.state.messages.Capacity(),
		Rooms:              rooms,
		Telemetry:          h.telemetry.Snapshot(),
	}
}
