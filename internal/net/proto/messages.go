package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"croissant/server/internal/chat"
	"croissant/server/internal/pong"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeMessage   = "message"
	typeRooms     = "rooms"
	typeGameState = "gamestate"
	typeError     = "error"
)

// Client message type identifiers.
const (
	TypeSend      = "send"
	TypeGetRooms  = "getrooms"
	TypeJoinRoom  = "joinroom"
	TypePongInput = "ponginput"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeMessage   = typeMessage
	TypeRooms     = typeRooms
	TypeGameState = typeGameState
	TypeError     = typeError
)

var (
	// ErrMalformed marks frames that are not valid JSON or lack required fields.
	ErrMalformed = errors.New("proto: malformed frame")
	// ErrUnknownKind marks frames whose type is not a known intent.
	ErrUnknownKind = errors.New("proto: unknown intent kind")
)

// ClientMessage captures an inbound websocket message from the client.
// Optional fields are pointers so absence can be told apart from zero.
type ClientMessage struct {
	Ver       int     `json:"ver,omitempty"`
	Type      string  `json:"type"`
	Text      *string `json:"text,omitempty"`
	Room      *int    `json:"room,omitempty"`
	Initials  *string `json:"initials,omitempty"`
	Player    *int    `json:"player,omitempty"`
	Direction *int    `json:"direction,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("%w: unsupported client protocol version %d", ErrMalformed, msg.Ver)
	}
	return msg, nil
}

// Intent is a decoded client request.
type Intent interface {
	Kind() string
}

// Send asks for text to be appended to the chat log.
type Send struct {
	Text string
}

// GetRooms asks for the lobby roster.
type GetRooms struct{}

// JoinRoom asks to seat Label in the zero-based Room.
type JoinRoom struct {
	Room  int
	Label string
}

// PongInput moves the paddle of the zero-based Seat in the zero-based Room.
type PongInput struct {
	Room      int
	Seat      int
	Direction int
}

func (Send) Kind() string      { return TypeSend }
func (GetRooms) Kind() string  { return TypeGetRooms }
func (JoinRoom) Kind() string  { return TypeJoinRoom }
func (PongInput) Kind() string { return TypePongInput }

// ClientIntent maps a decoded message onto its intent. Room numbers and
// player numbers arrive 1-based and are returned 0-based; range checks are
// left to the room registry.
func ClientIntent(msg ClientMessage) (Intent, error) {
	switch msg.Type {
	case TypeSend:
		if msg.Text == nil {
			return nil, fmt.Errorf("%w: send without text", ErrMalformed)
		}
		return Send{Text: *msg.Text}, nil
	case TypeGetRooms:
		return GetRooms{}, nil
	case TypeJoinRoom:
		if msg.Room == nil || msg.Initials == nil {
			return nil, fmt.Errorf("%w: joinroom requires room and initials", ErrMalformed)
		}
		return JoinRoom{Room: *msg.Room - 1, Label: *msg.Initials}, nil
	case TypePongInput:
		if msg.Room == nil || msg.Player == nil || msg.Direction == nil {
			return nil, fmt.Errorf("%w: ponginput requires room, player and direction", ErrMalformed)
		}
		return PongInput{Room: *msg.Room - 1, Seat: *msg.Player - 1, Direction: *msg.Direction}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}
}

// DecodeIntent decodes payload and maps it onto its intent in one step.
func DecodeIntent(payload []byte) (Intent, error) {
	msg, err := DecodeClientMessage(payload)
	if err != nil {
		return nil, err
	}
	return ClientIntent(msg)
}

// EncodeMessage renders a chat message event.
func EncodeMessage(msg chat.Message) ([]byte, error) {
	frame := struct {
		Ver       int    `json:"ver"`
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
		Sender    string `json:"sender"`
		Text      string `json:"text"`
	}{
		Ver:       Version,
		Type:      typeMessage,
		Timestamp: msg.Timestamp,
		Sender:    msg.Sender,
		Text:      msg.Text,
	}
	return json.Marshal(frame)
}

type roomEntry struct {
	Players []string `json:"players"`
}

// EncodeRooms renders the lobby roster in room order.
func EncodeRooms(rosters []pong.Roster) ([]byte, error) {
	rooms := make([]roomEntry, len(rosters))
	for i, roster := range rosters {
		players := roster.Players
		if players == nil {
			players = []string{}
		}
		rooms[i] = roomEntry{Players: players}
	}
	frame := struct {
		Ver   int         `json:"ver"`
		Type  string      `json:"type"`
		Rooms []roomEntry `json:"rooms"`
	}{
		Ver:   Version,
		Type:  typeRooms,
		Rooms: rooms,
	}
	return json.Marshal(frame)
}

// EncodeGameState renders the game state of a single room. The room number
// on the wire is 1-based.
func EncodeGameState(room pong.Room) ([]byte, error) {
	players := room.Players()
	if players == nil {
		players = []string{}
	}
	frame := struct {
		Ver      int      `json:"ver"`
		Type     string   `json:"type"`
		Room     int      `json:"room"`
		Players  []string `json:"players"`
		Paddle1Y float64  `json:"paddle1Y"`
		Paddle2Y float64  `json:"paddle2Y"`
		BallX    float64  `json:"ballX"`
		BallY    float64  `json:"ballY"`
	}{
		Ver:      Version,
		Type:     typeGameState,
		Room:     room.Index + 1,
		Players:  players,
		Paddle1Y: room.Paddles[0],
		Paddle2Y: room.Paddles[1],
		BallX:    room.BallX,
		BallY:    room.BallY,
	}
	return json.Marshal(frame)
}

// EncodeError renders a targeted error notice.
func EncodeError(message string) ([]byte, error) {
	frame := struct {
		Ver     int    `json:"ver"`
		Type    string `json:"type"`
		Message string `json:"message"`
	}{
		Ver:     Version,
		Type:    typeError,
		Message: message,
	}
	return json.Marshal(frame)
}

// ServerEvent is the union of outbound frames, used by clients decoding
// server traffic.
type ServerEvent struct {
	Ver       int              `json:"ver"`
	Type      string           `json:"type"`
	Timestamp int64            `json:"timestamp,omitempty"`
	Sender    string           `json:"sender,omitempty"`
	Text      string           `json:"text,omitempty"`
	Message   string           `json:"message,omitempty"`
	Rooms     []ServerRoomView `json:"rooms,omitempty"`
	Room      int              `json:"room,omitempty"`
	Players   []string         `json:"players,omitempty"`
	Paddle1Y  float64          `json:"paddle1Y,omitempty"`
	Paddle2Y  float64          `json:"paddle2Y,omitempty"`
	BallX     float64          `json:"ballX,omitempty"`
	BallY     float64          `json:"ballY,omitempty"`
}

// ServerRoomView is one entry of a rooms event.
type ServerRoomView struct {
	Players []string `json:"players"`
}

// DecodeServerEvent parses an outbound frame.
func DecodeServerEvent(payload []byte) (ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return event, nil
}
