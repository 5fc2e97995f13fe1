// Package client implements the terminal chat client.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"croissant/server/internal/net/proto"
)

// maxLines bounds the rendered history, matching the server log capacity.
const maxLines = 100

const (
	statusConnected = "connected"
	commandRooms    = "/rooms"
	commandJoin     = "/join"
)

// ErrEmptyInput is returned by BuildFrame for a blank input line.
var ErrEmptyInput = errors.New("empty input")

// Model is the client view state built from server events.
type Model struct {
	initials string
	lines    []string
	rooms    [][]string
	status   string
}

// NewModel returns an empty model. initials are sent with /join.
func NewModel(initials string) *Model {
	return &Model{initials: strings.ToUpper(strings.TrimSpace(initials)), status: statusConnected}
}

// Apply folds one server event into the model and reports whether the view
// needs redrawing. Game state frames are ignored by the chat client.
func (m *Model) Apply(event proto.ServerEvent) bool {
	switch event.Type {
	case proto.TypeMessage:
		m.lines = append(m.lines, fmt.Sprintf("%s: %s", event.Sender, event.Text))
		if over := len(m.lines) - maxLines; over > 0 {
			m.lines = append(m.lines[:0], m.lines[over:]...)
		}
		return true
	case proto.TypeRooms:
		rooms := make([][]string, len(event.Rooms))
		for i, room := range event.Rooms {
			rooms[i] = append([]string(nil), room.Players...)
		}
		m.rooms = rooms
		return true
	case proto.TypeError:
		m.status = event.Message
		return true
	default:
		return false
	}
}

// Lines returns the rendered chat history, oldest first.
func (m *Model) Lines() []string {
	return append([]string(nil), m.lines...)
}

// RoomLines renders one line per room.
func (m *Model) RoomLines() []string {
	out := make([]string, 0, len(m.rooms))
	for i, players := range m.rooms {
		seats := [2]string{"-", "-"}
		for seat, label := range players {
			if seat < len(seats) && label != "" {
				seats[seat] = label
			}
		}
		out = append(out, fmt.Sprintf("Room %d: %s vs %s", i+1, seats[0], seats[1]))
	}
	return out
}

// Status returns the status bar text.
func (m *Model) Status() string {
	return m.status
}

// SetStatus replaces the status bar text.
func (m *Model) SetStatus(status string) {
	m.status = status
}

// BuildFrame turns an input line into a client frame. "/rooms" requests the
// roster and "/join N" takes a seat in room N; anything else is chat text.
func (m *Model) BuildFrame(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	msg := proto.ClientMessage{Ver: proto.Version}
	switch fields := strings.Fields(input); {
	case fields[0] == commandRooms:
		msg.Type = proto.TypeGetRooms
	case fields[0] == commandJoin:
		if len(fields) != 2 {
			return nil, errors.New("usage: /join <room>")
		}
		room, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid room %q", fields[1])
		}
		if m.initials == "" {
			return nil, errors.New("set initials with -initials to join a room")
		}
		initials := m.initials
		msg.Type = proto.TypeJoinRoom
		msg.Room = &room
		msg.Initials = &initials
	default:
		msg.Type = proto.TypeSend
		msg.Text = &input
	}
	return json.Marshal(msg)
}
