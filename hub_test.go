package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"croissant/server/internal/chat"
	"croissant/server/internal/net/proto"
	"croissant/server/internal/pong"
	"croissant/server/logging"
	chatLog "croissant/server/logging/chat"
	lifecycleLog "croissant/server/logging/lifecycle"
	lobbyLog "croissant/server/logging/lobby"
	"croissant/server/logging/sinks"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakePeer struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.full {
		return false
	}
	p.frames = append(p.frames, frame)
	return true
}

func (p *fakePeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) events(t *testing.T) []proto.ServerEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]proto.ServerEvent, 0, len(p.frames))
	for _, frame := range p.frames {
		event, err := proto.DecodeServerEvent(frame)
		if err != nil {
			t.Fatalf("decode frame %s: %v", frame, err)
		}
		events = append(events, event)
	}
	return events
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

func ofType(events []proto.ServerEvent, kind string) []proto.ServerEvent {
	var out []proto.ServerEvent
	for _, event := range events {
		if event.Type == kind {
			out = append(out, event)
		}
	}
	return out
}

type hubFixture struct {
	hub   *Hub
	clock *manualClock
	sink  *sinks.Memory
	ctx   context.Context
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	clock := newManualClock()
	sink := sinks.NewMemory()
	cfg := DefaultHubConfig()
	cfg.Clock = clock
	cfg.Seed = 7
	return &hubFixture{
		hub:   NewHubWithConfig(cfg, sink),
		clock: clock,
		sink:  sink,
		ctx:   context.Background(),
	}
}

func (f *hubFixture) connect(id string, sourceKey int) *fakePeer {
	peer := newFakePeer(id)
	f.hub.handle(f.ctx, registerEvent{peer: peer, sourceKey: sourceKey})
	return peer
}

func (f *hubFixture) frame(id, payload string) {
	f.hub.handle(f.ctx, frameEvent{id: id, payload: []byte(payload)})
}

func (f *hubFixture) eventTypes() []logging.EventType {
	var types []logging.EventType
	for _, event := range f.sink.Events() {
		types = append(types, event.Type)
	}
	return types
}

func TestRegisterReplaysHistoryThenRoster(t *testing.T) {
	f := newHubFixture(t)
	sender := f.connect("a", 1)
	f.frame("a", `{"type":"send","text":"first"}`)
	f.clock.Advance(6 * time.Second)
	f.frame("a", `{"type":"send","text":"second"}`)

	late := f.connect("b", 2)
	events := late.events(t)
	if len(events) != 3 {
		t.Fatalf("expected 2 messages and a roster, got %d events", len(events))
	}
	if events[0].Text != "first" || events[1].Text != "second" {
		t.Fatalf("expected history oldest first, got %q %q", events[0].Text, events[1].Text)
	}
	if events[2].Type != proto.TypeRooms || len(events[2].Rooms) != pong.DefaultRooms {
		t.Fatalf("expected roster last, got %+v", events[2])
	}
	if len(ofType(sender.events(t), proto.TypeMessage)) != 2 {
		t.Fatalf("expected sender to receive its own broadcasts")
	}
}

func TestSendRateLimitScenario(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 42)
	b := f.connect("b", 7)
	a.reset()
	b.reset()

	f.frame("a", `{"type":"send","text":"hello"}`)
	if got := f.hub.state.messages.Len(); got != 1 {
		t.Fatalf("expected log length 1, got %d", got)
	}
	for _, peer := range []*fakePeer{a, b} {
		messages := ofType(peer.events(t), proto.TypeMessage)
		if len(messages) != 1 {
			t.Fatalf("expected broadcast to %s", peer.id)
		}
		if messages[0].Timestamp != 0 || messages[0].Sender == "" || messages[0].Text != "hello" {
			t.Fatalf("unexpected broadcast %+v", messages[0])
		}
	}

	a.reset()
	b.reset()
	f.clock.Advance(1000 * time.Millisecond)
	f.frame("a", `{"type":"send","text":"again"}`)
	errs := ofType(a.events(t), proto.TypeError)
	if len(errs) != 1 || errs[0].Message != chat.RateLimitedText {
		t.Fatalf("expected rate limit error for sender, got %+v", a.events(t))
	}
	if len(b.events(t)) != 0 {
		t.Fatalf("expected rate limit error to stay targeted, got %+v", b.events(t))
	}
	if got := f.hub.state.messages.Len(); got != 1 {
		t.Fatalf("expected rejected message to stay out of the log, got %d", got)
	}

	a.reset()
	f.clock.Advance(5000 * time.Millisecond)
	f.frame("a", `{"type":"send","text":"later"}`)
	messages := ofType(a.events(t), proto.TypeMessage)
	if len(messages) != 1 || messages[0].Timestamp != 6000 {
		t.Fatalf("expected accepted message at 6000ms, got %+v", messages)
	}
}

func TestInvalidSendIsSilent(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	a.reset()

	f.frame("a", `{"type":"send","text":"   "}`)
	f.frame("a", `{"type":"send"}`)
	f.frame("a", `not json`)
	f.frame("a", `{"type":"unknown"}`)

	if len(a.events(t)) != 0 {
		t.Fatalf("expected no replies, got %+v", a.events(t))
	}
	if f.hub.state.messages.Len() != 0 {
		t.Fatalf("expected empty log")
	}
	if got := f.hub.telemetry.Snapshot().FramesRejected; got != 3 {
		t.Fatalf("expected 3 rejected frames, got %d", got)
	}
}

func TestGetRoomsBroadcastsToEveryone(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	b := f.connect("b", 2)
	a.reset()
	b.reset()

	f.frame("a", `{"type":"getrooms"}`)
	for _, peer := range []*fakePeer{a, b} {
		if len(ofType(peer.events(t), proto.TypeRooms)) != 1 {
			t.Fatalf("expected roster broadcast to %s", peer.id)
		}
	}
}

func TestJoinBroadcastsRosterAndState(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	a.reset()

	f.frame("a", `{"type":"joinroom","room":1,"initials":"AB"}`)
	events := a.events(t)
	if len(events) != 2 || events[0].Type != proto.TypeRooms || events[1].Type != proto.TypeGameState {
		t.Fatalf("expected roster then gamestate, got %+v", events)
	}
	if events[1].Room != 1 || len(events[1].Players) != 1 || events[1].Players[0] != "AB" {
		t.Fatalf("unexpected gamestate %+v", events[1])
	}

	a.reset()
	f.frame("a", `{"type":"joinroom","room":9,"initials":"AB"}`)
	if len(a.events(t)) != 0 {
		t.Fatalf("expected invalid room to be silent")
	}
}

func TestJoinFullRoomLeavesRosterUnchanged(t *testing.T) {
	f := newHubFixture(t)
	f.connect("a", 1)
	f.connect("b", 2)
	c := f.connect("c", 3)
	f.frame("a", `{"type":"joinroom","room":2,"initials":"AB"}`)
	f.frame("b", `{"type":"joinroom","room":2,"initials":"CD"}`)
	c.reset()

	f.frame("c", `{"type":"joinroom","room":2,"initials":"EF"}`)
	rosters := ofType(c.events(t), proto.TypeRooms)
	if len(rosters) != 1 {
		t.Fatalf("expected roster broadcast after full join")
	}
	players := rosters[0].Rooms[1].Players
	if len(players) != 2 || players[0] != "AB" || players[1] != "CD" {
		t.Fatalf("expected roster unchanged, got %v", players)
	}
	found := false
	for _, eventType := range f.eventTypes() {
		if eventType == lobbyLog.EventRoomFull {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected room full event, got %v", f.eventTypes())
	}
}

func TestActiveRoomBroadcastsOnNextTick(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	f.connect("b", 2)
	f.frame("a", `{"type":"joinroom","room":1,"initials":"AB"}`)
	f.frame("b", `{"type":"joinroom","room":1,"initials":"CD"}`)
	a.reset()

	f.clock.Advance(DefaultTickInterval)
	f.hub.step(f.ctx)

	states := ofType(a.events(t), proto.TypeGameState)
	if len(states) != 1 {
		t.Fatalf("expected exactly one gamestate after one tick, got %d", len(states))
	}
	state := states[0]
	if state.Room != 1 || len(state.Players) != 2 {
		t.Fatalf("unexpected gamestate %+v", state)
	}
	if state.BallX != pong.CenterX+pong.ServeSpeedX || state.BallY != pong.CenterY+pong.ServeSpeedY {
		t.Fatalf("expected ball to advance one step, got (%v,%v)", state.BallX, state.BallY)
	}
}

func TestInactiveRoomsDoNotBroadcastOnTick(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	f.frame("a", `{"type":"joinroom","room":1,"initials":"AB"}`)
	a.reset()

	f.hub.step(f.ctx)
	if len(a.events(t)) != 0 {
		t.Fatalf("expected no broadcast for a half-filled room")
	}
}

func TestPongInputClampsAndBroadcasts(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	a.reset()

	for i := 0; i < 100; i++ {
		f.frame("a", `{"type":"ponginput","room":1,"player":1,"direction":1}`)
	}
	states := ofType(a.events(t), proto.TypeGameState)
	if len(states) != 100 {
		t.Fatalf("expected a gamestate per input, got %d", len(states))
	}
	if got := states[len(states)-1].Paddle1Y; got != pong.PaddleMax {
		t.Fatalf("expected paddle clamped at %v, got %v", pong.PaddleMax, got)
	}

	a.reset()
	f.frame("a", `{"type":"ponginput","room":0,"player":1,"direction":1}`)
	f.frame("a", `{"type":"ponginput","room":1,"player":3,"direction":1}`)
	if len(a.events(t)) != 0 {
		t.Fatalf("expected invalid inputs to be silent")
	}
}

func TestDisconnectReleasesOwnedSeat(t *testing.T) {
	f := newHubFixture(t)
	f.connect("a", 1)
	b := f.connect("b", 2)
	f.frame("a", `{"type":"joinroom","room":1,"initials":"AB"}`)
	f.frame("b", `{"type":"joinroom","room":1,"initials":"CD"}`)
	b.reset()

	f.hub.handle(f.ctx, unregisterEvent{id: "a", reason: "closed"})

	rosters := ofType(b.events(t), proto.TypeRooms)
	if len(rosters) != 1 {
		t.Fatalf("expected roster broadcast on disconnect")
	}
	players := rosters[0].Rooms[0].Players
	if len(players) != 1 || players[0] != "CD" {
		t.Fatalf("expected roster to list only CD after seat 0 freed, got %q", players)
	}
	if owner := f.hub.seatOwner[seatKey{room: 0, seat: 1}]; owner != "b" {
		t.Fatalf("expected b to keep its seat, got %q", owner)
	}
	if room, _ := f.hub.state.rooms.Room(0); room.Active() {
		t.Fatalf("expected room to be inactive")
	}
}

func TestGetRoomsAfterSeatZeroLeavesListsRemainingPlayer(t *testing.T) {
	f := newHubFixture(t)
	f.connect("a", 1)
	b := f.connect("b", 2)
	f.frame("a", `{"type":"joinroom","room":1,"initials":"AB"}`)
	f.frame("b", `{"type":"joinroom","room":1,"initials":"CD"}`)
	f.hub.handle(f.ctx, unregisterEvent{id: "a", reason: "closed"})
	b.reset()

	f.frame("b", `{"type":"getrooms"}`)

	rosters := ofType(b.events(t), proto.TypeRooms)
	if len(rosters) != 1 {
		t.Fatalf("expected one roster, got %d", len(rosters))
	}
	players := rosters[0].Rooms[0].Players
	if len(players) != 1 || players[0] != "CD" {
		t.Fatalf("expected room 1 roster [CD] with a free seat, got %q", players)
	}

	f.frame("b", `{"type":"joinroom","room":1,"initials":"EF"}`)
	room, _ := f.hub.state.rooms.Room(0)
	if room.Seats[0] != "EF" || !room.Active() {
		t.Fatalf("expected EF to take the freed seat, got %q", room.Seats)
	}
}

func TestRejoinTransfersSeatOwnership(t *testing.T) {
	f := newHubFixture(t)
	f.connect("old", 1)
	f.connect("new", 2)
	f.frame("old", `{"type":"joinroom","room":3,"initials":"AB"}`)
	f.frame("new", `{"type":"joinroom","room":3,"initials":"AB"}`)

	f.hub.handle(f.ctx, unregisterEvent{id: "old", reason: "closed"})
	room, _ := f.hub.state.rooms.Room(2)
	if room.Seats[0] != "AB" {
		t.Fatalf("expected seat kept by newer connection, got %q", room.Seats)
	}

	f.hub.handle(f.ctx, unregisterEvent{id: "new", reason: "closed"})
	room, _ = f.hub.state.rooms.Room(2)
	if room.Seats[0] != "" {
		t.Fatalf("expected seat released, got %q", room.Seats)
	}
}

func TestPruneRemovesClosedPeers(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	f.connect("b", 2)
	f.frame("a", `{"type":"joinroom","room":1,"initials":"AB"}`)
	a.Close()

	f.hub.pruneClosed(f.ctx)

	if _, ok := f.hub.peers["a"]; ok {
		t.Fatalf("expected closed peer pruned")
	}
	if _, ok := f.hub.peers["b"]; !ok {
		t.Fatalf("expected open peer kept")
	}
	if room, _ := f.hub.state.rooms.Room(0); room.Seats[0] != "" {
		t.Fatalf("expected pruned peer seat released")
	}
	if got := f.hub.telemetry.Snapshot().ConnectionsPruned; got != 1 {
		t.Fatalf("expected 1 pruned connection, got %d", got)
	}
	var pruned bool
	for _, eventType := range f.eventTypes() {
		if eventType == lifecycleLog.EventConnectionPruned {
			pruned = true
		}
	}
	if !pruned {
		t.Fatalf("expected pruned lifecycle event, got %v", f.eventTypes())
	}
}

func TestFullPeerCountsDroppedFrames(t *testing.T) {
	f := newHubFixture(t)
	a := f.connect("a", 1)
	a.mu.Lock()
	a.full = true
	a.mu.Unlock()

	f.frame("a", `{"type":"getrooms"}`)
	if got := f.hub.telemetry.Snapshot().FramesDropped; got != 1 {
		t.Fatalf("expected one dropped frame, got %d", got)
	}
}

func TestChatEventsPublished(t *testing.T) {
	f := newHubFixture(t)
	f.connect("a", 1)
	f.frame("a", `{"type":"send","text":"hi"}`)
	f.frame("a", `{"type":"send","text":"hi again"}`)
	f.frame("a", `{"type":"send","text":""}`)

	want := []logging.EventType{
		lifecycleLog.EventConnectionOpened,
		chatLog.EventMessageAccepted,
		chatLog.EventRateLimited,
		chatLog.EventMessageRejected,
	}
	got := f.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestRunServesRequestsAndStops(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Seed = 1
	hub := NewHubWithConfig(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()

	outcome, err := hub.SubmitMessage(reqCtx, 5, "  over http  ")
	if err != nil || outcome != chat.SendAccepted {
		t.Fatalf("expected accepted, got %v %v", outcome, err)
	}
	outcome, err = hub.SubmitMessage(reqCtx, 5, "too soon")
	if err != nil || outcome != chat.SendRateLimited {
		t.Fatalf("expected rate limited, got %v %v", outcome, err)
	}
	outcome, err = hub.SubmitMessage(reqCtx, 6, "")
	if err != nil || outcome != chat.SendInvalid {
		t.Fatalf("expected invalid, got %v %v", outcome, err)
	}

	messages, err := hub.Messages(reqCtx)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "over http" {
		t.Fatalf("unexpected messages %+v", messages)
	}

	peer := newFakePeer("p")
	if !hub.Register(peer, 9) {
		t.Fatalf("expected register to succeed")
	}
	diag, err := hub.Diagnostics(reqCtx)
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if diag.Connections != 1 || diag.Messages != 1 || len(diag.Rooms) != pong.DefaultRooms {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("hub did not stop")
	}
	if !peer.Closed() {
		t.Fatalf("expected peers closed on shutdown")
	}
	if _, err := hub.Messages(reqCtx); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
	if hub.Register(newFakePeer("late"), 1) {
		t.Fatalf("expected register after stop to fail")
	}
}

func TestRunBroadcastsGameStateWithinATick(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Seed = 3
	hub := NewHubWithConfig(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := newFakePeer("a")
	b := newFakePeer("b")
	hub.Register(a, 1)
	hub.Register(b, 2)
	hub.Deliver("a", []byte(`{"type":"joinroom","room":1,"initials":"AB"}`))
	hub.Deliver("b", []byte(`{"type":"joinroom","room":1,"initials":"CD"}`))

	deadline := time.After(time.Second)
	for {
		for _, state := range ofType(a.events(t), proto.TypeGameState) {
			if len(state.Players) == 2 && state.BallX != pong.CenterX {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatalf("no ticked gamestate received")
		case <-time.After(DefaultTickInterval / 2):
		}
	}
}
