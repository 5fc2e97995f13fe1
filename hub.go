package server

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"croissant/server/internal/chat"
	"croissant/server/internal/net/proto"
	"croissant/server/internal/observability"
	"croissant/server/internal/pong"
	"croissant/server/logging"
	lifecycleLog "croissant/server/logging/lifecycle"
)

// ErrHubStopped is returned by requests made after the hub loop exited.
var ErrHubStopped = errors.New("hub stopped")

// Peer is one live client channel as seen by the hub. Send must not block.
type Peer interface {
	ID() string
	Send(frame []byte) bool
	Closed() bool
	Close() error
}

// HubConfig captures the tunable session parameters.
type HubConfig struct {
	Rooms           int
	MessageCapacity int
	RateBuckets     int
	Cooldown        time.Duration
	TickInterval    time.Duration
	PruneInterval   time.Duration
	Seed            int64

	Logger *log.Logger
	Clock  logging.Clock
	Tracer trace.Tracer
}

// DefaultHubConfig returns the production session parameters.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Rooms:           pong.DefaultRooms,
		MessageCapacity: chat.DefaultCapacity,
		RateBuckets:     chat.DefaultBuckets,
		Cooldown:        chat.DefaultCooldown,
		TickInterval:    DefaultTickInterval,
		PruneInterval:   DefaultPruneInterval,
		Seed:            time.Now().UnixNano(),
	}
}

type peerEntry struct {
	peer      Peer
	sourceKey int
}

// Hub owns the session state and every connection. All mutation happens on
// the goroutine running Run; other goroutines talk to it through events.
type Hub struct {
	cfg       HubConfig
	events    chan hubEvent
	done      chan struct{}
	publisher logging.Publisher
	logger    *log.Logger
	tracer    trace.Tracer
	clock     logging.Clock
	started   time.Time
	telemetry *telemetryCounters

	state     *sessionState
	peers     map[string]*peerEntry
	seatOwner map[seatKey]string
	tick      uint64
}

// NewHubWithConfig creates a hub. The loop does not start until Run is called.
func NewHubWithConfig(cfg HubConfig, pub logging.Publisher) *Hub {
	defaults := DefaultHubConfig()
	if cfg.Rooms <= 0 {
		cfg.Rooms = defaults.Rooms
	}
	if cfg.MessageCapacity <= 0 {
		cfg.MessageCapacity = defaults.MessageCapacity
	}
	if cfg.RateBuckets <= 0 {
		cfg.RateBuckets = defaults.RateBuckets
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = defaults.Cooldown
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaults.PruneInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.Tracer()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if pub == nil {
		pub = logging.NopPublisher()
	}

	h := &Hub{
		cfg:       cfg,
		events:    make(chan hubEvent, eventQueueSize),
		done:      make(chan struct{}),
		publisher: pub,
		logger:    logger,
		tracer:    cfg.Tracer,
		clock:     cfg.Clock,
		started:   cfg.Clock.Now(),
		telemetry: newTelemetryCounters(),
		peers:     make(map[string]*peerEntry),
		seatOwner: make(map[seatKey]string),
	}
	h.state = newSessionState(cfg, h.telemetry, 0)
	return h
}

// now returns milliseconds since the hub was created.
func (h *Hub) now() int64 {
	return h.clock.Now().Sub(h.started).Milliseconds()
}

// Run drives the hub loop until ctx is cancelled. Every connection still
// registered when the loop exits is closed.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()
	prune := time.NewTicker(h.cfg.PruneInterval)
	defer prune.Stop()
	defer close(h.done)
	defer h.closeAll()

	h.logger.Printf("hub running: rooms=%d tick=%s", h.state.rooms.Len(), h.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			h.logger.Printf("hub stopping: %v", ctx.Err())
			return nil
		case event := <-h.events:
			h.handle(ctx, event)
		case <-ticker.C:
			h.step(ctx)
		case <-prune.C:
			h.pruneClosed(ctx)
		}
	}
}

// Done is closed once the loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds peer to the hub. The peer receives the message history and
// the room roster before any live traffic.
func (h *Hub) Register(peer Peer, sourceKey int) bool {
	return h.enqueue(registerEvent{peer: peer, sourceKey: sourceKey})
}

// Unregister removes the peer with id and releases any seats it holds.
func (h *Hub) Unregister(id string) {
	h.enqueue(unregisterEvent{id: id, reason: "closed"})
}

// Deliver hands an inbound frame from peer id to the dispatcher.
func (h *Hub) Deliver(id string, payload []byte) bool {
	return h.enqueue(frameEvent{id: id, payload: payload})
}

// SubmitMessage runs the HTTP send path: validation, rate limiting, append
// and broadcast.
func (h *Hub) SubmitMessage(ctx context.Context, sourceKey int, text string) (chat.SendOutcome, error) {
	reply := make(chan chat.SendOutcome, 1)
	if err := h.request(ctx, submitEvent{sourceKey: sourceKey, text: text, reply: reply}); err != nil {
		return chat.SendInvalid, err
	}
	return await(ctx, h.done, reply, chat.SendInvalid)
}

// Messages returns the message log, oldest first.
func (h *Hub) Messages(ctx context.Context) ([]chat.Message, error) {
	reply := make(chan []chat.Message, 1)
	if err := h.request(ctx, messagesEvent{reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h.done, reply, nil)
}

// Diagnostics returns a point-in-time view of the hub.
func (h *Hub) Diagnostics(ctx context.Context) (Diagnostics, error) {
	reply := make(chan Diagnostics, 1)
	if err := h.request(ctx, diagnosticsEvent{reply: reply}); err != nil {
		return Diagnostics{}, err
	}
	return await(ctx, h.done, reply, Diagnostics{})
}

func (h *Hub) enqueue(event hubEvent) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- event:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) request(ctx context.Context, event hubEvent) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.events <- event:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T, zero T) (T, error) {
	select {
	case value := <-reply:
		return value, nil
	case <-done:
		select {
		case value := <-reply:
			return value, nil
		default:
			return zero, ErrHubStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) handle(ctx context.Context, event hubEvent) {
	switch ev := event.(type) {
	case registerEvent:
		h.register(ctx, ev.peer, ev.sourceKey)
	case unregisterEvent:
		h.unregister(ctx, ev.id, ev.reason)
	case frameEvent:
		h.dispatch(ctx, ev.id, ev.payload)
	case submitEvent:
		actor := logging.EntityRef{ID: "http", Kind: logging.EntityKindSource}
		spanCtx, span := h.tracer.Start(ctx, "dispatch.http_send")
		outcome := h.acceptMessage(spanCtx, actor, ev.sourceKey, ev.text, viaHTTP)
		span.SetAttributes(attribute.Int("chat.source_key", ev.sourceKey), attribute.String("chat.outcome", outcome.String()))
		span.End()
		ev.reply <- outcome
	case messagesEvent:
		ev.reply <- h.state.messages.Snapshot()
	case diagnosticsEvent:
		ev.reply <- h.diagnostics()
	}
}

func (h *Hub) register(ctx context.Context, peer Peer, sourceKey int) {
	if peer == nil {
		return
	}
	id := peer.ID()
	if existing, ok := h.peers[id]; ok && existing.peer != peer {
		existing.peer.Close()
	}
	h.peers[id] = &peerEntry{peer: peer, sourceKey: sourceKey}

	history := h.state.messages.Snapshot()
	for _, msg := range history {
		if frame, err := proto.EncodeMessage(msg); err == nil {
			h.sendOne(id, frame)
		}
	}
	if frame, err := proto.EncodeRooms(h.state.rooms.List()); err == nil {
		h.sendOne(id, frame)
	}

	lifecycleLog.ConnectionOpened(ctx, h.publisher, h.tick, connRef(id), lifecycleLog.ConnectionOpenedPayload{Replayed: len(history)})
}

func (h *Hub) unregister(ctx context.Context, id, reason string) {
	entry, ok := h.peers[id]
	if !ok {
		return
	}
	delete(h.peers, id)
	entry.peer.Close()

	released := h.releaseSeats(ctx, id)
	h.broadcastRoster()

	payload := lifecycleLog.ConnectionClosedPayload{Reason: reason, ReleasedSeats: released}
	if reason == reasonPruned {
		lifecycleLog.ConnectionPruned(ctx, h.publisher, h.tick, connRef(id), payload)
		return
	}
	lifecycleLog.ConnectionClosed(ctx, h.publisher, h.tick, connRef(id), payload)
}

const reasonPruned = "pruned"

func (h *Hub) pruneClosed(ctx context.Context) {
	var stale []string
	for id, entry := range h.peers {
		if entry.peer.Closed() {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		h.unregister(ctx, id, reasonPruned)
	}
	h.telemetry.RecordPrune(len(stale))
}

// step advances physics one tick and broadcasts every active room.
func (h *Hub) step(ctx context.Context) {
	start := time.Now()
	h.tick++
	now := h.now()
	for _, result := range h.state.engine.Tick(h.state.rooms, now) {
		if result.Served {
			room, _ := h.state.rooms.Room(result.Room)
			pongRallyReset(ctx, h.publisher, h.tick, room)
		}
		h.broadcastGameState(result.Room)
	}
	h.telemetry.RecordTickDuration(time.Since(start))
}

func (h *Hub) closeAll() {
	for id, entry := range h.peers {
		entry.peer.Close()
		delete(h.peers, id)
	}
}

func (h *Hub) sendOne(id string, frame []byte) {
	entry, ok := h.peers[id]
	if !ok {
		return
	}
	dropped := 0
	if !entry.peer.Send(frame) {
		dropped = 1
	}
	h.telemetry.RecordBroadcast(len(frame), 1, dropped)
}

func (h *Hub) broadcastAll(frame []byte) {
	dropped := 0
	for _, entry := range h.peers {
		if !entry.peer.Send(frame) {
			dropped++
		}
	}
	h.telemetry.RecordBroadcast(len(frame), len(h.peers), dropped)
}

func (h *Hub) broadcastRoster() {
	frame, err := proto.EncodeRooms(h.state.rooms.List())
	if err != nil {
		h.logger.Printf("failed to encode roster: %v", err)
		return
	}
	h.broadcastAll(frame)
}

func (h *Hub) broadcastGameState(index int) {
	room, ok := h.state.rooms.Room(index)
	if !ok {
		return
	}
	frame, err := proto.EncodeGameState(room)
	if err != nil {
		h.logger.Printf("failed to encode game state for room %d: %v", index+1, err)
		return
	}
	h.broadcastAll(frame)
}

func connRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindConnection}
}

type hubEvent interface {
	hubEvent()
}

type registerEvent struct {
	peer      Peer
	sourceKey int
}

type unregisterEvent struct {
	id     string
	reason string
}

type frameEvent struct {
	id      string
	payload []byte
}

type submitEvent struct {
	sourceKey int
	text      string
	reply     chan<- chat.SendOutcome
}

type messagesEvent struct {
	reply chan<- []chat.Message
}

type diagnosticsEvent struct {
	reply chan<- Diagnostics
}

func (registerEvent) hubEvent()    {}
func (unregisterEvent) hubEvent()  {}
func (frameEvent) hubEvent()       {}
func (submitEvent) hubEvent()      {}
func (messagesEvent) hubEvent()    {}
func (diagnosticsEvent) hubEvent() {}
