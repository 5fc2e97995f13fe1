package server

import (
	"math/rand"

	"croissant/server/internal/chat"
	"croissant/server/internal/pong"
	"croissant/server/internal/telemetry"
)

// sessionState is the aggregate mutated by the hub loop. Nothing outside the
// loop goroutine touches it.
type sessionState struct {
	messages *chat.MessageLog
	limiter  *chat.RateLimiter
	labels   *chat.LabelGenerator
	rooms    *pong.Registry
	engine   *pong.Engine
}

func newSessionState(cfg HubConfig, metrics telemetry.Metrics, now int64) *sessionState {
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &sessionState{
		messages: chat.NewMessageLog(cfg.MessageCapacity, metrics),
		limiter:  chat.NewRateLimiter(cfg.RateBuckets, cfg.Cooldown, metrics),
		labels:   chat.NewLabelGenerator(rng),
		rooms:    pong.NewRegistry(cfg.Rooms, now),
		engine:   pong.NewEngine(rng),
	}
}

type seatKey struct {
	room int
	seat int
}
