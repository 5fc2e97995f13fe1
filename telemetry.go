package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"croissant/server/internal/telemetry"
)

// telemetryCounters tracks transport and tick figures for /diagnostics and
// forwards named counters from the chat components.
type telemetryCounters struct {
	bytesSent          atomic.Uint64
	framesSent         atomic.Uint64
	framesDropped      atomic.Uint64
	framesRejected     atomic.Uint64
	tickDurationMicros atomic.Int64
	lastBroadcastBytes atomic.Uint64
	connectionsPruned  atomic.Uint64
	debug              bool

	named *telemetry.Counters
}

type telemetrySnapshot struct {
	BytesSent          uint64            `json:"bytesSent"`
	FramesSent         uint64            `json:"framesSent"`
	FramesDropped      uint64            `json:"framesDropped"`
	FramesRejected     uint64            `json:"framesRejected"`
	TickDurationMicros int64             `json:"tickDurationMicros"`
	ConnectionsPruned  uint64            `json:"connectionsPruned"`
	Counters           map[string]uint64 `json:"counters"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{named: telemetry.NewCounters()}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) Add(key string, delta uint64) {
	t.named.Add(key, delta)
}

func (t *telemetryCounters) Store(key string, value uint64) {
	t.named.Store(key, value)
}

// RecordBroadcast accounts for one frame fanned out to recipients, of which
// dropped could not be queued.
func (t *telemetryCounters) RecordBroadcast(bytes, recipients, dropped int) {
	if bytes < 0 {
		bytes = 0
	}
	delivered := max(recipients-dropped, 0)
	t.bytesSent.Add(uint64(bytes * delivered))
	t.framesSent.Add(uint64(delivered))
	t.framesDropped.Add(uint64(max(dropped, 0)))
	t.lastBroadcastBytes.Store(uint64(bytes))
}

func (t *telemetryCounters) RecordRejectedFrame() {
	t.framesRejected.Add(1)
}

func (t *telemetryCounters) RecordPrune(count int) {
	if count > 0 {
		t.connectionsPruned.Add(uint64(count))
	}
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	t.tickDurationMicros.Store(micros)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dus lastBytes=%d totalBytes=%d frames=%d dropped=%d\n",
			micros,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.framesSent.Load(),
			t.framesDropped.Load(),
		)
	}
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		BytesSent:          t.bytesSent.Load(),
		FramesSent:         t.framesSent.Load(),
		FramesDropped:      t.framesDropped.Load(),
		FramesRejected:     t.framesRejected.Load(),
		TickDurationMicros: t.tickDurationMicros.Load(),
		ConnectionsPruned:  t.connectionsPruned.Load(),
		Counters:           t.named.Snapshot(),
	}
}
