package server

import (
	"testing"
	"time"
)

func TestTelemetryBroadcastAccounting(t *testing.T) {
	counters := newTelemetryCounters()
	counters.RecordBroadcast(100, 3, 1)
	counters.RecordBroadcast(50, 1, 0)
	counters.RecordRejectedFrame()
	counters.RecordPrune(2)
	counters.RecordTickDuration(250 * time.Microsecond)
	counters.Add("chat_messages_total", 4)

	snapshot := counters.Snapshot()
	if snapshot.BytesSent != 250 {
		t.Fatalf("expected 250 bytes sent, got %d", snapshot.BytesSent)
	}
	if snapshot.FramesSent != 3 || snapshot.FramesDropped != 1 {
		t.Fatalf("unexpected frame counts: sent=%d dropped=%d", snapshot.FramesSent, snapshot.FramesDropped)
	}
	if snapshot.FramesRejected != 1 || snapshot.ConnectionsPruned != 2 {
		t.Fatalf("unexpected rejected/pruned: %+v", snapshot)
	}
	if snapshot.TickDurationMicros != 250 {
		t.Fatalf("expected tick duration 250us, got %d", snapshot.TickDurationMicros)
	}
	if snapshot.Counters["chat_messages_total"] != 4 {
		t.Fatalf("expected named counter forwarded, got %v", snapshot.Counters)
	}
}

func TestTelemetryIgnoresNegativeInputs(t *testing.T) {
	counters := newTelemetryCounters()
	counters.RecordBroadcast(-10, 2, 5)
	counters.RecordTickDuration(-time.Second)
	counters.RecordPrune(-1)

	snapshot := counters.Snapshot()
	if snapshot.BytesSent != 0 || snapshot.FramesSent != 0 {
		t.Fatalf("expected no delivered frames, got %+v", snapshot)
	}
	if snapshot.TickDurationMicros != 0 || snapshot.ConnectionsPruned != 0 {
		t.Fatalf("expected clamped values, got %+v", snapshot)
	}
}

func TestSessionChatCountersReachTelemetry(t *testing.T) {
	counters := newTelemetryCounters()
	cfg := DefaultHubConfig()
	cfg.MessageCapacity = 2
	state := newSessionState(cfg, counters, 0)

	for i := 0; i < 3; i++ {
		state.messages.Append("hi", "A (#8B4513)", int64(i))
	}

	named := counters.Snapshot().Counters
	if named["chat_log_evictions_total"] != 1 {
		t.Fatalf("expected one eviction counted, got %v", named)
	}
	if named["chat_log_occupancy"] != 2 {
		t.Fatalf("expected occupancy 2, got %v", named)
	}
}
