package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	mu     sync.Mutex
	added  map[string]uint64
	stored map[string]uint64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{added: map[string]uint64{}, stored: map[string]uint64{}}
}

func (m *recordingMetrics) Add(key string, delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added[key] += delta
}

func (m *recordingMetrics) Store(key string, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[key] = value
}

func TestMessageLogKeepsInsertionOrder(t *testing.T) {
	log := NewMessageLog(DefaultCapacity, nil)
	log.Append("one", "A (#8B4513)", 10)
	log.Append("two", "B (#654321)", 20)

	snapshot := log.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, Message{Timestamp: 10, Sender: "A (#8B4513)", Text: "one"}, snapshot[0])
	require.Equal(t, "two", snapshot[1].Text)
}

func TestMessageLogEvictsOldestWhenFull(t *testing.T) {
	metrics := newRecordingMetrics()
	log := NewMessageLog(DefaultCapacity, metrics)

	for i := 0; i < DefaultCapacity+25; i++ {
		log.Append(fmt.Sprintf("msg-%d", i), "X", int64(i))
		require.LessOrEqual(t, log.Len(), DefaultCapacity)
	}

	snapshot := log.Snapshot()
	require.Len(t, snapshot, DefaultCapacity)
	require.Equal(t, "msg-25", snapshot[0].Text)
	require.Equal(t, fmt.Sprintf("msg-%d", DefaultCapacity+24), snapshot[len(snapshot)-1].Text)
	for i := 1; i < len(snapshot); i++ {
		require.Less(t, snapshot[i-1].Timestamp, snapshot[i].Timestamp)
	}
	require.Equal(t, uint64(25), metrics.added[logEvictionMetricKey])
	require.Equal(t, uint64(DefaultCapacity), metrics.stored[logOccupancyMetricKey])
}

func TestMessageLogSnapshotIsACopy(t *testing.T) {
	log := NewMessageLog(2, nil)
	log.Append("first", "A", 1)

	snapshot := log.Snapshot()
	snapshot[0].Text = "mutated"

	require.Equal(t, "first", log.Snapshot()[0].Text)
}

func TestMessageLogEmptySnapshot(t *testing.T) {
	log := NewMessageLog(0, nil)
	require.Equal(t, 1, log.Capacity())
	require.NotNil(t, log.Snapshot())
	require.Empty(t, log.Snapshot())
}
