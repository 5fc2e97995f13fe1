package chat

import "croissant/server/internal/telemetry"

const (
	logOccupancyMetricKey = "chat_log_occupancy"
	logEvictionMetricKey  = "chat_log_evictions_total"
)

// DefaultCapacity is the number of messages retained for replay.
const DefaultCapacity = 100

// Message is a single accepted chat line.
type Message struct {
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// MessageLog stores accepted messages in a fixed-size ring. Appending to a
// full log overwrites the oldest entry. It is not safe for concurrent use;
// the hub loop is its only caller.
type MessageLog struct {
	data    []Message
	head    int
	count   int
	metrics telemetry.Metrics
}

// NewMessageLog constructs a ring with the provided capacity.
func NewMessageLog(capacity int, metrics telemetry.Metrics) *MessageLog {
	if capacity < 1 {
		capacity = 1
	}
	return &MessageLog{
		data:    make([]Message, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of retained messages.
func (l *MessageLog) Capacity() int {
	if l == nil {
		return 0
	}
	return len(l.data)
}

// Len reports the number of retained messages.
func (l *MessageLog) Len() int {
	if l == nil {
		return 0
	}
	return l.count
}

// Append stores a message stamped with now, evicting the oldest entry when
// the log is full.
func (l *MessageLog) Append(text, sender string, now int64) Message {
	msg := Message{Timestamp: now, Sender: sender, Text: text}
	if l == nil {
		return msg
	}
	if l.count == len(l.data) {
		l.data[l.head] = msg
		l.head = (l.head + 1) % len(l.data)
		if l.metrics != nil {
			l.metrics.Add(logEvictionMetricKey, 1)
		}
	} else {
		l.data[(l.head+l.count)%len(l.data)] = msg
		l.count++
	}
	l.storeOccupancy()
	return msg
}

// Snapshot returns the retained messages oldest first.
func (l *MessageLog) Snapshot() []Message {
	if l == nil || l.count == 0 {
		return []Message{}
	}
	messages := make([]Message, l.count)
	for i := 0; i < l.count; i++ {
		messages[i] = l.data[(l.head+i)%len(l.data)]
	}
	return messages
}

func (l *MessageLog) storeOccupancy() {
	if l.metrics == nil {
		return
	}
	l.metrics.Store(logOccupancyMetricKey, uint64(l.count))
}
