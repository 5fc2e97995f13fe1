package chat

import (
	"context"

	"croissant/server/logging"
)

const (
	// EventMessageAccepted is emitted when a message enters the log.
	EventMessageAccepted logging.EventType = "chat.message_accepted"
	// EventMessageRejected is emitted when a message fails validation.
	EventMessageRejected logging.EventType = "chat.message_rejected"
	// EventRateLimited is emitted when a source bucket is still cooling down.
	EventRateLimited logging.EventType = "chat.rate_limited"
)

// MessagePayload summarises an accepted message without its text.
type MessagePayload struct {
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"`
	Length    int    `json:"length"`
	Via       string `json:"via"`
}

// RejectionPayload identifies the source of a refused submission.
type RejectionPayload struct {
	SourceKey int    `json:"sourceKey"`
	Via       string `json:"via"`
}

// MessageAccepted publishes an accepted message event.
func MessageAccepted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MessagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageAccepted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryChat,
		Payload:  payload,
	})
}

// MessageRejected publishes a debug event for an invalid submission.
func MessageRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryChat,
		Payload:  payload,
	})
}

// RateLimited publishes a warning for a throttled submission.
func RateLimited(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRateLimited,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryChat,
		Payload:  payload,
	})
}
