package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/cabanera/booking-assistant/internal/model"
	"github.com/cabanera/booking-assistant/pkg/logger"
)

const (
	// StreamName is the name of the chat activity stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all chat subjects.
	SubjectPrefix = "chat"

	// KindMessage marks persisted chat messages.
	KindMessage = "message"

	// KindEstimate marks estimates created during a conversation.
	KindEstimate = "estimate"
)

// Publisher emits chat activity. A nil *Bus is a valid no-op publisher so
// the service runs without a broker in development.
type Publisher interface {
	PublishMessage(ctx context.Context, venueID string, msg *model.ChatMessage)
	PublishEstimate(ctx context.Context, est *model.Estimate)
}

// Bus publishes chat activity to JetStream.
type Bus struct {
	client *Client
	logger *logger.Logger
}

// NewBus creates a bus over an established client.
func NewBus(client *Client, log *logger.Logger) *Bus {
	return &Bus{client: client, logger: log}
}

// EnsureStream creates the chat stream if it does not exist.
func (b *Bus) EnsureStream(ctx context.Context) error {
	if b == nil {
		return nil
	}
	js := b.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Guest chat messages and assistant-created estimates",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageSubject returns the subject for a chat message.
func MessageSubject(venueID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, venueID, conversationID, KindMessage)
}

// EstimateSubject returns the subject for an estimate event.
func EstimateSubject(venueID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, venueID, conversationID, KindEstimate)
}

// ConversationFilter returns the filter subject for all activity in a
// conversation.
func ConversationFilter(venueID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, venueID, conversationID)
}

// PublishMessage publishes a persisted chat message. Publish failures are
// logged and swallowed; the chat turn must not fail because the broker is
// down.
func (b *Bus) PublishMessage(ctx context.Context, venueID string, msg *model.ChatMessage) {
	if b == nil {
		return
	}
	b.publish(ctx, MessageSubject(venueID, msg.ConversationID), msg)
}

// PublishEstimate publishes an assistant-created estimate.
func (b *Bus) PublishEstimate(ctx context.Context, est *model.Estimate) {
	if b == nil {
		return
	}
	conversationID := ""
	if est.ConversationID != nil {
		conversationID = *est.ConversationID
	}
	b.publish(ctx, EstimateSubject(est.VenueID, conversationID), est)
}

func (b *Bus) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := b.client.JetStream().Publish(ctx, subject, data); err != nil {
		b.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
