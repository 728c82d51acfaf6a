// Package service implements the use cases of the customer service platform.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/metrics"
)

// Sender is the outbound WhatsApp contract. Phone numbers are digits only.
type Sender interface {
	SendMessage(ctx context.Context, to, text string) (*whatsapp.SendResult, error)
	SendTemplateMessage(ctx context.Context, to, name, languageCode string, components []map[string]any) (*whatsapp.SendResult, error)
	SendInteractiveMessage(ctx context.Context, to string, interactive map[string]any) (*whatsapp.SendResult, error)
	MarkAsRead(ctx context.Context, messageID string) error
	GetMediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

var _ Sender = (*whatsapp.Client)(nil)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *model.ConversationEvent) (uint64, error) { return 0, nil }

// eventPublisher logs publish failures instead of returning them.
type eventPublisher struct {
	pub    EventPublisher
	logger *logger.Logger
}

func (p eventPublisher) publish(ctx context.Context, event *model.ConversationEvent) {
	if event.ID == "" {
		event.ID = uuid.Must(uuid.NewV7()).String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := p.pub.Publish(ctx, event)
	metrics.RecordEvent(string(event.Type), err)
	if err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
	}
}

// messageEvent builds an event keyed by message so a republish is
// idempotent downstream.
func messageEvent(t model.EventType, msg *model.Message) *model.ConversationEvent {
	return &model.ConversationEvent{
		ID:             string(t) + ":" + msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		MessageID:      msg.ID,
		Type:           t,
	}
}
