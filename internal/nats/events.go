package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/wpp-platform/customer-service/internal/model"
)

const (
	// StreamName is the name of the domain event stream.
	StreamName = "WPP_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "wpp"
)

// EventPublisher publishes conversation events to JetStream.
type EventPublisher struct {
	client *Client
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// EnsureStream ensures the event stream exists with proper configuration.
func (p *EventPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "WhatsApp customer service domain events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event, e.g.
// "wpp.conv.<conversation id>.message.received".
func EventSubject(conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.conv.%s.%s", SubjectPrefix, conversationID, eventType)
}

// Publish publishes an event and returns its stream sequence. The event id
// is sent as the JetStream message id, so the server drops republished
// copies inside its duplicate window.
func (p *EventPublisher) Publish(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.client.JetStream().Publish(ctx, EventSubject(event.ConversationID, event.Type), data,
		jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}
