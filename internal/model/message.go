package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

// Message is a single WhatsApp message in a conversation. ExternalID is the
// platform message id and is unique across all messages.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	ExternalID     string         `json:"external_id"`
	Content        MessageContent `json:"content"`
	Processed      bool           `json:"is_processed"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewMessage creates an unprocessed message.
func NewMessage(conversationID, userID, externalID string, content MessageContent) (*Message, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperrors.Validation("external_id", "is required")
	}
	if conversationID == "" {
		return nil, apperrors.Validation("conversation_id", "is required")
	}
	if userID == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}

	return &Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		ExternalID:     externalID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// MarkProcessed flags the message as handled by the processing pipeline.
// It reports false if the message was already processed.
func (m *Message) MarkProcessed() bool {
	if m.Processed {
		return false
	}
	m.Processed = true
	return true
}

func (m *Message) IsIncoming() bool    { return m.Content.Direction() == DirectionIncoming }
func (m *Message) IsOutgoing() bool    { return m.Content.Direction() == DirectionOutgoing }
func (m *Message) Text() string        { return m.Content.Text() }
func (m *Message) DisplayText() string { return m.Content.DisplayText() }
