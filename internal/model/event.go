package model

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventMessageReceived       EventType = "message.received"
	EventMessageProcessed      EventType = "message.processed"
	EventMessageSent           EventType = "message.sent"
	EventConversationEscalated EventType = "conversation.escalated"
	EventConversationStatus    EventType = "conversation.status"
)

// ConversationEvent is published to the event stream after state changes.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id,omitempty"`
	MessageID      string         `json:"message_id,omitempty"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
