package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

const waitingForAgentReason = "Aguardando atendimento humano"

// Conversation is a customer-service thread with one user.
type Conversation struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	ExternalID string             `json:"external_id"`
	Status     ConversationStatus `json:"status"`
	Context    map[string]any     `json:"context,omitempty"`
	AgentID    string             `json:"agent_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// NewConversation creates an Active conversation.
func NewConversation(userID, externalID string) (*Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperrors.Validation("external_id", "is required")
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Conversation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		UserID:     userID,
		ExternalID: externalID,
		Status:     ConversationStatus{Kind: StatusActive, Timestamp: now},
		Context:    map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Close moves the conversation to the terminal Closed state.
func (c *Conversation) Close(reason string) {
	c.setStatus(StatusClosed, reason, "")
}

// TransferToAgent hands the conversation to a human agent.
func (c *Conversation) TransferToAgent(agentID, reason string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return apperrors.Validation("agent_id", "is required")
	}
	c.setStatus(StatusTransferred, reason, agentID)
	c.AgentID = agentID
	return nil
}

func (c *Conversation) Escalate(reason string) {
	c.setStatus(StatusEscalated, reason, "")
}

func (c *Conversation) SetWaitingForAgent() {
	c.setStatus(StatusWaitingAgent, waitingForAgentReason, "")
}

// Activate reopens the conversation.
func (c *Conversation) Activate() {
	c.setStatus(StatusActive, "", "")
}

// SetContext stores a value carried across turns.
func (c *Conversation) SetContext(key string, value any) {
	if c.Context == nil {
		c.Context = map[string]any{}
	}
	c.Context[key] = value
	c.UpdatedAt = c.nextStamp()
}

func (c *Conversation) IsActive() bool           { return c.Status.Kind == StatusActive }
func (c *Conversation) CanReceiveMessages() bool { return c.Status.CanReceiveMessages() }
func (c *Conversation) RequiresHumanAgent() bool { return c.Status.RequiresHumanAgent() }

func (c *Conversation) setStatus(kind StatusKind, reason, agentID string) {
	now := c.nextStamp()
	c.Status = ConversationStatus{
		Kind:      kind,
		Timestamp: now,
		Reason:    strings.TrimSpace(reason),
		AgentID:   agentID,
	}
	c.UpdatedAt = now
}

// nextStamp returns the current time, bumped so that stamps on one
// conversation strictly increase at the microsecond precision Postgres keeps.
func (c *Conversation) nextStamp() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	last := c.UpdatedAt
	if c.Status.Timestamp.After(last) {
		last = c.Status.Timestamp
	}
	if !now.After(last) {
		now = last.Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}
