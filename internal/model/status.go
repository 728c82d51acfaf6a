package model

import (
	"strings"
	"time"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

// StatusKind names a conversation lifecycle state.
type StatusKind string

const (
	StatusActive       StatusKind = "active"
	StatusClosed       StatusKind = "closed"
	StatusTransferred  StatusKind = "transferred"
	StatusWaitingAgent StatusKind = "waiting_agent"
	StatusEscalated    StatusKind = "escalated"
)

var statusLabels = map[StatusKind]string{
	StatusActive:       "Ativa",
	StatusClosed:       "Encerrada",
	StatusTransferred:  "Transferida para agente",
	StatusWaitingAgent: "Aguardando agente",
	StatusEscalated:    "Escalada",
}

// ParseStatusKind validates a status name.
func ParseStatusKind(s string) (StatusKind, error) {
	k := StatusKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusLabels[k]; !ok {
		return "", apperrors.Validation("status", "unknown conversation status %q", s)
	}
	return k, nil
}

// ConversationStatus is a conversation state stamped with the time it was
// entered, an optional reason and, for transfers, the assigned agent.
type ConversationStatus struct {
	Kind      StatusKind `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Reason    string     `json:"reason,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
}

// CanReceiveMessages is true for Active, WaitingAgent and Escalated.
func (s ConversationStatus) CanReceiveMessages() bool {
	switch s.Kind {
	case StatusActive, StatusWaitingAgent, StatusEscalated:
		return true
	}
	return false
}

// RequiresHumanAgent is true for Transferred, WaitingAgent and Escalated.
func (s ConversationStatus) RequiresHumanAgent() bool {
	switch s.Kind {
	case StatusTransferred, StatusWaitingAgent, StatusEscalated:
		return true
	}
	return false
}

// Description returns the localized label with the reason appended.
func (s ConversationStatus) Description() string {
	label, ok := statusLabels[s.Kind]
	if !ok {
		label = string(s.Kind)
	}
	if s.Reason != "" {
		return label + " - " + s.Reason
	}
	return label
}
