package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/repository"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/metrics"
)

// ConversationService handles conversation lifecycle operations.
type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	events        eventPublisher
	logger        *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	publisher EventPublisher,
	log *logger.Logger,
) *ConversationService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		events:        eventPublisher{pub: publisher, logger: log},
		logger:        log,
	}
}

// FindOrCreateActive returns the user's active conversation, opening a new
// one when none exists.
func (s *ConversationService) FindOrCreateActive(ctx context.Context, user *model.User) (*model.Conversation, bool, error) {
	conv, err := s.conversations.FindActiveByUserID(ctx, user.ID)
	if err == nil {
		return conv, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, fmt.Errorf("find active conversation: %w", err)
	}

	conv, err = model.NewConversation(user.ID, newExternalID(user))
	if err != nil {
		return nil, false, err
	}

	err = s.conversations.Save(ctx, conv)
	if apperrors.IsConflict(err) {
		// another intake opened it first
		winner, findErr := s.conversations.FindActiveByUserID(ctx, user.ID)
		if findErr != nil {
			return nil, false, fmt.Errorf("find active conversation: %w", findErr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}

	metrics.ConversationsCreatedTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", user.ID),
	)
	return conv, true, nil
}

func newExternalID(user *model.User) string {
	return fmt.Sprintf("%s_%d_%s", user.WhatsAppID(), time.Now().Unix(), uuid.NewString()[:8])
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.conversations.FindByID(ctx, id)
}

// List retrieves conversations, optionally filtered by status.
func (s *ConversationService) List(ctx context.Context, status string, skip, limit int) ([]*model.Conversation, error) {
	if status == "" {
		return s.conversations.FindAll(ctx, skip, limit)
	}
	kind, err := model.ParseStatusKind(status)
	if err != nil {
		return nil, err
	}
	return s.conversations.FindByStatus(ctx, kind, skip, limit)
}

// Messages retrieves a page of a conversation's messages, oldest first.
func (s *ConversationService) Messages(ctx context.Context, id string, skip, limit int) ([]*model.Message, error) {
	if _, err := s.conversations.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.messages.FindByConversationID(ctx, id, skip, limit)
}

// Close ends a conversation.
func (s *ConversationService) Close(ctx context.Context, id, reason string) (*model.Conversation, error) {
	return s.transition(ctx, id, func(c *model.Conversation) error {
		c.Close(reason)
		return nil
	})
}

// Activate reopens a conversation. It fails with a conflict when the user
// already has another active conversation.
func (s *ConversationService) Activate(ctx context.Context, id string) (*model.Conversation, error) {
	return s.transition(ctx, id, func(c *model.Conversation) error {
		if c.IsActive() {
			return nil
		}
		other, err := s.conversations.FindActiveByUserID(ctx, c.UserID)
		if err == nil && other.ID != c.ID {
			return apperrors.Conflict("conversation", "user %s already has active conversation %s", c.UserID, other.ID)
		}
		if err != nil && !apperrors.IsNotFound(err) {
			return err
		}
		c.Activate()
		return nil
	})
}

// Transfer hands a conversation to a human agent.
func (s *ConversationService) Transfer(ctx context.Context, id, agentID, reason string) (*model.Conversation, error) {
	return s.transition(ctx, id, func(c *model.Conversation) error {
		return c.TransferToAgent(agentID, reason)
	})
}

// Escalate flags a conversation for supervisor attention.
func (s *ConversationService) Escalate(ctx context.Context, id, reason string) (*model.Conversation, error) {
	conv, err := s.transition(ctx, id, func(c *model.Conversation) error {
		c.Escalate(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.publish(ctx, &model.ConversationEvent{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Type:           model.EventConversationEscalated,
		Reason:         reason,
	})
	return conv, nil
}

// WaitForAgent queues a conversation for a human agent. messageID names
// the message that triggered the handoff, if any.
func (s *ConversationService) WaitForAgent(ctx context.Context, id, messageID string) (*model.Conversation, error) {
	conv, err := s.transition(ctx, id, func(c *model.Conversation) error {
		c.SetWaitingForAgent()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.publish(ctx, &model.ConversationEvent{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		MessageID:      messageID,
		Type:           model.EventConversationEscalated,
		Reason:         conv.Status.Reason,
	})
	return conv, nil
}

// Delete removes a conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if err := s.conversations.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}

func (s *ConversationService) transition(ctx context.Context, id string, apply func(*model.Conversation) error) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := conv.Status.Kind

	if err := apply(conv); err != nil {
		return nil, err
	}
	if err := s.conversations.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	if from != conv.Status.Kind {
		s.logger.Info("conversation status changed",
			zap.String("conversation_id", conv.ID),
			zap.String("from", string(from)),
			zap.String("to", string(conv.Status.Kind)),
		)
		s.events.publish(ctx, &model.ConversationEvent{
			ConversationID: conv.ID,
			UserID:         conv.UserID,
			Type:           model.EventConversationStatus,
			Reason:         conv.Status.Reason,
			Metadata:       map[string]any{"from": string(from), "to": string(conv.Status.Kind)},
		})
	}
	return conv, nil
}
