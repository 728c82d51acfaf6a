package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/whatsapp"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/metrics"
)

// WebhookOptions toggles the side effects run after an inbound message is
// stored.
type WebhookOptions struct {
	AutoReply  bool
	MarkAsRead bool
}

// WebhookService runs the inbound pipeline for a webhook delivery.
type WebhookService struct {
	messages      *MessageService
	conversations *ConversationService
	opts          WebhookOptions
	logger        *logger.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(messages *MessageService, conversations *ConversationService, opts WebhookOptions, log *logger.Logger) *WebhookService {
	return &WebhookService{
		messages:      messages,
		conversations: conversations,
		opts:          opts,
		logger:        log,
	}
}

// WebhookResult counts what happened to the messages of one delivery.
// Retryable is the subset of Failed caused by infrastructure rather than by
// the message itself; redelivering the payload may store them.
type WebhookResult struct {
	Received   int `json:"received"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Retryable  int `json:"retryable"`
}

// Handle stores every message in the payload and processes each new one.
// A failing message is logged and counted; it never aborts the rest. Callers
// should ask the platform to redeliver when Retryable is non-zero.
func (s *WebhookService) Handle(ctx context.Context, payload *whatsapp.WebhookPayload) WebhookResult {
	var res WebhookResult
	log := logger.FromContext(ctx, s.logger)

	for _, inbound := range payload.Messages() {
		res.Received++
		msgLog := log.With(zap.String("external_id", inbound.ExternalID), zap.String("type", inbound.Type))

		content, err := inbound.Message.Content()
		if err != nil {
			if errors.Is(err, whatsapp.ErrUnsupportedType) {
				res.Skipped++
				metrics.RecordWebhookMessage(inbound.Type, "skipped")
				msgLog.Debug("unsupported message type skipped")
				continue
			}
			res.Failed++
			metrics.RecordWebhookMessage(inbound.Type, "invalid")
			msgLog.Warn("invalid inbound message", zap.Error(err))
			continue
		}

		intake, err := s.messages.Intake(ctx, IncomingMessage{
			ExternalID:  inbound.ExternalID,
			From:        inbound.From,
			ProfileName: inbound.ProfileName,
			Content:     content,
		})
		if err != nil {
			res.Failed++
			if apperrors.IsValidation(err) {
				metrics.RecordWebhookMessage(inbound.Type, "invalid")
				msgLog.Warn("inbound message rejected", zap.Error(err))
				continue
			}
			res.Retryable++
			metrics.RecordWebhookMessage(inbound.Type, "failed")
			msgLog.Error("failed to store inbound message", zap.Error(err))
			continue
		}
		if intake.Duplicate {
			res.Duplicates++
			metrics.RecordWebhookMessage(inbound.Type, "duplicate")
			continue
		}

		res.Stored++
		metrics.RecordWebhookMessage(inbound.Type, "stored")
		s.afterIntake(logger.IntoContext(ctx, msgLog), intake)
	}

	return res
}

func (s *WebhookService) afterIntake(ctx context.Context, intake *IntakeResult) {
	log := logger.FromContext(ctx, s.logger)
	msg := intake.Message

	if s.opts.MarkAsRead {
		if err := s.messages.MarkAsRead(ctx, msg.ExternalID); err != nil {
			log.Warn("failed to mark message as read", zap.Error(err))
		}
	}

	verdict, err := s.messages.ProcessIncomingMessage(ctx, msg.ExternalID)
	if err != nil {
		log.Error("failed to process message", zap.Error(err))
		return
	}

	if verdict.ShouldEscalate {
		if _, err := s.conversations.WaitForAgent(ctx, verdict.ConversationID, msg.ID); err != nil {
			log.Error("failed to hand conversation to agent", zap.Error(err))
		}
		return
	}

	if !s.opts.AutoReply || verdict.Response == nil {
		return
	}
	reply, err := s.messages.SendMessage(ctx, intake.User.PhoneNumber.String(), *verdict.Response)
	if err != nil {
		log.Error("failed to record reply", zap.Error(err))
		return
	}
	if _, err := s.messages.Deliver(ctx, reply); err != nil {
		log.Error("failed to deliver reply", zap.String("message_id", reply.ID), zap.Error(err))
	}
}
