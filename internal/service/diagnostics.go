package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/processing"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const diagnosticsID = "diagnostics"

// DiagnosticsService exercises the processing engine and the WhatsApp
// sender on operator demand without touching stored data.
type DiagnosticsService struct {
	processor processing.Service
	sender    Sender
	engine    string
	logger    *logger.Logger
}

// NewDiagnosticsService creates a diagnostics service. engine names the
// processing backend in results.
func NewDiagnosticsService(processor processing.Service, sender Sender, engine string, log *logger.Logger) *DiagnosticsService {
	return &DiagnosticsService{
		processor: processor,
		sender:    sender,
		engine:    engine,
		logger:    log.Named("diagnostics"),
	}
}

// AITestResult is the verdict computed for a sample text.
type AITestResult struct {
	Input          string                `json:"input_message"`
	Response       *string               `json:"ai_response"`
	Sentiment      model.SentimentResult `json:"sentiment"`
	Intent         model.IntentResult    `json:"intent"`
	ShouldEscalate bool                  `json:"should_escalate"`
	Engine         string                `json:"engine"`
	Seconds        float64               `json:"processing_time"`
}

// TestAI runs text through the processing engine as a first message of a
// fresh conversation.
func (s *DiagnosticsService) TestAI(ctx context.Context, text string) (*AITestResult, error) {
	content, err := model.NewMessageContent(text, model.MessageTypeText, model.DirectionIncoming, nil)
	if err != nil {
		return nil, err
	}
	conv, err := model.NewConversation(diagnosticsID, diagnosticsID)
	if err != nil {
		return nil, err
	}
	msg, err := model.NewMessage(conv.ID, diagnosticsID, diagnosticsID, content)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := &AITestResult{
		Input:     text,
		Sentiment: s.processor.AnalyzeSentiment(ctx, msg.DisplayText()),
		Intent:    s.processor.ExtractIntent(ctx, msg.DisplayText()),
		Engine:    s.engine,
	}
	res.ShouldEscalate = s.processor.ShouldEscalate(processing.WithSentiment(ctx, res.Sentiment), msg, conv, nil)
	if !res.ShouldEscalate {
		reply := s.processor.GenerateResponse(ctx, msg, conv, nil)
		res.Response = &reply
	}
	res.Seconds = time.Since(start).Seconds()

	logger.FromContext(ctx, s.logger).Info("ai diagnostics run",
		zap.String("engine", s.engine),
		zap.Float64("seconds", res.Seconds),
	)
	return res, nil
}

// WhatsAppTestResult reports the outcome of a test send. Platform failures
// are reported here rather than returned as errors.
type WhatsAppTestResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TestWhatsApp sends text to phone directly through the sender. Nothing is
// recorded as a conversation message.
func (s *DiagnosticsService) TestWhatsApp(ctx context.Context, phone, text string) (*WhatsAppTestResult, error) {
	if s.sender == nil {
		return nil, ErrNoSender
	}
	to, err := model.NewPhoneNumber(phone)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Validation("message", "must not be empty")
	}

	result, err := s.sender.SendMessage(ctx, to.WhatsAppFormat(), text)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("whatsapp diagnostics send failed", zap.Error(err))
		return &WhatsAppTestResult{Error: err.Error()}, nil
	}
	return &WhatsAppTestResult{Success: true, MessageID: result.MessageID}, nil
}
