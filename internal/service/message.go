package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/processing"
	"github.com/wpp-platform/customer-service/internal/repository"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/metrics"
	"github.com/wpp-platform/customer-service/pkg/tracing"
)

// ErrNoSender is returned by delivery operations when no WhatsApp client is
// configured.
var ErrNoSender = errors.New("whatsapp sender not configured")

// MessageService handles message intake, processing and delivery.
type MessageService struct {
	messages      repository.MessageRepository
	guard         repository.DeliveryGuard
	users         *UserService
	conversations *ConversationService
	processor     processing.Service
	sender        Sender
	events        eventPublisher
	logger        *logger.Logger
}

// NewMessageService creates a new message service. sender may be nil, in
// which case delivery operations fail with ErrNoSender.
func NewMessageService(
	repos *repository.Repositories,
	users *UserService,
	conversations *ConversationService,
	processor processing.Service,
	sender Sender,
	publisher EventPublisher,
	log *logger.Logger,
) *MessageService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	guard := repos.DeliveryGuard
	if guard == nil {
		guard = repository.NopDeliveryGuard{}
	}
	return &MessageService{
		messages:      repos.Message,
		guard:         guard,
		users:         users,
		conversations: conversations,
		processor:     processor,
		sender:        sender,
		events:        eventPublisher{pub: publisher, logger: log},
		logger:        log,
	}
}

// IncomingMessage is an inbound message as received from the platform.
type IncomingMessage struct {
	ExternalID  string
	From        string
	ProfileName string
	Content     model.MessageContent
}

// IntakeResult describes what Intake did with a message.
type IntakeResult struct {
	Message         *model.Message
	User            *model.User
	Conversation    *model.Conversation
	Duplicate       bool
	NewUser         bool
	NewConversation bool
}

// Verdict is the outcome of processing one inbound message.
type Verdict struct {
	MessageID      string                `json:"message_id"`
	ConversationID string                `json:"conversation_id"`
	ShouldEscalate bool                  `json:"should_escalate"`
	Response       *string               `json:"ai_response"`
	Sentiment      model.SentimentResult `json:"sentiment"`
	Intent         model.IntentResult    `json:"intent"`
}

// Intake stores an inbound message exactly once per external id, resolving
// or creating its user and active conversation. The messages table is the
// source of truth for duplicates; the delivery guard only short-circuits
// redeliveries of messages already stored.
func (s *MessageService) Intake(ctx context.Context, in IncomingMessage) (res *IntakeResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "message.intake", "external_id", in.ExternalID)
	defer func() { tracing.End(span, err) }()

	log := logger.FromContext(ctx, s.logger).With(zap.String("external_id", in.ExternalID))

	if in.ExternalID == "" {
		return nil, apperrors.Validation("external_id", "must not be empty")
	}

	seen, err := s.guard.Seen(ctx, in.ExternalID)
	if err != nil {
		log.Warn("delivery guard unavailable", zap.Error(err))
	}
	if seen {
		log.Debug("duplicate delivery skipped")
		return &IntakeResult{Duplicate: true}, nil
	}

	res, err = s.intake(ctx, in)
	if err != nil {
		return nil, err
	}
	if rememberErr := s.guard.Remember(ctx, in.ExternalID); rememberErr != nil {
		log.Warn("failed to remember delivery", zap.Error(rememberErr))
	}
	return res, nil
}

func (s *MessageService) intake(ctx context.Context, in IncomingMessage) (*IntakeResult, error) {
	exists, err := s.messages.ExistsByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("check message: %w", err)
	}
	if exists {
		return &IntakeResult{Duplicate: true}, nil
	}

	phone, err := model.PhoneNumberFromWhatsApp(in.From)
	if err != nil {
		return nil, err
	}

	user, newUser, err := s.users.FindOrCreateByPhone(ctx, phone, in.ProfileName)
	if err != nil {
		return nil, err
	}
	conv, newConv, err := s.conversations.FindOrCreateActive(ctx, user)
	if err != nil {
		return nil, err
	}

	msg, err := model.NewMessage(conv.ID, user.ID, in.ExternalID, in.Content)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		if apperrors.IsConflict(err) {
			return &IntakeResult{Duplicate: true}, nil
		}
		return nil, fmt.Errorf("save message: %w", err)
	}

	metrics.MessagesStoredTotal.WithLabelValues(string(model.DirectionIncoming)).Inc()
	s.events.publish(ctx, messageEvent(model.EventMessageReceived, msg))

	logger.FromContext(ctx, s.logger).Info("message stored",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", conv.ID),
		zap.String("type", string(msg.Content.Type())),
	)

	return &IntakeResult{
		Message:         msg,
		User:            user,
		Conversation:    conv,
		NewUser:         newUser,
		NewConversation: newConv,
	}, nil
}

// ProcessIncomingMessage evaluates a stored message and marks it processed.
// Processing itself never fails; only lookups and the final save can.
func (s *MessageService) ProcessIncomingMessage(ctx context.Context, externalID string) (v *Verdict, err error) {
	ctx, span := tracing.StartSpan(ctx, "message.process", "external_id", externalID)
	defer func() { tracing.End(span, err) }()

	msg, err := s.messages.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, msg)
}

// ProcessByID is ProcessIncomingMessage addressed by internal id.
func (s *MessageService) ProcessByID(ctx context.Context, id string) (*Verdict, error) {
	msg, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ProcessIncomingMessage(ctx, msg.ExternalID)
}

func (s *MessageService) process(ctx context.Context, msg *model.Message) (*Verdict, error) {
	conv, err := s.conversations.Get(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.messages.FindRecentByConversationID(ctx, conv.ID, msg.CreatedAt, processing.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	text := msg.DisplayText()
	v := &Verdict{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		Sentiment:      s.processor.AnalyzeSentiment(ctx, text),
		Intent:         s.processor.ExtractIntent(ctx, text),
	}
	v.ShouldEscalate = s.processor.ShouldEscalate(processing.WithSentiment(ctx, v.Sentiment), msg, conv, history)
	if !v.ShouldEscalate {
		reply := s.processor.GenerateResponse(ctx, msg, conv, history)
		v.Response = &reply
	}

	if msg.MarkProcessed() {
		if err := s.messages.Save(ctx, msg); err != nil {
			return nil, fmt.Errorf("mark processed: %w", err)
		}
	}

	metrics.RecordVerdict(string(v.Intent.Intent), string(v.Sentiment.Sentiment), v.ShouldEscalate)
	event := messageEvent(model.EventMessageProcessed, msg)
	event.Metadata = map[string]any{
		"intent":          string(v.Intent.Intent),
		"sentiment":       string(v.Sentiment.Sentiment),
		"should_escalate": v.ShouldEscalate,
	}
	s.events.publish(ctx, event)

	logger.FromContext(ctx, s.logger).Info("message processed",
		zap.String("message_id", msg.ID),
		zap.String("intent", string(v.Intent.Intent)),
		zap.String("sentiment", string(v.Sentiment.Sentiment)),
		zap.Bool("escalate", v.ShouldEscalate),
	)
	return v, nil
}

// SendMessage records an outgoing text message to phone. It does not
// contact WhatsApp; see Deliver.
func (s *MessageService) SendMessage(ctx context.Context, phone, text string) (*model.Message, error) {
	content, err := model.NewMessageContent(text, model.MessageTypeText, model.DirectionOutgoing, nil)
	if err != nil {
		return nil, err
	}
	return s.recordOutgoing(ctx, phone, content)
}

func (s *MessageService) recordOutgoing(ctx context.Context, rawPhone string, content model.MessageContent) (*model.Message, error) {
	phone, err := model.NewPhoneNumber(rawPhone)
	if err != nil {
		return nil, err
	}
	user, _, err := s.users.FindOrCreateByPhone(ctx, phone, "")
	if err != nil {
		return nil, err
	}
	conv, _, err := s.conversations.FindOrCreateActive(ctx, user)
	if err != nil {
		return nil, err
	}

	msg, err := model.NewMessage(conv.ID, user.ID, "outgoing_"+uuid.NewString(), content)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	metrics.MessagesStoredTotal.WithLabelValues(string(model.DirectionOutgoing)).Inc()
	return msg, nil
}

// Deliver sends a stored outgoing text message through WhatsApp.
func (s *MessageService) Deliver(ctx context.Context, msg *model.Message) (*whatsapp.SendResult, error) {
	if s.sender == nil {
		return nil, ErrNoSender
	}
	user, err := s.users.Get(ctx, msg.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.sender.SendMessage(ctx, user.WhatsAppID(), msg.Text())
	if err != nil {
		return nil, err
	}
	s.sent(ctx, msg, result)
	return result, nil
}

// TemplateInput describes a template message.
type TemplateInput struct {
	To           string           `json:"to"`
	Name         string           `json:"template_name"`
	LanguageCode string           `json:"language_code"`
	Components   []map[string]any `json:"components,omitempty"`
}

// SendTemplate records and delivers a template message.
func (s *MessageService) SendTemplate(ctx context.Context, in TemplateInput) (*model.Message, *whatsapp.SendResult, error) {
	if s.sender == nil {
		return nil, nil, ErrNoSender
	}
	if in.Name == "" {
		return nil, nil, apperrors.Validation("template_name", "must not be empty")
	}
	if in.LanguageCode == "" {
		in.LanguageCode = "pt_BR"
	}

	content, err := model.NewMessageContent(in.Name, model.MessageTypeTemplate, model.DirectionOutgoing,
		map[string]any{"template": in.Name, "language": in.LanguageCode})
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.recordOutgoing(ctx, in.To, content)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.Get(ctx, msg.UserID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.sender.SendTemplateMessage(ctx, user.WhatsAppID(), in.Name, in.LanguageCode, in.Components)
	if err != nil {
		return msg, nil, err
	}
	s.sent(ctx, msg, result)
	return msg, result, nil
}

// InteractiveInput describes an interactive (buttons or list) message.
type InteractiveInput struct {
	To          string         `json:"to"`
	Interactive map[string]any `json:"interactive"`
}

// SendInteractive records and delivers an interactive message. The body
// text, when present, becomes the stored text.
func (s *MessageService) SendInteractive(ctx context.Context, in InteractiveInput) (*model.Message, *whatsapp.SendResult, error) {
	if s.sender == nil {
		return nil, nil, ErrNoSender
	}
	if len(in.Interactive) == 0 {
		return nil, nil, apperrors.Validation("interactive", "must not be empty")
	}

	text := "[Interactive]"
	if body, ok := in.Interactive["body"].(map[string]any); ok {
		if t, ok := body["text"].(string); ok && t != "" {
			text = t
		}
	}
	kind, _ := in.Interactive["type"].(string)

	content, err := model.NewMessageContent(text, model.MessageTypeInteractive, model.DirectionOutgoing,
		map[string]any{"interactive_type": kind})
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.recordOutgoing(ctx, in.To, content)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.Get(ctx, msg.UserID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.sender.SendInteractiveMessage(ctx, user.WhatsAppID(), in.Interactive)
	if err != nil {
		return msg, nil, err
	}
	s.sent(ctx, msg, result)
	return msg, result, nil
}

// sent records the platform message id on msg. The message already left, so
// a failure to persist the id is logged and not returned.
func (s *MessageService) sent(ctx context.Context, msg *model.Message, result *whatsapp.SendResult) {
	msg.Content = msg.Content.WithMetadata(model.MetadataWhatsAppMessageID, result.MessageID)
	if err := s.messages.Save(ctx, msg); err != nil {
		logger.FromContext(ctx, s.logger).Warn("failed to record platform message id",
			zap.String("message_id", msg.ID), zap.Error(err))
	}

	event := messageEvent(model.EventMessageSent, msg)
	event.Metadata = map[string]any{"whatsapp_message_id": result.MessageID}
	s.events.publish(ctx, event)

	logger.FromContext(ctx, s.logger).Info("message delivered",
		zap.String("message_id", msg.ID),
		zap.String("whatsapp_message_id", result.MessageID),
	)
}

// Media fetches an inbound media object by its platform media id.
func (s *MessageService) Media(ctx context.Context, mediaID string) ([]byte, error) {
	if s.sender == nil {
		return nil, ErrNoSender
	}
	url, err := s.sender.GetMediaURL(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	return s.sender.DownloadMedia(ctx, url)
}

// MarkAsRead acknowledges an inbound message on the platform.
func (s *MessageService) MarkAsRead(ctx context.Context, externalID string) error {
	if s.sender == nil {
		return ErrNoSender
	}
	return s.sender.MarkAsRead(ctx, externalID)
}

// Get retrieves a message by ID.
func (s *MessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	return s.messages.FindByID(ctx, id)
}

// ListByConversation retrieves a conversation's messages, oldest first.
func (s *MessageService) ListByConversation(ctx context.Context, conversationID string, skip, limit int) ([]*model.Message, error) {
	return s.conversations.Messages(ctx, conversationID, skip, limit)
}

// ListUnprocessed retrieves inbound messages not yet processed.
func (s *MessageService) ListUnprocessed(ctx context.Context, limit int) ([]*model.Message, error) {
	return s.messages.FindUnprocessed(ctx, limit)
}

// Delete removes a message.
func (s *MessageService) Delete(ctx context.Context, id string) error {
	return s.messages.Delete(ctx, id)
}
