package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/processing"
	"github.com/wpp-platform/customer-service/internal/repository"
	"github.com/wpp-platform/customer-service/internal/repository/memory"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

func TestMessageService_IntakeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := IncomingMessage{ExternalID: "wamid.1", From: "5511999998888", ProfileName: "Maria", Content: textContent(t, "oi")}

	first, err := env.messages.Intake(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.True(t, first.NewUser)
	assert.True(t, first.NewConversation)

	second, err := env.messages.Intake(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	msgs, err := env.messages.ListByConversation(ctx, first.Conversation.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMessageService_IntakeUnknownSender(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.1", From: "5511999998888", Content: textContent(t, "oi")})
	require.NoError(t, err)

	assert.Equal(t, "Usuário +55 (11) 99999-8888", res.User.Name)
	assert.Equal(t, "+5511999998888", res.User.PhoneNumber.String())
	assert.Equal(t, model.StatusActive, res.Conversation.Status.Kind)
	assert.False(t, res.Message.Processed)
	assert.Equal(t, []model.EventType{model.EventMessageReceived}, env.events.types())

	// second message from the same sender reuses the user and conversation
	res2, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.2", From: "5511999998888", Content: textContent(t, "tudo bem?")})
	require.NoError(t, err)
	assert.False(t, res2.NewUser)
	assert.False(t, res2.NewConversation)
	assert.Equal(t, res.Conversation.ID, res2.Conversation.ID)
}

func TestMessageService_IntakeRetriesAfterRejectedSender(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.1", From: "12", Content: textContent(t, "oi")})
	assert.True(t, apperrors.IsValidation(err))

	res, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.1", From: "5511999998888", Content: textContent(t, "oi")})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestMessageService_IntakeInterruptedBeforeSaveIsRedelivered(t *testing.T) {
	ctx := context.Background()
	var messages *outageMessages
	env := newTestEnvWith(t, func(repos *repository.Repositories) {
		messages = &outageMessages{MessageRepository: repos.Message, down: true}
		repos.Message = messages
	})
	in := IncomingMessage{ExternalID: "wamid.crash", From: "5511999998888", Content: textContent(t, "oi")}

	_, err := env.messages.Intake(ctx, in)
	require.Error(t, err)
	seen, err := env.repos.DeliveryGuard.Seen(ctx, "wamid.crash")
	require.NoError(t, err)
	assert.False(t, seen)

	messages.down = false
	res, err := env.messages.Intake(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Message)

	stored, err := env.repos.Message.FindByExternalID(ctx, "wamid.crash")
	require.NoError(t, err)
	assert.Equal(t, res.Message.ID, stored.ID)

	seen, _ = env.repos.DeliveryGuard.Seen(ctx, "wamid.crash")
	assert.True(t, seen)
}

func TestMessageService_IntakeConsultsStoreWhenGuardIsCold(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	in := IncomingMessage{ExternalID: "wamid.1", From: "5511999998888", Content: textContent(t, "oi")}

	_, err := env.messages.Intake(ctx, in)
	require.NoError(t, err)

	// a fresh guard, as after a Redis flush, still finds the stored message
	env.messages.guard = memory.NewDeliveryGuard()
	res, err := env.messages.Intake(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestMessageService_ProcessGreeting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.1", From: "5511999998888", Content: textContent(t, "bom dia")})
	require.NoError(t, err)

	v, err := env.messages.ProcessIncomingMessage(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, v.ShouldEscalate)
	assert.Equal(t, model.IntentGreeting, v.Intent.Intent)
	require.NotNil(t, v.Response)
	assert.Equal(t, processing.CannedResponse(model.IntentGreeting), *v.Response)

	msg, err := env.repos.Message.FindByExternalID(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, msg.Processed)

	unprocessed, err := env.messages.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestMessageService_ProcessEscalation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.1", From: "5511999998888", Content: textContent(t, "quero cancelar meu pedido")})
	require.NoError(t, err)

	v, err := env.messages.ProcessByID(ctx, res.Message.ID)
	require.NoError(t, err)
	assert.True(t, v.ShouldEscalate)
	assert.Nil(t, v.Response)
	assert.Equal(t, res.Conversation.ID, v.ConversationID)
}

func TestMessageService_ProcessLongConversationEscalates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.messages.Intake(ctx, IncomingMessage{ExternalID: "wamid.current", From: "5511999998888", Content: textContent(t, "ok")})
	require.NoError(t, err)

	addPrior := func(i int) {
		m, err := model.NewMessage(res.Conversation.ID, res.User.ID, fmt.Sprintf("wamid.h%d", i), textContent(t, "ok"))
		require.NoError(t, err)
		m.CreatedAt = res.Message.CreatedAt.Add(-time.Duration(i+1) * time.Minute)
		require.NoError(t, env.repos.Message.Save(ctx, m))
	}
	for i := 0; i < 20; i++ {
		addPrior(i)
	}

	v, err := env.messages.ProcessByID(ctx, res.Message.ID)
	require.NoError(t, err)
	assert.False(t, v.ShouldEscalate)

	addPrior(20)
	v, err = env.messages.ProcessByID(ctx, res.Message.ID)
	require.NoError(t, err)
	assert.True(t, v.ShouldEscalate)
}

func TestMessageService_ProcessUnknownMessage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.messages.ProcessIncomingMessage(context.Background(), "wamid.missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessageService_SendAndDeliver(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.messages.SendMessage(ctx, "+5511999998888", " ")
	assert.True(t, apperrors.IsValidation(err))

	msg, err := env.messages.SendMessage(ctx, "+5511999998888", "Seu pedido foi enviado")
	require.NoError(t, err)
	assert.True(t, msg.IsOutgoing())
	assert.Contains(t, msg.ExternalID, "outgoing_")

	result, err := env.messages.Deliver(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "wamid.out.1", result.MessageID)
	assert.Equal(t, []string{"5511999998888: Seu pedido foi enviado"}, env.sender.sent)
	assert.Contains(t, env.events.types(), model.EventMessageSent)

	stored, err := env.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "wamid.out.1", stored.Content.Metadata()[model.MetadataWhatsAppMessageID])

	unprocessed, err := env.messages.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestMessageService_DeliverFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.sender.failing = true

	msg, err := env.messages.SendMessage(ctx, "+5511999998888", "Olá")
	require.NoError(t, err)

	_, err = env.messages.Deliver(ctx, msg)
	assert.True(t, apperrors.IsAdapter(err))

	stored, err := env.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olá", stored.Text())
}

func TestMessageService_SendTemplate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	msg, result, err := env.messages.SendTemplate(ctx, TemplateInput{To: "+5511999998888", Name: "pedido_enviado"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.tpl", result.MessageID)
	assert.Equal(t, model.MessageTypeTemplate, msg.Content.Type())
	assert.Equal(t, "pt_BR", msg.Content.Metadata()["language"])
	assert.Equal(t, []string{"5511999998888: template pedido_enviado/pt_BR"}, env.sender.sent)

	_, _, err = env.messages.SendTemplate(ctx, TemplateInput{To: "+5511999998888"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestMessageService_SendInteractive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	msg, _, err := env.messages.SendInteractive(ctx, InteractiveInput{
		To: "+5511999998888",
		Interactive: map[string]any{
			"type": "button",
			"body": map[string]any{"text": "Confirma o pedido?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Confirma o pedido?", msg.Text())
	assert.Equal(t, "button", msg.Content.Metadata()["interactive_type"])
}

func TestMessageService_WithoutSender(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.messages.sender = nil

	msg, err := env.messages.SendMessage(ctx, "+5511999998888", "Olá")
	require.NoError(t, err)

	_, err = env.messages.Deliver(ctx, msg)
	assert.ErrorIs(t, err, ErrNoSender)

	_, err = env.messages.Media(ctx, "M1")
	assert.ErrorIs(t, err, ErrNoSender)
}
