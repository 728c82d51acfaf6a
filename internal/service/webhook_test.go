package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/repository"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

func payload(t *testing.T, messages ...string) *whatsapp.WebhookPayload {
	t.Helper()
	raw := fmt.Sprintf(`{
	  "object": "whatsapp_business_account",
	  "entry": [{"id": "WABA", "changes": [{"field": "messages", "value": {
	    "messaging_product": "whatsapp",
	    "contacts": [{"profile": {"name": "Maria"}, "wa_id": "5511999998888"}],
	    "messages": [%s]
	  }}]}]
	}`, joinJSON(messages))

	var p whatsapp.WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func joinJSON(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

func textMessage(id, body string) string {
	return fmt.Sprintf(`{"from": "5511999998888", "id": %q, "timestamp": "1700000000", "type": "text", "text": {"body": %q}}`, id, body)
}

func newWebhookService(env *testEnv, opts WebhookOptions) *WebhookService {
	return NewWebhookService(env.messages, env.conversations, opts, logger.NewNop())
}

func TestWebhookService_AutoReply(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newWebhookService(env, WebhookOptions{AutoReply: true, MarkAsRead: true})

	res := svc.Handle(ctx, payload(t, textMessage("wamid.1", "bom dia")))
	assert.Equal(t, WebhookResult{Received: 1, Stored: 1}, res)

	assert.Equal(t, []string{"wamid.1"}, env.sender.read)
	require.Len(t, env.sender.sent, 1)
	assert.Contains(t, env.sender.sent[0], "Como posso ajudá-lo hoje?")

	user, err := env.users.GetByPhone(ctx, "+5511999998888")
	require.NoError(t, err)
	assert.Equal(t, "Maria", user.Name)

	conv, err := env.repos.Conversation.FindActiveByUserID(ctx, user.ID)
	require.NoError(t, err)
	msgs, err := env.messages.ListByConversation(ctx, conv.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsIncoming())
	assert.True(t, msgs[1].IsOutgoing())
}

func TestWebhookService_DuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newWebhookService(env, WebhookOptions{AutoReply: true})

	p := payload(t, textMessage("wamid.1", "bom dia"))
	svc.Handle(ctx, p)
	res := svc.Handle(ctx, p)

	assert.Equal(t, WebhookResult{Received: 1, Duplicates: 1}, res)
	assert.Len(t, env.sender.sent, 1)
}

func TestWebhookService_Escalation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newWebhookService(env, WebhookOptions{AutoReply: true})

	res := svc.Handle(ctx, payload(t, textMessage("wamid.1", "quero falar com um supervisor agora")))
	assert.Equal(t, 1, res.Stored)
	assert.Empty(t, env.sender.sent)

	msg, err := env.repos.Message.FindByExternalID(ctx, "wamid.1")
	require.NoError(t, err)
	conv, err := env.conversations.Get(ctx, msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingAgent, conv.Status.Kind)
	assert.Equal(t, "Aguardando atendimento humano", conv.Status.Reason)
	assert.Contains(t, env.events.types(), model.EventConversationEscalated)
}

func TestWebhookService_DeliveryFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.sender.failing = true
	svc := newWebhookService(env, WebhookOptions{AutoReply: true})

	res := svc.Handle(ctx, payload(t, textMessage("wamid.1", "bom dia")))
	assert.Equal(t, WebhookResult{Received: 1, Stored: 1}, res)

	msg, err := env.repos.Message.FindByExternalID(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, msg.Processed)
}

func TestWebhookService_StorageFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnvWith(t, func(repos *repository.Repositories) {
		repos.Message = &outageMessages{MessageRepository: repos.Message, down: true}
	})
	svc := newWebhookService(env, WebhookOptions{AutoReply: true})

	res := svc.Handle(ctx, payload(t,
		textMessage("wamid.1", "bom dia"),
		`{"from": "12", "id": "wamid.2", "timestamp": "1700000001", "type": "text", "text": {"body": "oi"}}`,
	))
	assert.Equal(t, WebhookResult{Received: 2, Failed: 2, Retryable: 1}, res)
	assert.Empty(t, env.sender.sent)
}

func TestWebhookService_MixedPayload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newWebhookService(env, WebhookOptions{})

	res := svc.Handle(ctx, payload(t,
		textMessage("wamid.1", "oi"),
		`{"from": "5511999998888", "id": "wamid.2", "timestamp": "1700000001", "type": "reaction"}`,
		`{"from": "5511999998888", "id": "wamid.3", "timestamp": "1700000002", "type": "image", "image": {"id": "M1", "mime_type": "image/jpeg"}}`,
	))

	assert.Equal(t, WebhookResult{Received: 3, Stored: 2, Skipped: 1}, res)
	assert.Empty(t, env.sender.sent)

	img, err := env.repos.Message.FindByExternalID(ctx, "wamid.3")
	require.NoError(t, err)
	assert.Equal(t, "[Image]", img.DisplayText())
}
