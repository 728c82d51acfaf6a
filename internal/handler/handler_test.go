package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/processing"
	"github.com/wpp-platform/customer-service/internal/repository"
	"github.com/wpp-platform/customer-service/internal/repository/memory"
	"github.com/wpp-platform/customer-service/internal/service"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const (
	testVerifyToken = "verify-me"
	testAppSecret   = "app-secret"
)

type stubSender struct {
	sent []string
}

func (s *stubSender) SendMessage(_ context.Context, to, text string) (*whatsapp.SendResult, error) {
	s.sent = append(s.sent, to+": "+text)
	return &whatsapp.SendResult{MessageID: "wamid.out", WaID: to}, nil
}

func (s *stubSender) SendTemplateMessage(_ context.Context, to, _, _ string, _ []map[string]any) (*whatsapp.SendResult, error) {
	return &whatsapp.SendResult{MessageID: "wamid.tpl", WaID: to}, nil
}

func (s *stubSender) SendInteractiveMessage(_ context.Context, to string, _ map[string]any) (*whatsapp.SendResult, error) {
	return &whatsapp.SendResult{MessageID: "wamid.int", WaID: to}, nil
}

func (s *stubSender) MarkAsRead(context.Context, string) error { return nil }

func (s *stubSender) GetMediaURL(_ context.Context, id string) (string, error) {
	return "https://media.example/" + id, nil
}

func (s *stubSender) DownloadMedia(context.Context, string) ([]byte, error) {
	return []byte("%PDF-1.4 fake"), nil
}

type testServer struct {
	router http.Handler
	repos  *repository.Repositories
	sender *stubSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test replace repositories before the services are
// built.
func newTestServerWith(t *testing.T, wrap func(*repository.Repositories)) *testServer {
	t.Helper()
	log := logger.NewNop()
	repos := memory.New().Repositories()
	if wrap != nil {
		wrap(repos)
	}
	sender := &stubSender{}

	users := service.NewUserService(repos.User, log)
	convs := service.NewConversationService(repos.Conversation, repos.Message, nil, log)
	msgs := service.NewMessageService(repos, users, convs, processing.NewHeuristic(), sender, nil, log)
	webhook := service.NewWebhookService(msgs, convs, service.WebhookOptions{AutoReply: true}, log)

	r := chi.NewRouter()
	health := NewHealthHandler(repos.Health, nil)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Mount("/webhook", NewWebhookHandler(webhook, testVerifyToken, testAppSecret, log).Routes())
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", NewUserHandler(users, log).Routes())
		r.Mount("/conversations", NewConversationHandler(convs, log).Routes())
		r.Mount("/messages", NewMessageHandler(msgs, log).Routes())
		r.Mount("/analytics", NewAnalyticsHandler(service.NewAnalyticsService(repos.Stats), log).Routes())
		r.Mount("/diagnostics", NewDiagnosticsHandler(service.NewDiagnosticsService(processing.NewHeuristic(), sender, "heuristic", log), log).Routes())
	})

	return &testServer{router: r, repos: repos, sender: sender}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const webhookBody = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "contacts": [{"profile": {"name": "Maria"}, "wa_id": "5511999998888"}],
    "messages": [{"from": "5511999998888", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "bom dia"}}]
  }}]}]
}`

func postWebhook(s *testServer, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(whatsapp.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_Verify(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhook_Receive(t *testing.T) {
	s := newTestServer(t)

	rec := postWebhook(s, webhookBody, whatsapp.Sign([]byte(webhookBody), testAppSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 1, body["received"])
	assert.EqualValues(t, 1, body["stored"])
	assert.Len(t, s.sender.sent, 1)

	// redelivery is acknowledged but stores nothing
	rec = postWebhook(s, webhookBody, whatsapp.Sign([]byte(webhookBody), testAppSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["received"])
	assert.EqualValues(t, 0, body["stored"])
}

type unavailableMessages struct {
	repository.MessageRepository
	down bool
}

func (r *unavailableMessages) Save(ctx context.Context, msg *model.Message) error {
	if r.down {
		return apperrors.Storage("save message", errors.New("connection refused"))
	}
	return r.MessageRepository.Save(ctx, msg)
}

func TestWebhook_StorageOutageAsksForRedelivery(t *testing.T) {
	var messages *unavailableMessages
	s := newTestServerWith(t, func(repos *repository.Repositories) {
		messages = &unavailableMessages{MessageRepository: repos.Message, down: true}
		repos.Message = messages
	})

	rec := postWebhook(s, webhookBody, whatsapp.Sign([]byte(webhookBody), testAppSecret))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "error", body["status"])
	assert.EqualValues(t, 0, body["stored"])
	assert.Empty(t, s.sender.sent)

	messages.down = false
	rec = postWebhook(s, webhookBody, whatsapp.Sign([]byte(webhookBody), testAppSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["stored"])
	assert.Len(t, s.sender.sent, 1)
}

func TestWebhook_Rejections(t *testing.T) {
	s := newTestServer(t)

	rec := postWebhook(s, webhookBody, "sha256=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(s, webhookBody, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := `{"entry": [`
	rec = postWebhook(s, bad, whatsapp.Sign([]byte(bad), testAppSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	empty := `{"object": "whatsapp_business_account", "entry": []}`
	rec = postWebhook(s, empty, whatsapp.Sign([]byte(empty), testAppSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsers_CRUD(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/users", map[string]string{"phone_number": "+5511999990001", "name": "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]any](t, rec)
	id := created["id"].(string)
	assert.Equal(t, "+5511999990001", created["phone_number"])

	rec = s.do(t, http.MethodPost, "/api/v1/users", map[string]string{"phone_number": "+55 11 99999-0001", "name": "Outra"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, id, decode[map[string]any](t, rec)["id"])

	rec = s.do(t, http.MethodPost, "/api/v1/users", map[string]string{"phone_number": "5511999990001", "name": "Outra"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/phone/+5511999990001", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/users/"+id, map[string]any{"name": "Ana Souza", "is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[map[string]any](t, rec)
	assert.Equal(t, "Ana Souza", updated["name"])
	assert.Equal(t, false, updated["is_active"])

	rec = s.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/api/v1/users/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/users", map[string]string{"phone_number": "123", "name": "Ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/phone/+5511999990009", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversations_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	postWebhook(s, webhookBody, whatsapp.Sign([]byte(webhookBody), testAppSecret))

	rec := s.do(t, http.MethodGet, "/api/v1/conversations?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convs := decode[[]map[string]any](t, rec)
	require.Len(t, convs, 1)
	id := convs[0]["id"].(string)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/transfer", map[string]string{"reason": "vip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/transfer", map[string]string{"agent_id": "agent-1", "reason": "vip"})
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)["status"].(map[string]any)
	assert.Equal(t, "transferred", status["status"])

	rec = s.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/conversations?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessages_SendAndProcess(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/messages/send", map[string]any{
		"phone_number": "+5511999998888",
		"message":      "Seu pedido saiu para entrega",
		"deliver":      true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sent := decode[sendMessageResponse](t, rec)
	assert.Equal(t, "wamid.out", sent.WhatsAppMessageID)
	assert.Equal(t, []string{"5511999998888: Seu pedido saiu para entrega"}, s.sender.sent)

	rec = s.do(t, http.MethodPost, "/api/v1/messages/send", map[string]any{"phone_number": "+5511999998888", "message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	content := `{"object": "whatsapp_business_account", "entry": [{"changes": [{"field": "messages", "value": {
	  "messages": [{"from": "5511999998888", "id": "wamid.9", "type": "text", "text": {"body": "qual o prazo de entrega?"}}]}}]}]}`
	rec = postWebhook(s, content, whatsapp.Sign([]byte(content), testAppSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	msg, err := s.repos.Message.FindByExternalID(context.Background(), "wamid.9")
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/api/v1/messages/process/"+msg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	verdict := decode[map[string]any](t, rec)
	assert.Equal(t, false, verdict["should_escalate"])
	assert.Equal(t, "question", verdict["intent"].(map[string]any)["intent"])

	rec = s.do(t, http.MethodGet, "/api/v1/messages/"+msg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["is_processed"])

	rec = s.do(t, http.MethodGet, "/api/v1/messages/unprocessed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/messages/process/0190b6f4-0000-7000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessages_Media(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/messages/media/M1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestAnalytics(t *testing.T) {
	s := newTestServer(t)
	postWebhook(s, webhookBody, whatsapp.Sign([]byte(webhookBody), testAppSecret))

	rec := s.do(t, http.MethodGet, "/api/v1/analytics/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, overview["total_messages"])

	rec = s.do(t, http.MethodGet, "/api/v1/analytics/message-trends?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trends := decode[map[string]any](t, rec)
	assert.Len(t, trends["trends"], 3)

	rec = s.do(t, http.MethodGet, "/api/v1/analytics/message-trends?days=31", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/analytics/conversation-metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

type disconnected struct{}

func (disconnected) IsConnected() bool { return false }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHealthHandler(downPinger{}, nil)
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = NewHealthHandler(nil, disconnected{})
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDiagnostics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/diagnostics/ai", map[string]string{"message": "qual o prazo de entrega?"})
	require.Equal(t, http.StatusOK, rec.Code)
	ai := decode[map[string]any](t, rec)
	assert.Equal(t, "heuristic", ai["engine"])
	assert.Equal(t, "qual o prazo de entrega?", ai["input_message"])
	assert.NotEmpty(t, ai["ai_response"])

	rec = s.do(t, http.MethodPost, "/api/v1/diagnostics/ai", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/diagnostics/whatsapp", map[string]string{"phone_number": "+5511999998888", "message": "teste"})
	require.Equal(t, http.StatusOK, rec.Code)
	wa := decode[map[string]any](t, rec)
	assert.Equal(t, true, wa["success"])
	assert.Equal(t, "wamid.out", wa["message_id"])
	assert.Equal(t, []string{"5511999998888: teste"}, s.sender.sent)
}
