package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/processing"
	"github.com/wpp-platform/customer-service/internal/repository"
	"github.com/wpp-platform/customer-service/internal/repository/memory"
	"github.com/wpp-platform/customer-service/internal/whatsapp"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	read    []string
	failing bool
}

func (f *fakeSender) SendMessage(_ context.Context, to, text string) (*whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, apperrors.Adapter("whatsapp", errors.New("unavailable"))
	}
	f.sent = append(f.sent, to+": "+text)
	return &whatsapp.SendResult{MessageID: fmt.Sprintf("wamid.out.%d", len(f.sent)), WaID: to}, nil
}

func (f *fakeSender) SendTemplateMessage(_ context.Context, to, name, lang string, _ []map[string]any) (*whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+": template "+name+"/"+lang)
	return &whatsapp.SendResult{MessageID: "wamid.tpl", WaID: to}, nil
}

func (f *fakeSender) SendInteractiveMessage(_ context.Context, to string, _ map[string]any) (*whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+": interactive")
	return &whatsapp.SendResult{MessageID: "wamid.int", WaID: to}, nil
}

func (f *fakeSender) MarkAsRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, id)
	return nil
}

func (f *fakeSender) GetMediaURL(_ context.Context, id string) (string, error) {
	return "https://media.example/" + id, nil
}

func (f *fakeSender) DownloadMedia(_ context.Context, url string) ([]byte, error) {
	return []byte(url), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.ConversationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return uint64(len(p.events)), nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	repos         *repository.Repositories
	sender        *fakeSender
	events        *recordingPublisher
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test replace repositories before the services are
// built.
func newTestEnvWith(t *testing.T, wrap func(*repository.Repositories)) *testEnv {
	t.Helper()
	log := logger.NewNop()
	env := &testEnv{
		repos:  memory.New().Repositories(),
		sender: &fakeSender{},
		events: &recordingPublisher{},
	}
	if wrap != nil {
		wrap(env.repos)
	}
	env.users = NewUserService(env.repos.User, log)
	env.conversations = NewConversationService(env.repos.Conversation, env.repos.Message, env.events, log)
	env.messages = NewMessageService(env.repos, env.users, env.conversations, processing.NewHeuristic(), env.sender, env.events, log)
	return env
}

// outageMessages fails every Save while down is set.
type outageMessages struct {
	repository.MessageRepository
	down bool
}

func (r *outageMessages) Save(ctx context.Context, msg *model.Message) error {
	if r.down {
		return apperrors.Storage("save message", errors.New("connection reset"))
	}
	return r.MessageRepository.Save(ctx, msg)
}

func textContent(t *testing.T, text string) model.MessageContent {
	t.Helper()
	c, err := model.NewMessageContent(text, model.MessageTypeText, model.DirectionIncoming, nil)
	require.NoError(t, err)
	return c
}

func TestUserService_CreateIsIdempotentOnPhone(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u1, created, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: "+55 (11) 99999-0001", Name: "Ana"})
	require.NoError(t, err)
	assert.True(t, created)

	u2, created, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: "+5511999990001", Name: "Outra"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "Ana", u2.Name)

	_, _, err = env.users.Create(ctx, CreateUserInput{PhoneNumber: "5511999990001", Name: "Outra"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUserService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.users.Create(context.Background(), CreateUserInput{PhoneNumber: "123", Name: "Ana"})
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = env.users.Create(context.Background(), CreateUserInput{PhoneNumber: "+5511999990001", Name: " "})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u, _, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: "+5511999990001", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	name, email, active := "Ana Souza", "", false
	updated, err := env.users.Update(ctx, u.ID, UpdateUserInput{Name: &name, Email: &email, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", updated.Name)
	assert.Empty(t, updated.Email)
	assert.False(t, updated.Active)

	_, err = env.users.Update(ctx, "missing", UpdateUserInput{Name: &name})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUserService_GetByPhone(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u, _, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: "+5511999990001", Name: "Ana"})
	require.NoError(t, err)

	got, err := env.users.GetByPhone(ctx, "+55 11 99999-0001")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.users.GetByPhone(ctx, "5511999990001")
	assert.True(t, apperrors.IsValidation(err))

	_, err = env.users.GetByPhone(ctx, "+5511999990002")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConversationService_FindOrCreateActive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u, _, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: "+5511999990001", Name: "Ana"})
	require.NoError(t, err)

	c1, created, err := env.conversations.FindOrCreateActive(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.StatusActive, c1.Status.Kind)
	assert.Contains(t, c1.ExternalID, "5511999990001_")

	c2, created, err := env.conversations.FindOrCreateActive(ctx, u)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c1.ID, c2.ID)
}

func TestConversationService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u, _, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: "+5511999990001", Name: "Ana"})
	require.NoError(t, err)
	c1, _, err := env.conversations.FindOrCreateActive(ctx, u)
	require.NoError(t, err)

	closed, err := env.conversations.Close(ctx, c1.ID, "resolvido")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, closed.Status.Kind)

	c2, created, err := env.conversations.FindOrCreateActive(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, c1.ID, c2.ID)

	_, err = env.conversations.Activate(ctx, c1.ID)
	assert.True(t, apperrors.IsConflict(err))

	transferred, err := env.conversations.Transfer(ctx, c2.ID, "agent-7", "pedido do cliente")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTransferred, transferred.Status.Kind)
	assert.Equal(t, "agent-7", transferred.AgentID)

	_, err = env.conversations.Transfer(ctx, c2.ID, "", "")
	assert.True(t, apperrors.IsValidation(err))

	reopened, err := env.conversations.Activate(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, reopened.Status.Kind)

	assert.Contains(t, env.events.types(), model.EventConversationStatus)
}

func TestConversationService_ListByStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, phone := range []string{"+5511999990001", "+5511999990002"} {
		u, _, err := env.users.Create(ctx, CreateUserInput{PhoneNumber: phone, Name: "Cliente"})
		require.NoError(t, err)
		_, _, err = env.conversations.FindOrCreateActive(ctx, u)
		require.NoError(t, err)
	}
	all, err := env.conversations.List(ctx, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = env.conversations.Escalate(ctx, all[0].ID, "cliente irritado")
	require.NoError(t, err)

	escalated, err := env.conversations.List(ctx, "escalated", 0, 10)
	require.NoError(t, err)
	require.Len(t, escalated, 1)
	assert.Equal(t, all[0].ID, escalated[0].ID)

	_, err = env.conversations.List(ctx, "archived", 0, 10)
	assert.True(t, apperrors.IsValidation(err))
}
