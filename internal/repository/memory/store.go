// Package memory implements the repository contracts in process memory. It
// enforces the same uniqueness rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/internal/repository"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

// Store holds every entity behind one lock.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	conversations map[string]*model.Conversation
	messages      map[string]*model.Message
}

func New() *Store {
	return &Store{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string]*model.Message),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:          &userRepository{s},
		Conversation:  &conversationRepository{s},
		Message:       &messageRepository{s},
		Stats:         &statsRepository{s},
		DeliveryGuard: NewDeliveryGuard(),
		Health:        s,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

type userRepository struct{ s *Store }

func (r *userRepository) Save(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, u := range r.s.users {
		if id != user.ID && u.PhoneNumber == user.PhoneNumber {
			return apperrors.Conflict("user", "%s violates users_phone_number_key", user.PhoneNumber)
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (r *userRepository) FindByPhone(_ context.Context, phone model.PhoneNumber) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", phone.String())
}

func (r *userRepository) FindAll(_ context.Context, skip, limit int) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return page(users, skip, limit), nil
}

func (r *userRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return apperrors.NotFound("user", id)
	}
	delete(r.s.users, id)
	for cid, c := range r.s.conversations {
		if c.UserID == id {
			delete(r.s.conversations, cid)
		}
	}
	for mid, m := range r.s.messages {
		if m.UserID == id {
			delete(r.s.messages, mid)
		}
	}
	return nil
}

type conversationRepository struct{ s *Store }

func cloneConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Context = make(map[string]any, len(c.Context))
	for k, v := range c.Context {
		cp.Context[k] = v
	}
	return &cp
}

func (r *conversationRepository) Save(_ context.Context, conv *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, c := range r.s.conversations {
		if id == conv.ID {
			continue
		}
		if c.ExternalID == conv.ExternalID {
			return apperrors.Conflict("conversation", "%s violates conversations_external_id_key", conv.ExternalID)
		}
		if conv.IsActive() && c.IsActive() && c.UserID == conv.UserID {
			return apperrors.Conflict("conversation", "user %s already has an active conversation", conv.UserID)
		}
	}
	r.s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

func (r *conversationRepository) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil, apperrors.NotFound("conversation", id)
	}
	return cloneConversation(c), nil
}

func (r *conversationRepository) FindByExternalID(_ context.Context, externalID string) (*model.Conversation, error) {
	return r.findOne(func(c *model.Conversation) bool { return c.ExternalID == externalID },
		"conversation", externalID)
}

func (r *conversationRepository) FindActiveByUserID(_ context.Context, userID string) (*model.Conversation, error) {
	return r.findOne(func(c *model.Conversation) bool { return c.UserID == userID && c.IsActive() },
		"active conversation for user", userID)
}

func (r *conversationRepository) FindByStatus(_ context.Context, status model.StatusKind, skip, limit int) ([]*model.Conversation, error) {
	return page(r.filter(func(c *model.Conversation) bool { return c.Status.Kind == status }), skip, limit), nil
}

func (r *conversationRepository) FindAll(_ context.Context, skip, limit int) ([]*model.Conversation, error) {
	return page(r.filter(func(*model.Conversation) bool { return true }), skip, limit), nil
}

func (r *conversationRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[id]; !ok {
		return apperrors.NotFound("conversation", id)
	}
	delete(r.s.conversations, id)
	for mid, m := range r.s.messages {
		if m.ConversationID == id {
			delete(r.s.messages, mid)
		}
	}
	return nil
}

func (r *conversationRepository) findOne(match func(*model.Conversation) bool, resource, key string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.conversations {
		if match(c) {
			return cloneConversation(c), nil
		}
	}
	return nil, apperrors.NotFound(resource, key)
}

// filter returns matches ordered by most recent update.
func (r *conversationRepository) filter(match func(*model.Conversation) bool) []*model.Conversation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Conversation
	for _, c := range r.s.conversations {
		if match(c) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

type messageRepository struct{ s *Store }

func (r *messageRepository) Save(_ context.Context, msg *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, m := range r.s.messages {
		if id != msg.ID && m.ExternalID == msg.ExternalID {
			return apperrors.Conflict("message", "%s violates messages_external_id_key", msg.ExternalID)
		}
	}
	if existing, ok := r.s.messages[msg.ID]; ok {
		existing.Processed = msg.Processed
		existing.Content = msg.Content
		return nil
	}
	cp := *msg
	r.s.messages[msg.ID] = &cp
	return nil
}

func (r *messageRepository) FindByID(_ context.Context, id string) (*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, apperrors.NotFound("message", id)
	}
	cp := *m
	return &cp, nil
}

func (r *messageRepository) FindByExternalID(_ context.Context, externalID string) (*model.Message, error) {
	msgs := r.filter(func(m *model.Message) bool { return m.ExternalID == externalID })
	if len(msgs) == 0 {
		return nil, apperrors.NotFound("message", externalID)
	}
	return msgs[0], nil
}

func (r *messageRepository) ExistsByExternalID(_ context.Context, externalID string) (bool, error) {
	return len(r.filter(func(m *model.Message) bool { return m.ExternalID == externalID })) > 0, nil
}

func (r *messageRepository) FindByConversationID(_ context.Context, conversationID string, skip, limit int) ([]*model.Message, error) {
	return page(r.filter(func(m *model.Message) bool { return m.ConversationID == conversationID }), skip, limit), nil
}

func (r *messageRepository) FindRecentByConversationID(_ context.Context, conversationID string, before time.Time, limit int) ([]*model.Message, error) {
	msgs := r.filter(func(m *model.Message) bool {
		return m.ConversationID == conversationID && m.CreatedAt.Before(before)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *messageRepository) CountByConversationID(_ context.Context, conversationID string) (int, error) {
	return len(r.filter(func(m *model.Message) bool { return m.ConversationID == conversationID })), nil
}

func (r *messageRepository) FindUnprocessed(_ context.Context, limit int) ([]*model.Message, error) {
	msgs := r.filter(func(m *model.Message) bool { return !m.Processed && m.IsIncoming() })
	return page(msgs, 0, limit), nil
}

func (r *messageRepository) FindAll(_ context.Context, skip, limit int) ([]*model.Message, error) {
	msgs := r.filter(func(*model.Message) bool { return true })
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return page(msgs, skip, limit), nil
}

func (r *messageRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[id]; !ok {
		return apperrors.NotFound("message", id)
	}
	delete(r.s.messages, id)
	return nil
}

// filter returns matches oldest first.
func (r *messageRepository) filter(match func(*model.Message) bool) []*model.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Message
	for _, m := range r.s.messages {
		if match(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
