// Package repository defines the persistence contracts of the platform and
// their Postgres and Redis implementations.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wpp-platform/customer-service/internal/model"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

// UserRepository persists users. Save inserts or updates by id; a second
// user with the same phone number is a ConflictError.
type UserRepository interface {
	Save(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByPhone(ctx context.Context, phone model.PhoneNumber) (*model.User, error)
	FindAll(ctx context.Context, skip, limit int) ([]*model.User, error)
	Delete(ctx context.Context, id string) error
}

// ConversationRepository persists conversations. At most one conversation
// per user may be Active; Save returns a ConflictError otherwise.
type ConversationRepository interface {
	Save(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Conversation, error)
	FindActiveByUserID(ctx context.Context, userID string) (*model.Conversation, error)
	FindByStatus(ctx context.Context, status model.StatusKind, skip, limit int) ([]*model.Conversation, error)
	FindAll(ctx context.Context, skip, limit int) ([]*model.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository persists messages. External ids are unique.
type MessageRepository interface {
	Save(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Message, error)
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	// FindByConversationID returns messages oldest first.
	FindByConversationID(ctx context.Context, conversationID string, skip, limit int) ([]*model.Message, error)
	// FindRecentByConversationID returns the newest limit messages created
	// before the given time, oldest first.
	FindRecentByConversationID(ctx context.Context, conversationID string, before time.Time, limit int) ([]*model.Message, error)
	CountByConversationID(ctx context.Context, conversationID string) (int, error)
	FindUnprocessed(ctx context.Context, limit int) ([]*model.Message, error)
	FindAll(ctx context.Context, skip, limit int) ([]*model.Message, error)
	Delete(ctx context.Context, id string) error
}

// StatsRepository answers the analytics queries.
type StatsRepository interface {
	Overview(ctx context.Context, dayStart time.Time) (*model.Overview, error)
	DailyMessageCounts(ctx context.Context, from time.Time) ([]model.DailyMessageCount, error)
	ConversationMetrics(ctx context.Context) (*model.ConversationMetrics, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Repositories groups every repository the services depend on.
type Repositories struct {
	User          UserRepository
	Conversation  ConversationRepository
	Message       MessageRepository
	Stats         StatsRepository
	DeliveryGuard DeliveryGuard
	Health        Pinger
}

// NewRepositories builds the Postgres-backed repositories. When rdb is nil
// webhook deduplication relies on the messages table alone.
func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, dedupTTL time.Duration, log *logger.Logger) *Repositories {
	repos := &Repositories{
		User:          NewUserRepository(db, log),
		Conversation:  NewConversationRepository(db, log),
		Message:       NewMessageRepository(db, log),
		Stats:         NewStatsRepository(db, log),
		DeliveryGuard: NopDeliveryGuard{},
		Health:        db,
	}

	if rdb != nil {
		repos.DeliveryGuard = NewRedisDeliveryGuard(rdb, dedupTTL, log)
		log.Info("redis delivery guard enabled")
	}

	return repos
}
