package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const deliveryKeyPrefix = "wpp:delivery:"

// DeliveryGuard remembers webhook deliveries that were already stored so
// platform redeliveries are answered without touching the database. Only
// completed deliveries are remembered; an intake interrupted before its save
// leaves no trace and is handled again on redelivery.
type DeliveryGuard interface {
	// Seen reports whether externalID was remembered within the guard's
	// window.
	Seen(ctx context.Context, externalID string) (bool, error)
	// Remember records externalID as stored.
	Remember(ctx context.Context, externalID string) error
}

type redisDeliveryGuard struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewRedisDeliveryGuard(rdb *redis.Client, ttl time.Duration, log *logger.Logger) DeliveryGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisDeliveryGuard{rdb: rdb, ttl: ttl, log: log}
}

func (g *redisDeliveryGuard) Seen(ctx context.Context, externalID string) (bool, error) {
	n, err := g.rdb.Exists(ctx, deliveryKeyPrefix+externalID).Result()
	if err != nil {
		g.log.Warn("delivery guard lookup failed", zap.String("external_id", externalID), zap.Error(err))
		return false, apperrors.Storage("check delivery", err)
	}
	return n > 0, nil
}

func (g *redisDeliveryGuard) Remember(ctx context.Context, externalID string) error {
	if err := g.rdb.Set(ctx, deliveryKeyPrefix+externalID, time.Now().Unix(), g.ttl).Err(); err != nil {
		return apperrors.Storage("remember delivery", err)
	}
	return nil
}

// NopDeliveryGuard remembers nothing.
type NopDeliveryGuard struct{}

func (NopDeliveryGuard) Seen(context.Context, string) (bool, error) { return false, nil }
func (NopDeliveryGuard) Remember(context.Context, string) error     { return nil }
