package services

import (
	"context"
	"time"

	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

// EventPublisher is satisfied by *queue.KafkaProducer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Cache is satisfied by *cache.RedisClient. Services treat a nil Cache as
// "caching disabled".
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// publishEvent is fire-and-forget: the store is the source of truth, so a
// failed publish is logged and the operation still succeeds.
func publishEvent(ctx context.Context, producer EventPublisher, log *logger.Logger, key string, event queue.Event) {
	if producer == nil {
		return
	}
	if err := producer.Publish(ctx, key, event); err != nil {
		log.WithError(err).WithField("event_type", event.Type).Error("Failed to publish event")
	}
}
