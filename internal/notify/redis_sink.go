package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

const eventsChannel = "tutoring:events"

// UserChannel канал событий конкретного пользователя
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("tutoring:user:%s", userID)
}

// Publisher часть redis-клиента для pub/sub; *redis.Client её реализует
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink публикует события для подписчиков: чат-клиентов и push-шлюза
type RedisSink struct {
	client Publisher
}

func NewRedisSink(client Publisher) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return Permanent(fmt.Errorf("marshal event: %w", err))
	}

	if err := s.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", eventsChannel, err)
	}
	for _, userID := range event.Recipients {
		if err := s.client.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
			return fmt.Errorf("publish to user %s: %w", userID, err)
		}
	}
	return nil
}
