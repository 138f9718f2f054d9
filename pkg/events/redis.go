package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zjoart/go-databundle-store/pkg/logger"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(url, password string) *RedisClient {
	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("Failed to parse Redis url", logger.Fields{"error": err.Error(), "url": url})
		opt = &redis.Options{
			Addr:     url,
			Password: password,
			DB:       0,
		}
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", logger.Fields{"error": err.Error(), "url": url})
	} else {
		logger.Info("Connected to Redis", logger.Fields{"url": url})
	}

	return &RedisClient{Client: rdb}
}

func (r *RedisClient) Publish(ctx context.Context, event WebhookEvent) error {
	data, err := encode(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.Client.RPush(ctx, WebhookQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to push event to redis: %w", err)
	}
	return nil
}

func (r *RedisClient) Next(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := r.Client.BLPop(ctx, timeout, WebhookQueue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return []byte(result[1]), nil
}

func (r *RedisClient) PushToDLQ(ctx context.Context, data []byte) error {
	if err := r.Client.RPush(ctx, FailedQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to push event to DLQ: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
