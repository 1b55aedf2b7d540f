package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	domain "github.com/example/ops-realtime-demo/domain/chat"
	"github.com/redis/go-redis/v9"
)

// RedisHistory keeps each room's history in a capped Redis list, newest first.
type RedisHistory struct {
	client     *redis.Client
	prefix     string
	maxHistory int
	errors     atomic.Uint64
}

var _ History = (*RedisHistory)(nil)

// NewRedisHistory creates a Redis-backed history.
func NewRedisHistory(client *redis.Client, prefix string, maxHistory int) *RedisHistory {
	if maxHistory <= 0 {
		maxHistory = DefaultLimit
	}
	return &RedisHistory{
		client:     client,
		prefix:     prefix,
		maxHistory: maxHistory,
	}
}

func (r *RedisHistory) key(room string) string {
	return r.prefix + room
}

// Append pushes msg and trims the room list to its bound.
func (r *RedisHistory) Append(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		r.errors.Add(1)
		return fmt.Errorf("history marshal error: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key(msg.Room), data)
	pipe.LTrim(ctx, r.key(msg.Room), 0, int64(r.maxHistory-1))
	if _, err := pipe.Exec(ctx); err != nil {
		r.errors.Add(1)
		return fmt.Errorf("history append error: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest messages of room, oldest first.
func (r *RedisHistory) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > r.maxHistory {
		limit = r.maxHistory
	}

	raw, err := r.client.LRange(ctx, r.key(room), 0, int64(limit-1)).Result()
	if err != nil {
		r.errors.Add(1)
		return nil, fmt.Errorf("history read error: %w", err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			r.errors.Add(1)
			return nil, fmt.Errorf("history unmarshal error: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Errors returns the number of failed Redis operations.
func (r *RedisHistory) Errors() uint64 {
	return r.errors.Load()
}
