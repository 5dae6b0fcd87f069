package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores the document under a single Redis key. It serves as both
// Transport and Source.
type RedisSlot struct {
	client *redis.Client
	key    string
}

// NewRedisSlot connects to addr and uses key as the slot.
func NewRedisSlot(addr, password string, db int, key string) *RedisSlot {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSlot{client: client, key: key}
}

// Deliver overwrites the key.
func (s *RedisSlot) Deliver(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Fetch reads the key, returning ErrNoRecord when it is unset or empty.
func (s *RedisSlot) Fetch(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	if len(data) == 0 {
		return nil, ErrNoRecord
	}
	return data, nil
}

// Close closes the client.
func (s *RedisSlot) Close() error {
	return s.client.Close()
}
