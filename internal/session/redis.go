package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis session storage configuration.
type RedisConfig struct {
	Addr   string
	Prefix string
	TTL    time.Duration
}

// DefaultRedisConfig returns the default Redis session configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "taskboard:session:",
		TTL:    12 * time.Hour,
	}
}

// RedisStorage keeps a session's items under "<prefix><session>:<key>". Every
// write refreshes the TTL, so an idle session expires on its own.
type RedisStorage struct {
	client    *redis.Client
	prefix    string
	sessionID string
	ttl       time.Duration
}

func NewRedisStorage(client *redis.Client, prefix, sessionID string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client:    client,
		prefix:    prefix,
		sessionID: sessionID,
		ttl:       ttl,
	}
}

func (r *RedisStorage) key(key string) string {
	return r.prefix + r.sessionID + ":" + key
}

func (r *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session get error: %w", err)
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("session set error: %w", err)
	}
	return nil
}

func (r *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("session delete error: %w", err)
	}
	return nil
}

// Ping checks if the Redis connection is healthy.
func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
