package session

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Touch(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SessionKey(namespace, key string) string
}

// RedisStore persists session values in Redis with a sliding TTL.
type RedisStore struct {
	client    redisClient
	namespace string
	ttl       time.Duration
}

// NewRedisStore scopes keys under namespace. A zero ttl keeps values until deleted.
func NewRedisStore(client *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	full := s.client.SessionKey(s.namespace, key)
	value, err := s.client.Get(ctx, full)
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := s.client.Touch(ctx, full, s.ttl); err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.client.SessionKey(s.namespace, key), value, s.ttl)
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, s.client.SessionKey(s.namespace, key))
	}
	return s.client.Del(ctx, full...)
}
