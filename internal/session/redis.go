package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filevault/filevault/internal/entity"
)

// RedisStore keeps sessions in Redis, which handles TTL expiry natively.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, error) {
	ownerID, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", entity.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}

func (s *RedisStore) Set(ctx context.Context, token, ownerID string, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+token, ownerID, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, token string) error {
	return s.client.Del(ctx, keyPrefix+token).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
