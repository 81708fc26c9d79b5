package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-session-client/storage"
)

// DefaultPrefix namespaces the session keys inside a shared Redis database.
const DefaultPrefix = "elemo:store:"

var _ storage.Store = (*RedisStore)(nil)

// RedisStore implements storage.Store on plain Redis strings. Several processes
// pointing at the same database share one session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

type Option func(*RedisStore)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// New constructs a Redis-backed store.
func New(client redis.UniversalClient, options ...Option) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultPrefix}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redisstore scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
