package access

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the set holding authorized plates.
const DefaultRedisKey = "lpr:authorized"

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	PingTimeout time.Duration
}

// RedisStore authorizes plates that are members of a Redis set.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", ErrStoreUnavailable, cfg.Addr, err)
	}

	return NewRedisStore(client, cfg.Key), nil
}

// NewRedisStore wraps an existing client. An empty key uses DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) IsAuthorized(ctx context.Context, plate string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, plate).Result()
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", plate, err)
	}
	return ok, nil
}

// Allow adds plates to the authorized set.
func (s *RedisStore) Allow(ctx context.Context, plates ...string) error {
	if len(plates) == 0 {
		return nil
	}
	members := make([]any, len(plates))
	for i, p := range plates {
		members[i] = p
	}
	return s.client.SAdd(ctx, s.key, members...).Err()
}

// Revoke removes plates from the authorized set.
func (s *RedisStore) Revoke(ctx context.Context, plates ...string) error {
	if len(plates) == 0 {
		return nil
	}
	members := make([]any, len(plates))
	for i, p := range plates {
		members[i] = p
	}
	return s.client.SRem(ctx, s.key, members...).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
