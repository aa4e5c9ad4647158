package results

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/taskflow/types"
)

// RedisConfig configures the Redis-backed result store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// RedisStore persists payloads in Redis. Suitable for distributed
// deployments where another process retrieves the result.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "taskflow:"
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix + "result:"}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "taskflow:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix + "result:"}
}

// Name implements Store.
func (s *RedisStore) Name() string { return "redis" }

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

// Write implements Store.
func (s *RedisStore) Write(ctx context.Context, key string, payload []byte) (*types.ResultRef, error) {
	if err := s.client.Set(ctx, s.keyPrefix+key, payload, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis write %q: %w", key, err)
	}
	return &types.ResultRef{Backend: s.Name(), StorageKey: key}, nil
}

// Read implements Store.
func (s *RedisStore) Read(ctx context.Context, ref *types.ResultRef) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.keyPrefix+ref.StorageKey).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis read %q: %w", ref.StorageKey, err)
	}
	return payload, nil
}
