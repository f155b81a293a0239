package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisScanBatch = 200

// RedisStore keeps sessions as plain keys under "<table>:" and lets Redis expire them.
// It satisfies Backend so deployments without a relational database can still share sessions.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server in connectionString and pings it.
func NewRedis(ctx context.Context, connectionString, table string) (*RedisStore, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w (and failed to close client: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisFromClient(client, table)
}

// NewRedisFromClient wraps an existing client. Closing the backend closes the client.
func NewRedisFromClient(client *redis.Client, table string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, prefix: table + ":"}, nil
}

func (r *RedisStore) Dialect() Dialect {
	return Redis
}

// Migrate has no schema to create; it only checks connectivity.
func (r *RedisStore) Migrate(ctx context.Context) error {
	return storageError(Redis, "migrate", r.client.Ping(ctx).Err())
}

// DeleteExpired is a no-op: keys carry their own TTL.
func (r *RedisStore) DeleteExpired(context.Context, time.Time) error {
	return nil
}

func (r *RedisStore) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.scan(ctx, func(keys []string) error {
		total += int64(len(keys))
		return nil
	})
	if err != nil {
		return 0, storageError(Redis, "count", err)
	}
	return total, nil
}

func (r *RedisStore) Load(ctx context.Context, id string, _ time.Time) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError(Redis, "load", err)
	}
	return val, true, nil
}

func (r *RedisStore) Store(ctx context.Context, id, payload string, expires time.Time) error {
	ttl := time.Until(expires)
	if ttl <= 0 {
		return storageError(Redis, "store", r.client.Del(ctx, r.key(id)).Err())
	}
	return storageError(Redis, "store", r.client.Set(ctx, r.key(id), payload, ttl).Err())
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return storageError(Redis, "delete", r.client.Del(ctx, r.key(id)).Err())
}

func (r *RedisStore) DeleteAll(ctx context.Context) error {
	err := r.scan(ctx, func(keys []string) error {
		return r.client.Del(ctx, keys...).Err()
	})
	return storageError(Redis, "delete_all", err)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return storageError(Redis, "ping", r.client.Ping(ctx).Err())
}

func (r *RedisStore) Close() error {
	return storageError(Redis, "close", r.client.Close())
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", redisScanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
