package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/model"
)

const redisPrefix = "storefront:"

// RedisStore keeps session state as JSON values that expire with the session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: redisPrefix, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisStore(client, ttl), nil
}

func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) key(kind, sessionID string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, kind, sessionID)
}

func (r *RedisStore) get(ctx context.Context, kind, sessionID string, dst any) error {
	data, err := r.client.Get(ctx, r.key(kind, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (r *RedisStore) put(ctx context.Context, kind, sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(kind, sessionID), data, r.ttl).Err()
}

func (r *RedisStore) del(ctx context.Context, kind, sessionID string) error {
	return r.client.Del(ctx, r.key(kind, sessionID)).Err()
}

func (r *RedisStore) GetUser(ctx context.Context, sessionID string) (*model.User, error) {
	var u model.User
	if err := r.get(ctx, "user", sessionID, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *RedisStore) SaveUser(ctx context.Context, sessionID string, u *model.User) error {
	return r.put(ctx, "user", sessionID, u)
}

func (r *RedisStore) DeleteUser(ctx context.Context, sessionID string) error {
	return r.del(ctx, "user", sessionID)
}

func (r *RedisStore) GetCart(ctx context.Context, sessionID string) (*model.Cart, error) {
	var c model.Cart
	if err := r.get(ctx, "cart", sessionID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RedisStore) SaveCart(ctx context.Context, sessionID string, c *model.Cart) error {
	return r.put(ctx, "cart", sessionID, c)
}

func (r *RedisStore) DeleteCart(ctx context.Context, sessionID string) error {
	return r.del(ctx, "cart", sessionID)
}

func (r *RedisStore) GetSearchHistory(ctx context.Context, sessionID string) ([]string, error) {
	var h []string
	if err := r.get(ctx, "search", sessionID, &h); err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return h, nil
}

func (r *RedisStore) SaveSearchHistory(ctx context.Context, sessionID string, queries []string) error {
	return r.put(ctx, "search", sessionID, queries)
}

func (r *RedisStore) DeleteSearchHistory(ctx context.Context, sessionID string) error {
	return r.del(ctx, "search", sessionID)
}
