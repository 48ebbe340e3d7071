package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/go-redis/redis/v8"
)

const (
	CartCacheTTL = 15 * time.Minute
	UserCacheTTL = 5 * time.Minute
)

// setCartScript stores a cart version only when it is newer than the one
// already cached, so a slow reader cannot put back a cart that a later write
// replaced.
var setCartScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

// Client exposes the underlying connection so other Redis-backed components
// (the token revocation list) can share the pool.
func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func userCacheKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func cartCacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (r *RedisRepository) CacheUser(ctx context.Context, user models.PublicUser) error {
	return r.SetJSON(ctx, userCacheKey(user.ID), user, UserCacheTTL)
}

func (r *RedisRepository) GetUserCache(ctx context.Context, userID string) (*models.PublicUser, error) {
	var user models.PublicUser
	if err := r.GetJSON(ctx, userCacheKey(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CacheCart writes cart unless the cache already holds a version with the
// same or a later UpdatedAt. Skipped writes are not errors.
func (r *RedisRepository) CacheCart(ctx context.Context, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	err = setCartScript.Run(ctx, r.client,
		[]string{cartCacheKey(cart.UserID)},
		cart.UpdatedAt.UnixMilli(), data, CartCacheTTL.Milliseconds()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to cache cart: %w", err)
	}
	return nil
}

func (r *RedisRepository) GetCartCache(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.HGet(ctx, cartCacheKey(userID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *RedisRepository) InvalidateCart(ctx context.Context, userID string) error {
	return r.Del(ctx, cartCacheKey(userID))
}
