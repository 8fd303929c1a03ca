package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// versionTTL must outlive any single cart read by a wide margin.
const versionTTL = 24 * time.Hour

// CartCache stores a user's cart lines with their products preloaded.
//
// Fills are versioned: read Version before loading from the database and
// pass it to Set. Delete bumps the version, so a fill that raced a write is
// dropped instead of caching rows the write already replaced.
type CartCache interface {
	Get(ctx context.Context, userID uint) ([]model.CartItem, error)
	Version(ctx context.Context, userID uint) (int64, error)
	// Set reports whether the lines were stored. False means a Delete ran
	// since version was read.
	Set(ctx context.Context, userID uint, version int64, items []model.CartItem) (bool, error)
	Delete(ctx context.Context, userID uint) error
}

// setIfVersion stores ARGV[2] under KEYS[1] for ARGV[3] ms when the counter
// in KEYS[2] still equals ARGV[1]. A missing counter reads as 0.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCartCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCartCache{
		client:    client,
		baseTTL:   ttl,
		maxJitter: ttl / 3,
	}
}

func (r *RedisCartCache) Get(ctx context.Context, userID uint) ([]model.CartItem, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var items []model.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return items, nil
}

func (r *RedisCartCache) Version(ctx context.Context, userID uint) (int64, error) {
	v, err := r.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

// Set writes the lines with the base TTL plus random jitter so carts
// cached together do not all expire together.
func (r *RedisCartCache) Set(ctx context.Context, userID uint, version int64, items []model.CartItem) (bool, error) {
	if items == nil {
		items = []model.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return false, fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL
	if r.maxJitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(r.maxJitter)))
	}

	stored, err := setIfVersion.Run(ctx, r.client,
		[]string{cartKey(userID), versionKey(userID)},
		strconv.FormatInt(version, 10), data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set failed: %w", err)
	}
	return stored == 1, nil
}

// Delete drops the cached lines and bumps the version in one transaction.
func (r *RedisCartCache) Delete(ctx context.Context, userID uint) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), versionTTL)
		pipe.Del(ctx, cartKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// NoopCartCache always misses and accepts every fill. Used when Redis is not
// configured.
type NoopCartCache struct{}

func (NoopCartCache) Get(context.Context, uint) ([]model.CartItem, error) {
	return nil, ErrCacheMiss
}

func (NoopCartCache) Version(context.Context, uint) (int64, error) { return 0, nil }

func (NoopCartCache) Set(context.Context, uint, int64, []model.CartItem) (bool, error) {
	return true, nil
}

func (NoopCartCache) Delete(context.Context, uint) error { return nil }

func cartKey(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}

func versionKey(userID uint) string {
	return fmt.Sprintf("cart:%d:version", userID)
}
