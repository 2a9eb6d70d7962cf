package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v9"

	"github.com/curio-ai/curio/pkg/types"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("cache: key not found")

type Config struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Redis 实现 types.Cache
type Redis struct {
	client *redis.Client
	prefix string
}

var _ types.Cache = (*Redis)(nil)

func NewRedis(cfg Config) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
	}
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) SetEx(ctx context.Context, key, value string, expiresAt time.Duration) error {
	return r.client.SetEx(ctx, r.key(key), value, expiresAt).Err()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return r.client.Expire(ctx, r.key(key), expiration).Err()
}
