package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Store shared by every API replica. Redis failures degrade to
// cache misses; the proxies then go to the upstream directly.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedis(cfg RedisConfig, ttl time.Duration, log *slog.Logger) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return newRedis(rdb, ttl, log)
}

func newRedis(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Redis{rdb: rdb, ttl: ttl, prefix: "dashboard:proxy:", log: log}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WarnContext(ctx, "redis cache get failed", "key", key, "err", err)
		}
		return nil, false
	}

	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) {
	err := r.rdb.Set(ctx, r.prefix+key, val, r.ttl).Err()

	if err != nil {
		r.log.WarnContext(ctx, "redis cache set failed", "key", key, "err", err)
	}
}

// Ping checks redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
