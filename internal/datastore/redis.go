package datastore

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/errors"
)

const redisDialTimeout = 5 * time.Second

// RedisKV stores values as plain redis strings
type RedisKV struct {
	client *goredis.Client
}

// OpenRedisKV connects and pings the configured server
func OpenRedisKV(ctx context.Context, s *conf.RedisSettings) (*RedisKV, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        s.Addr,
		Password:    s.Password,
		DB:          s.DB,
		DialTimeout: redisDialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryNetwork).
			Context("backend", BackendRedis).
			Context("addr", s.Addr).
			Build()
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dbError(err, BackendRedis, "get")
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return dbError(err, BackendRedis, "set")
	}
	return nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
