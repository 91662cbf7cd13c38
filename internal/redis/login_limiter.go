package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lingua-go/internal/auth"
)

const loginFailuresKeyPrefix = "rl:login:"

// redisLoginLimiter 是 auth.LoginLimiter 接口的 Redis 实现。
// 每个 key 的失败次数在窗口期内累计，窗口从第一次失败开始计算。
type redisLoginLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewRedisLoginLimiter 创建一个新的 redisLoginLimiter 实例。
func NewRedisLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) auth.LoginLimiter {
	return &redisLoginLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Allowed reports false once maxAttempts failures have been recorded inside the window.
func (r *redisLoginLimiter) Allowed(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, loginFailuresKeyPrefix+key).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("读取登录失败计数失败 for %s: %w", key, err)
	}
	return n < r.maxAttempts, nil
}

// RecordFailure 使用 INCR 累计失败次数，第一次失败时设置过期时间。
func (r *redisLoginLimiter) RecordFailure(ctx context.Context, key string) error {
	redisKey := loginFailuresKeyPrefix + key
	n, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("记录登录失败失败 for %s: %w", key, err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return fmt.Errorf("设置登录失败计数过期时间失败 for %s: %w", key, err)
		}
	}
	return nil
}

// Reset 在登录成功后清除失败计数。
func (r *redisLoginLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, loginFailuresKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("清除登录失败计数失败 for %s: %w", key, err)
	}
	return nil
}
