package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Throttle interface {
	Allow(ctx context.Context, username string) (bool, error)
	Fail(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// ThrottleStore is the subset of redis commands the throttle uses.
type ThrottleStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoginThrottle counts failed sign-ins per username in redis. The window
// starts at the first failure and is not extended by later ones.
type LoginThrottle struct {
	client      ThrottleStore
	maxFailures int
	window      time.Duration
}

func NewLoginThrottle(client ThrottleStore, maxFailures int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{client: client, maxFailures: maxFailures, window: window}
}

func throttleKey(username string) string {
	return "portal:signin:failures:" + strings.ToLower(username)
}

func (t *LoginThrottle) Allow(ctx context.Context, username string) (bool, error) {
	if t.maxFailures <= 0 {
		return true, nil
	}
	count, err := t.client.Get(ctx, throttleKey(username)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read throttle: %w", err)
	}
	return count < t.maxFailures, nil
}

func (t *LoginThrottle) Fail(ctx context.Context, username string) error {
	key := throttleKey(username)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return fmt.Errorf("start failure window: %w", err)
		}
	}
	return nil
}

func (t *LoginThrottle) Reset(ctx context.Context, username string) error {
	return t.client.Del(ctx, throttleKey(username)).Err()
}
