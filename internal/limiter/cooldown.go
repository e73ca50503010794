// Package limiter throttles repeated password-reset requests in redis.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned while a key is still cooling down.
	ErrRateLimited = errors.New("too many requests, try again later")
	// ErrUnavailable wraps redis failures.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// RateLimitError is returned by Allow while a key cools down. It matches
// ErrRateLimited under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// Cooldown allows one action per key per window.
type Cooldown struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

// NewCooldown creates a Cooldown. A nil client or a non-positive window
// yields a limiter that always allows.
func NewCooldown(client redis.UniversalClient, prefix string, window time.Duration) *Cooldown {
	return &Cooldown{redis: client, prefix: prefix, window: window}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *Cooldown) key(id string) string {
	return c.prefix + ":" + id
}

// Allow claims the window for id, or returns a *RateLimitError when it is
// already claimed.
func (c *Cooldown) Allow(ctx context.Context, id string) error {
	if c == nil || c.redis == nil || c.window <= 0 {
		return nil
	}

	ok, err := c.redis.SetNX(ctx, c.key(id), 1, c.window).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		wait, err := c.Remaining(ctx, id)
		if err != nil || wait <= 0 {
			wait = c.window
		}
		return &RateLimitError{RetryAfter: wait}
	}
	return nil
}

// Remaining returns how long id stays blocked.
func (c *Cooldown) Remaining(ctx context.Context, id string) (time.Duration, error) {
	if c == nil || c.redis == nil {
		return 0, nil
	}

	ttl, err := c.redis.PTTL(ctx, c.key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
