package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Prefilter is the cheap Redis-backed fixed-window gate placed ahead of the
// durable limiter in horizontally scaled deployments. It is best effort:
// callers fail open on Redis errors, and its decisions are advisory; the
// durable limiter stays authoritative.
type Prefilter struct {
	client *redis.Client
}

// NewPrefilter constructs a prefilter over the given Redis client.
func NewPrefilter(client *redis.Client) *Prefilter {
	return &Prefilter{client: client}
}

// Allow increments the window counter for key and reports whether the call
// is within the limit. A crash between INCR and PEXPIRE can leave a counter
// without a TTL; the stale counter is overwritten on the next window and is
// acceptable for an advisory gate.
func (p *Prefilter) Allow(ctx context.Context, key string, cfg Config) (Result, error) {
	count, err := p.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: prefilter incr: %w", err)
	}
	if count == 1 {
		if err := p.client.PExpire(ctx, key, cfg.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit: prefilter expire: %w", err)
		}
	}

	now := time.Now()
	if count > int64(cfg.MaxRequests) {
		ttl, err := p.client.PTTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = cfg.Window
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    now.Add(ttl),
			RetryAfter: ttl,
		}, nil
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   now.Add(cfg.Window),
	}, nil
}
