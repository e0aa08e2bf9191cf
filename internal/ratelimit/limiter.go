package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/harborline/gatehouse/internal/apperr"
)

// Limiter is the durable fixed-window variant, invoked at the point of
// action inside a guarded mutation. Unlike Check it raises RATE_LIMITED
// instead of returning an advisory deny.
type Limiter struct {
	store RecordStore
	now   func() time.Time
}

// LimiterOption customizes a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the limiter's time source. Tests use this to step
// through windows deterministically.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter constructs a limiter over the given store.
func NewLimiter(store RecordStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow runs the fixed-window algorithm for key under the store's per-key
// exclusivity guarantee:
//
//   - unseen key, or window expired: reset to count 1, window start now
//   - window active and under the limit: increment
//   - window active and at the limit: raise RATE_LIMITED with retryAfter
//
// WindowStart never moves backwards and the limiter never deletes records;
// expiry is logical.
func (l *Limiter) Allow(ctx context.Context, key string, cfg Config) (Result, error) {
	if key == "" {
		return Result{}, errors.New("ratelimit: key required")
	}
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return Result{}, errors.New("ratelimit: config requires positive MaxRequests and Window")
	}

	var res Result
	err := l.store.Update(ctx, key, func(rec *Record) (Record, error) {
		now := l.now()
		switch {
		case rec == nil || now.Sub(rec.WindowStart) >= cfg.Window:
			res = Result{
				Allowed:   true,
				Remaining: cfg.MaxRequests - 1,
				ResetAt:   now.Add(cfg.Window),
			}
			return Record{Key: key, Count: 1, WindowStart: now}, nil

		case rec.Count >= cfg.MaxRequests:
			retryAfter := rec.WindowStart.Add(cfg.Window).Sub(now)
			ms := retryAfter.Milliseconds()
			if ms <= 0 {
				ms = 1
			}
			return Record{}, apperr.Newf(apperr.CodeRateLimited, "rate limit exceeded for %s", cfg.Action).
				WithDetails(map[string]any{
					"retryAfter": ms,
					"limit":      cfg.MaxRequests,
				})

		default:
			rec.Count++
			res = Result{
				Allowed:   true,
				Remaining: cfg.MaxRequests - rec.Count,
				ResetAt:   rec.WindowStart.Add(cfg.Window),
			}
			return *rec, nil
		}
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
