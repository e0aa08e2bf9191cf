package ratelimit

import "time"

// Result describes a limiter decision. RetryAfter is zero unless the call
// was rejected.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Check is the pure fixed-window variant: it counts the caller-supplied
// timestamps that fall inside the current window and decides without any
// storage. The caller owns persistence of the timestamp list. This variant
// is advisory only; the durable limiter remains authoritative.
func Check(now time.Time, calls []time.Time, cfg Config) Result {
	windowStart := now.Add(-cfg.Window)

	count := 0
	var oldest time.Time
	for _, ts := range calls {
		if ts.After(windowStart) && !ts.After(now) {
			count++
			if oldest.IsZero() || ts.Before(oldest) {
				oldest = ts
			}
		}
	}

	resetAt := now.Add(cfg.Window)
	if !oldest.IsZero() {
		resetAt = oldest.Add(cfg.Window)
	}

	remaining := cfg.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count < cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = resetAt.Sub(now)
	}
	return res
}
