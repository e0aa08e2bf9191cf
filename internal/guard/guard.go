// Package guard composes the validation, rate-limiting, authorization and
// audit components into the single entry point state-mutating operations
// pass through.
package guard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harborline/gatehouse/internal/apperr"
	"github.com/harborline/gatehouse/internal/audit"
	"github.com/harborline/gatehouse/internal/observability"
	"github.com/harborline/gatehouse/internal/policy"
	"github.com/harborline/gatehouse/internal/ratelimit"
)

// Recorder persists audit entries. Satisfied by audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Prefilter is the optional advisory gate ahead of the durable limiter.
// Satisfied by ratelimit.Prefilter.
type Prefilter interface {
	Allow(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error)
}

// Guard wires the subsystem together. All collaborators are injected; the
// guard holds no state of its own.
type Guard struct {
	limiter   *ratelimit.Limiter
	prefilter Prefilter
	recorder  Recorder
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Config collects the guard's collaborators. Prefilter, Recorder and
// Metrics are optional.
type Config struct {
	Limiter   *ratelimit.Limiter
	Prefilter Prefilter
	Recorder  Recorder
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// New constructs a Guard.
func New(cfg Config) (*Guard, error) {
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("guard: limiter required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		limiter:   cfg.Limiter,
		prefilter: cfg.Prefilter,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    logger,
	}, nil
}

// Request describes one guarded operation. Inputs are assumed to have
// passed the validate package already; the guard does not re-validate.
type Request struct {
	Actor        policy.Context
	Action       string
	ResourceType string
	ResourceID   string
	IP           string
	UserAgent    string
	Policy       policy.Predicate
	Limit        ratelimit.Config
	Metadata     map[string]any
}

// Decision reports the successful outcome of a guarded operation.
type Decision struct {
	RateLimit ratelimit.Result
}

// Run executes the guard sequence: prefilter → durable rate limit →
// authorize → operation → audit. Both success and failure are audited; a
// failing audit write is logged but never masks the operation's result.
func (g *Guard) Run(ctx context.Context, req Request, fn func(context.Context) error) (Decision, error) {
	key := ratelimit.Key(req.Actor.UserID, req.Limit.Action)

	if g.prefilter != nil {
		res, err := g.prefilter.Allow(ctx, key, req.Limit)
		switch {
		case err != nil:
			// Advisory tier: fail open, the durable limiter still decides.
			g.logger.Warn("rate limit prefilter unavailable", slog.String("key", key), slog.Any("error", err))
		case !res.Allowed:
			err := rateLimitedError(req.Limit, res)
			g.finish(ctx, req, observability.DecisionRateLimited, err)
			return Decision{}, err
		}
	}

	res, err := g.limiter.Allow(ctx, key, req.Limit)
	if err != nil {
		decision := observability.DecisionError
		if apperr.IsCode(err, apperr.CodeRateLimited) {
			decision = observability.DecisionRateLimited
		}
		g.finish(ctx, req, decision, err)
		return Decision{}, err
	}

	if err := policy.Authorize(ctx, req.Actor, req.Policy); err != nil {
		decision := observability.DecisionError
		switch {
		case apperr.IsCode(err, apperr.CodeForbidden), apperr.IsCode(err, apperr.CodeUnauthorized):
			decision = observability.DecisionForbidden
		case apperr.IsCode(err, apperr.CodeUnauthenticated):
			decision = observability.DecisionForbidden
		}
		g.finish(ctx, req, decision, err)
		return Decision{}, err
	}

	if fn != nil {
		if err := fn(ctx); err != nil {
			g.finish(ctx, req, observability.DecisionError, err)
			return Decision{}, err
		}
	}

	g.finish(ctx, req, observability.DecisionAllowed, nil)
	return Decision{RateLimit: res}, nil
}

func rateLimitedError(cfg ratelimit.Config, res ratelimit.Result) error {
	ms := res.RetryAfter.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return apperr.Newf(apperr.CodeRateLimited, "rate limit exceeded for %s", cfg.Action).
		WithDetails(map[string]any{
			"retryAfter": ms,
			"limit":      cfg.MaxRequests,
		})
}

func (g *Guard) finish(ctx context.Context, req Request, decision string, opErr error) {
	g.metrics.GuardDecision(req.Action, decision)

	if g.recorder == nil {
		return
	}
	params := audit.Params{
		UserID:       req.Actor.UserID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		IPAddress:    req.IP,
		UserAgent:    req.UserAgent,
		Metadata:     req.Metadata,
		Success:      opErr == nil,
	}
	if opErr != nil {
		params.ErrorMessage = opErr.Error()
	}
	if err := g.recorder.Record(ctx, audit.NewEntry(params)); err != nil {
		g.logger.Error("audit record failed",
			slog.String("action", req.Action),
			slog.Any("error", err))
	}
}
