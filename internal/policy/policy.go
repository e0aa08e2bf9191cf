// Package policy implements the composable authorization predicates every
// guarded mutation is checked against. Predicates are pure decision
// functions; converting a deny into a structured error is Authorize's job.
package policy

import (
	"context"
	"fmt"

	"github.com/harborline/gatehouse/internal/apperr"
)

// Context carries the authenticated actor a predicate decides over. It is
// built per check and never persisted.
type Context struct {
	UserID string
	Role   string
}

// Predicate decides whether the actor may perform an action. Implementations
// must be side-effect free; OwnerFunc lookups are the only place I/O may
// happen.
type Predicate func(ctx context.Context, pc Context) (bool, error)

// OwnerFunc resolves the owner of the resource under decision.
type OwnerFunc func(ctx context.Context, pc Context) (string, error)

// HasAnyRole passes when the actor's role is in the given set.
func HasAnyRole(roles ...string) Predicate {
	return func(_ context.Context, pc Context) (bool, error) {
		for _, role := range roles {
			if pc.Role == role {
				return true, nil
			}
		}
		return false, nil
	}
}

// IsOwner passes when the actor owns the resource.
func IsOwner(owner OwnerFunc) Predicate {
	return func(ctx context.Context, pc Context) (bool, error) {
		ownerID, err := owner(ctx, pc)
		if err != nil {
			return false, fmt.Errorf("policy: resolve owner: %w", err)
		}
		return ownerID != "" && pc.UserID == ownerID, nil
	}
}

// And evaluates predicates left to right and short-circuits on the first deny.
func And(predicates ...Predicate) Predicate {
	return func(ctx context.Context, pc Context) (bool, error) {
		for _, p := range predicates {
			ok, err := p(ctx, pc)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// Or evaluates predicates left to right and short-circuits on the first pass.
func Or(predicates ...Predicate) Predicate {
	return func(ctx context.Context, pc Context) (bool, error) {
		for _, p := range predicates {
			ok, err := p(ctx, pc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(ctx context.Context, pc Context) (bool, error) {
		ok, err := p(ctx, pc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// OwnerOrRoles passes for the resource's owner or any of the privileged
// roles. This is the dominant authorization pattern across the marketplace.
func OwnerOrRoles(owner OwnerFunc, roles ...string) Predicate {
	return Or(IsOwner(owner), HasAnyRole(roles...))
}

// Authorize runs the predicate and converts the outcome into the structured
// errors callers must raise: UNAUTHENTICATED for a missing identity,
// FORBIDDEN for a deny.
func Authorize(ctx context.Context, pc Context, p Predicate) error {
	if pc.UserID == "" {
		return apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	if p == nil {
		return apperr.New(apperr.CodeForbidden, "no policy grants this action")
	}
	ok, err := p(ctx, pc)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.CodeForbidden, "you do not have permission to perform this action")
	}
	return nil
}
