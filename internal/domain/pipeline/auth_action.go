package pipeline

import (
	"context"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/tool"
)

type authContextKey struct{}

// WithAuthContext stores the resolved auth.Context on ctx so downstream
// executors can read it via AuthContextFromContext.
func WithAuthContext(ctx context.Context, ac *auth.Context) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContextFromContext retrieves the auth.Context stashed by
// AuthPropagationAction, if any.
func AuthContextFromContext(ctx context.Context) (*auth.Context, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*auth.Context)
	return ac, ok
}

// AuthPropagationAction resolves inv.Auth into the request's auth.Context
// and stashes it on ctx for the executor to read. It never fails the
// request: missing or malformed credentials simply mean no auth is
// propagated downstream (spec.md §4.6).
type AuthPropagationAction struct{}

func (AuthPropagationAction) Order() int { return OrderAuthPropagation }

func (AuthPropagationAction) Applies(ctx context.Context, inv Invocation) bool { return true }

func (AuthPropagationAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	ac, _ := inv.Auth.(*auth.Context)
	return next(WithAuthContext(ctx, ac))
}
