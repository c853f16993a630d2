package auth

import (
	"context"

	"github.com/alecgard/cohort/internal/session"
)

type contextKey int

const sessionContextKey contextKey = iota

// ContextWithSession returns a new context carrying the resolved session.
func ContextWithSession(ctx context.Context, sw *session.WithUser) context.Context {
	return context.WithValue(ctx, sessionContextKey, sw)
}

// SessionFromContext extracts the session from the context, or nil if the
// request was not guarded.
func SessionFromContext(ctx context.Context) *session.WithUser {
	sw, _ := ctx.Value(sessionContextKey).(*session.WithUser)
	return sw
}

// UserFromContext extracts the session's user projection, or nil.
func UserFromContext(ctx context.Context) *session.User {
	sw := SessionFromContext(ctx)
	if sw == nil {
		return nil
	}
	return &sw.User
}
