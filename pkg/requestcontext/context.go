// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Context keys and getter/setter functions live here so that values set by
// middleware can be consumed by services without the services importing
// net/http. Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPrincipal(ctx, kind, principalID)
package requestcontext

import (
	"context"
	"time"

	id "vigil/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	principalIDKey   struct{}
	principalKindKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyPrincipalID   = principalIDKey{}
	ContextKeyPrincipalKind = principalKindKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// PrincipalID retrieves the authenticated principal ID from the context.
// Returns the zero value (nil UUID) if the request is unauthenticated.
func PrincipalID(ctx context.Context) id.PrincipalID {
	if pid, ok := ctx.Value(ContextKeyPrincipalID).(id.PrincipalID); ok {
		return pid
	}
	return id.PrincipalID{}
}

// PrincipalKind retrieves the authenticated principal's kind from the context.
// Returns the empty kind if the request is unauthenticated.
func PrincipalKind(ctx context.Context) id.PrincipalKind {
	if kind, ok := ctx.Value(ContextKeyPrincipalKind).(id.PrincipalKind); ok {
		return kind
	}
	return ""
}

// WithPrincipal injects the authenticated principal identity into the context.
func WithPrincipal(ctx context.Context, kind id.PrincipalKind, pid id.PrincipalID) context.Context {
	ctx = context.WithValue(ctx, ContextKeyPrincipalKind, kind)
	return context.WithValue(ctx, ContextKeyPrincipalID, pid)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI). Policy decisions always go
// through this so tests can pin the clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for:
//   - Unit tests that don't run the full HTTP middleware chain
//   - Batch operations that need one consistent timestamp
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
