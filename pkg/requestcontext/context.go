// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them, services read them, and
// tests inject them without running the HTTP stack.
package requestcontext

import (
	"context"
	"time"

	id "convoca/pkg/domain"
)

type (
	actorIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorID retrieves the authenticated actor from the context. Returns the
// zero id when no actor was attached (unauthenticated paths, tests).
func ActorID(ctx context.Context) id.ActorID {
	if actor, ok := ctx.Value(actorIDKey{}).(id.ActorID); ok {
		return actor
	}
	return id.ActorID{}
}

// WithActorID injects an actor id into the context.
func WithActorID(ctx context.Context, actor id.ActorID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actor)
}

// RequestID retrieves the request id from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context, falling back to
// time.Now for non-HTTP contexts such as workers and tests that did not
// pin a clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into a context. Tests use this to make
// published_at and closed_at stamps deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
