// Package actor provides request-scoped identity and trace values.
//
// The mover identity is always passed explicitly into domain requests; the
// context copy here exists only so logs carry the same fields.
package actor

import (
	"context"

	"stocklot/internal/core/id"
)

// Actor identifies who initiated a stock movement.
type Actor struct {
	MoverID id.ID
	Subject string
}

type actorKey struct{}

type requestIDKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// Get returns Actor from context, or nil.
func Get(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// MoverID returns the acting mover ID from context or the nil ID.
func MoverID(ctx context.Context) id.ID {
	if a := Get(ctx); a != nil {
		return a.MoverID
	}
	return id.Nil()
}

// WithRequestID adds the request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID from context or empty string.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
