// Package correlation threads an identifier through logs and records so the
// path of one message can be reconstructed across components.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewID returns a fresh correlation identifier.
func NewID() string {
	return uuid.NewString()
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identifier stored in ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns ctx and its identifier, attaching a new one if ctx has none.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}
