// Package identity verifies bearer tokens issued by the managed identity
// provider and fans sign-in notifications out to interested components.
package identity

import (
	"context"
	"time"
)

// Identity is what the provider vouches for about the caller.
type Identity struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool
	ExpiresAt     time.Time
}

// Provider resolves a bearer token into an Identity or common.ErrInvalidToken.
type Provider interface {
	CurrentUser(ctx context.Context, token string) (*Identity, error)
}

type ctxKey struct{}

// WithIdentity stores id in ctx for downstream handlers.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
