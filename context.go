package sensorlink

import (
	"context"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the identity bound by the handshake.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	if !ok || identity == "" {
		return "", false
	}

	return identity, true
}
