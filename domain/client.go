package domain

import (
	"context"
)

// Client is a live transport handle owned by the hub once registered.
type Client interface {
	// ID returns the transport level connection id, not the user identity.
	ID() string

	Send(ctx context.Context, message []byte) error

	// IsOpen reports whether the handle still accepts writes.
	IsOpen() bool

	Close() error
}
