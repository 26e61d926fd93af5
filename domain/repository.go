package domain

import "context"

// MessageRepository stores chat messages in insertion order.
type MessageRepository interface {
	Save(ctx context.Context, msg *Message) (*Message, error)
	FindAll(ctx context.Context) ([]*Message, error)
	FindByID(ctx context.Context, id string) (*Message, error)
}
