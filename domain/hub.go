package domain

import "context"

type HubStats struct {
	ConnectedClients int     `json:"connected_clients"`
	MessagesSent     int64   `json:"messages_sent"`
	MessagesReceived int64   `json:"messages_received"`
	Uptime           float64 `json:"uptime_seconds"`
}

// Hub maps identities to live connections.
type Hub interface {
	// Register binds identity to client, replacing any previous binding.
	Register(identity string, client Client)

	// Unregister removes the entry holding client, if any.
	Unregister(client Client)

	// Lookup returns the open client bound to identity.
	Lookup(identity string) (Client, bool)

	// ForEach visits a snapshot of all entries until fn returns false.
	ForEach(fn func(identity string, client Client) bool)

	// Broadcast writes v, encoded once, to every open client.
	Broadcast(ctx context.Context, v any) error

	// SendTo writes v to the client bound to identity.
	SendTo(ctx context.Context, identity string, v any) error

	Count() int

	Stats() HubStats
}
