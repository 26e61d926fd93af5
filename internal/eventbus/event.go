package eventbus

import (
	"time"

	"github.com/rs/xid"
)

// EventType represents the type of event
type EventType string

const (
	EventClientRegistered      EventType = "client.registered"
	EventClientReplaced        EventType = "client.replaced"
	EventClientUnregistered    EventType = "client.unregistered"
	EventHandshakeRejected     EventType = "handshake.rejected"
	EventMessageRejected       EventType = "message.rejected"
	EventMessageBroadcast      EventType = "message.broadcast"
	EventMessageStoreFailed    EventType = "message.store_failed"
	EventNotificationDelivered EventType = "notification.delivered"
	EventNotificationDropped   EventType = "notification.dropped"
	EventBrokerConnected       EventType = "broker.connected"
	EventBrokerUnavailable     EventType = "broker.unavailable"
)

// Event represents a system event
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Data      any               `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, source string, data any) *Event {
	return &Event{
		ID:        xid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
		Metadata:  make(map[string]string),
	}
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}
