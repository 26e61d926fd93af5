package domain

import (
	"encoding/json"
	"time"
)

// EnvelopeType distinguishes the frames the server writes to clients.
type EnvelopeType string

const (
	EnvelopeTypeConnection   EnvelopeType = "connection"
	EnvelopeTypeMessage      EnvelopeType = "message"
	EnvelopeTypeNotification EnvelopeType = "notification"
	EnvelopeTypeHistory      EnvelopeType = "history"
)

// SensorType is the broker side filter key.
type SensorType string

const (
	SensorTypeDHT22  SensorType = "DHT_22"
	SensorTypeBMP180 SensorType = "BMP_180"
)

const (
	ConnectedText     = "Connected to WebSocket server"
	InvalidFormatText = "Invalid message format"
)

// Message is a chat message created from a client frame. It is immutable
// once created.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope wraps every typed server frame.
type Envelope struct {
	Type EnvelopeType `json:"type"`
	Data any          `json:"data"`
}

// ConnectionAck is written once after a successful handshake.
type ConnectionAck struct {
	Type    EnvelopeType `json:"type"`
	UserID  string       `json:"user_id"`
	Message string       `json:"message"`
}

func NewConnectionAck(identity string) ConnectionAck {
	return ConnectionAck{
		Type:    EnvelopeTypeConnection,
		UserID:  identity,
		Message: ConnectedText,
	}
}

// ErrorReply is written only to the connection that sent a bad frame.
type ErrorReply struct {
	Error string `json:"error"`
}

// Notification is a decoded broker message. Body holds the whole decoded
// payload and is forwarded verbatim.
type Notification struct {
	SensorType SensorType
	UserID     string
	Body       json.RawMessage
}
