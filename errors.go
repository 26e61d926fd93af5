package sensorlink

import "errors"

var (
	// ErrConnectionClosed is returned when writing to a closed connection
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrSendBufferFull is returned when a connection's outbound queue is full
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrClientNotFound is returned when no live connection is bound to an identity
	ErrClientNotFound = errors.New("client not found")

	// ErrMessageNotFound is returned by repositories for unknown message ids
	ErrMessageNotFound = errors.New("message not found")
)
