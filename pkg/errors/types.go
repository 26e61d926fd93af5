package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	// ErrorTypeTransport indicates a transport layer error
	ErrorTypeTransport ErrorType = iota
	// ErrorTypeHandshake indicates a rejected first frame
	ErrorTypeHandshake
	// ErrorTypeValidation indicates a malformed client frame
	ErrorTypeValidation
	// ErrorTypeBroker indicates a broker side failure
	ErrorTypeBroker
	// ErrorTypeNotFound indicates a missing recipient or record
	ErrorTypeNotFound
	// ErrorTypeStore indicates a repository failure
	ErrorTypeStore
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal
)

const (
	CodeHandshakeRejected        = "HANDSHAKE_REJECTED"
	CodeInvalidMessageFormat     = "INVALID_MESSAGE_FORMAT"
	CodeBrokerConnectFailure     = "BROKER_CONNECT_FAILURE"
	CodeBrokerDecodeFailure      = "BROKER_DECODE_FAILURE"
	CodeBrokerFilterMiss         = "BROKER_FILTER_MISS"
	CodeBrokerUnmatchedRecipient = "BROKER_UNMATCHED_RECIPIENT"
	CodeStoreFailure             = "STORE_FAILURE"
)

// Error represents a structured error with metadata
type Error struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Message, e.Details, e.Cause)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same type and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// New creates a new error
func New(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to an error
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// HasCode reports whether err is an *Error carrying code.
func HasCode(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func HandshakeRejected(details string) *Error {
	return New(ErrorTypeHandshake, CodeHandshakeRejected, "Initial message must contain valid user_id").WithDetails(details)
}

func InvalidMessageFormat(details string) *Error {
	return New(ErrorTypeValidation, CodeInvalidMessageFormat, "Invalid message format").WithDetails(details)
}

func BrokerConnectFailure(err error) *Error {
	return Wrap(err, ErrorTypeBroker, CodeBrokerConnectFailure, "broker unreachable, notifications disabled")
}

func BrokerDecodeFailure(err error) *Error {
	return Wrap(err, ErrorTypeBroker, CodeBrokerDecodeFailure, "failed to decode broker message")
}

func BrokerFilterMiss(sensorType string) *Error {
	return New(ErrorTypeBroker, CodeBrokerFilterMiss, "sensor type not forwarded").WithDetails(sensorType)
}

func BrokerUnmatchedRecipient(identity string) *Error {
	return New(ErrorTypeNotFound, CodeBrokerUnmatchedRecipient, "no live connection for recipient").WithDetails(identity)
}

func StoreFailure(err error) *Error {
	return Wrap(err, ErrorTypeStore, CodeStoreFailure, "failed to persist message")
}
