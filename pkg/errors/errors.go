package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different failure classes a resolution step can hit
type ErrorType string

const (
	ErrorTypeTransport   ErrorType = "transport"
	ErrorTypeStatus      ErrorType = "status"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeUnsupported ErrorType = "unsupported"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// ErrNoMedia is reported by callers of the resolver when every strategy came back empty.
var ErrNoMedia = errors.New("no media found")

// Error represents a typed failure with the URL that caused it
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, rawURL, msg string) *Error {
	return &Error{Type: t, URL: rawURL, Message: msg}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, rawURL string, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Type: t, URL: rawURL, Message: msg, Err: err}
}

// Status creates a status error for a non-2xx response
func Status(rawURL string, code int) *Error {
	return &Error{
		Type:    ErrorTypeStatus,
		URL:     rawURL,
		Code:    code,
		Message: fmt.Sprintf("unexpected status code: %d", code),
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given ErrorType
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		return false
	}
	switch typed.Type {
	case ErrorTypeTransport:
		return true
	case ErrorTypeStatus:
		return IsRetryableStatusCode(typed.Code)
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
