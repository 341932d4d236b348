package client

import (
	"errors"
	"fmt"
)

// ErrAuthExpired indicates the backend rejected the session token. The
// caller must tear down all session state; the request is not retryable.
var ErrAuthExpired = errors.New("auth_expired: session token rejected")

// TransportError indicates a network or response-decoding failure. No
// server-side state change can be assumed, so callers keep local state
// untouched.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Errorf("transport: %w", e.Err).Error()
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// APIError indicates a structured failure response from the backend.
type APIError struct {
	Action  string
	Message string
}

func (e APIError) Error() string {
	return fmt.Sprintf("api: %s failed: %s", e.Action, e.Message)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, ErrAuthExpired) {
		return "auth_expired"
	}
	var transport TransportError
	if errors.As(err, &transport) {
		return "transport"
	}
	var api APIError
	if errors.As(err, &api) {
		return "api"
	}
	return "other"
}
