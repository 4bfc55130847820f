package providers

import (
	"errors"
	"fmt"
)

// Provider failure classes. Every error returned by a backend wraps one of
// these or is a *StatusError.
var (
	ErrUnavailable       = errors.New("provider unavailable")
	ErrTransport         = errors.New("provider transport error")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// StatusError is a non-2xx response from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

func transportErr(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrTransport, err)
}

func malformedErr(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrMalformedResponse, err)
}
