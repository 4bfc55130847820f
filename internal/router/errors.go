package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cliphaven/cliphaven/internal/breaker"
)

// UnavailableMessage is the only failure text shown to users.
const UnavailableMessage = "AI features are temporarily unavailable. Please try again later."

var (
	// ErrCircuitOpen marks a provider skipped because its breaker is open.
	ErrCircuitOpen = fmt.Errorf("router: %w", breaker.ErrOpen)

	// ErrAllProvidersExhausted is matched by every *ExhaustedError.
	ErrAllProvidersExhausted = errors.New("router: all providers exhausted")

	// ErrUnknownProvider is returned for an unregistered provider id.
	ErrUnknownProvider = errors.New("router: unknown provider")

	// ErrEmptyInput is returned when there is nothing to send.
	ErrEmptyInput = errors.New("router: empty input")
)

// Attempt is one provider tried during routing.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError reports that no candidate produced a result.
type ExhaustedError struct {
	Operation string
	Attempts  []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: no provider supports this request", ErrAllProvidersExhausted)
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Provider + ": " + a.Err.Error()
	}
	return fmt.Sprintf("%s (%s): %s", ErrAllProvidersExhausted, e.Operation, strings.Join(parts, "; "))
}

// Is lets errors.Is match ErrAllProvidersExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Unwrap exposes the last provider error.
func (e *ExhaustedError) Unwrap() error {
	return e.Last()
}

// Last returns the error of the final attempt, or nil.
func (e *ExhaustedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// UserMessage maps a routing error to user-visible text. Internal detail is
// never exposed.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return UnavailableMessage
}
