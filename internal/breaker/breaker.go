// Package breaker implements the per-provider circuit breaker.
//
// Callers must ask CanExecute before every call and report the outcome with
// RecordSuccess or RecordFailure afterward. Skipping either side leaves the
// breaker in the wrong state.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by callers when the breaker rejects a call.
var ErrOpen = errors.New("circuit open: service unavailable")

// Default breaker configuration.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker tracks consecutive failures of one provider. Safe for concurrent
// use; every transition reads and writes under the same lock.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time
	probing      bool
	now          func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold sets how many consecutive failures open the circuit.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithResetTimeout sets how long the circuit stays open before a probe.
func WithResetTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.resetTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a closed breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:        Closed,
		threshold:    DefaultFailureThreshold,
		resetTimeout: DefaultResetTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CanExecute reports whether a call may be attempted. When the reset timeout
// has elapsed on an open circuit it moves to half-open and admits exactly one
// probe; further calls are rejected until that probe reports back.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.lastFailure) > b.resetTimeout {
			b.state = HalfOpen
			b.probing = true
			return true
		}
		return false
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.state = Closed
}

// RecordFailure counts a failure. A failed half-open probe reopens the
// circuit and restarts the reset timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case HalfOpen:
		b.state = Open
		b.lastFailure = b.now()
		b.probing = false
	case Closed:
		if b.failures >= b.threshold {
			b.state = Open
			b.lastFailure = b.now()
		}
	case Open:
		b.lastFailure = b.now()
	}
}

// Abandon releases an admitted half-open probe without recording an
// outcome, e.g. when the caller gave up before the call finished. The next
// CanExecute admits a new probe.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.probing = false
	}
}

// State returns the current state without transitioning.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
