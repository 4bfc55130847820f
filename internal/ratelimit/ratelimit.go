// Package ratelimit implements the token bucket that throttles outbound calls
// to a single AI provider.
//
// Refill is computed lazily from elapsed time on every acquire, so the bucket
// needs no background goroutine and its accuracy does not depend on how
// promptly the scheduler wakes timers.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Default bucket configuration.
const (
	DefaultCapacity   = 10
	DefaultRefillRate = 2.0 // tokens per second
)

// Bucket is a token bucket for one rate-limited resource. Safe for
// concurrent use; acquirers are served one at a time.
type Bucket struct {
	// turn serializes acquirers. It is a channel rather than a mutex so a
	// waiting caller can still give up when its context is canceled.
	turn chan struct{}

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) { b.now = now }
}

// New creates a full bucket. Non-positive arguments fall back to the defaults.
func New(capacity int, refillRate float64, opts ...Option) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillRate <= 0 {
		refillRate = DefaultRefillRate
	}
	b := &Bucket{
		turn:       make(chan struct{}, 1),
		tokens:     float64(capacity),
		maxTokens:  float64(capacity),
		refillRate: refillRate,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastRefill = b.now()
	return b
}

// Acquire blocks until one token is available and consumes it. The only
// error it returns is the context's, when the caller gives up waiting.
func (b *Bucket) Acquire(ctx context.Context) error {
	select {
	case b.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.turn }()

	wait := b.reserveOrWait()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Nobody else can take tokens while we hold the turn, so after sleeping
	// for the computed deficit one token is guaranteed to be there.
	b.mu.Lock()
	b.refillLocked()
	b.tokens--
	if b.tokens < 0 {
		b.tokens = 0
	}
	b.mu.Unlock()
	return nil
}

// TryAcquire consumes a token if one is available right now.
func (b *Bucket) TryAcquire() bool {
	select {
	case b.turn <- struct{}{}:
	default:
		return false
	}
	defer func() { <-b.turn }()
	return b.reserveOrWait() <= 0
}

// Tokens returns the current token level after refill.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// Capacity returns the bucket size.
func (b *Bucket) Capacity() float64 { return b.maxTokens }

// RefillRate returns the refill rate in tokens per second.
func (b *Bucket) RefillRate() float64 { return b.refillRate }

// reserveOrWait consumes a token and returns 0, or returns how long the
// caller must wait for one token to accumulate.
func (b *Bucket) reserveOrWait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	deficit := 1 - b.tokens
	return time.Duration(math.Ceil(deficit / b.refillRate * float64(time.Second)))
}

// refillLocked must be called with mu held.
func (b *Bucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.maxTokens {
			b.tokens = b.maxTokens
		}
	}
	b.lastRefill = now
}
