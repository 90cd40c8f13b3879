// Package resilience provides reliability patterns for calls to optional
// dependencies such as the event bus.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker opens after maxFailures consecutive failures and rejects calls
// for coolDown. Afterwards a single trial call decides whether it closes
// again or reopens.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	trial       bool
	maxFailures int
	coolDown    time.Duration
	openedAt    time.Time
	onChange    func(from, to State)
	now         func() time.Time // for testing
}

// NewBreaker creates a closed Breaker.
func NewBreaker(maxFailures int, coolDown time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures: maxFailures,
		coolDown:    coolDown,
		now:         time.Now,
	}
}

// OnStateChange registers fn to be called on every transition. fn runs with
// the breaker locked and must not call back into it.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open. Errors caused by the caller
// cancelling ctx do not count as failures.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
	switch {
	case err == nil:
		b.failures = 0
		b.transition(StateClosed)
	case ctx.Err() != nil:
		// Cancelled by the caller; the dependency may be fine.
		if b.state == StateHalfOpen {
			b.transition(StateOpen)
			b.openedAt = b.now()
		}
	default:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.transition(StateOpen)
			b.openedAt = b.now()
		}
	}
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.coolDown {
			return false
		}
		b.transition(StateHalfOpen)
		b.trial = true
		return true
	case StateHalfOpen:
		// One trial call at a time.
		if b.trial {
			return false
		}
		b.trial = true
		return true
	}
	return false
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
