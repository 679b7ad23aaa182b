package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Do when the breaker rejects the call
// without invoking the wrapped operation. Callers should back off instead
// of retrying synchronously.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the circuit breaker state.
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

// BreakerOption configures Breaker.
type BreakerOption func(*Breaker)

// WithFailureThreshold sets the consecutive-failure count that opens the circuit.
func WithFailureThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithRecoveryTimeout sets how long the circuit stays open before a trial call.
func WithRecoveryTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.recoveryTimeout = d
		}
	}
}

// WithHalfOpenMaxCalls sets the number of trial calls allowed while half-open.
func WithHalfOpenMaxCalls(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.halfOpenMaxCalls = n
		}
	}
}

// WithStateChangeHook sets a callback invoked after every state transition.
// The hook runs outside the breaker lock.
func WithStateChangeHook(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.nowFn = now
	}
}

// Breaker protects an unreliable remote call. It trips open after a run of
// consecutive failures, rejects calls during the recovery timeout, then
// allows a bounded number of trial calls before closing again.
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int
	onStateChange    func(name string, from, to State)
	nowFn            func() time.Time

	mu                sync.Mutex
	state             State
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCallsUsed int
}

// NewBreaker creates a closed breaker with the given identity.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		recoveryTimeout:  30 * time.Second,
		halfOpenMaxCalls: 3,
		nowFn:            time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker identity.
func (b *Breaker) Name() string { return b.name }

// Do runs op under the breaker. The breaker lock guards only the state
// decision before the call and the state update after it; op itself runs
// unlocked. A rejection is reported as ErrCircuitOpen and op is not invoked.
func (b *Breaker) Do(op func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := op()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	var transition *[2]State

	switch b.state {
	case StateOpen:
		if b.nowFn().Sub(b.lastFailureTime) < b.recoveryTimeout {
			b.mu.Unlock()
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		transition = b.transition(StateHalfOpen)
		b.halfOpenCallsUsed = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCallsUsed >= b.halfOpenMaxCalls {
			b.mu.Unlock()
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.halfOpenCallsUsed++
	}
	b.mu.Unlock()
	b.notify(transition)
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	var transition *[2]State

	if err == nil {
		if b.state == StateHalfOpen {
			transition = b.transition(StateClosed)
		}
		b.failureCount = 0
	} else {
		b.failureCount++
		b.lastFailureTime = b.nowFn()
		switch {
		case b.state == StateHalfOpen:
			transition = b.transition(StateOpen)
		case b.state == StateClosed && b.failureCount >= b.failureThreshold:
			transition = b.transition(StateOpen)
		}
	}
	b.mu.Unlock()
	b.notify(transition)
}

// transition records a state change; caller must hold the lock.
func (b *Breaker) transition(to State) *[2]State {
	from := b.state
	b.state = to
	return &[2]State{from, to}
}

func (b *Breaker) notify(t *[2]State) {
	if t != nil && b.onStateChange != nil {
		b.onStateChange(b.name, t[0], t[1])
	}
}

// Reset forces the breaker closed and clears all counters. Intended for
// operator intervention and post-reconnect recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()
	var transition *[2]State
	if b.state != StateClosed {
		transition = b.transition(StateClosed)
	}
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.halfOpenCallsUsed = 0
	b.mu.Unlock()
	b.notify(transition)
}

// Status is a point-in-time view of the breaker.
type Status struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	FailureCount     int       `json:"failure_count"`
	FailureThreshold int       `json:"failure_threshold"`
	LastFailureTime  time.Time `json:"last_failure_time,omitempty"`
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot for the status endpoint.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:             b.name,
		State:            b.state.String(),
		FailureCount:     b.failureCount,
		FailureThreshold: b.failureThreshold,
		LastFailureTime:  b.lastFailureTime,
	}
}
