// Package circuitbreaker stops calls to a dependency that keeps failing and
// lets a single probe through once the cooldown has elapsed.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker trips after maxFailures consecutive counted failures and rejects
// calls until cooldown has passed. In half-open state exactly one probe call
// is allowed; its outcome closes or reopens the circuit.
type Breaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration
	logger      *logrus.Logger
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures uint32
	openedAt time.Time
	probing  bool
	rejected uint64
}

// New creates a closed breaker. A zero maxFailures disables tripping.
func New(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) *Breaker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		logger:      logger,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open. counted decides whether an
// error returned by fn is a failure of the dependency; other errors pass
// through without affecting the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error, counted func(error) bool) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err != nil && (counted == nil || counted(err)))
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.rejected++
			return &OpenError{Name: b.name, RetryAfter: b.cooldown - b.now().Sub(b.openedAt)}
		}
		b.state = StateHalfOpen
		b.probing = true
		b.logger.WithField("circuit_breaker", b.name).Info("Circuit breaker half-open, probing dependency")
		return nil
	case StateHalfOpen:
		if b.probing {
			b.rejected++
			return &OpenError{Name: b.name}
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !failed {
		if b.state != StateClosed {
			b.logger.WithField("circuit_breaker", b.name).Info("Circuit breaker closed after successful probe")
		}
		b.state = StateClosed
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	if b.state == StateHalfOpen || (b.maxFailures > 0 && b.failures >= b.maxFailures) {
		if b.state != StateOpen {
			b.logger.WithFields(logrus.Fields{
				"circuit_breaker": b.name,
				"failures":        b.failures,
			}).Warn("Circuit breaker opened")
		}
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
	}
}

// State reports the current state without transitioning.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name     string
	State    State
	Failures uint32
	Rejected uint64
	OpenedAt time.Time
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:     b.name,
		State:    b.state,
		Failures: b.failures,
		Rejected: b.rejected,
		OpenedAt: b.openedAt,
	}
}

// OpenError is returned when a call is rejected without being attempted.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker %q is open, retry in %s", e.Name, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}
