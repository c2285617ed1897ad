// Package circuitbreaker fails calls fast once a dependency has proven
// unhealthy, then probes it again after a cooldown.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures, rejects
// calls while open, and half-opens after the cooldown. Three consecutive
// successes in half-open close it again.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	probes       int
	openedAt     time.Time
	maxFailures  int
	cooldown     time.Duration
	probesToHeal int
}

func New(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:        StateClosed,
		maxFailures:  maxFailures,
		cooldown:     cooldown,
		probesToHeal: 3,
	}
}

// Execute runs fn unless the circuit is open. The error from fn is
// returned unchanged; a rejected call returns ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}
	if time.Since(cb.openedAt) > cb.cooldown {
		cb.state = StateHalfOpen
		cb.probes = 0
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.openedAt = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		if cb.probes >= cb.probesToHeal {
			cb.state = StateClosed
			cb.failures = 0
		}
		return
	}
	cb.failures = 0
}
