// Package observability provides request-scoped logging helpers plus the circuit
// breaker and adaptive timeout used on outbound calls.
package observability

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	// StateClosed lets every call through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects calls until the timeout elapses.
	StateOpen
	// StateHalfOpen lets a trial call through; its outcome decides the next state.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures.
type CircuitBreaker struct {
	mu sync.Mutex

	name        string
	maxFailures int
	timeout     time.Duration
	now         func() time.Time

	state           CircuitBreakerState
	failureCount    int
	lastFailureTime time.Time

	totalRequests int64
	totalFailures int64
	stateChanges  int64
}

// NewCircuitBreaker creates a closed breaker. maxFailures < 1 is treated as 1.
func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
		state:       StateClosed,
	}
}

// CanExecute reports whether a call may proceed, moving an expired open breaker to half-open.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			return false
		}
		cb.setState(StateHalfOpen)
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker and clears the failure streak.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.failureCount = 0
	if cb.state != StateClosed {
		cb.setState(StateClosed)
	}
}

// RecordFailure counts a failure and opens the breaker when the streak reaches the limit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.totalFailures++
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.CanExecute() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// caller holds mu
func (cb *CircuitBreaker) setState(s CircuitBreakerState) {
	prev := cb.state
	cb.state = s
	cb.stateChanges++
	slog.Info("circuit breaker state change",
		slog.String("breaker", cb.name),
		slog.String("from", prev.String()),
		slog.String("to", s.String()),
		slog.Int("failure_count", cb.failureCount))
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns circuit breaker statistics
func (cb *CircuitBreaker) GetStats() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]any{
		"name":           cb.name,
		"state":          cb.state.String(),
		"failure_count":  cb.failureCount,
		"total_requests": cb.totalRequests,
		"total_failures": cb.totalFailures,
		"state_changes":  cb.stateChanges,
	}
}

// Reset returns the breaker to closed and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.totalRequests = 0
	cb.totalFailures = 0
	cb.stateChanges = 0
	cb.lastFailureTime = time.Time{}
}
