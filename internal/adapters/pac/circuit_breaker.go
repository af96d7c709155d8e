package pac

import (
	"context"
	"errors"
	"sync"
	"time"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/metrics"
)

// State is the breaker state. The numeric values are exported as the
// circuit state gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after maxFailures consecutive PAC failures and lets a
// single probe through once cooldown has elapsed.
type CircuitBreaker struct {
	provider    string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(provider string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	cb := &CircuitBreaker{
		provider:    provider,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
	cb.publish()
	return cb
}

// Execute runs fn unless the breaker is open. Only transport failures and
// PAC server errors count against the breaker; rejections of the document
// itself do not.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return cartaporte.ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		cb.publish()
		return nil
	case StateHalfOpen:
		if cb.probing {
			return cartaporte.ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probing = false
	}

	if !countsAsFailure(err) {
		if cb.state != StateClosed {
			cb.state = StateClosed
			cb.publish()
		}
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.publish()
	}
}

func (cb *CircuitBreaker) publish() {
	metrics.CircuitState.WithLabelValues(cb.provider).Set(float64(cb.state))
}

func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var pacErr *cartaporte.PACError
	if errors.As(err, &pacErr) {
		return pacErr.StatusCode >= 500
	}
	return true
}
