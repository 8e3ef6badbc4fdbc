package providers

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker wraps a Provider so a run of upstream failures takes
// that provider out of the fallback rotation for a cooldown window
// instead of being retried on every request.
type CircuitBreaker struct {
	provider         Provider
	failureThreshold int
	resetTimeout     time.Duration

	mu            sync.RWMutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	successStreak int
}

type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

func NewCircuitBreaker(provider Provider, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		provider:         provider,
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		state:            CircuitClosed,
	}
}

func (cb *CircuitBreaker) ID() string { return cb.provider.ID() }

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) Complete(ctx context.Context, req FrontRequest, model string, thinking ThinkingPolicy) (FrontResponse, error) {
	if err := cb.allowRequest(); err != nil {
		return FrontResponse{}, err
	}
	resp, err := cb.provider.Complete(ctx, req, model, thinking)
	cb.recordResult(err)
	return resp, err
}

func (cb *CircuitBreaker) StreamChat(ctx context.Context, req FrontRequest, model string, thinking ThinkingPolicy, emit func(FrontChunk) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}
	err := cb.provider.StreamChat(ctx, req, model, thinking, emit)
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.successStreak = 0
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		cb.successStreak = 0
		if cb.failures >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
		return
	}

	cb.successStreak++
	if cb.state == CircuitHalfOpen && cb.successStreak >= 2 {
		cb.state = CircuitClosed
		cb.failures = 0
	}
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successStreak = 0
}

func (cb *CircuitBreaker) Metrics() CircuitMetrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return CircuitMetrics{
		State:         cb.state,
		Failures:      cb.failures,
		LastFailure:   cb.lastFailure,
		SuccessStreak: cb.successStreak,
	}
}

type CircuitMetrics struct {
	State         CircuitState
	Failures      int
	LastFailure   time.Time
	SuccessStreak int
}
