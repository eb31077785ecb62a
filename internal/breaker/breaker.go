// Package breaker implements a per-service circuit breaker with a
// closed / open / half-open state machine.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/metrics"
	"github.com/arview/product-crawler/internal/product"
)

// State is the gate position of a breaker.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
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

// ErrOpen is returned when the circuit is open and no fallback was supplied.
var ErrOpen = errors.New("circuit open, no fallback available")

// Config holds breaker thresholds.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Breaker guards calls to a single named upstream service. All state is
// mutated under one mutex so concurrent callers observe linearizable
// transitions.
type Breaker struct {
	mu sync.Mutex

	name  string
	cfg   Config
	clock product.Clock

	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureAt        time.Time
	trialInFlight        bool

	totalRequests int64
	totalFailures int64

	logger *zap.Logger
}

// New builds a Breaker for the named service.
func New(name string, cfg Config, clock product.Clock, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		clock:  clock,
		state:  StateClosed,
		logger: logger,
	}
}

// Stats is a point-in-time snapshot of breaker state.
type Stats struct {
	Service              string    `json:"service"`
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailureAt        time.Time `json:"last_failure_at,omitempty"`
	TotalRequests        int64     `json:"total_requests"`
	TotalFailures        int64     `json:"total_failures"`
	FailureRate          float64   `json:"failure_rate"`
}

// Stats returns the current counters and derived failure rate.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	rate := 0.0
	if b.totalRequests > 0 {
		rate = float64(b.totalFailures) / float64(b.totalRequests)
	}
	return Stats{
		Service:              b.name,
		State:                b.state.String(),
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastFailureAt:        b.lastFailureAt,
		TotalRequests:        b.totalRequests,
		TotalFailures:        b.totalFailures,
		FailureRate:          rate,
	}
}

// Reset forces the breaker back to closed with zeroed counters. Operator
// action only; normal recovery goes through the half-open trial.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.trialInFlight = false
	b.lastFailureAt = time.Time{}
}

// allow reports whether a call may proceed, moving open breakers to
// half-open once the cooldown has elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.totalRequests++
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailureAt) < b.cfg.Timeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		b.totalRequests++
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		b.totalRequests++
		return true
	default:
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures = 0
	case StateHalfOpen:
		b.trialInFlight = false
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
			b.lastFailureAt = b.clock.Now()
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	case StateHalfOpen:
		b.trialInFlight = false
		b.transition(StateOpen)
		b.lastFailureAt = b.clock.Now()
		b.consecutiveSuccesses = 0
	}
}

// transition must be called with the mutex held.
func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	b.logger.Info("circuit state change",
		zap.String("service", b.name),
		zap.String("from", b.state.String()),
		zap.String("to", next.String()),
	)
	metrics.RecordBreakerTransition(b.name, next.String())
	b.state = next
}

// Do runs primary through the breaker. When the circuit rejects the call
// or primary fails, fallback is used if supplied; an open circuit with no
// fallback yields a service-unavailable error without touching primary.
func Do[T any](ctx context.Context, b *Breaker, primary, fallback func(context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return zero, product.NewError(
			product.KindServiceUnavailable,
			fmt.Sprintf("service %q unavailable", b.name),
			ErrOpen,
		)
	}

	v, err := primary(ctx)
	if err != nil {
		b.recordFailure()
		if fallback != nil {
			return fallback(ctx)
		}
		return zero, err
	}
	b.recordSuccess()
	return v, nil
}
