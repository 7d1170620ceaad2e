package safety

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker rejects requests
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
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

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold" yaml:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold uint32        `json:"success_threshold" yaml:"success_threshold"` // half-open successes needed to close
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`                     // cool-down before half-opening
}

// CircuitBreaker stops calling a failing dependency until a cool-down passes
type CircuitBreaker struct {
	config        CircuitBreakerConfig
	name          string
	now           func() time.Time
	mutex         sync.Mutex
	state         CircuitBreakerState
	failures      uint32
	successes     uint32
	lastFailure   time.Time
	nextAttempt   time.Time
	onStateChange func(name string, from, to CircuitBreakerState)
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		name:   name,
		now:    time.Now,
		state:  StateClosed,
	}
}

// SetStateChangeCallback sets a callback invoked after every state change
func (cb *CircuitBreaker) SetStateChangeCallback(callback func(name string, from, to CircuitBreakerState)) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onStateChange = callback
}

// SetClock replaces the time source
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.now = now
}

// Call executes fn unless the breaker is open. Context cancellation is not
// counted as a failure of the dependency.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		cb.record(true)
	case ctx.Err() != nil:
	default:
		cb.record(false)
	}
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	if cb.state == StateOpen {
		if cb.now().Before(cb.nextAttempt) {
			next := cb.nextAttempt
			cb.mutex.Unlock()
			return fmt.Errorf("%w: %s until %s", ErrCircuitOpen, cb.name, next.Format(time.RFC3339))
		}
		from := cb.transition(StateHalfOpen)
		callback := cb.onStateChange
		cb.mutex.Unlock()
		cb.notify(callback, from, StateHalfOpen)
		return nil
	}
	cb.mutex.Unlock()
	return nil
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mutex.Lock()
	from := cb.state
	to := from
	if success {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				to = StateClosed
			}
		}
	} else {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			to = StateOpen
		}
	}
	if to != from {
		cb.transition(to)
	}
	callback := cb.onStateChange
	cb.mutex.Unlock()
	if to != from {
		cb.notify(callback, from, to)
	}
}

// transition must be called with the mutex held
func (cb *CircuitBreaker) transition(to CircuitBreakerState) CircuitBreakerState {
	from := cb.state
	cb.state = to
	cb.successes = 0
	switch to {
	case StateOpen:
		cb.nextAttempt = cb.now().Add(cb.config.Timeout)
	case StateClosed:
		cb.failures = 0
	}
	return from
}

func (cb *CircuitBreaker) notify(callback func(string, CircuitBreakerState, CircuitBreakerState), from, to CircuitBreakerState) {
	if callback != nil && from != to {
		callback(cb.name, from, to)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// CircuitBreakerStats holds statistics about a circuit breaker
type CircuitBreakerStats struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    uint32    `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return CircuitBreakerStats{
		Name:        cb.name,
		State:       cb.state.String(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		NextAttempt: cb.nextAttempt,
	}
}

// Reset closes the breaker
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	from := cb.transition(StateClosed)
	callback := cb.onStateChange
	cb.mutex.Unlock()
	cb.notify(callback, from, StateClosed)
}

// CircuitBreakerManager hands out one breaker per dependency name
type CircuitBreakerManager struct {
	config   CircuitBreakerConfig
	onChange func(name string, from, to CircuitBreakerState)
	breakers map[string]*CircuitBreaker
	mutex    sync.RWMutex
}

// NewCircuitBreakerManager creates breakers sharing config and callback
func NewCircuitBreakerManager(config CircuitBreakerConfig, onChange func(name string, from, to CircuitBreakerState)) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		config:   config,
		onChange: onChange,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (cbm *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	cbm.mutex.RLock()
	cb, ok := cbm.breakers[name]
	cbm.mutex.RUnlock()
	if ok {
		return cb
	}

	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()
	if cb, ok := cbm.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, cbm.config)
	cb.onStateChange = cbm.onChange
	cbm.breakers[name] = cb
	return cb
}

// GetStats returns statistics for all circuit breakers, sorted by name
func (cbm *CircuitBreakerManager) GetStats() []CircuitBreakerStats {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()
	stats := make([]CircuitBreakerStats, 0, len(cbm.breakers))
	for _, cb := range cbm.breakers {
		stats = append(stats, cb.GetStats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// GetOpenCircuits returns the names of open breakers, sorted
func (cbm *CircuitBreakerManager) GetOpenCircuits() []string {
	var open []string
	for _, s := range cbm.GetStats() {
		if s.State == StateOpen.String() {
			open = append(open, s.Name)
		}
	}
	return open
}
