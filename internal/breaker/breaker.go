// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package breaker implements a group of named circuit breakers for AI
// vendor operations.
//
// Each named operation (recommendation, profile, feedback, playlist,
// selection) carries an independent CLOSED/OPEN/HALF_OPEN state machine
// so a failing recommendation prompt never blocks feedback analysis.
//
// This is deliberately not sony/gobreaker: the AI operations need a
// breaker that closes on the first successful half-open probe and
// supports an administrative reset, neither of which gobreaker's
// MaxRequests/consecutive-success model provides. gobreaker protects
// the catalog client instead.
//
// DETERMINISM NOTE: the breaker uses wall-clock time for its recovery
// timeout. Tests inject a fake clock via WithClock.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the lowercase state name used in logs, metrics, and
// API responses.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (s State) metricValue() float64 {
	switch s {
	case StateClosed:
		return 0
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return -1
	}
}

// OpConfig configures one named operation. All three parameters are
// per-operation: each call shape has its own failure budget, recovery
// window, and probe allowance.
type OpConfig struct {
	// FailureThreshold is the number of consecutive failures in CLOSED
	// state that trips the breaker.
	FailureThreshold int

	// Timeout is how long the breaker stays OPEN before admitting a
	// half-open probe.
	Timeout time.Duration

	// HalfOpenMaxCalls bounds concurrent probes while HALF_OPEN.
	// Values below 1 are treated as 1.
	HalfOpenMaxCalls int
}

// Config configures a Group.
type Config struct {
	// Ops maps operation names to their breaker settings.
	Ops map[string]OpConfig
}

// Result is the outcome of one Execute call. Err is never a raw panic:
// a panicking fn is converted into a failure result.
type Result struct {
	// Success reports whether fn ran and returned nil error.
	Success bool

	// Data is fn's return value when Success.
	Data interface{}

	// State is the breaker state after the call completed.
	State State

	// Err is fn's error, or a rejection error when Fallback is set.
	Err error

	// Fallback reports that fn was never run: the caller should serve
	// its degraded path.
	Fallback bool
}

// Snapshot is a point-in-time view of one operation's breaker, exposed
// through the status API.
type Snapshot struct {
	State        string        `json:"state"`
	FailureCount int           `json:"failure_count"`
	RetryIn      time.Duration `json:"retry_in,omitempty"`
}

// ErrUnknownOperation is returned when Execute or Reset names an
// operation the group was not configured with.
var ErrUnknownOperation = fmt.Errorf("breaker: unknown operation")

// errOpen is the rejection error carried by fallback results.
var errOpen = fmt.Errorf("breaker: circuit open")

type operation struct {
	mu           sync.Mutex
	name         string
	cfg          OpConfig
	state        State
	failureCount int
	lastFailure  time.Time
	probes       int
}

// Group is a set of named circuit breakers with independent state.
// Safe for concurrent use; each operation has its own lock so state
// checks on one operation never contend with another.
type Group struct {
	ops map[string]*operation
	now func() time.Time
}

// Option configures a Group.
type Option func(*Group)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Group) { g.now = now }
}

// New creates a Group with one breaker per configured operation.
func New(cfg Config, opts ...Option) *Group {
	g := &Group{
		ops: make(map[string]*operation, len(cfg.Ops)),
		now: time.Now,
	}
	for name, opCfg := range cfg.Ops {
		if opCfg.HalfOpenMaxCalls < 1 {
			opCfg.HalfOpenMaxCalls = 1
		}
		g.ops[name] = &operation{name: name, cfg: opCfg, state: StateClosed}
		metrics.CircuitBreakerState.WithLabelValues(name).Set(StateClosed.metricValue())
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute runs fn under the named operation's breaker.
//
// CLOSED: fn runs; consecutive failures up to the threshold trip the
// breaker OPEN. OPEN: fn is rejected with a fallback result until the
// timeout elapses, then one probe transitions the breaker HALF_OPEN.
// HALF_OPEN: up to HalfOpenMaxCalls concurrent probes run; the first
// success closes the breaker and clears the failure count, a failure
// reopens it with a fresh timeout.
func (g *Group) Execute(ctx context.Context, opName string, fn func(context.Context) (interface{}, error)) Result {
	op, ok := g.ops[opName]
	if !ok {
		return Result{Err: fmt.Errorf("%w: %q", ErrUnknownOperation, opName), State: StateClosed}
	}

	admitted, probe, state := g.admit(op)
	if !admitted {
		metrics.RecordBreakerRequest(opName, "rejected")
		return Result{
			State:    state,
			Err:      fmt.Errorf("%w: operation %q retries in %s", errOpen, opName, g.retryIn(op)),
			Fallback: true,
		}
	}

	data, err := runProtected(ctx, fn)
	return g.record(op, probe, data, err)
}

// admit decides whether a call may proceed. Returns whether the call is
// admitted, whether it is a half-open probe, and the state observed.
func (g *Group) admit(op *operation) (admitted, probe bool, state State) {
	op.mu.Lock()
	defer op.mu.Unlock()

	switch op.state {
	case StateClosed:
		return true, false, StateClosed
	case StateOpen:
		if g.now().Sub(op.lastFailure) >= op.cfg.Timeout {
			g.transition(op, StateHalfOpen)
			op.probes = 1
			return true, true, StateHalfOpen
		}
		return false, false, StateOpen
	case StateHalfOpen:
		if op.probes < op.cfg.HalfOpenMaxCalls {
			op.probes++
			return true, true, StateHalfOpen
		}
		// Probe budget spent; stays HALF_OPEN until a probe completes.
		return false, false, StateHalfOpen
	default:
		return false, false, op.state
	}
}

// record applies fn's outcome to the operation's state machine.
func (g *Group) record(op *operation, probe bool, data interface{}, err error) Result {
	op.mu.Lock()
	defer op.mu.Unlock()

	if probe {
		op.probes--
		if op.probes < 0 {
			op.probes = 0
		}
	}

	if err == nil {
		metrics.RecordBreakerRequest(op.name, "success")
		if op.state != StateClosed {
			g.transition(op, StateClosed)
		}
		op.failureCount = 0
		op.lastFailure = time.Time{}
		return Result{Success: true, Data: data, State: op.state}
	}

	metrics.RecordBreakerRequest(op.name, "failure")
	op.lastFailure = g.now()

	switch op.state {
	case StateClosed:
		op.failureCount++
		if op.failureCount >= op.cfg.FailureThreshold {
			g.transition(op, StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens with a fresh recovery window.
		g.transition(op, StateOpen)
	case StateOpen:
		// A concurrent call tripped the breaker while fn was running.
	}

	return Result{State: op.state, Err: err}
}

// transition changes state and emits the log line and metrics. Caller
// holds op.mu.
func (g *Group) transition(op *operation, to State) {
	from := op.state
	op.state = to
	if to == StateHalfOpen {
		op.probes = 0
	}
	logging.Info().
		Str("operation", op.name).
		Str("from", from.String()).
		Str("to", to.String()).
		Int("failure_count", op.failureCount).
		Msg("[CIRCUIT BREAKER] State transition")
	metrics.RecordBreakerTransition(op.name, from.String(), to.String(), to.metricValue())
}

// retryIn reports how long until an OPEN operation admits a probe.
// Caller must not hold op.mu.
func (g *Group) retryIn(op *operation) time.Duration {
	op.mu.Lock()
	defer op.mu.Unlock()
	return g.retryInLocked(op)
}

func (g *Group) retryInLocked(op *operation) time.Duration {
	if op.state != StateOpen {
		return 0
	}
	remaining := op.cfg.Timeout - g.now().Sub(op.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Status returns a snapshot of every operation's breaker.
func (g *Group) Status() map[string]Snapshot {
	out := make(map[string]Snapshot, len(g.ops))
	for name, op := range g.ops {
		op.mu.Lock()
		out[name] = Snapshot{
			State:        op.state.String(),
			FailureCount: op.failureCount,
			RetryIn:      g.retryInLocked(op),
		}
		op.mu.Unlock()
	}
	return out
}

// Reset forces the named operation back to CLOSED with a cleared
// failure count. Administrative use only.
func (g *Group) Reset(opName string) error {
	op, ok := g.ops[opName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, opName)
	}
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != StateClosed {
		g.transition(op, StateClosed)
	}
	op.failureCount = 0
	op.lastFailure = time.Time{}
	op.probes = 0
	logging.Info().Str("operation", opName).Msg("[CIRCUIT BREAKER] Manual reset")
	return nil
}

// Operations returns the configured operation names.
func (g *Group) Operations() []string {
	names := make([]string, 0, len(g.ops))
	for name := range g.ops {
		names = append(names, name)
	}
	return names
}

// runProtected executes fn, converting a panic into an error so a
// misbehaving vendor adapter degrades instead of crashing the request.
func runProtected(ctx context.Context, fn func(context.Context) (interface{}, error)) (data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("breaker: recovered panic: %v", r)
		}
	}()
	return fn(ctx)
}
