// Package recovery wraps every external interaction the engine performs:
// language-model calls, build and test execution, version control, embedding
// generation. Each call goes through a per-operation-class circuit breaker
// and a retry loop, and every attempt is reported to the enclosing sprint so
// callers see outcomes without knowing the retry mechanics.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation classes. One circuit breaker exists per class, created lazily.
const (
	ClassLLM    = "llm"
	ClassBuild  = "build"
	ClassTest   = "test"
	ClassCommit = "commit"
	ClassEmbed  = "embed"
)

// Classification buckets failures by how they should be handled.
type Classification string

const (
	// Transient covers network failures and timeouts. Retried transparently.
	Transient Classification = "transient"

	// Resource covers disk, permission and quota failures. Usually skipped
	// or escalated, never retried blindly.
	Resource Classification = "resource"

	// Logic covers invalid configuration or state. Aborts immediately,
	// never retried.
	Logic Classification = "logic"

	// Degraded marks a missing measurement. Not an error: it contributes
	// zero to the reward and is logged at low severity.
	Degraded Classification = "degraded"
)

// Strategy is the recovery action chosen for a failure.
type Strategy string

const (
	StrategyRetry    Strategy = "retry"
	StrategyFallback Strategy = "fallback"
	StrategyRollback Strategy = "rollback"
	StrategyRestart  Strategy = "restart"
	StrategySkip     Strategy = "skip"
	StrategyAbort    Strategy = "abort"
)

// ErrCircuitOpen is returned when a breaker rejects a call without invoking
// the underlying operation.
var ErrCircuitOpen = errors.New("circuit breaker open")

// classifiedError carries an explicit classification alongside the cause.
type classifiedError struct {
	err   error
	class Classification
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// MarkTransient tags err as a transient failure.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: Transient}
}

// MarkResource tags err as a resource failure.
func MarkResource(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: Resource}
}

// MarkLogic tags err as a logic error. Logic errors bypass retry entirely.
func MarkLogic(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: Logic}
}

// MarkDegraded tags err as a missing measurement. Degraded errors are
// swallowed by the manager and contribute a zero metric.
func MarkDegraded(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: Degraded}
}

// Classify determines how a failure should be handled. Explicit marks win;
// context timeouts count as transient; anything unrecognized defaults to
// transient so unknown flakiness gets the retry budget rather than an abort.
func Classify(err error) Classification {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	if timeout, ok := err.(interface{ Timeout() bool }); ok && timeout.Timeout() {
		return Transient
	}
	return Transient
}

// AbortError signals an unrecoverable condition. The orchestration loop
// treats it as the trigger for its Failed phase.
type AbortError struct {
	Class string
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s: aborted: %v", e.Class, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// IsAbort reports whether err carries an abort decision.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// Attempt records one call through the manager: which class, which strategy
// fired, and the outcome. Attempts flow to the enclosing sprint state.
type Attempt struct {
	Class    string    `json:"class"`
	Strategy Strategy  `json:"strategy"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Retries  int       `json:"retries"`
	Time     time.Time `json:"time"`
}

// Sink receives attempt records. The orchestration loop implements this to
// append failures to SprintState.errors and aggregate metrics.
type Sink interface {
	RecordAttempt(Attempt)
}

// nopSink discards attempts.
type nopSink struct{}

func (nopSink) RecordAttempt(Attempt) {}
