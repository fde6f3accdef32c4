package recovery

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// Breaker is a circuit breaker for one operation class.
//
// Closed admits calls. After threshold consecutive failures it opens and
// fails fast. It can only leave Open after resetTimeout has elapsed, at
// which point the next call is admitted as a half-open trial: success closes
// the breaker and resets the failure count, failure reopens it and restarts
// the timeout.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewBreaker creates a closed breaker for the named operation class.
func NewBreaker(name string, threshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed. While open and inside the reset
// timeout it returns ErrCircuitOpen without the underlying operation being
// attempted; once the timeout has elapsed the breaker moves to half-open and
// admits a single trial call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
	}
	return nil
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

// RecordFailure counts a failure; reaching the threshold opens the breaker.
// A half-open trial failure reopens immediately and restarts the timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot is an observable view of one breaker.
type Snapshot struct {
	Name             string       `json:"name"`
	State            BreakerState `json:"state"`
	Failures         int          `json:"failures"`
	LastFailure      time.Time    `json:"last_failure,omitempty"`
	FailureThreshold int          `json:"failure_threshold"`
	ResetTimeout     string       `json:"reset_timeout"`
}

// Snapshot returns the breaker's observable state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.name,
		State:            b.state,
		Failures:         b.failures,
		LastFailure:      b.lastFailure,
		FailureThreshold: b.threshold,
		ResetTimeout:     b.resetTimeout.String(),
	}
}
