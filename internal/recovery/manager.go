package recovery

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
)

// Options tune how one call may be recovered. All hooks are optional.
type Options struct {
	// AlreadyApplied guards non-idempotent operations: before any retry the
	// manager asks whether the effect already landed (e.g. the target
	// commit exists) and treats a true answer as success.
	AlreadyApplied func(ctx context.Context) (bool, error)

	// Fallback is an alternate path tried when the retry budget is
	// exhausted or the breaker rejects the call.
	Fallback func(ctx context.Context) error

	// Rollback undoes partial state before the failure is surfaced.
	Rollback func(ctx context.Context) error

	// Restart recreates a stateful component; after a successful restart
	// the operation gets one final attempt.
	Restart func(ctx context.Context) error

	// NonCritical marks the step skippable: a resource failure is logged
	// and the sprint continues.
	NonCritical bool
}

// Manager issues external calls with retry and circuit breaking.
//
// One Manager is owned by each engine instance and threaded through
// explicitly; it is not shared between concurrently running engines.
type Manager struct {
	cfg    config.RecoveryConfig
	logger *zap.Logger
	sink   Sink

	mu       sync.Mutex
	breakers map[string]*Breaker

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a recovery manager. A nil sink discards attempts.
func NewManager(cfg config.RecoveryConfig, logger *zap.Logger, sink Sink) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		breakers: make(map[string]*Breaker),
		sleep:    sleepCtx,
	}
}

// SetSink replaces the attempt sink. The engine calls this at sprint start
// so attempts land on the active sprint's state.
func (m *Manager) SetSink(sink Sink) {
	if sink == nil {
		sink = nopSink{}
	}
	m.sink = sink
}

// breaker returns the breaker for class, creating it lazily from config.
func (m *Manager) breaker(class string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[class]; ok {
		return b
	}

	bc := m.cfg.Breaker
	if override, ok := m.cfg.Breakers[class]; ok {
		bc = override
	}
	b := NewBreaker(class, bc.FailureThreshold, bc.ResetTimeout.Duration())
	m.breakers[class] = b
	breakerStateGauge.WithLabelValues(class).Set(0)
	return b
}

// Execute runs op for the given operation class with retry and circuit
// breaking. Transient failures are absorbed until the retry budget is
// exhausted; logic errors abort immediately; resource failures are skipped,
// rolled back or escalated depending on opts.
//
// The returned error is nil on success (including SKIP and a successful
// FALLBACK), an *AbortError on unrecoverable conditions, and the underlying
// failure otherwise.
func (m *Manager) Execute(ctx context.Context, class string, op func(ctx context.Context) error, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	b := m.breaker(class)
	backoff := m.cfg.RetryBackoff.Duration()

	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.Allow(); err != nil {
			// Open breaker: fail fast, optionally through the fallback.
			m.observeBreaker(class, b)
			if opts.Fallback != nil {
				return m.runFallback(ctx, class, opts.Fallback, err, attempt)
			}
			m.record(Attempt{Class: class, Strategy: StrategyRetry, OK: false, Error: err.Error(), Retries: attempt, Time: time.Now()})
			return fmt.Errorf("%s: %w", class, err)
		}

		// Idempotency guard: retrying a non-idempotent operation first
		// checks whether the effect already landed.
		if attempt > 0 && opts.AlreadyApplied != nil {
			applied, err := opts.AlreadyApplied(ctx)
			if err == nil && applied {
				b.RecordSuccess()
				m.observeBreaker(class, b)
				m.record(Attempt{Class: class, Strategy: StrategyRetry, OK: true, Retries: attempt, Time: time.Now()})
				return nil
			}
		}

		err := op(ctx)
		if err == nil {
			b.RecordSuccess()
			m.observeBreaker(class, b)
			m.record(Attempt{Class: class, Strategy: StrategyRetry, OK: true, Retries: attempt, Time: time.Now()})
			return nil
		}
		lastErr = err

		switch Classify(err) {
		case Logic:
			// Never retried, never counted against the breaker.
			m.record(Attempt{Class: class, Strategy: StrategyAbort, OK: false, Error: err.Error(), Retries: attempt, Time: time.Now()})
			return &AbortError{Class: class, Err: err}

		case Degraded:
			m.logger.Debug("degraded measurement, continuing",
				zap.String("class", class), zap.Error(err))
			m.record(Attempt{Class: class, Strategy: StrategySkip, OK: true, Error: err.Error(), Retries: attempt, Time: time.Now()})
			return nil

		case Resource:
			b.RecordFailure()
			m.observeBreaker(class, b)
			return m.handleResource(ctx, class, err, opts, attempt)

		case Transient:
			b.RecordFailure()
			m.observeBreaker(class, b)
			if attempt == m.cfg.MaxRetries {
				break
			}
			m.logger.Warn("transient failure, retrying",
				zap.String("class", class),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", m.cfg.MaxRetries),
				zap.Error(err))
			if serr := m.sleep(ctx, m.jitter(backoff)); serr != nil {
				return serr
			}
			backoff = min(backoff*2, m.cfg.MaxBackoff.Duration())
		}
	}

	// Retry budget exhausted: escalate fallback, then restart.
	if opts.Fallback != nil {
		return m.runFallback(ctx, class, opts.Fallback, lastErr, m.cfg.MaxRetries)
	}
	if opts.Restart != nil {
		return m.runRestart(ctx, class, opts.Restart, op, lastErr)
	}
	m.record(Attempt{Class: class, Strategy: StrategyRetry, OK: false, Error: lastErr.Error(), Retries: m.cfg.MaxRetries, Time: time.Now()})
	return fmt.Errorf("%s failed after %d retries: %w", class, m.cfg.MaxRetries, lastErr)
}

// runFallback executes the alternate path after the primary is given up on.
// A fallback failure is final for this call.
func (m *Manager) runFallback(ctx context.Context, class string, fallback func(ctx context.Context) error, cause error, retries int) error {
	m.logger.Info("falling back to alternate path",
		zap.String("class", class), zap.Error(cause))
	err := fallback(ctx)
	if err != nil {
		m.record(Attempt{Class: class, Strategy: StrategyFallback, OK: false, Error: err.Error(), Retries: retries, Time: time.Now()})
		return fmt.Errorf("%s: fallback failed: %w (after %w)", class, err, cause)
	}
	m.record(Attempt{Class: class, Strategy: StrategyFallback, OK: true, Error: cause.Error(), Retries: retries, Time: time.Now()})
	return nil
}

// runRestart recreates the component, then gives the operation one final try.
func (m *Manager) runRestart(ctx context.Context, class string, restart, op func(ctx context.Context) error, cause error) error {
	m.logger.Info("restarting component after exhausted retries",
		zap.String("class", class), zap.Error(cause))
	if err := restart(ctx); err != nil {
		m.record(Attempt{Class: class, Strategy: StrategyRestart, OK: false, Error: err.Error(), Retries: m.cfg.MaxRetries, Time: time.Now()})
		return fmt.Errorf("%s: restart failed: %w (after %w)", class, err, cause)
	}
	err := op(ctx)
	ok := err == nil
	b := m.breaker(class)
	if ok {
		b.RecordSuccess()
	} else {
		b.RecordFailure()
	}
	m.observeBreaker(class, b)
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	m.record(Attempt{Class: class, Strategy: StrategyRestart, OK: ok, Error: errText, Retries: m.cfg.MaxRetries, Time: time.Now()})
	if err != nil {
		return fmt.Errorf("%s failed after restart: %w", class, err)
	}
	return nil
}

// handleResource applies the resource-failure strategy table: SKIP for
// non-critical steps, ROLLBACK when an undo hook exists, ABORT otherwise.
func (m *Manager) handleResource(ctx context.Context, class string, err error, opts *Options, attempt int) error {
	if opts.NonCritical {
		m.logger.Warn("skipping non-critical step",
			zap.String("class", class), zap.Error(err))
		m.record(Attempt{Class: class, Strategy: StrategySkip, OK: true, Error: err.Error(), Retries: attempt, Time: time.Now()})
		return nil
	}
	if opts.Rollback != nil {
		rbErr := opts.Rollback(ctx)
		ok := rbErr == nil
		m.record(Attempt{Class: class, Strategy: StrategyRollback, OK: ok, Error: err.Error(), Retries: attempt, Time: time.Now()})
		if rbErr != nil {
			m.logger.Error("rollback failed",
				zap.String("class", class), zap.Error(rbErr))
		}
		return fmt.Errorf("%s: rolled back after resource failure: %w", class, err)
	}
	m.record(Attempt{Class: class, Strategy: StrategyAbort, OK: false, Error: err.Error(), Retries: attempt, Time: time.Now()})
	return &AbortError{Class: class, Err: err}
}


// jitter spreads backoff to avoid thundering retries. The top-level rand
// source is locked, so concurrent Execute calls are safe here.
func (m *Manager) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// BreakerStates reports the current state of every breaker created so far,
// for the final report and the observer endpoint.
func (m *Manager) BreakerStates() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.breakers))
	for _, b := range m.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}

func (m *Manager) record(a Attempt) {
	attemptsTotal.WithLabelValues(a.Class, resultLabel(a.OK)).Inc()
	strategiesTotal.WithLabelValues(a.Class, string(a.Strategy)).Inc()
	m.sink.RecordAttempt(a)
}

func (m *Manager) observeBreaker(class string, b *Breaker) {
	var v float64
	switch b.State() {
	case StateClosed:
		v = 0
	case StateHalfOpen:
		v = 1
	case StateOpen:
		v = 2
	}
	breakerStateGauge.WithLabelValues(class).Set(v)
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
