package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/sprintd/internal/buildrun"
	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/contextstore"
	"github.com/fyrsmithlabs/sprintd/internal/gitops"
	"github.com/fyrsmithlabs/sprintd/internal/llm"
	"github.com/fyrsmithlabs/sprintd/internal/policy"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
	"github.com/fyrsmithlabs/sprintd/internal/secrets"
	"github.com/fyrsmithlabs/sprintd/internal/watch"
)

var tracer = otel.Tracer("sprintd/engine")

// Runner abstracts the build/test collaborator.
type Runner interface {
	Run(ctx context.Context, command string) (buildrun.Result, error)
}

// VCS abstracts the version-control collaborator. Both calls are idempotent.
type VCS interface {
	Branch(ctx context.Context, name string) error
	Commit(ctx context.Context, message string) (string, error)
}

// Deps are the engine's collaborators. Policy, Store, Recovery, Completer
// and Runner are required; the rest are optional features.
type Deps struct {
	Policy    *policy.Policy
	Rewards   *policy.RewardCalculator
	Store     contextstore.Store
	Indexer   *contextstore.Indexer
	Recovery  *recovery.Manager
	Completer llm.Completer
	Runner    Runner
	VCS       VCS
	PRs       *gitops.PullRequests
	Tracker   *watch.Tracker
	Scrubber  *secrets.Scrubber
}

// Engine runs sprints. One engine owns one Policy, one recovery manager and
// one SprintState at a time; turns execute strictly one after another.
type Engine struct {
	cfg      config.Config
	logger   *zap.Logger
	deps     Deps
	scrumDir string

	mu         sync.Mutex
	current    *SprintState
	transcript []turnOutput

	// indexGroup is the background indexing pass started at the last phase
	// boundary; retrieval waits for it before querying.
	indexGroup *errgroup.Group
}

// New creates an engine. The recovery manager's attempt sink is pointed at
// the engine so failures land on the active sprint.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Rewards == nil {
		deps.Rewards = policy.NewRewardCalculator(cfg.Policy)
	}
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		deps:     deps,
		scrumDir: filepath.Join(cfg.Project.WorkDir, "scrum"),
	}
	deps.Recovery.SetSink(e)
	return e
}

// RecordAttempt implements recovery.Sink: failed attempts and applied
// recovery strategies become error records on the active sprint.
func (e *Engine) RecordAttempt(a recovery.Attempt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return
	}
	e.current.Metrics["recovery_attempts"]++
	if a.OK && a.Strategy == recovery.StrategyRetry && a.Error == "" {
		return
	}
	e.current.Errors = append(e.current.Errors, ErrorRecord{
		Class:    a.Class,
		Strategy: a.Strategy,
		Message:  a.Error,
		Retries:  a.Retries,
		Time:     a.Time,
	})
	if !a.OK {
		e.current.Metrics["recovery_failures"]++
	}
}

// turnOutput is one collaborator completion, kept so the sprint report can
// carry an auditable transcript of what each role produced.
type turnOutput struct {
	Phase Phase
	Role  llm.Role
	Text  string
	Time  time.Time
}

// recordOutput appends a completion to the sprint transcript. Output is
// scrubbed before it is retained so secrets never land in the scrum dir.
func (e *Engine) recordOutput(phase Phase, role llm.Role, text string) {
	if e.deps.Scrubber != nil {
		text, _ = e.deps.Scrubber.Scrub("transcript", text)
	}
	e.mu.Lock()
	e.transcript = append(e.transcript, turnOutput{
		Phase: phase,
		Role:  role,
		Text:  text,
		Time:  time.Now().UTC(),
	})
	e.mu.Unlock()
}

func (e *Engine) takeTranscript() []turnOutput {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.transcript
	e.transcript = nil
	return out
}

// Snapshot returns a copy of the active sprint's state for observers, or
// nil when no sprint is running.
func (e *Engine) Snapshot() *SprintState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	return e.current.clone()
}

// Run executes the configured number of sprints. A failed sprint is
// reported and the next one starts; only context cancellation stops the
// run early.
func (e *Engine) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Engine.Run")
	defer span.End()

	for n := 1; n <= e.cfg.Project.NumSprints; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := e.runSprint(ctx, n)
		if err != nil && errors.Is(err, context.Canceled) {
			return err
		}

		sprintsTotal.WithLabelValues(string(state.Phase)).Inc()
		e.logger.Info("sprint finished",
			zap.Int("sprint", n),
			zap.String("phase", string(state.Phase)),
			zap.Float64("progress", state.Progress),
			zap.Int("errors", len(state.Errors)))

		if err := e.deps.Policy.Save(e.policyPath()); err != nil {
			e.logger.Warn("failed to persist policy", zap.Error(err))
		}
		if err := writeSprintReport(e.scrumDir, state, e.deps.Recovery.BreakerStates(), e.takeTranscript()); err != nil {
			e.logger.Warn("failed to write sprint report", zap.Error(err))
		}
		e.finishVCS(ctx, state)
	}
	return nil
}

// Resume continues a run after a crash: the persisted snapshot decides
// which sprint number to restart from. Sprints are restarted whole; a
// half-finished sprint re-plans rather than resuming mid-phase.
func (e *Engine) Resume(ctx context.Context) error {
	last, err := LoadLatestSnapshot(e.scrumDir)
	if err != nil {
		if os.IsNotExist(err) {
			return e.Run(ctx)
		}
		return fmt.Errorf("load snapshot: %w", err)
	}

	start := last.SprintNumber
	if last.Phase.Terminal() {
		start++
	}
	e.logger.Info("resuming run", zap.Int("from_sprint", start))

	for n := start; n <= e.cfg.Project.NumSprints; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, err := e.runSprint(ctx, n)
		if err != nil && errors.Is(err, context.Canceled) {
			return err
		}
		sprintsTotal.WithLabelValues(string(state.Phase)).Inc()
		if err := e.deps.Policy.Save(e.policyPath()); err != nil {
			e.logger.Warn("failed to persist policy", zap.Error(err))
		}
		if err := writeSprintReport(e.scrumDir, state, e.deps.Recovery.BreakerStates(), e.takeTranscript()); err != nil {
			e.logger.Warn("failed to write sprint report", zap.Error(err))
		}
		e.finishVCS(ctx, state)
	}
	return nil
}

func (e *Engine) policyPath() string {
	if e.cfg.Policy.StorePath != "" {
		return e.cfg.Policy.StorePath
	}
	return filepath.Join(e.scrumDir, "policy.json")
}

// runSprint drives one sprint to a terminal phase. The returned error is
// non-nil only for cancellation; sprint-level failures are recorded on the
// state and end in PhaseFailed.
func (e *Engine) runSprint(ctx context.Context, number int) (*SprintState, error) {
	ctx, span := tracer.Start(ctx, "Engine.Sprint")
	defer span.End()
	span.SetAttributes(attribute.Int("sprint", number))

	state := newSprintState(number)
	e.mu.Lock()
	e.current = state
	e.transcript = nil
	e.mu.Unlock()
	observePhase(state.Phase)

	e.deps.Rewards.Reset()
	totalReward := 0.0
	codingTurns := 0
	budget := e.cfg.Project.IterationsPerSprint
	lastTestsPassed := false

	e.startBranch(ctx, number)

	// Planning: one planner turn produces the goal list.
	if err := e.planningTurn(ctx, state); err != nil {
		e.finishSprint(ctx, state, err)
		return state, ctx.Err()
	}
	if err := e.transition(ctx, state, PhaseCoding); err != nil {
		e.finishSprint(ctx, state, err)
		return state, ctx.Err()
	}

	for !state.Phase.Terminal() {
		if err := ctx.Err(); err != nil {
			e.abort(ctx, state, err)
			return state, err
		}

		switch state.Phase {
		case PhaseCoding:
			if codingTurns >= budget {
				// Iteration budget exhausted inside the phase: force review
				// with whatever was achieved.
				if err := e.transition(ctx, state, PhaseReviewing); err != nil {
					e.abort(ctx, state, err)
				}
				continue
			}
			codingTurns++
			e.setMetric(state, "coding_turns", float64(codingTurns))
			reward, err := e.codingTurn(ctx, state)
			totalReward += reward
			if err != nil {
				if handled := e.handleTurnFailure(ctx, state, err); handled {
					continue
				}
				return state, ctx.Err()
			}
			if err := e.transition(ctx, state, PhaseTesting); err != nil {
				e.abort(ctx, state, err)
			}

		case PhaseTesting:
			passed, reward, err := e.testingTurn(ctx, state)
			totalReward += reward
			lastTestsPassed = passed
			if err != nil {
				if handled := e.handleTurnFailure(ctx, state, err); handled {
					continue
				}
				return state, ctx.Err()
			}
			if passed {
				e.mu.Lock()
				state.achieveCurrent()
				e.mu.Unlock()
			}
			if err := e.transition(ctx, state, PhaseReviewing); err != nil {
				e.abort(ctx, state, err)
			}

		case PhaseReviewing:
			next, err := e.reviewingTurn(ctx, state, lastTestsPassed, codingTurns < budget)
			if err != nil {
				if handled := e.handleTurnFailure(ctx, state, err); handled {
					continue
				}
				return state, ctx.Err()
			}
			if err := e.transition(ctx, state, next); err != nil {
				e.abort(ctx, state, err)
			}
		}
	}

	e.deps.Policy.EndSprint(totalReward)
	sprintReward.Set(totalReward)
	e.awaitIndex()
	e.persist(state)
	return state, nil
}

// handleTurnFailure folds a turn's surfaced error into the sprint. Abort
// decisions and cancellation end the sprint; anything else was already
// absorbed as far as possible and the loop carries on in the same phase
// cycle by forcing a review.
func (e *Engine) handleTurnFailure(ctx context.Context, state *SprintState, err error) bool {
	if errors.Is(err, context.Canceled) {
		e.abort(ctx, state, err)
		return false
	}
	if recovery.IsAbort(err) {
		e.abort(ctx, state, err)
		return true
	}
	e.logger.Warn("turn failed after recovery",
		zap.Int("sprint", state.SprintNumber),
		zap.String("phase", string(state.Phase)),
		zap.Error(err))
	if !state.Phase.CanTransition(PhaseReviewing) {
		e.abort(ctx, state, err)
		return true
	}
	if terr := e.transition(ctx, state, PhaseReviewing); terr != nil {
		e.abort(ctx, state, terr)
	}
	return true
}

// abort moves the sprint to its terminal phase: Completed when the
// acceptance criteria were already met, Failed otherwise.
func (e *Engine) abort(ctx context.Context, state *SprintState, cause error) {
	e.mu.Lock()
	if cause != nil {
		state.Errors = append(state.Errors, ErrorRecord{
			Class:    "engine",
			Strategy: recovery.StrategyAbort,
			Message:  cause.Error(),
			Time:     time.Now().UTC(),
		})
	}
	e.mu.Unlock()

	terminal := PhaseFailed
	if len(state.GoalsRemaining) == 0 && len(state.GoalsAchieved) > 0 {
		terminal = PhaseCompleted
	}
	if state.Phase.Terminal() {
		return
	}
	// Reach the terminal phase through the legal path where one exists.
	if !state.Phase.CanTransition(terminal) && state.Phase.CanTransition(PhaseReviewing) {
		_ = e.transition(ctx, state, PhaseReviewing)
	}
	if state.Phase.CanTransition(terminal) {
		_ = e.transition(ctx, state, terminal)
		return
	}
	// No legal path, e.g. the sprint never left planning.
	e.mu.Lock()
	state.Phase = terminal
	state.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()
	observePhase(terminal)
	e.persist(state)
}

func (e *Engine) finishSprint(ctx context.Context, state *SprintState, err error) {
	if err != nil {
		e.abort(ctx, state, err)
		return
	}
	e.persist(state)
}

// transition moves the sprint along the phase graph, persists a snapshot,
// and kicks off the phase-boundary re-index in the background.
func (e *Engine) transition(ctx context.Context, state *SprintState, next Phase) error {
	if !state.Phase.CanTransition(next) {
		return recovery.MarkLogic(fmt.Errorf("invalid phase transition %s -> %s", state.Phase, next))
	}

	e.mu.Lock()
	state.Phase = next
	state.CurrentRole = roleFor[next]
	state.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()

	observePhase(next)
	e.persist(state)

	if !next.Terminal() {
		e.startReindex(ctx)
	}
	e.logger.Debug("phase transition",
		zap.Int("sprint", state.SprintNumber),
		zap.String("phase", string(next)))
	return nil
}

func (e *Engine) persist(state *SprintState) {
	e.mu.Lock()
	snap := state.clone()
	e.mu.Unlock()
	if err := saveSnapshot(e.scrumDir, snap); err != nil {
		e.logger.Warn("failed to persist snapshot", zap.Error(err))
	}
}

// startBranch checks out the sprint branch when auto-commit is on.
func (e *Engine) startBranch(ctx context.Context, number int) {
	if e.deps.VCS == nil || !e.cfg.VCS.AutoCommit {
		return
	}
	name := fmt.Sprintf("%s%d", e.cfg.VCS.BranchPrefix, number)
	if err := e.deps.VCS.Branch(ctx, name); err != nil {
		e.logger.Warn("failed to switch sprint branch", zap.String("branch", name), zap.Error(err))
	}
}

// finishVCS commits the sprint's work and, for completed sprints, opens the
// review pull request.
func (e *Engine) finishVCS(ctx context.Context, state *SprintState) {
	if e.deps.VCS == nil || !e.cfg.VCS.AutoCommit {
		return
	}
	msg := fmt.Sprintf("%s: sprint %d (%s)", e.cfg.Project.Name, state.SprintNumber, state.Phase)
	if _, err := e.deps.VCS.Commit(ctx, msg); err != nil {
		e.logger.Warn("sprint commit failed", zap.Error(err))
		return
	}
	if e.deps.PRs != nil && e.cfg.VCS.CreatePR && state.Phase == PhaseCompleted {
		branch := fmt.Sprintf("%s%d", e.cfg.VCS.BranchPrefix, state.SprintNumber)
		title := fmt.Sprintf("Sprint %d: %s", state.SprintNumber, e.cfg.Project.Goal)
		url, err := e.deps.PRs.Open(ctx, branch, title, sprintPRBody(state))
		if err != nil {
			e.logger.Warn("failed to open pull request", zap.Error(err))
			return
		}
		e.logger.Info("sprint pull request", zap.String("url", url))
	}
}

// planningTurn asks the planner for the sprint's goal list.
func (e *Engine) planningTurn(ctx context.Context, state *SprintState) error {
	ctx, span := tracer.Start(ctx, "Engine.PlanningTurn")
	defer span.End()
	turnsTotal.WithLabelValues(string(PhasePlanning)).Inc()

	ground, err := e.retrieve(ctx, e.cfg.Project.Goal)
	if err != nil {
		return err
	}

	prompt := planPrompt(e.cfg.Project.Goal, state.SprintNumber, ground)
	out, err := e.deps.Completer.Complete(ctx, prompt, llm.RolePlanner)
	if err != nil {
		return err
	}

	e.recordOutput(PhasePlanning, llm.RolePlanner, out)

	goals := parseGoals(out)
	if len(goals) == 0 {
		goals = []string{e.cfg.Project.Goal}
	}

	e.mu.Lock()
	state.GoalsRemaining = goals
	state.CurrentTask = goals[0]
	state.updateProgress()
	e.mu.Unlock()

	e.logger.Info("sprint planned",
		zap.Int("sprint", state.SprintNumber),
		zap.Int("goals", len(goals)))
	return nil
}

// codingTurn is one full inner-loop step: retrieve grounding, ask the
// policy for an action, have the coder act on it, run the build, and feed
// the outcome back as reward.
func (e *Engine) codingTurn(ctx context.Context, state *SprintState) (float64, error) {
	ctx, span := tracer.Start(ctx, "Engine.CodingTurn")
	defer span.End()
	turnsTotal.WithLabelValues(string(PhaseCoding)).Inc()

	e.mu.Lock()
	if state.CurrentTask == "" && len(state.GoalsRemaining) > 0 {
		state.CurrentTask = state.GoalsRemaining[0]
	}
	task := state.CurrentTask
	e.mu.Unlock()

	obs := e.observe(state)
	s := e.deps.Policy.Discretize(obs)
	action := e.deps.Policy.SelectAction(s)
	span.SetAttributes(attribute.String("action", string(action)))

	ground, err := e.retrieve(ctx, task)
	if err != nil {
		return 0, err
	}

	out, err := e.deps.Completer.Complete(ctx, codePrompt(task, action, ground), llm.RoleCoder)
	if err != nil {
		return 0, err
	}
	e.recordOutput(PhaseCoding, llm.RoleCoder, out)

	metrics := policy.TurnMetrics{}
	if e.cfg.Build.BuildCommand != "" {
		var res buildrun.Result
		buildErr := e.deps.Recovery.Execute(ctx, recovery.ClassBuild, func(ctx context.Context) error {
			var runErr error
			res, runErr = e.deps.Runner.Run(ctx, e.cfg.Build.BuildCommand)
			return runErr
		}, &recovery.Options{NonCritical: true})
		if buildErr == nil {
			ok := 0.0
			if res.OK() {
				ok = 1
			}
			e.setMetric(state, "build_ok", ok)
			e.setMetric(state, "build_seconds", res.Duration.Seconds())
			metrics.DurationSecs = policy.Float(res.Duration.Seconds())
		}
	}

	reward := e.deps.Rewards.Compute(metrics)
	next := e.deps.Policy.Discretize(e.observe(state))
	e.deps.Policy.Update(s, action, reward, next)
	e.setMetric(state, "last_reward", reward)
	return reward, nil
}

// testingTurn runs the test suite and scores the outcome.
func (e *Engine) testingTurn(ctx context.Context, state *SprintState) (bool, float64, error) {
	ctx, span := tracer.Start(ctx, "Engine.TestingTurn")
	defer span.End()
	turnsTotal.WithLabelValues(string(PhaseTesting)).Inc()

	obs := e.observe(state)
	s := e.deps.Policy.Discretize(obs)
	action := e.deps.Policy.SelectAction(s)

	var res buildrun.Result
	err := e.deps.Recovery.Execute(ctx, recovery.ClassTest, func(ctx context.Context) error {
		var runErr error
		res, runErr = e.deps.Runner.Run(ctx, e.cfg.Build.TestCommand)
		return runErr
	}, nil)
	if err != nil {
		// The suite could not run at all; the missing measurements
		// contribute zero reward.
		reward := e.deps.Rewards.Compute(policy.TurnMetrics{})
		e.deps.Policy.Update(s, action, reward, e.deps.Policy.Discretize(e.observe(state)))
		return false, reward, err
	}

	summary := buildrun.ParseTestOutput(res.Stdout + "\n" + res.Stderr)
	metrics := policy.TurnMetrics{
		PassRate:     summary.PassRate(),
		DurationSecs: policy.Float(res.Duration.Seconds()),
	}
	if summary.CoveragePct != nil {
		cov := *summary.CoveragePct / 100
		metrics.Coverage = &cov
		e.setMetric(state, "coverage", cov)
	}
	if rate := summary.PassRate(); rate != nil {
		e.setMetric(state, "test_pass_rate", *rate)
	}
	e.setMetric(state, "test_seconds", res.Duration.Seconds())

	reward := e.deps.Rewards.Compute(metrics)
	e.deps.Policy.Update(s, action, reward, e.deps.Policy.Discretize(e.observe(state)))
	e.setMetric(state, "last_reward", reward)

	passed := res.OK()
	if rate := summary.PassRate(); rate != nil {
		passed = *rate >= 1
	}
	return passed, reward, nil
}

// reviewingTurn decides the sprint's next phase. Acceptance requires all
// goals achieved and a passing last test run; otherwise the sprint loops
// back to coding while budget remains.
func (e *Engine) reviewingTurn(ctx context.Context, state *SprintState, testsPassed, budgetLeft bool) (Phase, error) {
	ctx, span := tracer.Start(ctx, "Engine.ReviewingTurn")
	defer span.End()
	turnsTotal.WithLabelValues(string(PhaseReviewing)).Inc()

	e.mu.Lock()
	achieved := len(state.GoalsAchieved)
	remaining := len(state.GoalsRemaining)
	e.mu.Unlock()

	if remaining == 0 && achieved > 0 && testsPassed {
		return PhaseCompleted, nil
	}
	if !budgetLeft {
		// Budget exhausted: a sprint that achieved something completes
		// partially, one that achieved nothing fails.
		if achieved > 0 {
			return PhaseCompleted, nil
		}
		return PhaseFailed, nil
	}

	// Ask the reviewer; its verdict is advisory on top of the hard
	// criteria above.
	out, err := e.deps.Completer.Complete(ctx, reviewPrompt(state, testsPassed), llm.RoleReviewer)
	if err != nil {
		return PhaseCoding, err
	}
	e.recordOutput(PhaseReviewing, llm.RoleReviewer, out)
	if strings.Contains(strings.ToLower(out), "approve") && achieved > 0 {
		return PhaseCompleted, nil
	}
	return PhaseCoding, nil
}

// observe builds the policy's continuous view from current metrics.
func (e *Engine) observe(state *SprintState) policy.Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	budget := e.cfg.Project.IterationsPerSprint
	progress := 0.0
	if budget > 0 {
		progress = state.Metrics["coding_turns"] / float64(budget)
	}
	return policy.Observation{
		PassRate: state.Metrics["test_pass_rate"],
		Coverage: state.Metrics["coverage"],
		Progress: progress,
	}
}

func (e *Engine) setMetric(state *SprintState, name string, v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state.Metrics[name] = v
}

// retrieve waits for any phase-boundary indexing to finish, then queries
// the context store. Retrieval must never race an in-progress index pass.
func (e *Engine) retrieve(ctx context.Context, query string) ([]contextstore.Hit, error) {
	e.awaitIndex()
	if e.deps.Store == nil {
		return nil, nil
	}
	hits, err := e.deps.Store.Query(ctx, query, e.cfg.Context.TopK)
	if err != nil {
		e.logger.Warn("retrieval failed, continuing without grounding", zap.Error(err))
		return nil, nil
	}
	return hits, nil
}

// startReindex launches the phase-boundary indexing pass in the background.
func (e *Engine) startReindex(ctx context.Context) {
	if e.deps.Indexer == nil || e.deps.Tracker == nil {
		return
	}
	e.awaitIndex()

	g, gctx := errgroup.WithContext(ctx)
	e.indexGroup = g
	g.Go(func() error {
		return e.reindex(gctx)
	})
}

func (e *Engine) awaitIndex() {
	if e.indexGroup == nil {
		return
	}
	if err := e.indexGroup.Wait(); err != nil {
		e.logger.Warn("background index pass failed", zap.Error(err))
	}
	e.indexGroup = nil
}

// reindex indexes paths dirtied since the last phase boundary and purges
// removed ones.
func (e *Engine) reindex(ctx context.Context) error {
	dirty, removed := e.deps.Tracker.Drain()

	for _, rel := range removed {
		if err := e.deps.Indexer.Remove(ctx, rel); err != nil {
			return err
		}
	}
	for _, rel := range dirty {
		full := filepath.Join(e.cfg.Project.WorkDir, rel)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		text := string(data)
		if e.deps.Scrubber != nil {
			text, _ = e.deps.Scrubber.Scrub(rel, text)
		}
		if err := e.deps.Indexer.Index(ctx, rel, text, info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}
