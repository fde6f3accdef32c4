package policy

import "github.com/fyrsmithlabs/sprintd/internal/config"

// TurnMetrics are the raw measurements collected after one turn. Pointers
// distinguish "measured zero" from "not measured": a nil metric contributes
// zero to its reward term instead of failing the turn.
type TurnMetrics struct {
	PassRate     *float64 // passed/total from the test run
	Coverage     *float64 // statement coverage, 0..1
	LintIssues   *float64 // open lint findings
	DurationSecs *float64 // build+test wall time
	SizeBytes    *float64 // artifact tree size
	Feedback     *float64 // externally supplied score, -1..1
}

// RewardCalculator turns metric deltas between consecutive turns into a
// single clipped reward.
type RewardCalculator struct {
	weights config.PolicyConfig
	prev    TurnMetrics
}

// NewRewardCalculator creates a calculator with no history; the first call
// to Compute rewards against a zero baseline.
func NewRewardCalculator(cfg config.PolicyConfig) *RewardCalculator {
	return &RewardCalculator{weights: cfg}
}

// Compute returns the composite reward for the current turn's metrics,
// clipped to [-1, 1], and retains cur as the next turn's baseline.
// Improvements in pass rate and coverage score positive; growth in lint
// findings, duration and artifact size score negative.
func (r *RewardCalculator) Compute(cur TurnMetrics) float64 {
	reward := r.weights.PassRateWeight*delta(cur.PassRate, r.prev.PassRate) +
		r.weights.CoverageWeight*delta(cur.Coverage, r.prev.Coverage) -
		r.weights.LintWeight*delta(cur.LintIssues, r.prev.LintIssues) -
		r.weights.DurationWeight*normDelta(cur.DurationSecs, r.prev.DurationSecs) -
		r.weights.SizeWeight*normDelta(cur.SizeBytes, r.prev.SizeBytes)

	if cur.Feedback != nil {
		reward += r.weights.FeedbackWeight * *cur.Feedback
	}

	// Carry forward only what was measured; a missing metric keeps the
	// previous baseline so a later measurement deltas against it.
	r.prev = merge(r.prev, cur)

	return clip(reward, -1, 1)
}

// Reset clears the baseline at sprint boundaries.
func (r *RewardCalculator) Reset() {
	r.prev = TurnMetrics{}
}

// delta is cur-prev with nil treated as zero contribution.
func delta(cur, prev *float64) float64 {
	if cur == nil {
		return 0
	}
	p := 0.0
	if prev != nil {
		p = *prev
	}
	return *cur - p
}

// normDelta is delta scaled into roughly [-1, 1] by the larger magnitude,
// so unbounded metrics (seconds, bytes) cannot dominate the composite.
func normDelta(cur, prev *float64) float64 {
	d := delta(cur, prev)
	if d == 0 {
		return 0
	}
	scale := 1.0
	if cur != nil && *cur > scale {
		scale = *cur
	}
	if prev != nil && *prev > scale {
		scale = *prev
	}
	return d / scale
}

func merge(prev, cur TurnMetrics) TurnMetrics {
	out := prev
	if cur.PassRate != nil {
		out.PassRate = cur.PassRate
	}
	if cur.Coverage != nil {
		out.Coverage = cur.Coverage
	}
	if cur.LintIssues != nil {
		out.LintIssues = cur.LintIssues
	}
	if cur.DurationSecs != nil {
		out.DurationSecs = cur.DurationSecs
	}
	if cur.SizeBytes != nil {
		out.SizeBytes = cur.SizeBytes
	}
	if cur.Feedback != nil {
		out.Feedback = cur.Feedback
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Float is a convenience for building TurnMetrics literals.
func Float(v float64) *float64 { return &v }
