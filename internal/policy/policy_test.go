package policy

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
)

func testPolicyConfig() config.PolicyConfig {
	return config.PolicyConfig{
		Epsilon:      0.2,
		EpsilonMin:   0.01,
		EpsilonMax:   0.5,
		Alpha:        0.1,
		AlphaMin:     0.01,
		AlphaMax:     0.5,
		Gamma:        0.9,
		StateBuckets: 5,
		RewardWindow: 3,
	}
}

func TestQUpdateSequence(t *testing.T) {
	p := New(testPolicyConfig(), zap.NewNop())
	s := StateKey("1/1/1")

	want := []float64{0.05, 0.095, 0.1355}
	for _, w := range want {
		p.Update(s, ActionRefactor, 0.5, Terminal)
		assert.InDelta(t, w, p.Value(s, ActionRefactor), 1e-9)
	}
}

func TestQUpdateUsesFutureValue(t *testing.T) {
	p := New(testPolicyConfig(), zap.NewNop())
	s := StateKey("0/0/0")
	next := StateKey("1/0/0")

	p.Update(next, ActionAddTests, 1.0, Terminal) // Q(next, add_tests) = 0.1
	p.Update(s, ActionRefactor, 0.0, next)

	// Q(s) = 0 + 0.1*(0 + 0.9*0.1 - 0) = 0.009
	assert.InDelta(t, 0.009, p.Value(s, ActionRefactor), 1e-9)
}

func TestSelectActionGreedyTieBreak(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.Epsilon = 0 // pure exploitation
	p := New(cfg, zap.NewNop())

	s := StateKey("2/2/2")

	// All zero: the first action in priority order wins.
	assert.Equal(t, ActionRefactor, p.SelectAction(s))

	// Equal top values: earlier priority still wins.
	p.values[s] = map[Action]float64{
		ActionAddTests: 0.3,
		ActionOptimize: 0.3,
		ActionNoOp:     0.1,
	}
	assert.Equal(t, ActionAddTests, p.SelectAction(s))

	// A strictly greater value takes over regardless of priority.
	p.values[s][ActionNoOp] = 0.4
	assert.Equal(t, ActionNoOp, p.SelectAction(s))
}

func TestSelectActionExplores(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.Epsilon = 1 // always explore
	p := New(cfg, zap.NewNop())
	p.rng = rand.New(rand.NewSource(42))

	seen := map[Action]bool{}
	for i := 0; i < 200; i++ {
		seen[p.SelectAction("0/0/0")] = true
	}
	assert.Len(t, seen, len(Actions), "exploration should reach every action")
}

func TestDiscretize(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
		want StateKey
	}{
		{"all zero", Observation{}, "0/0/0"},
		{"all max clamps to last bin", Observation{PassRate: 1, Coverage: 1, Progress: 1}, "4/4/4"},
		{"mid values", Observation{PassRate: 0.5, Coverage: 0.39, Progress: 0.8}, "2/1/4"},
		{"out of range clamps", Observation{PassRate: -0.2, Coverage: 1.7}, "0/4/0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Discretize(tt.obs, 5))
		})
	}
}

func TestRewardComposite(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.PassRateWeight = 0.5
	cfg.CoverageWeight = 0.3
	cfg.LintWeight = 0.05
	cfg.DurationWeight = 0.05
	cfg.SizeWeight = 0.05
	cfg.FeedbackWeight = 0.1

	r := NewRewardCalculator(cfg)

	// First turn: pass rate 0.4, coverage 0.2 against the zero baseline.
	got := r.Compute(TurnMetrics{PassRate: Float(0.4), Coverage: Float(0.2)})
	assert.InDelta(t, 0.5*0.4+0.3*0.2, got, 1e-9)

	// Second turn: pass rate improves, lint findings appear.
	got = r.Compute(TurnMetrics{PassRate: Float(0.8), Coverage: Float(0.2), LintIssues: Float(3)})
	assert.InDelta(t, 0.5*0.4-0.05*3, got, 1e-9)
}

func TestRewardMissingMetricsContributeZero(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.PassRateWeight = 0.5
	cfg.CoverageWeight = 0.3
	r := NewRewardCalculator(cfg)

	r.Compute(TurnMetrics{PassRate: Float(0.6), Coverage: Float(0.5)})

	// Build broke before tests ran: nothing measured, reward is zero, and
	// the baseline survives for the next measured turn.
	assert.Zero(t, r.Compute(TurnMetrics{}))

	got := r.Compute(TurnMetrics{PassRate: Float(0.7)})
	assert.InDelta(t, 0.5*0.1, got, 1e-9)
}

func TestRewardClipped(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.PassRateWeight = 10
	r := NewRewardCalculator(cfg)

	assert.Equal(t, 1.0, r.Compute(TurnMetrics{PassRate: Float(1)}))

	r.Reset()
	cfg.PassRateWeight = -10
	r2 := NewRewardCalculator(cfg)
	assert.Equal(t, -1.0, r2.Compute(TurnMetrics{PassRate: Float(1)}))
}

func TestOuterLoopAdjustsEpsilon(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.RewardWindow = 2
	p := New(cfg, zap.NewNop())

	// Improving trend decays epsilon.
	p.EndSprint(0.1)
	p.EndSprint(0.2)
	p.EndSprint(0.5)
	assert.InDelta(t, 0.2*0.9, p.Epsilon(), 1e-9)

	// Worsening trend raises it.
	before := p.Epsilon()
	p.EndSprint(-1)
	p.EndSprint(-1)
	assert.Greater(t, p.Epsilon(), before)
}

func TestOuterLoopRespectsBounds(t *testing.T) {
	cfg := testPolicyConfig()
	cfg.RewardWindow = 1
	cfg.EpsilonMin = 0.15
	cfg.EpsilonMax = 0.25
	p := New(cfg, zap.NewNop())

	for i := 0; i < 50; i++ {
		p.EndSprint(float64(i)) // always improving
	}
	assert.GreaterOrEqual(t, p.Epsilon(), cfg.EpsilonMin)

	for i := 0; i < 50; i++ {
		p.EndSprint(-float64(i)) // always worsening
	}
	assert.LessOrEqual(t, p.Epsilon(), cfg.EpsilonMax)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	cfg := testPolicyConfig()

	p := New(cfg, zap.NewNop())
	p.Update("1/2/3", ActionAddTests, 0.5, Terminal)
	p.Update("1/2/3", ActionRefactor, -0.2, Terminal)
	require.NoError(t, p.Save(path))

	loaded := Load(path, cfg, zap.NewNop())
	assert.InDelta(t, p.Value("1/2/3", ActionAddTests), loaded.Value("1/2/3", ActionAddTests), 1e-12)
	assert.InDelta(t, p.Value("1/2/3", ActionRefactor), loaded.Value("1/2/3", ActionRefactor), 1e-12)
	assert.Equal(t, 1, loaded.States())
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	p := Load(filepath.Join(t.TempDir(), "absent.json"), testPolicyConfig(), zap.NewNop())
	require.NotNil(t, p)
	assert.Zero(t, p.States())
	assert.InDelta(t, 0.2, p.Epsilon(), 1e-9)
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p := Load(path, testPolicyConfig(), zap.NewNop())
	require.NotNil(t, p)
	assert.Zero(t, p.States())
}
