package policy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
)

// Policy is a tabular Q-learning policy. One instance is active per engine;
// it is mutated only by the owning orchestration loop and is not safe for
// concurrent writers. Concurrent engines need disjoint store paths.
type Policy struct {
	cfg    config.PolicyConfig
	logger *zap.Logger

	values map[StateKey]map[Action]float64

	epsilon float64
	alpha   float64
	gamma   float64

	// sprintRewards is the trailing per-sprint reward history consumed by
	// the outer loop.
	sprintRewards []float64

	rng *rand.Rand
}

// ActionRecord traces one selection for audit and testing.
type ActionRecord struct {
	State  StateKey  `json:"state"`
	Action Action    `json:"action"`
	Reward float64   `json:"reward"`
	Time   time.Time `json:"time"`
}

// New creates a policy from configured hyperparameters with an empty value
// table.
func New(cfg config.PolicyConfig, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		cfg:     cfg,
		logger:  logger,
		values:  make(map[StateKey]map[Action]float64),
		epsilon: cfg.Epsilon,
		alpha:   cfg.Alpha,
		gamma:   cfg.Gamma,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load creates a policy from the serialized table at path. Absent or
// corrupt storage falls back to fresh initialization; persistence problems
// must never stop a sprint from starting.
func Load(path string, cfg config.PolicyConfig, logger *zap.Logger) *Policy {
	p := New(cfg, logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("policy store unreadable, starting fresh",
				zap.String("path", path), zap.Error(err))
		}
		return p
	}

	var snap persistedPolicy
	if err := json.Unmarshal(data, &snap); err != nil {
		p.logger.Warn("policy store corrupt, starting fresh",
			zap.String("path", path), zap.Error(err))
		return p
	}

	for state, actions := range snap.Values {
		row := make(map[Action]float64, len(actions))
		for a, v := range actions {
			row[Action(a)] = v
		}
		p.values[StateKey(state)] = row
	}
	if snap.Epsilon > 0 {
		p.epsilon = clip(snap.Epsilon, cfg.EpsilonMin, cfg.EpsilonMax)
	}
	if snap.Alpha > 0 {
		p.alpha = clip(snap.Alpha, cfg.AlphaMin, cfg.AlphaMax)
	}
	p.sprintRewards = snap.SprintRewards

	p.logger.Info("policy loaded",
		zap.String("path", path),
		zap.Int("states", len(p.values)),
		zap.Float64("epsilon", p.epsilon))
	return p
}

type persistedPolicy struct {
	Values        map[string]map[string]float64 `json:"values"`
	Epsilon       float64                       `json:"epsilon"`
	Alpha         float64                       `json:"alpha"`
	Gamma         float64                       `json:"gamma"`
	StateBuckets  int                           `json:"state_buckets"`
	SprintRewards []float64                     `json:"sprint_rewards,omitempty"`
}

// Save serializes the value table and live hyperparameters to path,
// atomically via a sibling temp file.
func (p *Policy) Save(path string) error {
	snap := persistedPolicy{
		Values:        make(map[string]map[string]float64, len(p.values)),
		Epsilon:       p.epsilon,
		Alpha:         p.alpha,
		Gamma:         p.gamma,
		StateBuckets:  p.cfg.StateBuckets,
		SprintRewards: p.sprintRewards,
	}
	for state, actions := range p.values {
		row := make(map[string]float64, len(actions))
		for a, v := range actions {
			row[string(a)] = v
		}
		snap.Values[string(state)] = row
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create policy dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace policy: %w", err)
	}
	return nil
}

// Discretize buckets obs with the configured bin count.
func (p *Policy) Discretize(obs Observation) StateKey {
	return Discretize(obs, p.cfg.StateBuckets)
}

// SelectAction chooses epsilon-greedily: with probability epsilon a uniform
// random action, otherwise the highest-valued action for state with ties
// broken by the fixed ordering of Actions.
func (p *Policy) SelectAction(state StateKey) Action {
	if p.rng.Float64() < p.epsilon {
		a := Actions[p.rng.Intn(len(Actions))]
		explorationTotal.WithLabelValues("explore").Inc()
		return a
	}
	explorationTotal.WithLabelValues("exploit").Inc()
	return p.bestAction(state)
}

func (p *Policy) bestAction(state StateKey) Action {
	row := p.values[state]
	best := Actions[0]
	bestV := row[best]
	for _, a := range Actions[1:] {
		if v := row[a]; v > bestV {
			best, bestV = a, v
		}
	}
	return best
}

// Value returns the current estimate for (state, action).
func (p *Policy) Value(state StateKey, action Action) float64 {
	return p.values[state][action]
}

// Update applies the Q-learning rule
//
//	Q(s,a) ← Q(s,a) + alpha * (reward + gamma * max_a' Q(s',a') - Q(s,a))
//
// next == Terminal contributes a zero future value.
func (p *Policy) Update(state StateKey, action Action, reward float64, next StateKey) {
	row := p.values[state]
	if row == nil {
		row = make(map[Action]float64, len(Actions))
		p.values[state] = row
	}

	var futureV float64
	if next != Terminal {
		futureV = p.values[next][p.bestAction(next)]
	}

	q := row[action]
	row[action] = q + p.alpha*(reward+p.gamma*futureV-q)

	rewardObserved.Observe(reward)
}

// Epsilon returns the live exploration rate.
func (p *Policy) Epsilon() float64 { return p.epsilon }

// Alpha returns the live learning rate.
func (p *Policy) Alpha() float64 { return p.alpha }

// States returns the number of distinct states seen so far.
func (p *Policy) States() int { return len(p.values) }

// EndSprint feeds the sprint's total reward to the outer loop: a trailing
// moving average over the configured window is compared against the window
// ending one sprint earlier. Improvement decays exploration; stagnation or
// regression raises epsilon and temporarily raises alpha. Both stay inside
// their configured bounds.
func (p *Policy) EndSprint(totalReward float64) {
	p.sprintRewards = append(p.sprintRewards, totalReward)

	window := p.cfg.RewardWindow
	if len(p.sprintRewards) <= window {
		return
	}

	cur := trailingAvg(p.sprintRewards, window, 0)
	prev := trailingAvg(p.sprintRewards, window, 1)

	if cur > prev {
		p.epsilon = clip(p.epsilon*0.9, p.cfg.EpsilonMin, p.cfg.EpsilonMax)
		p.alpha = clip(p.alpha*0.98, p.cfg.AlphaMin, p.cfg.AlphaMax)
	} else {
		p.epsilon = clip(p.epsilon*1.1, p.cfg.EpsilonMin, p.cfg.EpsilonMax)
		p.alpha = clip(p.alpha*1.05, p.cfg.AlphaMin, p.cfg.AlphaMax)
	}

	epsilonGauge.Set(p.epsilon)
	alphaGauge.Set(p.alpha)

	p.logger.Info("outer loop adjusted hyperparameters",
		zap.Float64("avg_reward", cur),
		zap.Float64("prev_avg_reward", prev),
		zap.Float64("epsilon", p.epsilon),
		zap.Float64("alpha", p.alpha))
}

// trailingAvg averages the window rewards ending offset sprints before the
// most recent one.
func trailingAvg(rewards []float64, window, offset int) float64 {
	end := len(rewards) - offset
	start := end - window
	if start < 0 {
		start = 0
	}
	if end <= start {
		return 0
	}
	sum := 0.0
	for _, r := range rewards[start:end] {
		sum += r
	}
	return sum / float64(end-start)
}
