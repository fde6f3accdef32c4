// Package policy implements the engine's reinforcement-learning component:
// a tabular Q-learning value store with epsilon-greedy action selection, a
// composite reward over build and test metrics, and a per-sprint outer loop
// that tunes exploration from the reward trend.
package policy

// Action is a remedial category the engine can apply during a coding turn.
type Action string

const (
	ActionRefactor    Action = "refactor"
	ActionAddTests    Action = "add_tests"
	ActionImproveDocs Action = "improve_docs"
	ActionSplitModule Action = "split_module"
	ActionOptimize    Action = "optimize"
	ActionReduceDeps  Action = "reduce_dependencies"
	ActionNoOp        Action = "no_op"
)

// Actions is the fixed action set in priority order. Greedy selection scans
// this slice and keeps the first maximum, so ties resolve deterministically
// rather than by map iteration order.
var Actions = []Action{
	ActionRefactor,
	ActionAddTests,
	ActionImproveDocs,
	ActionSplitModule,
	ActionOptimize,
	ActionReduceDeps,
	ActionNoOp,
}
