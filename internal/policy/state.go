package policy

import (
	"fmt"
	"strings"
)

// Observation is the continuous view of the sprint used for action
// selection. All fields are ratios in [0, 1]; callers pass zero for
// measurements that are unavailable this turn.
type Observation struct {
	// PassRate is passed tests over total tests from the last test run.
	PassRate float64

	// Coverage is statement coverage from the last test run.
	Coverage float64

	// Progress is completed iterations over the iteration budget.
	Progress float64
}

// StateKey is a discretized observation, one bucket index per dimension.
// The string form ("2/4/0") keys the value table and survives JSON
// round-trips unchanged.
type StateKey string

// Terminal marks the state after a sprint's last turn. Its future value is
// zero by definition.
const Terminal StateKey = ""

// Discretize buckets each observation dimension into buckets equal-width
// bins. Values at the top of the range land in the last bin.
func Discretize(obs Observation, buckets int) StateKey {
	dims := []float64{obs.PassRate, obs.Coverage, obs.Progress}
	parts := make([]string, len(dims))
	for i, v := range dims {
		parts[i] = fmt.Sprintf("%d", bucket(v, buckets))
	}
	return StateKey(strings.Join(parts, "/"))
}

func bucket(v float64, buckets int) int {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return buckets - 1
	}
	b := int(v * float64(buckets))
	if b >= buckets {
		b = buckets - 1
	}
	return b
}
