package buildrun

import (
	"regexp"
	"strconv"
	"strings"
)

// TestSummary is what the engine extracts from a test run's output.
// Missing values stay nil so downstream reward terms degrade to zero
// instead of inventing numbers.
type TestSummary struct {
	PassCount   *int
	FailCount   *int
	CoveragePct *float64
}

// PassRate returns passed/total in [0, 1], or nil when nothing was counted.
func (s TestSummary) PassRate() *float64 {
	if s.PassCount == nil && s.FailCount == nil {
		return nil
	}
	pass, fail := 0, 0
	if s.PassCount != nil {
		pass = *s.PassCount
	}
	if s.FailCount != nil {
		fail = *s.FailCount
	}
	total := pass + fail
	if total == 0 {
		return nil
	}
	rate := float64(pass) / float64(total)
	return &rate
}

var (
	goCoverageRe = regexp.MustCompile(`coverage:\s+(\d+(?:\.\d+)?)%`)
	pytestRe     = regexp.MustCompile(`(\d+) passed(?:.*?(\d+) failed)?`)
	pytestFailRe = regexp.MustCompile(`(\d+) failed`)
)

// ParseTestOutput extracts pass/fail counts and coverage from test runner
// output. It understands `go test -v` result lines and pytest summary
// lines; anything unrecognized yields an empty summary.
func ParseTestOutput(output string) TestSummary {
	var s TestSummary

	pass, fail := 0, 0
	counted := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "--- PASS:"):
			pass++
			counted = true
		case strings.HasPrefix(trimmed, "--- FAIL:"):
			fail++
			counted = true
		}
	}

	if !counted {
		if m := pytestRe.FindStringSubmatch(output); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				pass = n
				counted = true
			}
		}
		if m := pytestFailRe.FindStringSubmatch(output); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				fail = n
				counted = true
			}
		}
	}

	if counted {
		s.PassCount = &pass
		s.FailCount = &fail
	}

	if m := goCoverageRe.FindStringSubmatch(output); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			s.CoveragePct = &pct
		}
	}
	return s
}
