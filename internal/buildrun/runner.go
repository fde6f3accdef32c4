// Package buildrun is the build/test collaborator: it executes a command in
// the project tree, captures the outcome, and parses test counts and
// coverage out of the output. A failing build is a result, not an error;
// the engine folds it into metrics and rewards.
package buildrun

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// Result is one command execution.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the command exited cleanly.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner executes build and test commands inside a working directory.
type Runner struct {
	workDir string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner rooted at workDir. A zero timeout means the
// caller's context bounds execution alone.
func NewRunner(workDir string, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{workDir: workDir, timeout: timeout, logger: logger}
}

// Run executes command (split on whitespace; first token is the binary).
// A non-zero exit is reported in the Result with a nil error. The returned
// error is non-nil only when the command could not run at all or the
// context ended first.
func (r *Runner) Run(ctx context.Context, command string) (Result, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return Result{}, recovery.MarkLogic(errors.New("empty command"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		// A killed child still yields an ExitError, so the context check
		// has to come first or a timeout looks like a plain failing exit.
		case ctx.Err() != nil:
			return res, recovery.MarkTransient(ctx.Err())
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			// The binary is missing or not executable; rerunning the same
			// command cannot help.
			return res, recovery.MarkResource(err)
		}
	}

	r.logger.Debug("command finished",
		zap.String("command", command),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res, nil
}
