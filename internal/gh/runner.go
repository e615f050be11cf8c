package gh

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout applies to ordinary gh invocations. Merge and PR-create
// calls use MergeTimeout since remote merges are slower.
const (
	DefaultTimeout = 30 * time.Second
	MergeTimeout   = 60 * time.Second
)

// Result is the uniform outcome of one external-tool invocation. All remote
// GitHub operations funnel through this shape so failure handling stays
// uniform.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// Runner executes single gh CLI invocations.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) Result
}

// CLIRunner implements Runner by shelling out to the gh binary.
type CLIRunner struct{}

// NewRunner returns a new CLIRunner.
func NewRunner() *CLIRunner {
	return &CLIRunner{}
}

func (r *CLIRunner) Run(ctx context.Context, timeout time.Duration, args ...string) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.Output()
	if err != nil {
		msg := err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			msg = strings.TrimSpace(string(exitErr.Stderr))
		}
		if ctx.Err() == context.DeadlineExceeded {
			msg = "gh " + strings.Join(args, " ") + ": timed out"
		}
		return Result{Success: false, Error: msg}
	}
	return Result{Success: true, Output: strings.TrimSpace(string(out))}
}
