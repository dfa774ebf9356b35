package conversion

import (
	"context"
	"os/exec"
	"time"
)

// Runner executes an external program and waits for it to exit.
type Runner interface {
	// Run returns the program's combined stdout and stderr. A non-zero exit
	// is reported as an error.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the
	// process is killed on context expiry.
	WaitDelay time.Duration
}

// NewExecRunner creates a runner that kills the process when ctx expires.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 5 * time.Second}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.WaitDelay
	return cmd.CombinedOutput()
}
