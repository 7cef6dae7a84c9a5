package gitops

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts git process execution for testability.
// Implementations return combined stdout/stderr.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (output string, err error)
}

// ExecRunner executes real commands via os/exec.
type ExecRunner struct {
	// WorkDir is the working directory for commands (empty = current dir).
	WorkDir string
}

// NewExecRunner creates a CommandRunner backed by os/exec.
func NewExecRunner(workDir string) *ExecRunner {
	return &ExecRunner{WorkDir: workDir}
}

// Run executes the command and returns combined stdout/stderr verbatim.
// Output is not trimmed: `git status --porcelain` lines are column
// sensitive, so trimming is left to callers that want scalar values.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}
	output, err := cmd.CombinedOutput()
	return string(output), err
}
