// Package guard executes arbitrary commands under an optimistic sandbox.
//
// There is no kernel-level isolation: the guard lets the command run
// unconstrained, then uses the git working-tree diff taken before and after
// as the ledger of what changed, reverting anything the allow-list does not
// cover. A command that drives git itself between the two snapshots can
// therefore evade the audit; the guard's guarantee assumes the audited
// process does not forge the audited state.
package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/glob"
)

// ExitGitFailure is the guard's own fatal exit code, distinct from any exit
// code the wrapped command may produce.
const ExitGitFailure = 128

// RevertFailure records a violation path the guard could not repair.
type RevertFailure struct {
	Path string
	Err  error
}

// Outcome is the result of one guarded execution.
type Outcome struct {
	// ExitCode is the wrapped command's exit status. A command that could
	// not be launched is reported as 1.
	ExitCode int

	// Baseline holds the paths already dirty before execution. They are
	// excluded from the audit.
	Baseline []string

	// NewChanges is current minus baseline: the only delta that was audited.
	NewChanges []string

	// Accepted are the new changes covered by the allow-list.
	Accepted []string

	// Violations are the new changes outside the allow-list; each was
	// reverted (tracked) or deleted (untracked), best effort.
	Violations []string

	// RevertFailures lists violations whose repair failed. A failure on
	// one path never stops the repair of the others.
	RevertFailures []RevertFailure
}

// Logger is the subset of logging the guard needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Guard wraps command execution with a before/after working-tree audit.
type Guard struct {
	Git *gitops.Client
	Log Logger

	// Stdout and Stderr receive the wrapped command's output
	// (nil = inherit the guard process's streams).
	Stdout *os.File
	Stderr *os.File
}

// New creates a Guard using the given git client.
func New(git *gitops.Client, log Logger) *Guard {
	return &Guard{Git: git, Log: log}
}

// Run executes argv with its filesystem footprint constrained to
// allowGlobs.
//
// The returned error is non-nil only for the guard's own git failures
// (callers exit with ExitGitFailure); the wrapped command's failures are
// reported through Outcome.ExitCode. Scope violations are not errors: they
// are reverted silently and the command's exit code passes through
// unchanged.
func (g *Guard) Run(ctx context.Context, argv []string, allowGlobs []string) (*Outcome, error) {
	if len(argv) == 0 {
		return nil, errors.New("no command provided")
	}

	root, err := g.Git.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}

	baseline, err := g.Git.ChangedPaths(ctx)
	if err != nil {
		return nil, err
	}
	if len(baseline) > 0 && g.Log != nil {
		g.Log.Warnf("repo is dirty; guard audits only changes made during execution")
		g.Log.Warnf("dirty files: %v", baseline.Sorted())
	}

	exitCode := g.execute(ctx, root, argv)

	// Audit whatever state exists, even after a launch failure.
	current, err := g.Git.ChangedPaths(ctx)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		ExitCode: exitCode,
		Baseline: baseline.Sorted(),
	}

	newChanges := current.Subtract(baseline)
	outcome.NewChanges = newChanges.Sorted()
	for _, path := range outcome.NewChanges {
		if glob.MatchAny(path, allowGlobs) {
			outcome.Accepted = append(outcome.Accepted, path)
		} else {
			outcome.Violations = append(outcome.Violations, path)
		}
	}

	for _, path := range outcome.Violations {
		if err := g.revert(ctx, root, path); err != nil {
			outcome.RevertFailures = append(outcome.RevertFailures, RevertFailure{Path: path, Err: err})
			if g.Log != nil {
				g.Log.Warnf("failed to revert %s: %v", path, err)
			}
		}
	}

	if g.Log != nil {
		if len(outcome.Violations) > 0 {
			g.Log.Infof("reverted %d unauthorized file write(s)", len(outcome.Violations))
		} else {
			g.Log.Infof("no unauthorized side effects detected")
		}
	}

	return outcome, nil
}

// execute runs the wrapped command and returns its exit status. A command
// that cannot be launched is reported as exit 1.
func (g *Guard) execute(ctx context.Context, root string, argv []string) int {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = root
	if g.Stdout != nil {
		cmd.Stdout = g.Stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	if g.Stderr != nil {
		cmd.Stderr = g.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	if g.Log != nil {
		g.Log.Warnf("failed to launch command: %v", err)
	}
	return 1
}

// revert restores a tracked violation to its last-commit state, or deletes
// an untracked one from disk.
func (g *Guard) revert(ctx context.Context, root, path string) error {
	abs := filepath.Join(root, filepath.FromSlash(path))
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		// Deleted paths are restorable only when tracked.
		if g.Git.IsTracked(ctx, path) {
			return g.Git.RestorePath(ctx, path)
		}
		return nil
	}

	if g.Git.IsTracked(ctx, path) {
		if g.Log != nil {
			g.Log.Infof("reverting unauthorized modification: %s", path)
		}
		return g.Git.RestorePath(ctx, path)
	}

	if g.Log != nil {
		g.Log.Infof("deleting unauthorized new file: %s", path)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
