// Package gitops queries and mutates working-tree state through the git
// command line. It is the single source of truth for "what changed" used by
// the scope guard, the worker loop, and the review packet.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotARepository indicates the working directory is not inside a git
// work tree. Callers treat this as a fatal environment error.
var ErrNotARepository = errors.New("not inside a git repository")

// ErrNothingToCommit indicates a commit was requested with no staged
// changes. The worker loop maps this to a no-change result.
var ErrNothingToCommit = errors.New("nothing to commit")

// FileStat describes per-file diff size between two refs.
type FileStat struct {
	Path      string
	Additions int
	Deletions int
}

// Client wraps git operations for a single repository clone.
type Client struct {
	// Runner executes git commands (nil = real exec in the current dir).
	Runner CommandRunner
}

// NewClient creates a Client running real git commands in workDir
// (empty = current directory).
func NewClient(workDir string) *Client {
	return &Client{Runner: NewExecRunner(workDir)}
}

// NewClientWithRunner creates a Client with a custom runner. Useful for
// testing.
func NewClientWithRunner(runner CommandRunner) *Client {
	return &Client{Runner: runner}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	runner := c.Runner
	if runner == nil {
		runner = NewExecRunner("")
	}
	output, err := runner.Run(ctx, "git", args...)
	if err != nil {
		return output, fmt.Errorf("git %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(output))
	}
	return output, nil
}

// RepoRoot returns the absolute path of the repository root.
// Returns ErrNotARepository when the current directory is not a work tree.
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotARepository, err)
	}
	return strings.TrimSpace(output), nil
}

// ChangedPaths returns the set of paths currently added, modified, deleted,
// or renamed in the working tree, relative to the repo root. For renames
// only the destination path is reported.
func (c *Client) ChangedPaths(ctx context.Context) (StatusSet, error) {
	output, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(output), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// CheckoutNew creates-or-resets branch at the current state and switches to
// it (git checkout -B). An existing branch is reused at its tip.
func (c *Client) CheckoutNew(ctx context.Context, branch string) error {
	if branch == "" {
		return errors.New("branch name cannot be empty")
	}
	_, err := c.run(ctx, "checkout", "-B", branch)
	return err
}

// Checkout switches to an existing branch or ref.
func (c *Client) Checkout(ctx context.Context, ref string) error {
	if ref == "" {
		return errors.New("ref cannot be empty")
	}
	_, err := c.run(ctx, "checkout", ref)
	return err
}

// IsTracked reports whether path is known to the index.
func (c *Client) IsTracked(ctx context.Context, path string) bool {
	_, err := c.run(ctx, "ls-files", "--error-unmatch", "--", path)
	return err == nil
}

// RestorePath restores a tracked path in both the index and the working
// copy to its last-commit state.
func (c *Client) RestorePath(ctx context.Context, path string) error {
	_, err := c.run(ctx, "restore", "--staged", "--worktree", "--", path)
	return err
}

// StageAll stages every change in the working tree (git add -A).
func (c *Client) StageAll(ctx context.Context) error {
	_, err := c.run(ctx, "add", "-A")
	return err
}

// StagePaths stages only the named paths, deletions included. A no-op for
// an empty list.
func (c *Client) StagePaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := c.run(ctx, args...)
	return err
}

// Commit records the staged changes with the given message.
// Returns ErrNothingToCommit when the index is clean.
func (c *Client) Commit(ctx context.Context, message string) error {
	output, err := c.run(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(output, "nothing to commit") ||
			strings.Contains(output, "nothing added to commit") {
			return ErrNothingToCommit
		}
		return err
	}
	return nil
}

// RemoteURL returns the fetch URL of the named remote, or "" when the
// remote does not exist.
func (c *Client) RemoteURL(ctx context.Context, remote string) string {
	output, err := c.run(ctx, "remote", "get-url", remote)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(output)
}

// DiffNumStat returns per-file addition/deletion counts between two refs
// (git diff --numstat base..ref). Binary files report zero for both.
func (c *Client) DiffNumStat(ctx context.Context, base, ref string) ([]FileStat, error) {
	output, err := c.run(ctx, "diff", "--numstat", base+".."+ref)
	if err != nil {
		return nil, err
	}

	var stats []FileStat
	for _, line := range strings.Split(output, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), "\t", 3)
		if len(fields) != 3 || fields[2] == "" {
			continue
		}
		stats = append(stats, FileStat{
			Path:      unquotePath(fields[2]),
			Additions: atoiOrZero(fields[0]),
			Deletions: atoiOrZero(fields[1]),
		})
	}
	return stats, nil
}

// atoiOrZero parses a numstat count; git emits "-" for binary files.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
