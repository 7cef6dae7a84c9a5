package worker

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/guard"
	"github.com/mbrennan/overseer/internal/logger"
	"github.com/mbrennan/overseer/internal/models"
	"github.com/mbrennan/overseer/internal/queue"
)

// initTestRepo creates a committed git repository with a README and returns
// its path. Skips the test when git (or a posix shell) is unavailable.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell fixtures")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	git := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	git("init", "-b", "main")
	git("config", "user.email", "test@example.com")
	git("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# repo\n"), 0o644))
	git("add", "-A")
	git("commit", "-m", "initial")
	return dir
}

func newTestLoop(t *testing.T, dir, execHook string) *Loop {
	t.Helper()
	git := gitops.NewClient(dir)
	log := logger.NewConsole(io.Discard, "error")

	g := guard.New(git, log)
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })
	g.Stdout, g.Stderr = devNull, devNull

	return &Loop{
		Queue:    queue.New(filepath.Join(dir, "work")),
		Git:      git,
		Guard:    g,
		Log:      log,
		ExecHook: execHook,
	}
}

func testTask(id string, allowed ...string) *models.TaskDefinition {
	return &models.TaskDefinition{
		TaskID: id,
		Role:   "contributor",
		Repo: models.RepoSpec{
			Path:         ".",
			BaseRef:      "main",
			TargetBranch: "task/" + id,
		},
		Scope: models.Scope{AllowedGlobs: allowed},
		Goal:  models.Goal{Title: "test task " + id},
	}
}

// The built-in default action writes its artifact at the repository root,
// which is outside the allow-list, so the guard reverts it and the task
// completes with a no-change result and a clean working tree.
func TestLoopDefaultActionRevertedToNoChange(t *testing.T) {
	dir := initTestRepo(t)
	l := newTestLoop(t, dir, "")
	require.NoError(t, l.Queue.EnsureDirs())
	require.NoError(t, l.Queue.WriteDefinition(testTask("issue-101", "README.md")))

	require.NoError(t, l.RunOnce(context.Background()))

	res, err := l.Queue.ReadResult("issue-101")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoChange, res.Status)
	assert.Empty(t, res.ChangedFiles)

	_, statErr := os.Stat(filepath.Join(dir, "implemented_issue-101.txt"))
	assert.True(t, os.IsNotExist(statErr), "placeholder artifact must be reverted")

	branch, err := l.Git.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch, "worker must return to the base branch")
}

// A hook that writes inside the allow-list produces an ok result, a commit
// on the isolated task branch, and an untouched base branch.
func TestLoopHookCommitsOnTaskBranch(t *testing.T) {
	dir := initTestRepo(t)
	l := newTestLoop(t, dir, `printf 'done for {task_id}\n' >> README.md`)
	require.NoError(t, l.Queue.EnsureDirs())
	require.NoError(t, l.Queue.WriteDefinition(testTask("issue-200", "README.md")))

	require.NoError(t, l.RunOnce(context.Background()))

	res, err := l.Queue.ReadResult("issue-200")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, res.Status)
	assert.Equal(t, []string{"README.md"}, res.ChangedFiles)

	branch, err := l.Git.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# repo\n", string(data), "base branch must stay untouched")

	cmd := exec.Command("git", "log", "--format=%s", "task/issue-200")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "feat: implemented issue-200")

	// The queue's own files never end up in the commit.
	cmd = exec.Command("git", "show", "--stat", "--format=", "task/issue-200")
	cmd.Dir = dir
	out, err = cmd.Output()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "work/")
}

// One task failing its work command does not stop the rest of the cycle,
// and each task still gets its own result record.
func TestLoopTaskFailureIsolated(t *testing.T) {
	dir := initTestRepo(t)
	l := newTestLoop(t, dir,
		`test {task_id} != a-bad && printf 'ok\n' >> README.md`)
	require.NoError(t, l.Queue.EnsureDirs())
	require.NoError(t, l.Queue.WriteDefinition(testTask("a-bad", "README.md")))
	require.NoError(t, l.Queue.WriteDefinition(testTask("b-good", "README.md")))

	require.NoError(t, l.RunOnce(context.Background()))

	bad, err := l.Queue.ReadResult("a-bad")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, bad.Status)

	good, err := l.Queue.ReadResult("b-good")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, good.Status)
}

// Tasks with a result record are never picked up again.
func TestLoopSecondCycleIsIdle(t *testing.T) {
	dir := initTestRepo(t)
	l := newTestLoop(t, dir, "")
	require.NoError(t, l.Queue.EnsureDirs())
	require.NoError(t, l.Queue.WriteDefinition(testTask("issue-300", "README.md")))

	require.NoError(t, l.RunOnce(context.Background()))
	pending, err := l.Queue.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
