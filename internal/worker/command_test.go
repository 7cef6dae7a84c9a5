package worker

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell assertions")
	}
}

func TestBuildWorkCommandHookSubstitution(t *testing.T) {
	skipOnWindows(t)

	argv, summary := BuildWorkCommand(
		"agent run {task_id} --task-file {task_file}",
		"issue-42", "/work/requests/issue-42.json")

	assert.Equal(t, []string{
		"/bin/sh", "-lc",
		"agent run issue-42 --task-file /work/requests/issue-42.json",
	}, argv)
	assert.Equal(t,
		"Executed hook command: `agent run issue-42 --task-file /work/requests/issue-42.json`.",
		summary)
}

func TestBuildWorkCommandHookWithoutPlaceholders(t *testing.T) {
	skipOnWindows(t)

	argv, _ := BuildWorkCommand("make lint", "t1", "f1")
	assert.Equal(t, []string{"/bin/sh", "-lc", "make lint"}, argv)
}

func TestBuildWorkCommandDefaultAction(t *testing.T) {
	skipOnWindows(t)

	argv, summary := BuildWorkCommand("", "issue-7", "ignored")

	assert.Equal(t, []string{
		"/bin/sh", "-c",
		`printf 'Implemented %s\n' 'issue-7' > 'implemented_issue-7.txt'`,
	}, argv)
	assert.Equal(t, "Created placeholder artifact `implemented_issue-7.txt`.", summary)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
