package worker

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// ExecHookEnvVar optionally holds a shell command template for performing
// the real work. `{task_id}` and `{task_file}` placeholders are substituted
// before execution. Without it the worker runs a built-in default action so
// the pipeline is testable with no work backend attached.
const ExecHookEnvVar = "AGENT_EXEC_CMD"

// BuildWorkCommand derives the argv for a task and a human-readable
// summary of what it does. hook is the raw template from ExecHookEnvVar
// (empty = use the default action, which deterministically writes a
// placeholder artifact named from the task id).
func BuildWorkCommand(hook, taskID, taskFile string) ([]string, string) {
	if hook != "" {
		formatted := strings.ReplaceAll(hook, "{task_id}", taskID)
		formatted = strings.ReplaceAll(formatted, "{task_file}", taskFile)
		summary := fmt.Sprintf("Executed hook command: `%s`.", formatted)
		return shellCommand(formatted, true), summary
	}

	target := fmt.Sprintf("implemented_%s.txt", taskID)
	var script string
	if runtime.GOOS == "windows" {
		script = fmt.Sprintf("echo Implemented %s > %s", taskID, target)
	} else {
		script = fmt.Sprintf("printf 'Implemented %%s\\n' %s > %s",
			shellQuote(taskID), shellQuote(target))
	}
	summary := fmt.Sprintf("Created placeholder artifact `%s`.", target)
	return shellCommand(script, false), summary
}

// shellCommand wraps a script for the platform shell. Hooks get a login
// shell so user PATH setup applies.
func shellCommand(script string, login bool) []string {
	if runtime.GOOS == "windows" {
		comspec := os.Getenv("COMSPEC")
		if comspec == "" {
			comspec = "cmd.exe"
		}
		return []string{comspec, "/d", "/s", "/c", script}
	}
	flag := "-c"
	if login {
		flag = "-lc"
	}
	return []string{"/bin/sh", flag, script}
}

// shellQuote single-quotes s for safe interpolation into a shell script.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
