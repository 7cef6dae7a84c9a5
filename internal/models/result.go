package models

// Terminal task statuses recorded in a result record.
const (
	// StatusOK means authorized changes were committed.
	StatusOK = "ok"

	// StatusNoChange means the command ran but nothing remained to
	// commit, either because it produced no tracked changes or because
	// everything it produced was reverted as unauthorized.
	StatusNoChange = "no-change"

	// StatusBlocked means the scope guard reported a failing command or
	// its git preconditions failed.
	StatusBlocked = "blocked"
)

// ResultRecord marks a task as handled. Its presence in the results
// location, not its content, is what prevents re-dispatch.
type ResultRecord struct {
	TaskID       string   `json:"task_id"`
	Status       string   `json:"status"`
	ChangedFiles []string `json:"changed_files"`
}
