// Package models defines the task-definition and result records exchanged
// through the file-based work queue.
package models

import "errors"

// WorkTreeGlob always appears in a task's effective allow-list: the queue's
// own bookkeeping directory must stay writable for result records.
const WorkTreeGlob = "work/**"

// RepoSpec locates the repository a task operates on.
type RepoSpec struct {
	// Path is the repository location (usually the workspace root).
	Path string `json:"path"`

	// BaseRef is the branch the worker returns to after processing.
	BaseRef string `json:"base_ref"`

	// TargetBranch is the isolated branch the work is performed on.
	TargetBranch string `json:"target_branch"`
}

// Scope bounds the filesystem and diff-size footprint a task may have.
type Scope struct {
	// AllowedGlobs is an ordered set of shell-style path patterns the
	// task may change. Order is preserved; duplicates are dropped.
	AllowedGlobs []string `json:"allowed_globs"`

	// DenyGlobs lists patterns the dispatcher wants explicitly called
	// out as off limits (advisory; the allow-list is the enforcement).
	DenyGlobs []string `json:"deny_globs"`

	MaxFilesChanged int `json:"max_files_changed"`
	MaxAdditions    int `json:"max_additions"`
	MaxDeletions    int `json:"max_deletions"`
}

// Goal is the human-readable intent of a task.
type Goal struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	TestPlan           []string `json:"test_plan"`
}

// TaskDefinition is an immutable unit of work created by the dispatcher.
// The worker only ever reads it.
type TaskDefinition struct {
	TaskID            string   `json:"task_id"`
	Role              string   `json:"role"`
	CanonicalLanguage string   `json:"canonical_language"`
	Repo              RepoSpec `json:"repo"`
	Scope             Scope    `json:"scope"`
	Goal              Goal     `json:"goal"`
	StopConditions    []string `json:"stop_conditions"`
}

// Validate checks the fields the worker cannot proceed without.
func (t *TaskDefinition) Validate() error {
	if t.TaskID == "" {
		return errors.New("task_id is required")
	}
	if t.Repo.TargetBranch == "" {
		return errors.New("repo.target_branch is required")
	}
	return nil
}

// EffectiveAllowGlobs returns the task's allow-list with duplicates removed
// (insertion order preserved) and the work-tree glob appended exactly once.
func (t *TaskDefinition) EffectiveAllowGlobs() []string {
	allowed := make([]string, 0, len(t.Scope.AllowedGlobs)+1)
	seen := make(map[string]bool, len(t.Scope.AllowedGlobs)+1)
	for _, g := range t.Scope.AllowedGlobs {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		allowed = append(allowed, g)
	}
	if !seen[WorkTreeGlob] {
		allowed = append(allowed, WorkTreeGlob)
	}
	return allowed
}
