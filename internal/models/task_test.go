package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveAllowGlobsAppendsWorkTree(t *testing.T) {
	task := TaskDefinition{
		Scope: Scope{AllowedGlobs: []string{"src/**", "README.md"}},
	}
	assert.Equal(t, []string{"src/**", "README.md", "work/**"}, task.EffectiveAllowGlobs())
}

func TestEffectiveAllowGlobsDedupesPreservingOrder(t *testing.T) {
	task := TaskDefinition{
		Scope: Scope{AllowedGlobs: []string{"docs/**", "src/**", "docs/**", ""}},
	}
	assert.Equal(t, []string{"docs/**", "src/**", "work/**"}, task.EffectiveAllowGlobs())
}

func TestEffectiveAllowGlobsWorkTreeAppearsOnce(t *testing.T) {
	task := TaskDefinition{
		Scope: Scope{AllowedGlobs: []string{"work/**", "src/**"}},
	}
	globs := task.EffectiveAllowGlobs()
	assert.Equal(t, []string{"work/**", "src/**"}, globs)

	count := 0
	for _, g := range globs {
		if g == WorkTreeGlob {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEffectiveAllowGlobsEmptyScope(t *testing.T) {
	task := TaskDefinition{}
	assert.Equal(t, []string{"work/**"}, task.EffectiveAllowGlobs())
}

func TestValidate(t *testing.T) {
	task := TaskDefinition{
		TaskID: "issue-101",
		Repo:   RepoSpec{TargetBranch: "worker/issue-101"},
	}
	assert.NoError(t, task.Validate())

	assert.Error(t, (&TaskDefinition{Repo: RepoSpec{TargetBranch: "b"}}).Validate())
	assert.Error(t, (&TaskDefinition{TaskID: "x"}).Validate())
}

func TestTaskDefinitionWireFormat(t *testing.T) {
	raw := `{
		"task_id": "issue-101",
		"role": "worker",
		"canonical_language": "en",
		"repo": {"path": ".", "base_ref": "main", "target_branch": "worker/issue-101"},
		"scope": {
			"allowed_globs": ["**/*"],
			"deny_globs": [".github/workflows/**"],
			"max_files_changed": 10,
			"max_additions": 1000,
			"max_deletions": 1000
		},
		"goal": {
			"title": "Update README with new architecture",
			"description": "Please add the dual-mode architecture description.",
			"acceptance_criteria": ["Check PR description"],
			"test_plan": ["echo 'No automatic tests defined yet'"]
		},
		"stop_conditions": ["security-sensitive", "secrets-required"]
	}`

	var task TaskDefinition
	require.NoError(t, json.Unmarshal([]byte(raw), &task))

	assert.Equal(t, "issue-101", task.TaskID)
	assert.Equal(t, "main", task.Repo.BaseRef)
	assert.Equal(t, "worker/issue-101", task.Repo.TargetBranch)
	assert.Equal(t, []string{"**/*"}, task.Scope.AllowedGlobs)
	assert.Equal(t, 10, task.Scope.MaxFilesChanged)
	assert.Equal(t, "Update README with new architecture", task.Goal.Title)
	assert.Contains(t, task.StopConditions, "security-sensitive")
}
