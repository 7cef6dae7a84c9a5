package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRoleMissingFile(t *testing.T) {
	_, err := LoadRole(filepath.Join(t.TempDir(), RoleFileName))
	assert.ErrorIs(t, err, ErrNoRoleConfig)
}

func TestRoleSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), RoleFileName)

	saved := &RoleConfig{
		Role:          RoleContributor,
		RepoURL:       "https://github.com/owner/repo",
		TokenEnvVar:   "GITHUB_TOKEN",
		WorkspaceRoot: "/srv/clone",
	}
	require.NoError(t, saved.Save(path))

	loaded, err := LoadRole(path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestRoleWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), RoleFileName)
	raw := `{
		"role": "supervisor",
		"repo_url": "git@github.com:owner/repo.git",
		"token_env_var": "GH_TOKEN",
		"workspace_root": "/work"
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadRole(path)
	require.NoError(t, err)
	assert.Equal(t, RoleSupervisor, cfg.Role)
	assert.Equal(t, "GH_TOKEN", cfg.TokenEnvVar)
}

func TestRequireRole(t *testing.T) {
	cfg := &RoleConfig{Role: RoleSupervisor}
	assert.NoError(t, cfg.RequireRole(RoleSupervisor))
	assert.Error(t, cfg.RequireRole(RoleContributor))
}

func TestTokenIndirection(t *testing.T) {
	t.Setenv("OVERSEER_TEST_TOKEN", "secret")
	t.Setenv("GH_TOKEN", "")

	cfg := &RoleConfig{TokenEnvVar: "OVERSEER_TEST_TOKEN"}
	token, err := cfg.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

func TestTokenFallsBackToGHToken(t *testing.T) {
	t.Setenv("OVERSEER_TEST_TOKEN", "")
	t.Setenv("GH_TOKEN", "fallback")

	cfg := &RoleConfig{TokenEnvVar: "OVERSEER_TEST_TOKEN"}
	token, err := cfg.Token()
	require.NoError(t, err)
	assert.Equal(t, "fallback", token)
}

func TestTokenMissing(t *testing.T) {
	t.Setenv("OVERSEER_TEST_TOKEN", "")
	t.Setenv("GH_TOKEN", "")

	cfg := &RoleConfig{TokenEnvVar: "OVERSEER_TEST_TOKEN"}
	_, err := cfg.Token()
	assert.Error(t, err)
}

func TestLoadRiskConfigDefaults(t *testing.T) {
	cfg, err := LoadRiskConfig(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.NoError(t, err)

	assert.Equal(t, MergeModeAuto, cfg.MergeMode)
	assert.Contains(t, cfg.AutoMergeLevels, "L0")
	assert.Equal(t, 20, cfg.MaxFilesChanged)
	assert.Contains(t, cfg.BlockLabels, "needs-human")
	assert.Contains(t, cfg.ProtectedPaths, "**/*lock*")
}

// The predecessor of this loader was a hand-rolled parser tolerant of
// comments and both list styles. Those inputs are kept here as acceptance
// fixtures for the YAML loader.
func TestLoadRiskConfigInlineComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"merge_mode: recommend_only  # override\n"+
			"max_files_changed: 10\n"), 0o644))

	cfg, err := LoadRiskConfig(path)
	require.NoError(t, err)
	assert.Equal(t, MergeModeRecommend, cfg.MergeMode)
	assert.Equal(t, 10, cfg.MaxFilesChanged)
}

func TestLoadRiskConfigBlockList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"protected_paths:\n"+
			"  - \"src/secret/**\"\n"+
			"  - \"keys/**\"\n"), 0o644))

	cfg, err := LoadRiskConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/secret/**", "keys/**"}, cfg.ProtectedPaths)
}

func TestLoadRiskConfigInlineList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(path, []byte(`auto_merge_levels: ["L0"]`+"\n"), 0o644))

	cfg, err := LoadRiskConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"L0"}, cfg.AutoMergeLevels)
}

func TestLoadRiskConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(path, []byte("merge_mode: [unclosed\n"), 0o644))

	_, err := LoadRiskConfig(path)
	assert.Error(t, err)
}

func TestDefaultsPreservedForAbsentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	require.NoError(t, os.WriteFile(path, []byte("max_additions: 50\n"), 0o644))

	cfg, err := LoadRiskConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxAdditions)
	assert.Equal(t, 500, cfg.MaxDeletions)
	assert.Equal(t, []string{"do-not-merge", "WIP", "blocked", "needs-human"}, cfg.BlockLabels)
}
