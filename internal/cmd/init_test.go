package cmd

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbrennan/overseer/internal/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatal(err)
		}
	})
}

func runInit(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"init", "--log-level", "error"}, args...))
	return cmd.Execute()
}

func TestInitWritesRoleRecord(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, runInit(t, "--role", "contributor", "--repo", "owner/repo", "--token-env", "MY_TOKEN"))

	rc, err := config.LoadRole(config.RoleFileName)
	require.NoError(t, err)
	assert.Equal(t, config.RoleContributor, rc.Role)
	assert.Equal(t, "owner/repo", rc.RepoURL)
	assert.Equal(t, "MY_TOKEN", rc.TokenEnvVar)
	assert.NotEmpty(t, rc.WorkspaceRoot)
}

func TestInitRejectsUnknownRole(t *testing.T) {
	chdir(t, t.TempDir())
	assert.Error(t, runInit(t, "--role", "manager"))
	assert.Error(t, runInit(t), "role is required")
}

func TestInitRefusesOverwriteWithoutForce(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, runInit(t, "--role", "supervisor", "--repo", "owner/repo"))
	assert.Error(t, runInit(t, "--role", "contributor", "--repo", "owner/repo"))

	require.NoError(t, runInit(t, "--role", "contributor", "--repo", "owner/repo", "--force"))
	rc, err := config.LoadRole(config.RoleFileName)
	require.NoError(t, err)
	assert.Equal(t, config.RoleContributor, rc.Role)
}

func TestDefaultTokenEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "x")
	t.Setenv("GH_TOKEN", "y")
	assert.Equal(t, "GITHUB_TOKEN", defaultTokenEnv())
}

func TestSplitGlobs(t *testing.T) {
	assert.Equal(t, []string{"src/**", "README.md"}, splitGlobs("src/**, README.md"))
	assert.Nil(t, splitGlobs(""))
	assert.Nil(t, splitGlobs(" , "))
}
