// Package config loads the two process-wide configuration records: the
// role record written once at onboarding and the supervisor risk/merge
// policy file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mbrennan/overseer/internal/filelock"
)

// RoleFileName is the per-clone role record written by `overseer init`.
const RoleFileName = ".agent_role.json"

// Role names accepted in the role record.
const (
	RoleSupervisor  = "supervisor"
	RoleContributor = "contributor"
)

// ErrNoRoleConfig indicates the role record is missing. Both loops treat
// this as a fatal startup error.
var ErrNoRoleConfig = errors.New("role config not found; run `overseer init` first")

// RoleConfig is the process-wide role record read by both loop roles at
// startup. It names which environment variable holds the credential; it
// never stores the credential itself.
type RoleConfig struct {
	Role          string `json:"role"`
	RepoURL       string `json:"repo_url"`
	TokenEnvVar   string `json:"token_env_var"`
	WorkspaceRoot string `json:"workspace_root"`
}

// LoadRole reads the role record from path.
// A missing file returns ErrNoRoleConfig.
func LoadRole(path string) (*RoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRoleConfig
		}
		return nil, fmt.Errorf("read role config %s: %w", path, err)
	}

	var cfg RoleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse role config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the role record atomically.
func (c *RoleConfig) Save(path string) error {
	return filelock.AtomicWriteJSON(path, c)
}

// RequireRole returns an error when the configured role differs from want.
// Running the contributor loop under a supervisor record (or vice versa)
// is a configuration mistake, not a recoverable condition.
func (c *RoleConfig) RequireRole(want string) error {
	if c.Role != want {
		return fmt.Errorf("configured role is %q, but this loop requires %q", c.Role, want)
	}
	return nil
}

// Token resolves the credential through the environment-variable
// indirection, falling back to GH_TOKEN.
func (c *RoleConfig) Token() (string, error) {
	name := c.TokenEnvVar
	if name == "" {
		name = "GITHUB_TOKEN"
	}
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	if v := os.Getenv("GH_TOKEN"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("token environment variable %q is not set", name)
}
