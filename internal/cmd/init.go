package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/gitops"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the role record for this clone",
		Long: `Write the role record (` + config.RoleFileName + `) that both loops read at
startup. The record names the clone's role, the repository it belongs to,
and which environment variable holds the access token. The token itself is
never stored.

Examples:
  overseer init --role contributor
  overseer init --role supervisor --repo owner/name --token-env MY_TOKEN`,
		Args: cobra.NoArgs,
		RunE: initCommand,
	}

	cmd.Flags().String("role", "", "Role for this clone: supervisor or contributor (required)")
	cmd.Flags().String("repo", "", "Repository URL (default: the origin remote)")
	cmd.Flags().String("token-env", "", "Token environment variable (default: GITHUB_TOKEN, or GH_TOKEN when only that is set)")
	cmd.Flags().Bool("force", false, "Overwrite an existing role record")

	return cmd
}

func initCommand(cmd *cobra.Command, _ []string) error {
	role, _ := cmd.Flags().GetString("role")
	if role != config.RoleSupervisor && role != config.RoleContributor {
		return fmt.Errorf("--role must be %q or %q", config.RoleSupervisor, config.RoleContributor)
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(config.RoleFileName); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to overwrite", config.RoleFileName)
	}

	repo, _ := cmd.Flags().GetString("repo")
	if repo == "" {
		repo = gitops.NewClient(".").RemoteURL(cmd.Context(), "origin")
	}

	tokenEnv, _ := cmd.Flags().GetString("token-env")
	if tokenEnv == "" {
		tokenEnv = defaultTokenEnv()
	}

	workspace, err := os.Getwd()
	if err != nil {
		return err
	}

	rc := &config.RoleConfig{
		Role:          role,
		RepoURL:       repo,
		TokenEnvVar:   tokenEnv,
		WorkspaceRoot: workspace,
	}
	if err := rc.Save(config.RoleFileName); err != nil {
		return fmt.Errorf("write role record: %w", err)
	}

	log := newLogger(cmd)
	log.Infof("configuration saved to %s (role: %s)", config.RoleFileName, role)
	if role == config.RoleSupervisor {
		log.Infof("next: overseer dispatch --input <backlog file>")
	} else {
		log.Infof("next: overseer worker")
	}
	return nil
}

// defaultTokenEnv prefers GITHUB_TOKEN but falls back to GH_TOKEN when
// only that one is set in the environment.
func defaultTokenEnv() string {
	if _, gh := os.LookupEnv("GH_TOKEN"); gh {
		if _, github := os.LookupEnv("GITHUB_TOKEN"); !github {
			return "GH_TOKEN"
		}
	}
	return "GITHUB_TOKEN"
}
