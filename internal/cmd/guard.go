package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/guard"
	"github.com/mbrennan/overseer/internal/logger"
)

// NewGuardCommand creates the guard command
func NewGuardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard --allow \"glob1,glob2\" -- command [args...]",
		Short: "Run a command with its writes constrained to an allow-list",
		Long: `Run a command and audit its filesystem footprint against the repository's
tracked state. Any file the command adds, modifies, or deletes that does
not match the allow-list is reverted: tracked files are restored from the
last commit, untracked files are deleted.

The wrapped command's exit code passes through unchanged; scope
violations are reverted silently without failing the command. Exit code
128 is reserved for the guard's own git failures.

Examples:
  overseer guard --allow "src/**,README.md" -- make generate
  overseer guard --allow "docs/**" -- sh -c 'echo note >> docs/NOTES.md'`,
		Args: cobra.MinimumNArgs(1),
		RunE: guardCommand,
	}

	cmd.Flags().String("allow", "", "Comma-separated allow-list of shell globs")

	return cmd
}

func guardCommand(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd)
	allow, _ := cmd.Flags().GetString("allow")

	g := guard.New(gitops.NewClient("."), log)
	os.Exit(runGuard(cmd.Context(), g, log, args, splitGlobs(allow)))
	return nil
}

// runGuard executes the guarded command and maps the outcome to the
// process exit code.
func runGuard(ctx context.Context, g *guard.Guard, log *logger.Console, argv, allow []string) int {
	outcome, err := g.Run(ctx, argv, allow)
	if err != nil {
		if errors.Is(err, gitops.ErrNotARepository) {
			log.Errorf("not inside a git repository")
		} else {
			log.Errorf("scope guard: %v", err)
		}
		return guard.ExitGitFailure
	}

	for _, rf := range outcome.RevertFailures {
		log.Errorf("could not revert %s: %v", rf.Path, rf.Err)
	}
	return outcome.ExitCode
}

// splitGlobs parses the comma-separated allow flag, dropping empty parts.
func splitGlobs(s string) []string {
	var globs []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			globs = append(globs, p)
		}
	}
	return globs
}
