package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/dispatch"
	"github.com/mbrennan/overseer/internal/queue"
)

// NewDispatchCommand creates the dispatch command
func NewDispatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Turn a backlog file into task definitions",
		Long: `Read a local backlog file and write one immutable task definition per
entry onto the work queue. Entries that already have a definition or a
result record are skipped, so re-dispatching the same backlog is safe.

The backlog is markdown (one task per "## Title" heading) or JSON (a list
of {"title", "body", "labels"} objects, optionally under a "tasks" key).
An "Allowed paths: a, b" line in a task body restricts its scope; so do
backticked paths in the title.

Examples:
  overseer dispatch --input backlog.md
  overseer dispatch --input backlog.md --loop --interval 30s`,
		Args: cobra.NoArgs,
		RunE: dispatchCommand,
	}

	cmd.Flags().StringP("input", "i", "", "Backlog file, markdown or JSON (required)")
	cmd.Flags().String("work-dir", "work", "Work queue directory")
	cmd.Flags().String("base", "", "Base ref for generated tasks (default: main)")
	cmd.Flags().Bool("loop", false, "Keep polling the backlog instead of dispatching once")
	cmd.Flags().Duration("interval", dispatch.DefaultPollInterval, "Sleep between backlog polls in loop mode")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func dispatchCommand(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd)

	role, err := config.LoadRole(config.RoleFileName)
	if err != nil {
		return err
	}
	if err := role.RequireRole(config.RoleSupervisor); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	workDir, _ := cmd.Flags().GetString("work-dir")
	base, _ := cmd.Flags().GetString("base")
	loop, _ := cmd.Flags().GetBool("loop")
	interval, _ := cmd.Flags().GetDuration("interval")

	d := &dispatch.Dispatcher{
		Queue:         queue.New(workDir),
		Log:           log,
		WorkspaceRoot: role.WorkspaceRoot,
		BaseRef:       base,
		Interval:      interval,
	}

	if loop {
		ctx, stop := signalContext()
		defer stop()
		return d.Run(ctx, input)
	}

	if err := d.Queue.EnsureDirs(); err != nil {
		return err
	}
	written, err := d.DispatchFile(input)
	if err != nil {
		return err
	}
	log.Infof("dispatched %d new task(s)", written)
	return nil
}
