package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/guard"
	"github.com/mbrennan/overseer/internal/history"
	"github.com/mbrennan/overseer/internal/queue"
	"github.com/mbrennan/overseer/internal/worker"
)

// NewWorkerCommand creates the worker command
func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the contributor loop",
		Long: `Run the contributor loop: poll the work queue for unclaimed task
definitions and process each one on an isolated branch under the scope
guard.

The loop requires a contributor role record (see overseer init) and an
exclusive lease on the clone; a second worker against the same work
directory refuses to start while the lease is live. Set ` + worker.ExecHookEnvVar + `
to a shell command template ({task_id} and {task_file} are substituted)
to plug in a real work backend.`,
		Args: cobra.NoArgs,
		RunE: workerCommand,
	}

	cmd.Flags().String("work-dir", "work", "Work queue directory")
	cmd.Flags().Duration("interval", worker.DefaultPollInterval, "Sleep between queue polls")
	cmd.Flags().String("history", "", "History database path (default: <work-dir>/history.db)")

	return cmd
}

func workerCommand(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd)

	role, err := config.LoadRole(config.RoleFileName)
	if err != nil {
		return err
	}
	if err := role.RequireRole(config.RoleContributor); err != nil {
		return err
	}

	workDir, _ := cmd.Flags().GetString("work-dir")
	interval, _ := cmd.Flags().GetDuration("interval")

	q := queue.New(workDir)
	if err := q.EnsureDirs(); err != nil {
		return err
	}

	lease, err := queue.AcquireLease(filepath.Join(workDir, queue.LeaseFileName), queue.DefaultLeaseTTL)
	if err != nil {
		if errors.Is(err, queue.ErrLeaseHeld) {
			return fmt.Errorf("another worker holds the lease on %s: %w", workDir, err)
		}
		return fmt.Errorf("acquire worker lease: %w", err)
	}
	defer func() {
		if err := lease.Release(); err != nil {
			log.Warnf("release worker lease: %v", err)
		}
	}()

	riskCfg, err := config.LoadRiskConfig(config.RiskConfigFileName)
	if err != nil {
		return err
	}

	var store *history.Store
	historyPath, _ := cmd.Flags().GetString("history")
	if historyPath == "" {
		historyPath = filepath.Join(workDir, "history.db")
	}
	store, err = history.NewStore(historyPath)
	if err != nil {
		log.Warnf("history store unavailable: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	git := gitops.NewClient(".")
	loop := &worker.Loop{
		Queue:      q,
		Git:        git,
		Guard:      guard.New(git, log),
		Log:        log,
		Lease:      lease,
		History:    store,
		RiskConfig: riskCfg,
		ExecHook:   os.Getenv(worker.ExecHookEnvVar),
		Interval:   interval,
	}

	ctx, stop := signalContext()
	defer stop()
	return loop.Run(ctx)
}
