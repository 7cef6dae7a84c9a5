// Package cmd wires the pipeline's building blocks into the overseer CLI.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mbrennan/overseer/internal/logger"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for overseer
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overseer",
		Short: "Sandboxed task pipeline for autonomous workers",
		Long: `Overseer runs a file-based task pipeline for autonomous workers inside
a single repository clone.

A supervisor turns a backlog into immutable task definitions on the work
queue. A contributor picks each task up on an isolated branch, executes
the configured work command under a git-diff scope guard that reverts any
write outside the task's allow-list, and records the outcome. Completed
work is summarized into a review packet with a rule-based risk level per
change.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewWorkerCommand())
	cmd.AddCommand(NewDispatchCommand())
	cmd.AddCommand(NewGuardCommand())
	cmd.AddCommand(NewPacketCommand())

	return cmd
}

// newLogger builds the console logger from the persistent log-level flag.
func newLogger(cmd *cobra.Command) *logger.Console {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.NewConsole(os.Stderr, level)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
