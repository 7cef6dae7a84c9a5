package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbrennan/overseer/internal/config"
	"github.com/mbrennan/overseer/internal/dispatch"
	"github.com/mbrennan/overseer/internal/gitops"
	"github.com/mbrennan/overseer/internal/packet"
	"github.com/mbrennan/overseer/internal/queue"
)

// NewPacketCommand creates the packet command
func NewPacketCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packet",
		Short: "Generate the review packet from completed tasks",
		Long: `Summarize every completed task into a markdown review packet: status,
committed diff stats, a rule-based risk level with its reasons, and a
recommended review order (lowest risk and smallest diff first).

Example:
  overseer packet --out docs/REVIEW_PACKET.md`,
		Args: cobra.NoArgs,
		RunE: packetCommand,
	}

	cmd.Flags().String("out", "docs/REVIEW_PACKET.md", "Output markdown path")
	cmd.Flags().String("work-dir", "work", "Work queue directory")
	cmd.Flags().String("base", "", "Base ref for branch diffs (default: each task's base_ref)")

	return cmd
}

func packetCommand(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd)

	role, err := config.LoadRole(config.RoleFileName)
	if err != nil {
		return err
	}
	if err := role.RequireRole(config.RoleSupervisor); err != nil {
		return err
	}

	riskCfg, err := config.LoadRiskConfig(config.RiskConfigFileName)
	if err != nil {
		return err
	}

	workDir, _ := cmd.Flags().GetString("work-dir")
	out, _ := cmd.Flags().GetString("out")
	base, _ := cmd.Flags().GetString("base")

	b := &packet.Builder{
		Queue:   queue.New(workDir),
		Git:     gitops.NewClient("."),
		Risk:    riskCfg,
		BaseRef: base,
	}

	items, err := b.Build(cmd.Context())
	if err != nil {
		return err
	}

	label := role.WorkspaceRoot
	if owner, name, err := dispatch.ParseOwnerRepo(role.RepoURL); err == nil {
		label = owner + "/" + name
	}

	if err := packet.WritePacket(out, label, items, time.Now()); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	log.Infof("wrote %s (%d tasks)", out, len(items))
	return nil
}
