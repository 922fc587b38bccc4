package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/pkg/output"
	"github.com/sdejongh/skiff/pkg/sync"
)

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [profile]",
		Short: "Show what a sync would do without doing it",
		Long: `Compare the local and remote trees and print the resulting action
plan. Nothing is transferred or deleted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPlan,
	}

	// Same selection flags as sync
	addSyncFlags(cmd)

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	profile, site, _, err := resolveSyncProfile(cmd, args, store)
	if err != nil {
		return err
	}
	profile.DryRun = true

	if err := ensureLocalDir(profile.LocalPath, syncFlags.CreateLocal); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	sess, err := connectSession(ctx, site, sessionOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	engine := sync.NewEngine(logger)
	actions, err := engine.Compare(ctx, profile, sess)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if syncFlags.JSON || cfg.Output.Format == "json" {
		return output.WritePlanJSON(os.Stdout, actions)
	}
	return output.NewHumanFormatter(os.Stdout).PlanComputed(actions)
}
