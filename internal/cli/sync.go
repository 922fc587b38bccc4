package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/config"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/output"
	"github.com/sdejongh/skiff/pkg/sync"
)

// SyncFlags holds the flags shared by the sync and plan commands
type SyncFlags struct {
	Site        string
	Local       string
	Remote      string
	Mode        string
	DryRun      bool
	DeleteExtra bool
	Include     []string
	Exclude     []string
	JSON        bool
	CreateLocal bool
	Bandwidth   string

	Report       string
	ReportFormat string
}

var syncFlags SyncFlags

// NewSyncCommand creates the sync command
func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [profile]",
		Short: "Synchronize a local folder with a remote one",
		Long: `Synchronize folders by saved profile name, or ad hoc with --site,
--local and --remote. The comparison plans the work first, then the
plan runs action by action.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSync,
	}

	addSyncFlags(cmd)
	cmd.Flags().BoolVar(&syncFlags.DryRun, "dry-run", false, "plan only, change nothing")
	cmd.Flags().StringVarP(&syncFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit, e.g. 500K or 10M")
	cmd.Flags().StringVar(&syncFlags.Report, "report", "", "write a report of the run to this file")
	cmd.Flags().StringVar(&syncFlags.ReportFormat, "report-format", "human", "report format: human, json")

	return cmd
}

// addSyncFlags registers the flags the sync and plan commands share
func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&syncFlags.Site, "site", "", "site name, id or URL for an ad hoc sync")
	cmd.Flags().StringVar(&syncFlags.Local, "local", "", "local directory for an ad hoc sync")
	cmd.Flags().StringVar(&syncFlags.Remote, "remote", "", "remote directory for an ad hoc sync")
	cmd.Flags().StringVarP(&syncFlags.Mode, "mode", "m", "", "sync mode: mirror, bidirectional, upload_only, download_only")
	cmd.Flags().StringSliceVar(&syncFlags.Include, "include", nil, "glob patterns to include")
	cmd.Flags().StringSliceVar(&syncFlags.Exclude, "exclude", nil, "glob patterns to exclude")
	cmd.Flags().BoolVar(&syncFlags.DeleteExtra, "delete-extra", false, "delete files the source side no longer has")
	cmd.Flags().BoolVar(&syncFlags.JSON, "json", false, "machine-readable JSON output")
	cmd.Flags().BoolVar(&syncFlags.CreateLocal, "create-local", false, "create the local directory if it doesn't exist")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyTransferFlags(cfg, syncFlags.Bandwidth, 0); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	profile, site, stored, err := resolveSyncProfile(cmd, args, store)
	if err != nil {
		return err
	}
	if err := ensureLocalDir(profile.LocalPath, syncFlags.CreateLocal); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	formatter := pickFormatter(cfg)

	sess, err := connectSession(ctx, site, sessionOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	engine := sync.NewEngine(logger)
	engine.SetFormatter(formatter)

	actions, err := engine.Compare(ctx, profile, sess)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}
	formatter.PlanComputed(actions)

	result, err := engine.Execute(ctx, profile, sess, actions)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	formatter.Summary(result)

	if stored && !profile.DryRun {
		now := time.Now()
		profile.LastSync = &now
		if err := store.UpdateProfile(profile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record last sync time: %v\n", err)
		}
	}

	if syncFlags.Report != "" {
		if err := output.WriteReport(result, platform.ExpandUser(syncFlags.Report), syncFlags.ReportFormat); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if result.ErrorCount() > 0 {
		return fmt.Errorf("%d of %d actions failed", result.ErrorCount(), len(result.Planned))
	}
	return nil
}

// resolveSyncProfile loads the named profile or builds one from the ad
// hoc flags, then layers the flag overrides on top
func resolveSyncProfile(cmd *cobra.Command, args []string, store *config.Store) (*models.SyncProfile, *models.Site, bool, error) {
	var (
		profile *models.SyncProfile
		site    *models.Site
		stored  bool
		err     error
	)

	if len(args) == 1 {
		profile, err = store.FindProfile(args[0])
		if err != nil {
			return nil, nil, false, err
		}
		stored = true
		site, err = store.FindSite(profile.SiteID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("profile %s references unknown site %s: %w", profile.Name, profile.SiteID, err)
		}
	} else {
		if syncFlags.Site == "" || syncFlags.Local == "" || syncFlags.Remote == "" {
			return nil, nil, false, fmt.Errorf("a profile name or --site, --local and --remote are required")
		}
		site, err = resolveSite(store, syncFlags.Site)
		if err != nil {
			return nil, nil, false, err
		}
		profile = models.NewSyncProfile("ad hoc", site.ID, platform.ExpandUser(syncFlags.Local), syncFlags.Remote)
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		profile.Mode = models.SyncMode(syncFlags.Mode)
	}
	if flags.Changed("include") {
		profile.IncludePatterns = syncFlags.Include
	}
	if flags.Changed("exclude") {
		profile.ExcludePatterns = syncFlags.Exclude
	}
	if flags.Changed("delete-extra") {
		profile.DeleteExtra = syncFlags.DeleteExtra
	}
	if flags.Changed("dry-run") {
		profile.DryRun = syncFlags.DryRun
	}

	if !profile.Mode.Valid() {
		return nil, nil, false, fmt.Errorf("invalid sync mode: %s (valid: mirror, bidirectional, upload_only, download_only)", profile.Mode)
	}

	return profile, site, stored, nil
}

// pickFormatter selects the renderer for plan and summary output
func pickFormatter(cfg *config.Config) output.Formatter {
	if !cfg.Output.Color {
		color.NoColor = true
	}
	if syncFlags.JSON || cfg.Output.Format == "json" {
		return output.NewJSONFormatter(os.Stdout)
	}
	if globalFlags.Quiet || cfg.Output.Quiet {
		return output.NewHumanFormatter(io.Discard)
	}
	// A dry run finishes instantly, the bar would only flicker
	if cfg.Output.Progress && !syncFlags.DryRun {
		return output.NewProgressFormatter(os.Stdout)
	}
	return output.NewHumanFormatter(os.Stdout)
}
