package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/models"
)

// ProfilesAddFlags holds the flags of the profiles add command
type ProfilesAddFlags struct {
	Site        string
	Local       string
	Remote      string
	Mode        string
	Include     []string
	Exclude     []string
	DeleteExtra bool
}

var profilesAddFlags ProfilesAddFlags

// NewProfilesCommand creates the profiles command and its subcommands
func NewProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage sync profiles",
		Long:  `List, add and remove saved folder synchronization profiles.`,
	}

	cmd.AddCommand(newProfilesListCommand())
	cmd.AddCommand(newProfilesAddCommand())
	cmd.AddCommand(newProfilesRemoveCommand())

	return cmd
}

func newProfilesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sync profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			profiles, err := store.LoadProfiles()
			if err != nil {
				return err
			}

			if len(profiles) == 0 {
				fmt.Println("No profiles saved yet, add one with: skiff profiles add")
				return nil
			}

			sort.Slice(profiles, func(i, j int) bool {
				return strings.ToLower(profiles[i].Name) < strings.ToLower(profiles[j].Name)
			})

			fmt.Printf("%-20s %-14s %-20s %s\n", "NAME", "MODE", "SITE", "LAST SYNC")
			for _, profile := range profiles {
				siteName := profile.SiteID
				if site, err := store.FindSite(profile.SiteID); err == nil {
					siteName = site.Name
				}
				lastSync := "never"
				if profile.LastSync != nil {
					lastSync = profile.LastSync.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-20s %-14s %-20s %s\n", profile.Name, profile.Mode, siteName, lastSync)
				fmt.Printf("  %s <-> %s\n", profile.LocalPath, profile.RemotePath)
			}
			return nil
		},
	}
}

func newProfilesAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a sync profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfilesAdd,
	}

	cmd.Flags().StringVar(&profilesAddFlags.Site, "site", "", "site name or id (required)")
	cmd.Flags().StringVar(&profilesAddFlags.Local, "local", "", "local directory (required)")
	cmd.Flags().StringVar(&profilesAddFlags.Remote, "remote", "", "remote directory (required)")
	cmd.Flags().StringVar(&profilesAddFlags.Mode, "mode", string(models.SyncModeMirror),
		"sync mode: mirror, bidirectional, upload_only, download_only")
	cmd.Flags().StringSliceVar(&profilesAddFlags.Include, "include", nil, "glob patterns to include")
	cmd.Flags().StringSliceVar(&profilesAddFlags.Exclude, "exclude", nil, "glob patterns to exclude")
	cmd.Flags().BoolVar(&profilesAddFlags.DeleteExtra, "delete-extra", false, "delete files the source side no longer has")
	cmd.MarkFlagRequired("site")
	cmd.MarkFlagRequired("local")
	cmd.MarkFlagRequired("remote")

	return cmd
}

func runProfilesAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	// The profile references the site by id so renames don't break it
	site, err := store.FindSite(profilesAddFlags.Site)
	if err != nil {
		return err
	}

	mode := models.SyncMode(profilesAddFlags.Mode)
	if !mode.Valid() {
		return fmt.Errorf("invalid sync mode: %s (valid: mirror, bidirectional, upload_only, download_only)", profilesAddFlags.Mode)
	}

	profile := models.NewSyncProfile(
		args[0],
		site.ID,
		platform.ExpandUser(profilesAddFlags.Local),
		profilesAddFlags.Remote,
	)
	profile.Mode = mode
	profile.IncludePatterns = profilesAddFlags.Include
	profile.ExcludePatterns = profilesAddFlags.Exclude
	profile.DeleteExtra = profilesAddFlags.DeleteExtra

	if err := profile.Validate(); err != nil {
		return err
	}
	if err := store.AddProfile(profile); err != nil {
		return err
	}

	fmt.Printf("Profile %q added (%s, site %s)\n", profile.Name, profile.Mode, site.Name)
	return nil
}

func newProfilesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <profile>",
		Short: "Remove a sync profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.RemoveProfile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Profile %q removed\n", args[0])
			return nil
		},
	}
}
