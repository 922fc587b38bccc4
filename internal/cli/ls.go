package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/output"
)

// LsFlags holds the ls command flags
type LsFlags struct {
	All bool
}

var lsFlags LsFlags

var dirColor = color.New(color.FgCyan, color.Bold)

// NewLsCommand creates the ls command
func NewLsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <site> [path]",
		Short: "List a remote directory",
		Long: `List a remote directory on a saved site or an ad hoc URL. Without a
path argument the site's default remote directory is listed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runLs,
	}

	cmd.Flags().BoolVarP(&lsFlags.All, "all", "a", false, "include hidden entries")

	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Output.Color {
		color.NoColor = true
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	site, err := resolveSite(store, args[0])
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	dir := site.RemotePath
	if len(args) == 2 {
		dir = args[1]
	}
	if dir == "" {
		dir = "/"
	}

	sess, err := connectSession(ctx, site, sessionOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	files, err := sess.List(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	if !lsFlags.All {
		visible := files[:0]
		for _, f := range files {
			if !f.IsHidden() {
				visible = append(visible, f)
			}
		}
		files = visible
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].IsDir() != files[j].IsDir() {
			return files[i].IsDir()
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})

	for i := range files {
		printEntry(&files[i])
	}
	return nil
}

func printEntry(f *models.RemoteFile) {
	typeChar := "-"
	switch f.Type {
	case models.FileTypeDirectory:
		typeChar = "d"
	case models.FileTypeLink:
		typeChar = "l"
	}
	perms := f.Permissions
	if perms == "" {
		perms = "---------"
	}

	size := "-"
	if !f.IsDir() {
		size = output.FormatBytes(f.Size)
	}

	modified := "-"
	if f.Modified != nil {
		modified = f.Modified.Format("2006-01-02 15:04")
	}

	name := f.Name
	if f.IsDir() {
		name = dirColor.Sprint(name + "/")
	}

	fmt.Printf("%s%-9s %10s  %-16s  %s\n", typeChar, perms, size, modified, name)
}
