package cli

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/output"
	"github.com/sdejongh/skiff/pkg/protocol"
)

// GetFlags holds the get command flags
type GetFlags struct {
	Local     string
	Bandwidth string
	Workers   int
	NoVerify  bool
}

var getFlags GetFlags

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <site> <path>...",
		Short: "Download files or directories from a site",
		Long: `Download remote files or directories from a saved site or an ad hoc
URL. Directories are walked recursively.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runGet,
	}

	cmd.Flags().StringVarP(&getFlags.Local, "local", "l", "", "local target directory (default is the site's local path or the working directory)")
	cmd.Flags().StringVarP(&getFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit, e.g. 500K or 10M")
	cmd.Flags().IntVarP(&getFlags.Workers, "workers", "w", 0, "concurrent transfers (default from config)")
	cmd.Flags().BoolVar(&getFlags.NoVerify, "no-verify", false, "skip checksum verification after download")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, store, logger, err := transferSetup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if err := applyTransferFlags(cfg, getFlags.Bandwidth, getFlags.Workers); err != nil {
		return err
	}

	site, err := resolveSite(store, args[0])
	if err != nil {
		return err
	}

	localDir := getFlags.Local
	if localDir == "" {
		localDir = site.LocalPath
	}
	if localDir == "" {
		localDir = "."
	}
	localDir = platform.ExpandUser(localDir)

	// One scouting session sizes the queue before the workers take over
	sess, err := connectSession(ctx, site, sessionOptions(cfg, logger))
	if err != nil {
		return err
	}
	items, err := collectDownloads(ctx, sess, site, args[1:], localDir)
	sess.Disconnect()
	if err != nil {
		return err
	}

	verify := cfg.Transfers.VerifyChecksums && !getFlags.NoVerify
	var total int64
	for _, item := range items {
		item.VerifyChecksum = verify
		total += item.Size
	}

	if !globalFlags.Quiet && len(items) > 0 {
		fmt.Printf("Downloading %d files (%s) from %s\n", len(items), output.FormatBytes(total), site.Name)
	}

	return runTransfers(ctx, cfg, &siteBook{store: store, adhoc: site}, logger, items)
}

// collectDownloads expands the remote arguments into one item per file
func collectDownloads(ctx context.Context, sess protocol.Session, site *models.Site, remotes []string, localDir string) ([]*models.TransferItem, error) {
	var items []*models.TransferItem

	for _, arg := range remotes {
		remote := arg
		if !path.IsAbs(remote) && site.RemotePath != "" {
			remote = path.Join(site.RemotePath, remote)
		}

		info, err := sess.Stat(ctx, remote)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}

		if !info.IsDir() {
			item := models.NewTransferItem(site.ID, models.DirectionDownload,
				filepath.Join(localDir, path.Base(remote)), remote)
			item.Size = info.Size
			items = append(items, item)
			continue
		}

		root := path.Clean(remote)
		err = walkRemote(ctx, sess, root, func(f *models.RemoteFile) {
			rel := strings.TrimPrefix(strings.TrimPrefix(f.Path, root), "/")
			item := models.NewTransferItem(site.ID, models.DirectionDownload,
				filepath.Join(localDir, path.Base(root), filepath.FromSlash(rel)), f.Path)
			item.Size = f.Size
			items = append(items, item)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	return items, nil
}

// walkRemote visits every file below dir, depth first
func walkRemote(ctx context.Context, sess protocol.Session, dir string, visit func(*models.RemoteFile)) error {
	files, err := sess.List(ctx, dir)
	if err != nil {
		return err
	}
	for i := range files {
		f := &files[i]
		if f.IsDir() {
			if err := walkRemote(ctx, sess, f.Path, visit); err != nil {
				return err
			}
			continue
		}
		visit(f)
	}
	return nil
}
