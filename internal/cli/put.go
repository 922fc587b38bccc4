package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/output"
)

// PutFlags holds the put command flags
type PutFlags struct {
	Remote    string
	Bandwidth string
	Workers   int
	NoVerify  bool
}

var putFlags PutFlags

// NewPutCommand creates the put command
func NewPutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <site> <path>...",
		Short: "Upload files or directories to a site",
		Long: `Upload local files or directories to a saved site or an ad hoc URL.
Directories are walked recursively and their layout recreated remotely.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runPut,
	}

	cmd.Flags().StringVarP(&putFlags.Remote, "remote", "r", "", "remote target directory (default is the site's remote path)")
	cmd.Flags().StringVarP(&putFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit, e.g. 500K or 10M")
	cmd.Flags().IntVarP(&putFlags.Workers, "workers", "w", 0, "concurrent transfers (default from config)")
	cmd.Flags().BoolVar(&putFlags.NoVerify, "no-verify", false, "skip checksum verification after upload")

	return cmd
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, store, logger, err := transferSetup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if err := applyTransferFlags(cfg, putFlags.Bandwidth, putFlags.Workers); err != nil {
		return err
	}

	site, err := resolveSite(store, args[0])
	if err != nil {
		return err
	}

	remoteDir := putFlags.Remote
	if remoteDir == "" {
		remoteDir = site.RemotePath
	}
	if remoteDir == "" {
		remoteDir = "/"
	}

	items, err := collectUploads(site, args[1:], remoteDir)
	if err != nil {
		return err
	}

	verify := cfg.Transfers.VerifyChecksums && !putFlags.NoVerify
	var total int64
	for _, item := range items {
		item.VerifyChecksum = verify
		total += item.Size
	}

	if !globalFlags.Quiet && len(items) > 0 {
		fmt.Printf("Uploading %d files (%s) to %s\n", len(items), output.FormatBytes(total), site.Name)
	}

	return runTransfers(ctx, cfg, &siteBook{store: store, adhoc: site}, logger, items)
}

// collectUploads expands the local arguments into one item per file
func collectUploads(site *models.Site, locals []string, remoteDir string) ([]*models.TransferItem, error) {
	var items []*models.TransferItem

	for _, arg := range locals {
		local := platform.ExpandUser(arg)
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", arg, err)
		}

		if !info.IsDir() {
			item := models.NewTransferItem(site.ID, models.DirectionUpload,
				local, path.Join(remoteDir, filepath.Base(local)))
			item.Size = info.Size()
			items = append(items, item)
			continue
		}

		root := filepath.Clean(local)
		base := filepath.Base(root)
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			item := models.NewTransferItem(site.ID, models.DirectionUpload,
				p, path.Join(remoteDir, base, filepath.ToSlash(rel)))
			item.Size = fi.Size()
			items = append(items, item)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	return items, nil
}
