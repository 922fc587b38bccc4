package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/skiff/pkg/config"
	"github.com/sdejongh/skiff/pkg/events"
	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/output"
	"github.com/sdejongh/skiff/pkg/ratelimit"
	"github.com/sdejongh/skiff/pkg/transfer"
)

// siteBook resolves the single ad hoc site of a run before falling
// back to the store, so URL targets work without being saved first.
type siteBook struct {
	store *config.Store
	adhoc *models.Site
}

func (b *siteBook) FindSite(nameOrID string) (*models.Site, error) {
	if b.adhoc != nil && (nameOrID == b.adhoc.ID || nameOrID == b.adhoc.Name) {
		return b.adhoc, nil
	}
	return b.store.FindSite(nameOrID)
}

// runTransfers queues the items and drives the manager until every one
// of them settles. Failed transfers are requeued after the configured
// delay while their retry budget lasts.
func runTransfers(ctx context.Context, cfg *config.Config, sites transfer.SiteResolver, log logging.Logger, items []*models.TransferItem) error {
	if len(items) == 0 {
		fmt.Println("Nothing to transfer")
		return nil
	}

	var totalBytes int64
	for _, item := range items {
		totalBytes += item.Size
	}

	opts := transfer.Options{
		MaxWorkers: cfg.Transfers.MaxConcurrent,
		QueueSize:  cfg.Transfers.QueueSize,
		ChunkSize:  cfg.Transfers.ChunkSize,
		Logger:     log,
	}
	if cfg.Transfers.BandwidthLimit > 0 {
		opts.Limiter = ratelimit.NewLimiter(cfg.Transfers.BandwidthLimit)
	}
	mgr := transfer.NewManager(sites, opts)

	var bar *pb.ProgressBar
	if !globalFlags.Quiet && term.IsTerminal(int(os.Stdout.Fd())) {
		bar = pb.Full.Start64(totalBytes)
		bar.Set(pb.Bytes, true)
	}

	retryDelay := time.Duration(cfg.Transfers.RetryDelaySeconds) * time.Second
	start := time.Now()

	var (
		mu          sync.Mutex
		moved       int64
		transferred = make(map[string]int64, len(items))
		remaining   = make(map[string]bool, len(items))
		failed      []string
	)
	for _, item := range items {
		remaining[item.ID] = true
	}
	settled := make(chan struct{})

	unsubscribe := mgr.Events().Subscribe(func(ev events.Event) {
		switch ev.Kind {
		case events.TransferProgress:
			mu.Lock()
			moved += ev.Transferred - transferred[ev.TransferID]
			transferred[ev.TransferID] = ev.Transferred
			current := moved
			mu.Unlock()
			if bar != nil {
				bar.SetCurrent(current)
			}

		case events.TransferCompleted:
			mu.Lock()
			if !remaining[ev.TransferID] {
				mu.Unlock()
				return
			}
			delete(remaining, ev.TransferID)
			if ev.Item != nil {
				moved += ev.Item.Size - transferred[ev.TransferID]
				transferred[ev.TransferID] = ev.Item.Size
			}
			current := moved
			rest := len(remaining)
			mu.Unlock()

			if bar != nil {
				bar.SetCurrent(current)
			} else if !globalFlags.Quiet && ev.Item != nil {
				fmt.Printf("✓ %s (%s)\n", transferName(ev.Item), output.FormatBytes(ev.Item.Size))
			}
			if rest == 0 {
				close(settled)
			}

		case events.TransferFailed:
			if ev.Item != nil && ev.Item.CanRetry() {
				if bar == nil && !globalFlags.Quiet {
					fmt.Printf("retrying %s: %s\n", transferName(ev.Item), ev.Item.ErrorMessage)
				}
				id := ev.TransferID
				// Retry from a timer goroutine so the delay never
				// blocks the publishing worker
				time.AfterFunc(retryDelay, func() { mgr.Retry(id) })
				return
			}

			mu.Lock()
			if !remaining[ev.TransferID] {
				mu.Unlock()
				return
			}
			delete(remaining, ev.TransferID)
			reason := ev.Err
			name := ev.TransferID
			if ev.Item != nil {
				reason = ev.Item.ErrorMessage
				name = transferName(ev.Item)
			}
			failed = append(failed, fmt.Sprintf("%s: %s", name, reason))
			rest := len(remaining)
			mu.Unlock()

			if bar == nil && !globalFlags.Quiet {
				fmt.Printf("✗ %s: %s\n", name, reason)
			}
			if rest == 0 {
				close(settled)
			}
		}
	})
	defer unsubscribe()

	for _, item := range items {
		mgr.Add(item)
	}
	mgr.Start(ctx)

	select {
	case <-settled:
	case <-ctx.Done():
	}
	mgr.Stop()

	if bar != nil {
		bar.Finish()
	}

	mu.Lock()
	pending := len(remaining)
	failCount := len(failed)
	failedLines := append([]string(nil), failed...)
	movedTotal := moved
	mu.Unlock()

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted with %d transfers unfinished", pending)
	}

	// Bar mode holds error lines back until the bar is done
	if bar != nil {
		for _, line := range failedLines {
			fmt.Printf("✗ %s\n", line)
		}
	}

	if !globalFlags.Quiet {
		fmt.Printf("\n%d of %d transfers completed, %s in %s\n",
			len(items)-failCount, len(items),
			output.FormatBytes(movedTotal),
			time.Since(start).Round(time.Millisecond))
	}

	if failCount > 0 {
		return fmt.Errorf("%d of %d transfers failed", failCount, len(items))
	}
	return nil
}

// transferName names a transfer by its destination side
func transferName(item *models.TransferItem) string {
	if item.Direction == models.DirectionDownload {
		return item.LocalPath
	}
	return item.RemotePath
}

// transferSetup loads the pieces every transfer command starts with
func transferSetup() (*config.Config, *config.Store, logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, store, logger, nil
}

// applyTransferFlags folds the per-command overrides into the config
func applyTransferFlags(cfg *config.Config, bandwidth string, workers int) error {
	if bandwidth != "" {
		limit, err := parseByteSize(bandwidth)
		if err != nil {
			return err
		}
		cfg.Transfers.BandwidthLimit = limit
	}
	if workers > 0 {
		cfg.Transfers.MaxConcurrent = workers
	}
	return nil
}
