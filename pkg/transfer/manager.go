// Package transfer runs the transfer queue: a bounded worker pool pulls
// queued items, borrows pooled sessions per site, and reports lifecycle
// and progress through an event hub.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/sdejongh/skiff/pkg/events"
	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/ratelimit"
	"github.com/sdejongh/skiff/pkg/verify"
)

const (
	defaultMaxWorkers = 3
	defaultQueueSize  = 1000
)

// SiteResolver looks up the site a transfer belongs to. *config.Store
// satisfies it.
type SiteResolver interface {
	FindSite(nameOrID string) (*models.Site, error)
}

// Options configure a Manager. Zero values fall back to defaults.
type Options struct {
	// MaxWorkers is the number of concurrent transfers, default 3
	MaxWorkers int
	// QueueSize bounds the dispatch queue, default 1000
	QueueSize int
	// ChunkSize is forwarded to sessions for copy buffers
	ChunkSize int

	Logger  logging.Logger
	Limiter *ratelimit.Limiter

	// NewSession overrides session construction, default protocol.Create
	NewSession func(*models.Site, protocol.Options) (protocol.Session, error)
}

// Manager owns the transfer queue. All item mutations go through it.
type Manager struct {
	opts  Options
	sites SiteResolver
	log   logging.Logger
	hub   *events.Hub
	pool  *sessionPool

	mu      sync.Mutex
	items   map[string]*models.TransferItem
	paused  map[string]struct{}
	cancels map[string]context.CancelFunc
	queue   chan string
	running bool
	stopCh  chan struct{}

	wg sync.WaitGroup
}

// NewManager creates a stopped manager
func NewManager(sites SiteResolver, opts Options) *Manager {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = defaultMaxWorkers
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = defaultQueueSize
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNullLogger()
	}

	sessionOpts := protocol.Options{
		Logger:    log,
		ChunkSize: opts.ChunkSize,
		Limiter:   opts.Limiter,
	}

	return &Manager{
		opts:    opts,
		sites:   sites,
		log:     log,
		hub:     events.NewHub(),
		pool:    newSessionPool(sessionOpts, opts.NewSession),
		items:   make(map[string]*models.TransferItem),
		paused:  make(map[string]struct{}),
		cancels: make(map[string]context.CancelFunc),
		queue:   make(chan string, opts.QueueSize),
	}
}

// Events returns the hub observers subscribe to
func (m *Manager) Events() *events.Hub {
	return m.hub
}

// Start spawns the worker pool. Calling Start on a running manager does
// nothing.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	for i := 0; i < m.opts.MaxWorkers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, stopCh)
	}

	m.hub.Publish(events.Event{Kind: events.QueueStarted})
	m.log.Info(ctx, "transfer manager started", logging.Fields{"workers": m.opts.MaxWorkers})
}

// Stop signals the workers, waits for in-flight transfers to finish and
// closes every cached session. Calling Stop on a stopped manager does
// nothing.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.pool.closeAll()

	m.hub.Publish(events.Event{Kind: events.QueuePaused})
	m.log.Info(context.Background(), "transfer manager stopped", nil)
}

// Add registers an item and queues it for dispatch. The caller never
// blocks: when the queue is full the item stays registered but is not
// dispatched.
func (m *Manager) Add(item *models.TransferItem) {
	m.mu.Lock()
	m.items[item.ID] = item
	_, held := m.paused[item.ID]
	dropped := false
	if !held {
		select {
		case m.queue <- item.ID:
		default:
			dropped = true
		}
	}
	snapshot := item.Clone()
	m.mu.Unlock()

	if dropped {
		m.log.Warn(context.Background(), "transfer queue is full", logging.Fields{"transfer_id": item.ID})
	}
	m.hub.Publish(events.Event{
		Kind:       events.TransferAdded,
		TransferID: item.ID,
		SiteID:     snapshot.SiteID,
		Item:       snapshot,
	})
	m.log.Info(context.Background(), "transfer added", logging.Fields{
		"transfer_id": item.ID,
		"direction":   string(snapshot.Direction),
		"local":       snapshot.LocalPath,
		"remote":      snapshot.RemotePath,
	})
}

// Remove deletes an item. A running transfer is marked cancelled and its
// context cancelled so the stream stops early.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	item, ok := m.items[id]
	var snapshot *models.TransferItem
	wasRunning := false
	if ok {
		if item.Status == models.StatusRunning {
			item.Status = models.StatusCancelled
			wasRunning = true
		}
		snapshot = item.Clone()
		delete(m.items, id)
	}
	delete(m.paused, id)
	cancel := m.cancels[id]
	delete(m.cancels, id)
	drained := ok && m.drainedLocked()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasRunning {
		m.hub.Publish(events.Event{
			Kind:       events.TransferCancelled,
			TransferID: id,
			SiteID:     snapshot.SiteID,
			Item:       snapshot,
		})
	}
	if drained {
		m.hub.Publish(events.Event{Kind: events.QueueCompleted})
	}
}

// Pause holds a pending item back from dispatch
func (m *Manager) Pause(id string) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || item.Status != models.StatusPending {
		m.mu.Unlock()
		return
	}
	item.Status = models.StatusPaused
	m.paused[id] = struct{}{}
	snapshot := item.Clone()
	m.mu.Unlock()

	m.hub.Publish(events.Event{
		Kind:       events.TransferPaused,
		TransferID: id,
		SiteID:     snapshot.SiteID,
		Item:       snapshot,
	})
}

// Resume puts a paused item back in the dispatch queue
func (m *Manager) Resume(id string) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || item.Status != models.StatusPaused {
		m.mu.Unlock()
		return
	}
	item.Status = models.StatusPending
	delete(m.paused, id)
	dropped := !m.enqueueLocked(id)
	snapshot := item.Clone()
	m.mu.Unlock()

	if dropped {
		m.log.Warn(context.Background(), "transfer queue is full", logging.Fields{"transfer_id": id})
	}
	m.hub.Publish(events.Event{
		Kind:       events.TransferResumed,
		TransferID: id,
		SiteID:     snapshot.SiteID,
		Item:       snapshot,
	})
}

// Retry requeues a failed item while it has retry budget left. The retry
// counter moves regardless of whether the attempt later succeeds.
func (m *Manager) Retry(id string) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || !item.CanRetry() {
		m.mu.Unlock()
		return
	}
	item.Status = models.StatusPending
	item.RetryCount++
	item.ErrorMessage = ""
	item.Transferred = 0
	dropped := !m.enqueueLocked(id)
	m.mu.Unlock()

	if dropped {
		m.log.Warn(context.Background(), "transfer queue is full", logging.Fields{"transfer_id": id})
	}
}

// ClearCompleted drops every completed and cancelled item
func (m *Manager) ClearCompleted() {
	m.mu.Lock()
	for id, item := range m.items {
		if item.Status == models.StatusCompleted || item.Status == models.StatusCancelled {
			delete(m.items, id)
		}
	}
	m.mu.Unlock()

	m.hub.Publish(events.Event{Kind: events.QueueCleared})
}

// Item returns a snapshot of one item
func (m *Manager) Item(id string) (*models.TransferItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// Items returns snapshots of every item, oldest first
func (m *Manager) Items() []*models.TransferItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.TransferItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Active returns snapshots of pending and running items
func (m *Manager) Active() []*models.TransferItem {
	items := m.Items()
	out := items[:0]
	for _, item := range items {
		if item.Status == models.StatusPending || item.Status == models.StatusRunning {
			out = append(out, item)
		}
	}
	return out
}

// Stats counts items per status
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]int{
		"total":     len(m.items),
		"pending":   0,
		"running":   0,
		"paused":    0,
		"completed": 0,
		"failed":    0,
		"cancelled": 0,
	}
	for _, item := range m.items {
		stats[string(item.Status)]++
	}
	return stats
}

// enqueueLocked queues an id without blocking, reporting success.
// Caller holds the mutex.
func (m *Manager) enqueueLocked(id string) bool {
	select {
	case m.queue <- id:
		return true
	default:
		return false
	}
}

// drainedLocked reports whether no dispatchable work remains.
// Caller holds the mutex.
func (m *Manager) drainedLocked() bool {
	for _, item := range m.items {
		if item.Status == models.StatusPending || item.Status == models.StatusRunning {
			return false
		}
	}
	return true
}

func (m *Manager) worker(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.execute(ctx, id)
		}
	}
}

// execute runs one queued transfer end to end
func (m *Manager) execute(ctx context.Context, id string) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || item.Status != models.StatusPending {
		// Removed or paused between enqueue and dispatch
		m.mu.Unlock()
		return
	}
	now := time.Now()
	item.Status = models.StatusRunning
	item.StartedAt = &now
	tctx, cancel := context.WithCancel(ctx)
	m.cancels[id] = cancel
	snapshot := item.Clone()
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
	}()

	// A panicking adapter fails the one transfer, not the worker
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "transfer panicked", fmt.Errorf("%v", r), logging.Fields{"transfer_id": id})
			m.markFailed(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	m.hub.Publish(events.Event{
		Kind:       events.TransferStarted,
		TransferID: id,
		SiteID:     snapshot.SiteID,
		Item:       snapshot,
	})

	site, err := m.sites.FindSite(snapshot.SiteID)
	if err != nil {
		m.markFailed(id, fmt.Sprintf("site lookup: %v", err))
		return
	}

	sess, err := m.pool.acquire(tctx, site)
	if err != nil {
		m.markFailed(id, fmt.Sprintf("session: %v", err))
		return
	}
	defer m.pool.release(site, sess)

	progress := func(transferred, total int64) {
		m.updateProgress(id, transferred, total)
	}

	switch snapshot.Direction {
	case models.DirectionDownload:
		err = sess.Download(tctx, snapshot.RemotePath, snapshot.LocalPath, progress)
	default:
		if snapshot.CreateDirectories {
			if dir := path.Dir(snapshot.RemotePath); dir != "." && dir != "/" {
				if mkErr := sess.Mkdir(tctx, dir, true); mkErr != nil {
					m.markFailed(id, fmt.Sprintf("mkdir %s: %v", dir, mkErr))
					return
				}
			}
		}
		err = sess.Upload(tctx, snapshot.LocalPath, snapshot.RemotePath, progress)
	}

	if err == nil && snapshot.VerifyChecksum {
		err = m.verifyTransfer(tctx, sess, snapshot.LocalPath, snapshot.RemotePath)
	}

	if err != nil {
		m.log.Error(tctx, "transfer failed", err, logging.Fields{"transfer_id": id})
		m.markFailed(id, err.Error())
		return
	}
	m.markCompleted(id)
}

// verifyTransfer compares local and remote digests when the session can
// produce them. Unsupported backends and remote hash failures skip the
// check; a digest mismatch fails the transfer.
func (m *Manager) verifyTransfer(ctx context.Context, sess protocol.Session, localPath, remotePath string) error {
	cs, ok := sess.(protocol.Checksummer)
	if !ok {
		m.log.Debug(ctx, "checksum verification unsupported", logging.Fields{"path": remotePath})
		return nil
	}

	for _, algo := range []string{verify.SHA256, verify.MD5} {
		remote, err := cs.Checksum(ctx, remotePath, algo)
		if errors.Is(err, protocol.ErrChecksumUnsupported) {
			continue
		}
		if err != nil {
			m.log.Warn(ctx, "checksum verification skipped", logging.Fields{
				"path":  remotePath,
				"error": err.Error(),
			})
			return nil
		}

		local, err := verify.Checksum(ctx, localPath, algo)
		if err != nil {
			return fmt.Errorf("local checksum: %w", err)
		}
		if !verify.Equal(local, remote) {
			return fmt.Errorf("checksum mismatch for %s: local %s, remote %s", remotePath, local, remote)
		}
		return nil
	}
	m.log.Debug(ctx, "checksum verification unsupported", logging.Fields{"path": remotePath})
	return nil
}

func (m *Manager) markCompleted(id string) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	item.Status = models.StatusCompleted
	item.CompletedAt = &now
	item.Transferred = item.Size
	snapshot := item.Clone()
	drained := m.drainedLocked()
	m.mu.Unlock()

	m.hub.Publish(events.Event{
		Kind:       events.TransferCompleted,
		TransferID: id,
		SiteID:     snapshot.SiteID,
		Item:       snapshot,
	})
	if drained {
		m.hub.Publish(events.Event{Kind: events.QueueCompleted})
	}
}

func (m *Manager) markFailed(id, errText string) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	item.Status = models.StatusFailed
	item.ErrorMessage = errText
	snapshot := item.Clone()
	drained := m.drainedLocked()
	m.mu.Unlock()

	m.hub.Publish(events.Event{
		Kind:       events.TransferFailed,
		TransferID: id,
		SiteID:     snapshot.SiteID,
		Err:        errText,
		Item:       snapshot,
	})
	if drained {
		m.hub.Publish(events.Event{Kind: events.QueueCompleted})
	}
}

func (m *Manager) updateProgress(id string, transferred, total int64) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	item.Transferred = transferred
	if total > 0 {
		item.Size = total
	}
	siteID := item.SiteID
	m.mu.Unlock()

	m.hub.Publish(events.Event{
		Kind:        events.TransferProgress,
		TransferID:  id,
		SiteID:      siteID,
		Transferred: transferred,
		Total:       total,
	})
}
