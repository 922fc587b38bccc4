// Package events carries transfer, queue, and sync notifications from the
// core to its observers. There is no process-wide bus: each transfer
// manager and sync engine owns a Hub that callers subscribe to directly.
package events

import (
	"sync"
	"time"

	"github.com/sdejongh/skiff/pkg/models"
)

// Kind identifies what happened
type Kind string

const (
	TransferAdded     Kind = "transfer_added"
	TransferStarted   Kind = "transfer_started"
	TransferProgress  Kind = "transfer_progress"
	TransferCompleted Kind = "transfer_completed"
	TransferFailed    Kind = "transfer_failed"
	TransferPaused    Kind = "transfer_paused"
	TransferResumed   Kind = "transfer_resumed"
	TransferCancelled Kind = "transfer_cancelled"

	QueueStarted   Kind = "queue_started"
	QueuePaused    Kind = "queue_paused"
	QueueCompleted Kind = "queue_completed"
	QueueCleared   Kind = "queue_cleared"

	SyncStarted   Kind = "sync_started"
	SyncProgress  Kind = "sync_progress"
	SyncCompleted Kind = "sync_completed"
	SyncFailed    Kind = "sync_failed"
)

// Event is one notification. Only the fields relevant to the kind are
// set; Item is always a snapshot copy, never the live record.
type Event struct {
	Kind Kind
	Time time.Time

	TransferID string
	SiteID     string
	ProfileID  string

	// Transferred and Total carry byte counts on transfer_progress
	Transferred int64
	Total       int64

	// Step and Steps carry action counts on sync_progress
	Step  int
	Steps int

	// Err holds the error text on failure kinds
	Err string

	Item   *models.TransferItem
	Result *models.SyncResult
}

// Listener receives events. Listeners are invoked synchronously on the
// emitting goroutine and must not block.
type Listener func(Event)

// Hub fans events out to subscribed listeners. The zero value is unusable;
// use NewHub.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Listener
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]Listener)}
}

// Subscribe registers a listener and returns its cancel function
func (h *Hub) Subscribe(fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish delivers the event to every subscriber. Delivery is one-way and
// fire-and-forget; subscriber errors are nobody's problem but their own.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.subs))
	for _, fn := range h.subs {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
