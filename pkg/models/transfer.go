package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction defines which way a transfer moves data
type Direction string

const (
	// DirectionUpload moves a local file to the remote site
	DirectionUpload Direction = "upload"
	// DirectionDownload moves a remote file to the local filesystem
	DirectionDownload Direction = "download"
)

// Status is the lifecycle state of a transfer item
type Status string

const (
	// StatusPending means the item is queued and eligible for dispatch
	StatusPending Status = "pending"
	// StatusRunning means a worker is executing the transfer
	StatusRunning Status = "running"
	// StatusPaused means the item is held back from dispatch
	StatusPaused Status = "paused"
	// StatusCompleted means the transfer finished successfully
	StatusCompleted Status = "completed"
	// StatusFailed means the transfer errored; it may be retried
	StatusFailed Status = "failed"
	// StatusCancelled means the transfer was removed before or during execution
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is an end state
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TransferItem is one scheduled file movement with its own lifecycle state.
// The transfer manager owns every mutation after creation.
type TransferItem struct {
	ID         string
	SiteID     string
	Direction  Direction
	LocalPath  string
	RemotePath string

	// Size is the total byte count, 0 until known
	Size int64
	// Transferred is the byte count moved so far
	Transferred int64

	Status   Status
	Priority int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	ErrorMessage string
	RetryCount   int
	MaxRetries   int

	OverwriteMode     string
	VerifyChecksum    bool
	PreserveTimestamp bool
	CreateDirectories bool
}

// NewTransferItem creates a pending item with generated id and defaults
func NewTransferItem(siteID string, direction Direction, localPath, remotePath string) *TransferItem {
	return &TransferItem{
		ID:                uuid.New().String(),
		SiteID:            siteID,
		Direction:         direction,
		LocalPath:         localPath,
		RemotePath:        remotePath,
		Status:            StatusPending,
		CreatedAt:         time.Now(),
		MaxRetries:        3,
		OverwriteMode:     "ask",
		VerifyChecksum:    true,
		PreserveTimestamp: true,
		CreateDirectories: true,
	}
}

// Progress returns the completed fraction in [0, 1], 0 while the size
// is unknown
func (t *TransferItem) Progress() float64 {
	if t.Size <= 0 {
		return 0
	}
	p := float64(t.Transferred) / float64(t.Size)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// CanRetry reports whether the item is failed with retry budget left
func (t *TransferItem) CanRetry() bool {
	return t.Status == StatusFailed && t.RetryCount < t.MaxRetries
}

// Clone returns a copy of the item safe to hand to observers
func (t *TransferItem) Clone() *TransferItem {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}
