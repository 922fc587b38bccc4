package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncMode selects which side of a sync is authoritative and whether
// deletions propagate
type SyncMode string

const (
	// SyncModeMirror makes the local tree authoritative
	SyncModeMirror SyncMode = "mirror"
	// SyncModeBidirectional propagates the newer file in either direction
	SyncModeBidirectional SyncMode = "bidirectional"
	// SyncModeUploadOnly pushes local changes and never deletes remote extras
	SyncModeUploadOnly SyncMode = "upload_only"
	// SyncModeDownloadOnly pulls remote changes and never deletes local extras
	SyncModeDownloadOnly SyncMode = "download_only"
)

// Valid reports whether the mode is one of the known values
func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeMirror, SyncModeBidirectional, SyncModeUploadOnly, SyncModeDownloadOnly:
		return true
	}
	return false
}

// SyncProfile describes which local and remote trees to reconcile and how.
// A profile is immutable for the duration of one sync run.
type SyncProfile struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	SiteID string `yaml:"site_id"`

	LocalPath  string   `yaml:"local_path"`
	RemotePath string   `yaml:"remote_path"`
	Mode       SyncMode `yaml:"mode"`

	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	DeleteExtra        bool `yaml:"delete_extra"`
	PreserveTimestamps bool `yaml:"preserve_timestamps"`
	FollowSymlinks     bool `yaml:"follow_symlinks"`
	VerifyChecksums    bool `yaml:"verify_checksums"`
	DryRun             bool `yaml:"dry_run"`

	CreatedAt time.Time  `yaml:"created_at"`
	LastSync  *time.Time `yaml:"last_sync,omitempty"`
}

// NewSyncProfile creates a mirror-mode profile with generated id and defaults
func NewSyncProfile(name, siteID, localPath, remotePath string) *SyncProfile {
	return &SyncProfile{
		ID:                 uuid.New().String(),
		Name:               name,
		SiteID:             siteID,
		LocalPath:          localPath,
		RemotePath:         remotePath,
		Mode:               SyncModeMirror,
		PreserveTimestamps: true,
		VerifyChecksums:    true,
		CreatedAt:          time.Now(),
	}
}

// Validate checks the profile configuration
func (p *SyncProfile) Validate() error {
	if p.Name == "" {
		return &ValidationError{Field: "Name", Message: "profile name is required"}
	}
	if p.SiteID == "" {
		return &ValidationError{Field: "SiteID", Message: "site reference is required"}
	}
	if p.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "local path is required"}
	}
	if p.RemotePath == "" {
		return &ValidationError{Field: "RemotePath", Message: "remote path is required"}
	}
	if !p.Mode.Valid() {
		return &ValidationError{Field: "Mode", Message: "unknown sync mode"}
	}
	return nil
}
