package models

import "fmt"

// ActionKind is the type of planned filesystem operation
type ActionKind string

const (
	// ActionUpload copies a local file to the remote side
	ActionUpload ActionKind = "upload"
	// ActionDownload copies a remote file to the local side
	ActionDownload ActionKind = "download"
	// ActionDeleteLocal removes a local file or empty directory
	ActionDeleteLocal ActionKind = "delete_local"
	// ActionDeleteRemote removes a remote file or empty directory
	ActionDeleteRemote ActionKind = "delete_remote"
	// ActionMkdirLocal creates a local directory with parents
	ActionMkdirLocal ActionKind = "mkdir_local"
	// ActionMkdirRemote creates a remote directory with parents
	ActionMkdirRemote ActionKind = "mkdir_remote"
)

// SyncAction is one planned filesystem operation. Immutable once planned,
// consumed exactly once by the executor.
type SyncAction struct {
	Kind       ActionKind
	LocalPath  string
	RemotePath string

	// Size in bytes, for reporting only
	Size int64

	// Reason is a short human-readable justification, e.g. "new file"
	Reason string
}

func (a SyncAction) String() string {
	switch a.Kind {
	case ActionUpload:
		return fmt.Sprintf("Upload %s -> %s (%s)", a.LocalPath, a.RemotePath, a.Reason)
	case ActionDownload:
		return fmt.Sprintf("Download %s -> %s (%s)", a.RemotePath, a.LocalPath, a.Reason)
	case ActionDeleteLocal:
		return fmt.Sprintf("Delete local %s (%s)", a.LocalPath, a.Reason)
	case ActionDeleteRemote:
		return fmt.Sprintf("Delete remote %s (%s)", a.RemotePath, a.Reason)
	case ActionMkdirLocal:
		return fmt.Sprintf("Create local directory %s", a.LocalPath)
	case ActionMkdirRemote:
		return fmt.Sprintf("Create remote directory %s", a.RemotePath)
	default:
		return fmt.Sprintf("%s: %s <-> %s", a.Kind, a.LocalPath, a.RemotePath)
	}
}
