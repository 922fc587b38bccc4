package models

import (
	"path"
	"strings"
	"time"
)

// FileType classifies a remote directory entry
type FileType string

const (
	// FileTypeFile is a regular file
	FileTypeFile FileType = "file"
	// FileTypeDirectory is a directory
	FileTypeDirectory FileType = "directory"
	// FileTypeLink is a symbolic link
	FileTypeLink FileType = "link"
	// FileTypeUnknown is anything the server reported that could not be classified
	FileTypeUnknown FileType = "unknown"
)

// RemoteFile is one entry from a remote directory listing
type RemoteFile struct {
	// Name is the entry name without any directory component
	Name string

	// Path is the full remote path
	Path string

	// Size in bytes
	Size int64

	// Modified is the remote modification time, nil when the server
	// did not report one
	Modified *time.Time

	// Permissions is the permission string as reported, e.g. "rwxr-xr-x"
	Permissions string

	Owner string
	Group string

	Type FileType
}

// IsDir reports whether the entry is a directory
func (f *RemoteFile) IsDir() bool {
	return f.Type == FileTypeDirectory
}

// IsHidden reports whether the entry name starts with a dot
func (f *RemoteFile) IsHidden() bool {
	return strings.HasPrefix(f.Name, ".")
}

// Extension returns the lowercased file extension including the dot
func (f *RemoteFile) Extension() string {
	return strings.ToLower(path.Ext(f.Name))
}
