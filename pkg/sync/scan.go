package sync

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
)

// localEntry is one path found under the local root
type localEntry struct {
	path    string
	size    int64
	modTime time.Time
	isDir   bool
}

// scanLocal walks the profile's local tree and maps root-relative slash
// paths to entries. A missing root yields an empty map, unreadable
// directories are logged and skipped.
func (e *Engine) scanLocal(ctx context.Context, profile *models.SyncProfile, filter *patternFilter) (map[string]localEntry, error) {
	files := make(map[string]localEntry)

	if _, err := os.Stat(profile.LocalPath); err != nil {
		if os.IsNotExist(err) {
			e.log.Debug(ctx, "local root does not exist", logging.Fields{"path": profile.LocalPath})
		} else {
			e.log.Warn(ctx, "local root not accessible", logging.Fields{
				"path":  profile.LocalPath,
				"error": err.Error(),
			})
		}
		return files, nil
	}

	e.walkLocal(ctx, profile.LocalPath, "", profile, filter, files)
	return files, nil
}

func (e *Engine) walkLocal(ctx context.Context, dir, rel string, profile *models.SyncProfile, filter *patternFilter, files map[string]localEntry) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.log.Warn(ctx, "cannot read local directory", logging.Fields{
			"path":  dir,
			"error": err.Error(),
		})
		return
	}

	for _, entry := range entries {
		if e.stopped(ctx) {
			return
		}

		relPath := entry.Name()
		if rel != "" {
			relPath = rel + "/" + entry.Name()
		}
		if !filter.match(relPath) {
			continue
		}

		full := filepath.Join(dir, entry.Name())
		isLink := entry.Type()&fs.ModeSymlink != 0

		var info fs.FileInfo
		if isLink && profile.FollowSymlinks {
			// Resolve the target so a linked directory scans like one
			info, err = os.Stat(full)
		} else {
			info, err = entry.Info()
		}
		if err != nil {
			e.log.Warn(ctx, "cannot stat local entry", logging.Fields{
				"path":  full,
				"error": err.Error(),
			})
			continue
		}

		files[relPath] = localEntry{
			path:    full,
			size:    info.Size(),
			modTime: info.ModTime(),
			isDir:   info.IsDir(),
		}

		if info.IsDir() {
			e.walkLocal(ctx, full, relPath, profile, filter, files)
		}
	}
}

// scanRemote lists the profile's remote tree through the session. A
// failure on the root listing aborts the scan; failures deeper down are
// logged and that subtree skipped.
func (e *Engine) scanRemote(ctx context.Context, session protocol.Session, profile *models.SyncProfile, filter *patternFilter) (map[string]*models.RemoteFile, error) {
	files := make(map[string]*models.RemoteFile)
	if e.stopped(ctx) {
		return files, nil
	}

	entries, err := session.List(ctx, profile.RemotePath)
	if err != nil {
		return nil, err
	}

	e.collectRemote(ctx, session, entries, "", filter, files)
	return files, nil
}

func (e *Engine) collectRemote(ctx context.Context, session protocol.Session, entries []models.RemoteFile, rel string, filter *patternFilter, files map[string]*models.RemoteFile) {
	for i := range entries {
		if e.stopped(ctx) {
			return
		}
		entry := entries[i]

		relPath := entry.Name
		if rel != "" {
			relPath = rel + "/" + entry.Name
		}
		if !filter.match(relPath) {
			continue
		}

		files[relPath] = &entry

		if entry.IsDir() {
			children, err := session.List(ctx, entry.Path)
			if err != nil {
				e.log.Warn(ctx, "cannot list remote directory", logging.Fields{
					"path":  entry.Path,
					"error": err.Error(),
				})
				continue
			}
			e.collectRemote(ctx, session, children, relPath, filter, files)
		}
	}
}
