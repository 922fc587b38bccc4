package sync

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sdejongh/skiff/pkg/models"
)

// modifiedWindow is how far apart mtimes may drift before a same-size
// file counts as modified. FTP and FAT filesystems round to 2 seconds.
const modifiedWindow = 2 * time.Second

func sortedPaths[T any](files map[string]T) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// remoteJoin appends a relative slash path to the remote root
func remoteJoin(root, rel string) string {
	return strings.TrimRight(root, "/") + "/" + rel
}

// localJoin appends a relative slash path to the local root
func localJoin(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// isModified reports whether a file present on both sides needs a
// transfer. Directories never count. Size wins first; equal sizes fall
// back to mtime drift when the profile preserves timestamps and the
// remote side reported one.
func isModified(local localEntry, remote *models.RemoteFile, profile *models.SyncProfile) bool {
	if local.isDir || remote.IsDir() {
		return false
	}
	if local.size != remote.Size {
		return true
	}
	if profile.PreserveTimestamps && remote.Modified != nil {
		delta := local.modTime.Sub(*remote.Modified)
		if delta < 0 {
			delta = -delta
		}
		if delta > modifiedWindow {
			return true
		}
	}
	return false
}

// planMirror makes the remote tree match the local one. Extras on the
// remote side are deleted only when the profile says so, children
// before their parent directory.
func (e *Engine) planMirror(local map[string]localEntry, remote map[string]*models.RemoteFile, profile *models.SyncProfile) []models.SyncAction {
	var actions []models.SyncAction

	for _, rel := range sortedPaths(local) {
		entry := local[rel]
		remoteFile, ok := remote[rel]
		if !ok {
			if entry.isDir {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionMkdirRemote,
					LocalPath:  entry.path,
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Reason:     "new directory",
				})
			} else {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionUpload,
					LocalPath:  entry.path,
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Size:       entry.size,
					Reason:     "new file",
				})
			}
			continue
		}

		if !entry.isDir && isModified(entry, remoteFile, profile) {
			actions = append(actions, models.SyncAction{
				Kind:       models.ActionUpload,
				LocalPath:  entry.path,
				RemotePath: remoteJoin(profile.RemotePath, rel),
				Size:       entry.size,
				Reason:     "modified",
			})
		}
	}

	if profile.DeleteExtra {
		paths := sortedPaths(remote)
		for i := len(paths) - 1; i >= 0; i-- {
			rel := paths[i]
			if _, ok := local[rel]; ok {
				continue
			}
			reason := "extra file"
			if remote[rel].IsDir() {
				reason = "extra directory"
			}
			actions = append(actions, models.SyncAction{
				Kind:       models.ActionDeleteRemote,
				RemotePath: remoteJoin(profile.RemotePath, rel),
				Reason:     reason,
			})
		}
	}

	return actions
}

// planBidirectional moves the newer copy over the older one and fills
// in whatever exists on one side only. Nothing is ever deleted. A
// remote file without a reported mtime counts as infinitely old.
func (e *Engine) planBidirectional(local map[string]localEntry, remote map[string]*models.RemoteFile, profile *models.SyncProfile) []models.SyncAction {
	merged := make(map[string]struct{}, len(local)+len(remote))
	for rel := range local {
		merged[rel] = struct{}{}
	}
	for rel := range remote {
		merged[rel] = struct{}{}
	}

	var actions []models.SyncAction
	for _, rel := range sortedPaths(merged) {
		entry, hasLocal := local[rel]
		remoteFile, hasRemote := remote[rel]

		switch {
		case hasLocal && hasRemote:
			if entry.isDir || remoteFile.IsDir() {
				continue
			}
			var remoteMtime time.Time
			if remoteFile.Modified != nil {
				remoteMtime = *remoteFile.Modified
			}
			if entry.modTime.After(remoteMtime) {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionUpload,
					LocalPath:  entry.path,
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Size:       entry.size,
					Reason:     "local newer",
				})
			} else if remoteMtime.After(entry.modTime) {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionDownload,
					LocalPath:  localJoin(profile.LocalPath, rel),
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Size:       remoteFile.Size,
					Reason:     "remote newer",
				})
			}

		case hasLocal:
			if entry.isDir {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionMkdirRemote,
					LocalPath:  entry.path,
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Reason:     "local only",
				})
			} else {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionUpload,
					LocalPath:  entry.path,
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Size:       entry.size,
					Reason:     "local only",
				})
			}

		default:
			if remoteFile.IsDir() {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionMkdirLocal,
					LocalPath:  localJoin(profile.LocalPath, rel),
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Reason:     "remote only",
				})
			} else {
				actions = append(actions, models.SyncAction{
					Kind:       models.ActionDownload,
					LocalPath:  localJoin(profile.LocalPath, rel),
					RemotePath: remoteJoin(profile.RemotePath, rel),
					Size:       remoteFile.Size,
					Reason:     "remote only",
				})
			}
		}
	}

	return actions
}

// planUpload pushes new and modified local entries, never deleting
// anything remote
func (e *Engine) planUpload(local map[string]localEntry, remote map[string]*models.RemoteFile, profile *models.SyncProfile) []models.SyncAction {
	var actions []models.SyncAction

	for _, rel := range sortedPaths(local) {
		entry := local[rel]
		if remoteFile, ok := remote[rel]; ok && !isModified(entry, remoteFile, profile) {
			continue
		}

		if entry.isDir {
			actions = append(actions, models.SyncAction{
				Kind:       models.ActionMkdirRemote,
				LocalPath:  entry.path,
				RemotePath: remoteJoin(profile.RemotePath, rel),
				Reason:     "upload only",
			})
		} else {
			actions = append(actions, models.SyncAction{
				Kind:       models.ActionUpload,
				LocalPath:  entry.path,
				RemotePath: remoteJoin(profile.RemotePath, rel),
				Size:       entry.size,
				Reason:     "upload only",
			})
		}
	}

	return actions
}

// planDownload pulls new and modified remote entries, never deleting
// anything local
func (e *Engine) planDownload(local map[string]localEntry, remote map[string]*models.RemoteFile, profile *models.SyncProfile) []models.SyncAction {
	var actions []models.SyncAction

	for _, rel := range sortedPaths(remote) {
		remoteFile := remote[rel]
		if entry, ok := local[rel]; ok && !isModified(entry, remoteFile, profile) {
			continue
		}

		if remoteFile.IsDir() {
			actions = append(actions, models.SyncAction{
				Kind:       models.ActionMkdirLocal,
				LocalPath:  localJoin(profile.LocalPath, rel),
				RemotePath: remoteJoin(profile.RemotePath, rel),
				Reason:     "download only",
			})
		} else {
			actions = append(actions, models.SyncAction{
				Kind:       models.ActionDownload,
				LocalPath:  localJoin(profile.LocalPath, rel),
				RemotePath: remoteJoin(profile.RemotePath, rel),
				Size:       remoteFile.Size,
				Reason:     "download only",
			})
		}
	}

	return actions
}
