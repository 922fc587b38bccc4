package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/ratelimit"
	"github.com/sdejongh/skiff/pkg/verify"
)

func init() {
	protocol.Register(models.ProtocolLocal, New)
}

// Session implements protocol.Session on the local filesystem. It is
// used for local copies and as the remote side in tests.
type Session struct {
	site      *models.Site
	opts      protocol.Options
	connected bool
	cwd       string
}

// New creates an unconnected local session
func New(site *models.Site, opts protocol.Options) protocol.Session {
	return &Session{site: site, opts: opts, cwd: "/"}
}

// Connect marks the session usable and applies the site's default path
func (s *Session) Connect(ctx context.Context) error {
	s.connected = true
	s.cwd = string(filepath.Separator)

	if s.site.RemotePath != "" {
		// Best effort, matching how network sessions treat the
		// configured start directory
		if err := s.Chdir(ctx, s.site.RemotePath); err != nil {
			s.opts.Log().Warn(ctx, "default path not accessible", logging.Fields{
				"path": s.site.RemotePath,
			})
		}
	}
	return nil
}

// Disconnect marks the session unusable
func (s *Session) Disconnect() error {
	s.connected = false
	return nil
}

// Connected reports whether Connect has been called
func (s *Session) Connected() bool {
	return s.connected
}

// resolve turns a slash path into an absolute native path, relative
// paths are resolved against the working directory
func (s *Session) resolve(p string) string {
	native := filepath.FromSlash(p)
	if native == "" {
		return s.cwd
	}
	if !filepath.IsAbs(native) {
		native = filepath.Join(s.cwd, native)
	}
	return filepath.Clean(native)
}

func (s *Session) checkConnected() error {
	if !s.connected {
		return &protocol.ConnectionError{Err: protocol.ErrNotConnected}
	}
	return nil
}

// List returns the direct entries of a directory
func (s *Session) List(ctx context.Context, path string) ([]models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.resolve(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "list", Path: path, Err: err}
	}

	files := make([]models.RemoteFile, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfoToRemote(filepath.Join(dir, entry.Name()), info))
	}
	return files, nil
}

// Stat returns metadata for a single path
func (s *Session) Stat(ctx context.Context, path string) (*models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	full := s.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "stat", Path: path, Err: err}
	}

	file := fileInfoToRemote(full, info)
	return &file, nil
}

// Exists checks if a path exists
func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &protocol.FileOperationError{Op: "stat", Path: path, Err: err}
}

// Mkdir creates a directory, with parents when recursive is set
func (s *Session) Mkdir(ctx context.Context, path string, recursive bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	full := s.resolve(path)
	var err error
	if recursive {
		err = os.MkdirAll(full, 0755)
	} else {
		err = os.Mkdir(full, 0755)
	}
	if err != nil {
		return &protocol.FileOperationError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// Rmdir removes an empty directory
func (s *Session) Rmdir(ctx context.Context, path string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	full := s.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return &protocol.FileOperationError{Op: "rmdir", Path: path, Err: err}
	}
	if !info.IsDir() {
		return &protocol.FileOperationError{Op: "rmdir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	if err := os.Remove(full); err != nil {
		return &protocol.FileOperationError{Op: "rmdir", Path: path, Err: err}
	}
	return nil
}

// Remove deletes a file
func (s *Session) Remove(ctx context.Context, path string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	full := s.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return &protocol.FileOperationError{Op: "remove", Path: path, Err: err}
	}
	if info.IsDir() {
		return &protocol.FileOperationError{Op: "remove", Path: path, Err: fmt.Errorf("is a directory")}
	}
	if err := os.Remove(full); err != nil {
		return &protocol.FileOperationError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// Rename moves a file or directory
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := os.Rename(s.resolve(oldPath), s.resolve(newPath)); err != nil {
		return &protocol.FileOperationError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

// Chmod changes permissions
func (s *Session) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := os.Chmod(s.resolve(path), mode); err != nil {
		return &protocol.FileOperationError{Op: "chmod", Path: path, Err: err}
	}
	return nil
}

// Upload copies a local file into the session tree
func (s *Session) Upload(ctx context.Context, localPath, remotePath string, progress protocol.ProgressFunc) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: localPath, Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: localPath, Err: err}
	}

	written, err := s.writeFile(ctx, s.resolve(remotePath), src, info.Size(), progress)
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: remotePath, Err: err}
	}
	if progress != nil {
		progress(written, info.Size())
	}
	return nil
}

// Download copies a file from the session tree to a local path
func (s *Session) Download(ctx context.Context, remotePath, localPath string, progress protocol.ProgressFunc) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	src, err := os.Open(s.resolve(remotePath))
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}

	written, err := s.writeFile(ctx, localPath, src, info.Size(), progress)
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}
	if progress != nil {
		progress(written, info.Size())
	}
	return nil
}

// writeFile streams src into the file at dst, creating parents
func (s *Session) writeFile(ctx context.Context, dst string, src io.Reader, size int64, progress protocol.ProgressFunc) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	var reader io.Reader = protocol.NewProgressReader(ctx, src, size, progress)
	reader = ratelimit.NewReader(ctx, reader, s.opts.Limiter)

	written, err := io.CopyBuffer(out, reader, make([]byte, s.opts.BufferSize()))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return written, err
	}
	return written, nil
}

// Chdir changes the working directory
func (s *Session) Chdir(ctx context.Context, path string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	full := s.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return &protocol.FileOperationError{Op: "chdir", Path: path, Err: err}
	}
	if !info.IsDir() {
		return &protocol.FileOperationError{Op: "chdir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	s.cwd = full
	return nil
}

// Cwd returns the working directory in slash form
func (s *Session) Cwd() string {
	return filepath.ToSlash(s.cwd)
}

// Checksum computes a digest of a file in the session tree
func (s *Session) Checksum(ctx context.Context, path, algo string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}
	return verify.Checksum(ctx, s.resolve(path), algo)
}

func fileInfoToRemote(fullPath string, info os.FileInfo) models.RemoteFile {
	fileType := models.FileTypeFile
	switch {
	case info.IsDir():
		fileType = models.FileTypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		fileType = models.FileTypeLink
	case !info.Mode().IsRegular():
		fileType = models.FileTypeUnknown
	}

	modified := info.ModTime()
	return models.RemoteFile{
		Name:        info.Name(),
		Path:        filepath.ToSlash(fullPath),
		Size:        info.Size(),
		Modified:    &modified,
		Permissions: info.Mode().Perm().String(),
		Type:        fileType,
	}
}
