package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/ratelimit"
)

func init() {
	protocol.Register(models.ProtocolFTP, New)
	protocol.Register(models.ProtocolFTPS, New)
}

// Session implements protocol.Session over FTP and FTPS
type Session struct {
	site *models.Site
	opts protocol.Options
	conn *ftp.ServerConn
	cwd  string
}

// New creates an unconnected FTP session
func New(site *models.Site, opts protocol.Options) protocol.Session {
	return &Session{site: site, opts: opts, cwd: "/"}
}

// Connect dials the server and logs in
func (s *Session) Connect(ctx context.Context) error {
	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.site.Timeout()),
	}

	if !s.site.PassiveMode {
		// The client is passive-only, fall back to classic PASV for
		// servers that misbehave with EPSV
		dialOpts = append(dialOpts, ftp.DialWithDisabledEPSV(true))
	}

	if s.site.Protocol == models.ProtocolFTPS {
		tlsConfig := &tls.Config{
			ServerName:         s.site.Hostname,
			InsecureSkipVerify: !s.site.VerifyCert,
			MinVersion:         tls.VersionTLS12,
		}
		if s.site.TLSImplicit {
			dialOpts = append(dialOpts, ftp.DialWithTLS(tlsConfig))
		} else {
			dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}

	conn, err := ftp.Dial(s.site.Address(), dialOpts...)
	if err != nil {
		return &protocol.ConnectionError{Host: s.site.Hostname, Err: err}
	}

	username, password, err := s.loginCredentials()
	if err != nil {
		conn.Quit()
		return err
	}

	if err := conn.Login(username, password); err != nil {
		conn.Quit()
		return &protocol.AuthenticationError{Host: s.site.Hostname, Err: err}
	}

	s.conn = conn
	s.cwd = "/"
	if dir, err := conn.CurrentDir(); err == nil {
		s.cwd = dir
	}

	// Change to the configured start directory, best effort
	if s.site.RemotePath != "" {
		if err := conn.ChangeDir(s.site.RemotePath); err != nil {
			s.opts.Log().Warn(ctx, "default path not accessible", logging.Fields{
				"path": s.site.RemotePath,
			})
		} else {
			s.cwd = s.site.RemotePath
		}
	}

	s.opts.Log().Info(ctx, "connected", logging.Fields{
		"host":     s.site.Hostname,
		"port":     s.site.Port,
		"protocol": string(s.site.Protocol),
	})
	return nil
}

func (s *Session) loginCredentials() (string, string, error) {
	cred := s.site.Credential

	switch cred.AuthMethod {
	case models.AuthAnonymous:
		password := cred.ResolvePassword()
		if password == "" {
			password = "anonymous@"
		}
		return "anonymous", password, nil
	case models.AuthPassword, "":
		username := cred.Username
		if username == "" {
			username = "anonymous"
		}
		return username, cred.ResolvePassword(), nil
	default:
		return "", "", &protocol.AuthenticationError{
			Host: s.site.Hostname,
			Err:  fmt.Errorf("auth method %q not supported over ftp", cred.AuthMethod),
		}
	}
}

// Disconnect quits the session, errors from the server are ignored
func (s *Session) Disconnect() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Quit()
	s.conn = nil
	return nil
}

// Connected reports whether the control connection is open
func (s *Session) Connected() bool {
	return s.conn != nil
}

func (s *Session) checkConnected() error {
	if s.conn == nil {
		return &protocol.ConnectionError{Host: s.site.Hostname, Err: protocol.ErrNotConnected}
	}
	return nil
}

// List returns the direct entries of a remote directory
func (s *Session) List(ctx context.Context, dirPath string) ([]models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.conn.List(dirPath)
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "list", Path: dirPath, Err: err}
	}

	base := dirPath
	if base == "" || base == "." {
		base = s.cwd
	}

	files := make([]models.RemoteFile, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		files = append(files, entryToRemote(path.Join(base, entry.Name), entry))
	}
	return files, nil
}

// Stat returns metadata for a single remote path. Servers without MLST
// support are handled by listing the parent directory.
func (s *Session) Stat(ctx context.Context, filePath string) (*models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	if entry, err := s.conn.GetEntry(filePath); err == nil {
		file := entryToRemote(filePath, entry)
		return &file, nil
	}

	parent := path.Dir(filePath)
	name := path.Base(filePath)

	entries, err := s.conn.List(parent)
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "stat", Path: filePath, Err: err}
	}
	for _, entry := range entries {
		if entry.Name == name {
			file := entryToRemote(filePath, entry)
			return &file, nil
		}
	}
	return nil, &protocol.FileOperationError{Op: "stat", Path: filePath, Err: fmt.Errorf("no such file or directory")}
}

// Exists checks if a remote path exists
func (s *Session) Exists(ctx context.Context, filePath string) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	_, err := s.Stat(ctx, filePath)
	if err == nil {
		return true, nil
	}
	var opErr *protocol.FileOperationError
	if errors.As(err, &opErr) {
		return false, nil
	}
	return false, err
}

// Mkdir creates a remote directory, walking the path when recursive
func (s *Session) Mkdir(ctx context.Context, dirPath string, recursive bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if !recursive {
		if err := s.conn.MakeDir(dirPath); err != nil {
			return &protocol.FileOperationError{Op: "mkdir", Path: dirPath, Err: err}
		}
		return nil
	}

	current := ""
	if strings.HasPrefix(dirPath, "/") {
		current = "/"
	}
	for _, part := range strings.Split(strings.Trim(dirPath, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		if ok, _ := s.Exists(ctx, current); ok {
			continue
		}
		if err := s.conn.MakeDir(current); err != nil {
			return &protocol.FileOperationError{Op: "mkdir", Path: current, Err: err}
		}
	}
	return nil
}

// Rmdir removes an empty remote directory
func (s *Session) Rmdir(ctx context.Context, dirPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.conn.RemoveDir(dirPath); err != nil {
		return &protocol.FileOperationError{Op: "rmdir", Path: dirPath, Err: err}
	}
	return nil
}

// Remove deletes a remote file
func (s *Session) Remove(ctx context.Context, filePath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.conn.Delete(filePath); err != nil {
		return &protocol.FileOperationError{Op: "remove", Path: filePath, Err: err}
	}
	return nil
}

// Rename moves a remote file or directory
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.conn.Rename(oldPath, newPath); err != nil {
		return &protocol.FileOperationError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

// Chmod is not available, the protocol has no portable permission
// command and the client does not expose SITE
func (s *Session) Chmod(ctx context.Context, filePath string, mode os.FileMode) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	return &protocol.FileOperationError{Op: "chmod", Path: filePath, Err: fmt.Errorf("not supported over ftp")}
}

// Upload streams a local file to the remote path
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

	var reader io.Reader = protocol.NewProgressReader(ctx, src, info.Size(), progress)
	reader = ratelimit.NewReader(ctx, reader, s.opts.Limiter)

	if err := s.conn.Stor(remotePath, reader); err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: remotePath, Err: err}
	}
	if progress != nil {
		progress(info.Size(), info.Size())
	}
	return nil
}

// Download streams a remote file to the local path
func (s *Session) Download(ctx context.Context, remotePath, localPath string, progress protocol.ProgressFunc) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	size := int64(-1)
	if n, err := s.conn.FileSize(remotePath); err == nil {
		size = n
	}

	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}
	defer resp.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}

	out, err := os.Create(localPath)
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}

	var reader io.Reader = protocol.NewProgressReader(ctx, resp, size, progress)
	reader = ratelimit.NewReader(ctx, reader, s.opts.Limiter)

	written, err := io.CopyBuffer(out, reader, make([]byte, s.opts.BufferSize()))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}
	if progress != nil {
		progress(written, written)
	}
	return nil
}

// Chdir changes the remote working directory
func (s *Session) Chdir(ctx context.Context, dirPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.conn.ChangeDir(dirPath); err != nil {
		return &protocol.FileOperationError{Op: "chdir", Path: dirPath, Err: err}
	}
	if dir, err := s.conn.CurrentDir(); err == nil {
		s.cwd = dir
	} else if path.IsAbs(dirPath) {
		s.cwd = path.Clean(dirPath)
	} else {
		s.cwd = path.Join(s.cwd, dirPath)
	}
	return nil
}

// Cwd returns the cached working directory
func (s *Session) Cwd() string {
	return s.cwd
}

func entryToRemote(fullPath string, entry *ftp.Entry) models.RemoteFile {
	fileType := models.FileTypeUnknown
	switch entry.Type {
	case ftp.EntryTypeFile:
		fileType = models.FileTypeFile
	case ftp.EntryTypeFolder:
		fileType = models.FileTypeDirectory
	case ftp.EntryTypeLink:
		fileType = models.FileTypeLink
	}

	var modified *time.Time
	if !entry.Time.IsZero() {
		t := entry.Time
		modified = &t
	}

	return models.RemoteFile{
		Name:     entry.Name,
		Path:     fullPath,
		Size:     int64(entry.Size),
		Modified: modified,
		Type:     fileType,
	}
}
