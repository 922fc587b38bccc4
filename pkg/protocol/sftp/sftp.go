package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/ratelimit"
	"github.com/sdejongh/skiff/pkg/verify"
)

func init() {
	protocol.Register(models.ProtocolSFTP, New)
}

// checksumCommands maps digest algorithms to the coreutils command that
// computes them on the server
var checksumCommands = map[string]string{
	verify.SHA256: "sha256sum",
	verify.MD5:    "md5sum",
}

// Session implements protocol.Session over SFTP
type Session struct {
	site *models.Site
	opts protocol.Options

	sshClient *ssh.Client
	client    *sftp.Client
	agentConn net.Conn
	cwd       string
}

// New creates an unconnected SFTP session
func New(site *models.Site, opts protocol.Options) protocol.Session {
	return &Session{site: site, opts: opts, cwd: "/"}
}

// Connect dials the SSH server and starts the SFTP subsystem
func (s *Session) Connect(ctx context.Context) error {
	auth, err := s.authMethods()
	if err != nil {
		return err
	}

	username := s.site.Credential.Username
	if username == "" {
		if u, uerr := user.Current(); uerr == nil {
			username = u.Username
		}
	}

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            auth,
		HostKeyCallback: s.hostKeyCallback(ctx),
		Timeout:         s.site.Timeout(),
	}

	addr := s.site.Address()
	dialer := net.Dialer{Timeout: s.site.Timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.closeAgent()
		return &protocol.ConnectionError{Host: s.site.Hostname, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		s.closeAgent()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return &protocol.AuthenticationError{Host: s.site.Hostname, Err: err}
		}
		return &protocol.ConnectionError{Host: s.site.Hostname, Err: err}
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		s.closeAgent()
		return &protocol.ConnectionError{Host: s.site.Hostname, Err: fmt.Errorf("sftp subsystem: %w", err)}
	}

	s.sshClient = sshClient
	s.client = client

	s.cwd = "/"
	if wd, err := client.Getwd(); err == nil {
		s.cwd = wd
	}

	// Change to the configured start directory, best effort
	if s.site.RemotePath != "" {
		if err := s.chdir(s.site.RemotePath); err != nil {
			s.opts.Log().Warn(ctx, "default path not accessible", logging.Fields{
				"path": s.site.RemotePath,
			})
		}
	}

	s.opts.Log().Info(ctx, "connected", logging.Fields{
		"host":     s.site.Hostname,
		"port":     s.site.Port,
		"protocol": string(s.site.Protocol),
	})
	return nil
}

func (s *Session) authMethods() ([]ssh.AuthMethod, error) {
	cred := s.site.Credential

	if cred.UseAgent || cred.AuthMethod == models.AuthAgent {
		return s.agentAuth()
	}

	switch cred.AuthMethod {
	case models.AuthPassword, "":
		return []ssh.AuthMethod{ssh.Password(cred.ResolvePassword())}, nil
	case models.AuthKey:
		return s.keyAuth()
	default:
		return nil, &protocol.AuthenticationError{
			Host: s.site.Hostname,
			Err:  fmt.Errorf("auth method %q not supported over sftp", cred.AuthMethod),
		}
	}
}

func (s *Session) keyAuth() ([]ssh.AuthMethod, error) {
	keyFile := s.site.Credential.KeyFile
	if keyFile == "" {
		return nil, &protocol.AuthenticationError{
			Host: s.site.Hostname,
			Err:  errors.New("key auth requires a key file"),
		}
	}

	data, err := os.ReadFile(platform.ExpandUser(keyFile))
	if err != nil {
		return nil, &protocol.AuthenticationError{Host: s.site.Hostname, Err: err}
	}

	var signer ssh.Signer
	if passphrase := s.site.Credential.KeyPassphrase; passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		return nil, &protocol.AuthenticationError{Host: s.site.Hostname, Err: err}
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func (s *Session) agentAuth() ([]ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, &protocol.AuthenticationError{
			Host: s.site.Hostname,
			Err:  errors.New("SSH_AUTH_SOCK is not set"),
		}
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, &protocol.AuthenticationError{Host: s.site.Hostname, Err: err}
	}
	s.agentConn = conn
	return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
}

// hostKeyCallback verifies the host key against ~/.ssh/known_hosts when
// verification is enabled and the file is readable
func (s *Session) hostKeyCallback(ctx context.Context) ssh.HostKeyCallback {
	if !s.site.VerifyCert {
		return ssh.InsecureIgnoreHostKey()
	}
	callback, err := knownhosts.New(platform.ExpandUser("~/.ssh/known_hosts"))
	if err != nil {
		s.opts.Log().Warn(ctx, "known_hosts unavailable, host key verification disabled", logging.Fields{
			"error": err.Error(),
		})
		return ssh.InsecureIgnoreHostKey()
	}
	return callback
}

func (s *Session) closeAgent() {
	if s.agentConn != nil {
		s.agentConn.Close()
		s.agentConn = nil
	}
}

// Disconnect closes the SFTP subsystem and the SSH connection
func (s *Session) Disconnect() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.sshClient != nil {
		s.sshClient.Close()
		s.sshClient = nil
	}
	s.closeAgent()
	return nil
}

// Connected reports whether the SFTP subsystem is running
func (s *Session) Connected() bool {
	return s.client != nil
}

func (s *Session) checkConnected() error {
	if s.client == nil {
		return &protocol.ConnectionError{Host: s.site.Hostname, Err: protocol.ErrNotConnected}
	}
	return nil
}

// resolve turns a possibly relative path into an absolute remote path
func (s *Session) resolve(p string) string {
	if p == "" || p == "." {
		return s.cwd
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

// List returns the direct entries of a remote directory
func (s *Session) List(ctx context.Context, dirPath string) ([]models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := s.resolve(dirPath)
	infos, err := s.client.ReadDir(full)
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "list", Path: dirPath, Err: err}
	}

	files := make([]models.RemoteFile, 0, len(infos))
	for _, info := range infos {
		files = append(files, fileInfoToRemote(path.Join(full, info.Name()), info))
	}
	return files, nil
}

// Stat returns metadata for a single remote path
func (s *Session) Stat(ctx context.Context, filePath string) (*models.RemoteFile, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	full := s.resolve(filePath)
	info, err := s.client.Stat(full)
	if err != nil {
		return nil, &protocol.FileOperationError{Op: "stat", Path: filePath, Err: err}
	}
	file := fileInfoToRemote(full, info)
	return &file, nil
}

// Exists checks if a remote path exists
func (s *Session) Exists(ctx context.Context, filePath string) (bool, error) {
	if err := s.checkConnected(); err != nil {
		return false, err
	}

	if _, err := s.client.Stat(s.resolve(filePath)); err != nil {
		return false, nil
	}
	return true, nil
}

// Mkdir creates a remote directory
func (s *Session) Mkdir(ctx context.Context, dirPath string, recursive bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	full := s.resolve(dirPath)
	var err error
	if recursive {
		err = s.client.MkdirAll(full)
	} else {
		err = s.client.Mkdir(full)
	}
	if err != nil {
		return &protocol.FileOperationError{Op: "mkdir", Path: dirPath, Err: err}
	}
	return nil
}

// Rmdir removes an empty remote directory
func (s *Session) Rmdir(ctx context.Context, dirPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.client.RemoveDirectory(s.resolve(dirPath)); err != nil {
		return &protocol.FileOperationError{Op: "rmdir", Path: dirPath, Err: err}
	}
	return nil
}

// Remove deletes a remote file
func (s *Session) Remove(ctx context.Context, filePath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.client.Remove(s.resolve(filePath)); err != nil {
		return &protocol.FileOperationError{Op: "remove", Path: filePath, Err: err}
	}
	return nil
}

// Rename moves a remote file or directory
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.client.Rename(s.resolve(oldPath), s.resolve(newPath)); err != nil {
		return &protocol.FileOperationError{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

// Chmod changes remote file permissions
func (s *Session) Chmod(ctx context.Context, filePath string, mode os.FileMode) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	if err := s.client.Chmod(s.resolve(filePath), mode); err != nil {
		return &protocol.FileOperationError{Op: "chmod", Path: filePath, Err: err}
	}
	return nil
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

	full := s.resolve(remotePath)
	dst, err := s.client.Create(full)
	if err != nil {
		return &protocol.FileOperationError{Op: "upload", Path: remotePath, Err: err}
	}

	var reader io.Reader = protocol.NewProgressReader(ctx, src, info.Size(), progress)
	reader = ratelimit.NewReader(ctx, reader, s.opts.Limiter)

	written, err := io.CopyBuffer(dst, reader, make([]byte, s.opts.BufferSize()))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.client.Remove(full)
		return &protocol.FileOperationError{Op: "upload", Path: remotePath, Err: err}
	}
	if progress != nil {
		progress(written, info.Size())
	}
	return nil
}

// Download streams a remote file to the local path
func (s *Session) Download(ctx context.Context, remotePath, localPath string, progress protocol.ProgressFunc) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	full := s.resolve(remotePath)
	src, err := s.client.Open(full)
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: remotePath, Err: err}
	}
	defer src.Close()

	size := int64(-1)
	if info, err := src.Stat(); err == nil {
		size = info.Size()
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}

	out, err := os.Create(localPath)
	if err != nil {
		return &protocol.FileOperationError{Op: "download", Path: localPath, Err: err}
	}

	var reader io.Reader = protocol.NewProgressReader(ctx, src, size, progress)
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

// Chdir changes the tracked working directory after verifying the target
func (s *Session) Chdir(ctx context.Context, dirPath string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	return s.chdir(dirPath)
}

func (s *Session) chdir(dirPath string) error {
	full := s.resolve(dirPath)
	info, err := s.client.Stat(full)
	if err != nil {
		return &protocol.FileOperationError{Op: "chdir", Path: dirPath, Err: err}
	}
	if !info.IsDir() {
		return &protocol.FileOperationError{Op: "chdir", Path: dirPath, Err: errors.New("not a directory")}
	}
	s.cwd = full
	return nil
}

// Cwd returns the tracked working directory
func (s *Session) Cwd() string {
	return s.cwd
}

// Checksum computes a digest by running the matching coreutils command
// on the server over an SSH exec channel
func (s *Session) Checksum(ctx context.Context, filePath, algo string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}

	command, ok := checksumCommands[algo]
	if !ok {
		return "", protocol.ErrChecksumUnsupported
	}

	sess, err := s.sshClient.NewSession()
	if err != nil {
		return "", &protocol.FileOperationError{Op: "checksum", Path: filePath, Err: err}
	}
	defer sess.Close()

	out, err := sess.Output(command + " " + shellQuote(s.resolve(filePath)))
	if err != nil {
		return "", &protocol.FileOperationError{Op: "checksum", Path: filePath, Err: err}
	}

	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", &protocol.FileOperationError{Op: "checksum", Path: filePath, Err: errors.New("empty command output")}
	}
	return fields[0], nil
}

// shellQuote wraps a path in single quotes for the remote shell
func shellQuote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
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

	var modified *time.Time
	if mt := info.ModTime(); !mt.IsZero() {
		t := mt
		modified = &t
	}

	file := models.RemoteFile{
		Name:        info.Name(),
		Path:        fullPath,
		Size:        info.Size(),
		Modified:    modified,
		Permissions: info.Mode().Perm().String(),
		Type:        fileType,
	}

	if st, ok := info.Sys().(*sftp.FileStat); ok && st != nil {
		if st.UID != 0 {
			file.Owner = strconv.FormatUint(uint64(st.UID), 10)
		}
		if st.GID != 0 {
			file.Group = strconv.FormatUint(uint64(st.GID), 10)
		}
	}
	return file
}
