package protocol

import (
	"context"
	"errors"
	"os"

	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/ratelimit"
)

// Default buffer size for streaming transfers when the site does not
// configure one
const defaultChunkSize = 64 * 1024

// ProgressFunc receives byte counts while a transfer runs. total is -1
// when the backend cannot determine the size up front.
type ProgressFunc func(transferred, total int64)

// Session defines the operations every protocol backend supports
// Implementations include ftp, sftp, s3, and local filesystem
type Session interface {
	// Connect establishes the connection and authenticates
	Connect(ctx context.Context) error

	// Disconnect closes the connection and releases resources
	Disconnect() error

	// Connected reports whether the session is usable
	Connected() bool

	// List returns the direct entries of a remote directory
	List(ctx context.Context, path string) ([]models.RemoteFile, error)

	// Stat returns metadata for a single remote path
	Stat(ctx context.Context, path string) (*models.RemoteFile, error)

	// Exists checks if a remote path exists
	Exists(ctx context.Context, path string) (bool, error)

	// Mkdir creates a remote directory, with parents when recursive is set
	Mkdir(ctx context.Context, path string, recursive bool) error

	// Rmdir removes an empty remote directory
	Rmdir(ctx context.Context, path string) error

	// Remove deletes a remote file
	Remove(ctx context.Context, path string) error

	// Rename moves a remote file or directory
	Rename(ctx context.Context, oldPath, newPath string) error

	// Chmod changes permissions on a remote path where the protocol allows it
	Chmod(ctx context.Context, path string, mode os.FileMode) error

	// Upload copies a local file to the remote path
	Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error

	// Download copies a remote file to the local path
	Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error

	// Chdir changes the session working directory
	Chdir(ctx context.Context, path string) error

	// Cwd returns the current working directory
	Cwd() string
}

// ErrChecksumUnsupported is returned by backends that cannot compute
// remote checksums
var ErrChecksumUnsupported = errors.New("checksum not supported by this protocol")

// Checksummer is implemented by sessions that can compute a checksum on
// the remote side without downloading the file
type Checksummer interface {
	// Checksum returns the lowercase hex digest of the remote file.
	// algo is "sha256" or "md5".
	Checksum(ctx context.Context, path, algo string) (string, error)
}

// Options carries cross-cutting settings into protocol backends
type Options struct {
	// Logger receives connection and transfer records. A nil logger
	// disables logging.
	Logger logging.Logger

	// ChunkSize is the streaming buffer size in bytes
	ChunkSize int

	// Limiter throttles transfer bandwidth when set. The limiter is
	// shared, so concurrent transfers split the configured rate.
	Limiter *ratelimit.Limiter
}

// Log returns the configured logger, or a null logger when unset
func (o Options) Log() logging.Logger {
	if o.Logger == nil {
		return logging.NewNullLogger()
	}
	return o.Logger
}

// BufferSize returns the streaming buffer size, applying the default
// when unset
func (o Options) BufferSize() int {
	if o.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return o.ChunkSize
}
