package verify

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Supported checksum algorithms
const (
	SHA256 = "sha256"
	MD5    = "md5"
)

const bufferSize = 64 * 1024

// Checksum computes the named hash of a local file and returns the
// lowercase hex digest. The file is streamed, so large files do not
// load into memory.
func Checksum(ctx context.Context, path, algo string) (string, error) {
	hasher, err := newHasher(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, bufferSize)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Sum computes the named hash over a reader and returns the lowercase
// hex digest
func Sum(r io.Reader, algo string) (string, error) {
	hasher, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Normalize strips quoting and whitespace from a digest and lowercases
// it. S3 ETags arrive wrapped in double quotes.
func Normalize(digest string) string {
	digest = strings.TrimSpace(digest)
	digest = strings.Trim(digest, `"`)
	return strings.ToLower(digest)
}

// Equal reports whether two digests match after normalization
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b) && Normalize(a) != ""
}

func newHasher(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case SHA256:
		return sha256.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}
