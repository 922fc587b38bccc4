package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Known digests for "hello world"
const (
	helloSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	helloMD5    = "5eb63bbbe01eeed093cb22bb8f5acdc3"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestChecksum(t *testing.T) {
	path := writeTestFile(t, "hello world")
	ctx := context.Background()

	t.Run("sha256", func(t *testing.T) {
		digest, err := Checksum(ctx, path, SHA256)
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if digest != helloSHA256 {
			t.Errorf("digest = %s, want %s", digest, helloSHA256)
		}
	})

	t.Run("md5", func(t *testing.T) {
		digest, err := Checksum(ctx, path, MD5)
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if digest != helloMD5 {
			t.Errorf("digest = %s, want %s", digest, helloMD5)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		empty := writeTestFile(t, "")
		digest, err := Checksum(ctx, empty, SHA256)
		if err != nil {
			t.Fatalf("Checksum failed: %v", err)
		}
		if digest != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
			t.Errorf("unexpected digest for empty file: %s", digest)
		}
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		if _, err := Checksum(ctx, path, "crc32"); err == nil {
			t.Error("expected error for unsupported algorithm")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Checksum(ctx, filepath.Join(t.TempDir(), "nope"), SHA256); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Checksum(cancelled, path, SHA256); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSum(t *testing.T) {
	digest, err := Sum(strings.NewReader("hello world"), MD5)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if digest != helloMD5 {
		t.Errorf("digest = %s, want %s", digest, helloMD5)
	}

	if _, err := Sum(strings.NewReader("x"), "whirlpool"); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"5eb63bbbe01eeed093cb22bb8f5acdc3"`, helloMD5},
		{"  5EB63BBBE01EEED093CB22BB8F5ACDC3\n", helloMD5},
		{helloMD5, helloMD5},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal(`"`+strings.ToUpper(helloMD5)+`"`, helloMD5) {
		t.Error("expected quoted uppercase digest to match")
	}
	if Equal(helloMD5, helloSHA256) {
		t.Error("different digests must not match")
	}
	if Equal("", "") {
		t.Error("empty digests must not match")
	}
}
