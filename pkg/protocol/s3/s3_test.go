package s3

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/verify"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	site := models.NewSite("backups", models.ProtocolS3, "my-bucket")
	site.Credential = models.Credential{Username: "AKIAEXAMPLE", Password: "secret", AuthMethod: models.AuthPassword}
	return New(site, protocol.Options{}).(*Session)
}

func TestRegistered(t *testing.T) {
	site := models.NewSite("backups", models.ProtocolS3, "my-bucket")
	sess, err := protocol.Create(site, protocol.Options{})
	if err != nil {
		t.Fatalf("Create(s3): %v", err)
	}
	if _, ok := sess.(*Session); !ok {
		t.Errorf("Create(s3) returned %T, want *s3.Session", sess)
	}
}

func TestNotConnected(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	checks := map[string]func() error{
		"list":     func() error { _, err := sess.List(ctx, "/"); return err },
		"stat":     func() error { _, err := sess.Stat(ctx, "/a"); return err },
		"exists":   func() error { _, err := sess.Exists(ctx, "/a"); return err },
		"mkdir":    func() error { return sess.Mkdir(ctx, "/a", true) },
		"rmdir":    func() error { return sess.Rmdir(ctx, "/a") },
		"remove":   func() error { return sess.Remove(ctx, "/a") },
		"rename":   func() error { return sess.Rename(ctx, "/a", "/b") },
		"chmod":    func() error { return sess.Chmod(ctx, "/a", 0644) },
		"upload":   func() error { return sess.Upload(ctx, "/tmp/a", "/a", nil) },
		"download": func() error { return sess.Download(ctx, "/a", "/tmp/a", nil) },
		"chdir":    func() error { return sess.Chdir(ctx, "/a") },
		"checksum": func() error { _, err := sess.Checksum(ctx, "/a", verify.MD5); return err },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, protocol.ErrNotConnected) {
				t.Fatalf("%s returned %v, want ErrNotConnected in chain", name, err)
			}
		})
	}
}

func TestKeyMapping(t *testing.T) {
	sess := newTestSession(t)
	sess.cwd = "/archive/2024"

	tests := []struct {
		in   string
		want string
	}{
		{"/reports/q1.csv", "reports/q1.csv"},
		{"q1.csv", "archive/2024/q1.csv"},
		{"../2023/q4.csv", "archive/2023/q4.csv"},
		{".", "archive/2024"},
		{"", "archive/2024"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := sess.key(tt.in); got != tt.want {
			t.Errorf("key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("operation error S3: HeadObject, https response error StatusCode: 404, NotFound"), true},
		{errors.New("NoSuchKey: The specified key does not exist"), true},
		{errors.New("operation error S3: HeadObject, AccessDenied"), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsAccessDenied(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("api error AccessDenied: Access Denied"), true},
		{errors.New("InvalidAccessKeyId: the key does not exist"), true},
		{errors.New("SignatureDoesNotMatch"), true},
		{errors.New("NoSuchBucket"), false},
	}
	for _, tt := range tests {
		if got := isAccessDenied(tt.err); got != tt.want {
			t.Errorf("isAccessDenied(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDetectContentType(t *testing.T) {
	dir := t.TempDir()

	textPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(textPath, []byte("plain text content\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if ct := detectContentType(textPath); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("detectContentType(text) = %q", ct)
	}

	pngPath := filepath.Join(dir, "pixel.png")
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if err := os.WriteFile(pngPath, pngHeader, 0644); err != nil {
		t.Fatal(err)
	}
	if ct := detectContentType(pngPath); ct != "image/png" {
		t.Errorf("detectContentType(png) = %q", ct)
	}

	if ct := detectContentType(filepath.Join(dir, "missing")); ct != "application/octet-stream" {
		t.Errorf("detectContentType(missing) = %q", ct)
	}
}
