package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
)

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()

	root := t.TempDir()
	site := models.NewSite("scratch", models.ProtocolLocal, "")
	site.RemotePath = root

	sess := New(site, protocol.Options{}).(*Session)
	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return sess, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestConnectSetsWorkingDirectory(t *testing.T) {
	sess, root := newTestSession(t)

	if sess.Cwd() != filepath.ToSlash(root) {
		t.Errorf("Cwd = %q, want %q", sess.Cwd(), filepath.ToSlash(root))
	}
	if !sess.Connected() {
		t.Error("expected session to be connected")
	}

	if err := sess.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if sess.Connected() {
		t.Error("expected session to be disconnected")
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	site := models.NewSite("scratch", models.ProtocolLocal, "")
	sess := New(site, protocol.Options{})
	ctx := context.Background()

	_, err := sess.List(ctx, "/")
	var connErr *protocol.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if !errors.Is(err, protocol.ErrNotConnected) {
		t.Error("expected ErrNotConnected in the chain")
	}
}

func TestList(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "beta")

	files, err := sess.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(files))
	}

	byName := make(map[string]models.RemoteFile)
	for _, f := range files {
		byName[f.Name] = f
	}

	if f, ok := byName["a.txt"]; !ok || f.Type != models.FileTypeFile || f.Size != 5 {
		t.Errorf("unexpected a.txt entry: %+v", f)
	}
	if d, ok := byName["sub"]; !ok || !d.IsDir() {
		t.Errorf("unexpected sub entry: %+v", d)
	}
	if byName["a.txt"].Modified == nil {
		t.Error("expected a modification time")
	}

	t.Run("missing directory", func(t *testing.T) {
		_, err := sess.List(ctx, "does-not-exist")
		var opErr *protocol.FileOperationError
		if !errors.As(err, &opErr) {
			t.Fatalf("expected FileOperationError, got %v", err)
		}
		if opErr.Op != "list" {
			t.Errorf("op = %s, want list", opErr.Op)
		}
	})
}

func TestStatAndExists(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "file.bin"), "12345678")

	info, err := sess.Stat(ctx, "file.bin")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size != 8 || info.Name != "file.bin" || info.IsDir() {
		t.Errorf("unexpected stat result: %+v", info)
	}

	ok, err := sess.Exists(ctx, "file.bin")
	if err != nil || !ok {
		t.Errorf("Exists = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = sess.Exists(ctx, "ghost.bin")
	if err != nil || ok {
		t.Errorf("Exists = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestMkdirRmdir(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	t.Run("recursive", func(t *testing.T) {
		if err := sess.Mkdir(ctx, "a/b/c", true); err != nil {
			t.Fatalf("Mkdir failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "a", "b", "c")); err != nil {
			t.Errorf("directory not created: %v", err)
		}
	})

	t.Run("non-recursive needs parent", func(t *testing.T) {
		if err := sess.Mkdir(ctx, "x/y", false); err == nil {
			t.Error("expected error without parent")
		}
	})

	t.Run("rmdir refuses non-empty", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "a", "b", "c", "keep.txt"), "x")
		if err := sess.Rmdir(ctx, "a/b/c"); err == nil {
			t.Error("expected error for non-empty directory")
		}
	})

	t.Run("rmdir removes empty", func(t *testing.T) {
		if err := os.Remove(filepath.Join(root, "a", "b", "c", "keep.txt")); err != nil {
			t.Fatal(err)
		}
		if err := sess.Rmdir(ctx, "a/b/c"); err != nil {
			t.Fatalf("Rmdir failed: %v", err)
		}
	})

	t.Run("rmdir rejects files", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "plain.txt"), "x")
		if err := sess.Rmdir(ctx, "plain.txt"); err == nil {
			t.Error("expected error for file path")
		}
	})
}

func TestRemove(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "doomed.txt"), "x")
	if err := sess.Remove(ctx, "doomed.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "doomed.txt")); !os.IsNotExist(err) {
		t.Error("file still exists")
	}

	if err := sess.Mkdir(ctx, "dir", false); err != nil {
		t.Fatal(err)
	}
	if err := sess.Remove(ctx, "dir"); err == nil {
		t.Error("Remove must reject directories")
	}
}

func TestRenameAndChmod(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "old.txt"), "content")

	if err := sess.Rename(ctx, "old.txt", "new.txt"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "new.txt")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}

	if err := sess.Chmod(ctx, "new.txt", 0600); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "new.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %o, want 0600", info.Mode().Perm())
	}
}

func TestUploadDownload(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "upload.dat")
	writeFile(t, srcPath, "payload-data")

	t.Run("upload reports progress", func(t *testing.T) {
		var finalTransferred, finalTotal int64
		err := sess.Upload(ctx, srcPath, "dest/upload.dat", func(transferred, total int64) {
			finalTransferred, finalTotal = transferred, total
		})
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(root, "dest", "upload.dat"))
		if err != nil {
			t.Fatalf("uploaded file missing: %v", err)
		}
		if string(data) != "payload-data" {
			t.Errorf("unexpected content %q", data)
		}
		if finalTransferred != int64(len("payload-data")) || finalTotal != finalTransferred {
			t.Errorf("final progress = (%d, %d)", finalTransferred, finalTotal)
		}
	})

	t.Run("download", func(t *testing.T) {
		dstPath := filepath.Join(t.TempDir(), "nested", "download.dat")
		if err := sess.Download(ctx, "dest/upload.dat", dstPath, nil); err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		data, err := os.ReadFile(dstPath)
		if err != nil {
			t.Fatalf("downloaded file missing: %v", err)
		}
		if string(data) != "payload-data" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("upload missing source", func(t *testing.T) {
		err := sess.Upload(ctx, filepath.Join(srcDir, "ghost"), "dest/ghost", nil)
		var opErr *protocol.FileOperationError
		if !errors.As(err, &opErr) {
			t.Fatalf("expected FileOperationError, got %v", err)
		}
	})

	t.Run("cancelled upload leaves no partial file", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		err := sess.Upload(cancelled, srcPath, "dest/cancelled.dat", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if _, serr := os.Stat(filepath.Join(root, "dest", "cancelled.dat")); !os.IsNotExist(serr) {
			t.Error("partial file left behind")
		}
	})
}

func TestChdir(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(root, "inner"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := sess.Chdir(ctx, "inner"); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	if sess.Cwd() != filepath.ToSlash(filepath.Join(root, "inner")) {
		t.Errorf("Cwd = %q", sess.Cwd())
	}

	// Relative operations resolve against the new directory
	writeFile(t, filepath.Join(root, "inner", "here.txt"), "x")
	ok, err := sess.Exists(ctx, "here.txt")
	if err != nil || !ok {
		t.Errorf("Exists = (%v, %v), want (true, nil)", ok, err)
	}

	if err := sess.Chdir(ctx, "missing"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestChecksum(t *testing.T) {
	sess, root := newTestSession(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "sum.txt"), "hello world")

	digest, err := sess.Checksum(ctx, "sum.txt", "md5")
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if digest != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("digest = %s", digest)
	}

	// The session satisfies the optional capability interface
	var _ protocol.Checksummer = sess
}
