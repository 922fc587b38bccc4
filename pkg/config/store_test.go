package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdejongh/skiff/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func testSite(name string) *models.Site {
	site := models.NewSite(name, models.ProtocolSFTP, name+".example.com")
	site.Credential = models.Credential{
		Username:   "deploy",
		Password:   "hunter2",
		AuthMethod: models.AuthPassword,
	}
	return site
}

func TestStoreSites(t *testing.T) {
	store := newTestStore(t)

	t.Run("empty store", func(t *testing.T) {
		sites, err := store.LoadSites()
		if err != nil {
			t.Fatalf("LoadSites failed: %v", err)
		}
		if len(sites) != 0 {
			t.Errorf("expected no sites, got %d", len(sites))
		}
	})

	site := testSite("staging")

	t.Run("add and find", func(t *testing.T) {
		if err := store.AddSite(site); err != nil {
			t.Fatalf("AddSite failed: %v", err)
		}

		byName, err := store.FindSite("STAGING")
		if err != nil {
			t.Fatalf("FindSite by name failed: %v", err)
		}
		if byName.ID != site.ID {
			t.Error("lookup by name returned wrong site")
		}

		byID, err := store.FindSite(site.ID)
		if err != nil {
			t.Fatalf("FindSite by id failed: %v", err)
		}
		if byID.Hostname != "staging.example.com" {
			t.Errorf("unexpected hostname %s", byID.Hostname)
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		dup := testSite("Staging")
		if err := store.AddSite(dup); err == nil {
			t.Error("expected error for duplicate name")
		}
	})

	t.Run("invalid site rejected", func(t *testing.T) {
		bad := testSite("broken")
		bad.Port = 99999
		if err := store.AddSite(bad); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("update", func(t *testing.T) {
		site.Notes = "primary staging box"
		if err := store.UpdateSite(site); err != nil {
			t.Fatalf("UpdateSite failed: %v", err)
		}

		found, err := store.FindSite(site.ID)
		if err != nil {
			t.Fatalf("FindSite failed: %v", err)
		}
		if found.Notes != "primary staging box" {
			t.Error("update not persisted")
		}
	})

	t.Run("update unknown site", func(t *testing.T) {
		ghost := testSite("ghost")
		err := store.UpdateSite(ghost)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sites file is private", func(t *testing.T) {
		info, err := os.Stat(store.SitesPath())
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("sites file mode = %o, want 0600", info.Mode().Perm())
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := store.RemoveSite("staging"); err != nil {
			t.Fatalf("RemoveSite failed: %v", err)
		}
		if _, err := store.FindSite("staging"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after removal, got %v", err)
		}
	})
}

func TestSitesByFolder(t *testing.T) {
	store := newTestStore(t)

	a := testSite("alpha")
	a.Folder = "work"
	b := testSite("beta")
	b.Folder = "work"
	c := testSite("gamma")

	for _, site := range []*models.Site{a, b, c} {
		if err := store.AddSite(site); err != nil {
			t.Fatalf("AddSite failed: %v", err)
		}
	}

	work, err := store.SitesByFolder("work")
	if err != nil {
		t.Fatalf("SitesByFolder failed: %v", err)
	}
	if len(work) != 2 {
		t.Errorf("expected 2 sites in work folder, got %d", len(work))
	}

	root, err := store.SitesByFolder("")
	if err != nil {
		t.Fatalf("SitesByFolder failed: %v", err)
	}
	if len(root) != 1 || root[0].Name != "gamma" {
		t.Errorf("unexpected root folder contents: %d sites", len(root))
	}
}

func TestExportImportSites(t *testing.T) {
	store := newTestStore(t)
	site := testSite("prod")
	site.Credential.KeyPassphrase = "swordfish"
	if err := store.AddSite(site); err != nil {
		t.Fatalf("AddSite failed: %v", err)
	}

	t.Run("export strips secrets by default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.yaml")
		if err := store.ExportSites(path, false); err != nil {
			t.Fatalf("ExportSites failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read export failed: %v", err)
		}
		text := string(data)
		if strings.Contains(text, "hunter2") || strings.Contains(text, "swordfish") {
			t.Error("export leaked secrets")
		}
		if !strings.Contains(text, "deploy") {
			t.Error("export should keep the username")
		}

		// Stripping must not touch the stored site
		stored, err := store.FindSite("prod")
		if err != nil {
			t.Fatalf("FindSite failed: %v", err)
		}
		if stored.Credential.Password != "hunter2" {
			t.Error("export mutated the stored credential")
		}
	})

	t.Run("export with credentials", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.yaml")
		if err := store.ExportSites(path, true); err != nil {
			t.Fatalf("ExportSites failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read export failed: %v", err)
		}
		if !strings.Contains(string(data), "hunter2") {
			t.Error("expected credentials in export")
		}
	})

	t.Run("import into fresh store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.yaml")
		if err := store.ExportSites(path, true); err != nil {
			t.Fatalf("ExportSites failed: %v", err)
		}

		fresh := newTestStore(t)
		n, err := fresh.ImportSites(path)
		if err != nil {
			t.Fatalf("ImportSites failed: %v", err)
		}
		if n != 1 {
			t.Errorf("imported %d sites, want 1", n)
		}

		found, err := fresh.FindSite("prod")
		if err != nil {
			t.Fatalf("FindSite after import failed: %v", err)
		}
		if found.Credential.Password != "hunter2" {
			t.Error("import lost the credential")
		}
	})

	t.Run("import upserts by id", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.yaml")
		if err := store.ExportSites(path, true); err != nil {
			t.Fatalf("ExportSites failed: %v", err)
		}

		n, err := store.ImportSites(path)
		if err != nil {
			t.Fatalf("ImportSites failed: %v", err)
		}
		if n != 1 {
			t.Errorf("imported %d sites, want 1", n)
		}

		sites, err := store.LoadSites()
		if err != nil {
			t.Fatalf("LoadSites failed: %v", err)
		}
		if len(sites) != 1 {
			t.Errorf("expected 1 site after re-import, got %d", len(sites))
		}
	})

	t.Run("import skips invalid entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "import.yaml")
		mixed := `sites:
  - id: abc-1
    name: valid
    protocol: ftp
    hostname: ok.example.com
    port: 21
  - id: abc-2
    name: ""
    protocol: ftp
    hostname: broken.example.com
    port: 21
`
		if err := os.WriteFile(path, []byte(mixed), 0644); err != nil {
			t.Fatalf("write import file failed: %v", err)
		}

		fresh := newTestStore(t)
		n, err := fresh.ImportSites(path)
		if err != nil {
			t.Fatalf("ImportSites failed: %v", err)
		}
		if n != 1 {
			t.Errorf("imported %d sites, want 1", n)
		}
	})
}

func TestStoreProfiles(t *testing.T) {
	store := newTestStore(t)

	profile := models.NewSyncProfile("docs", "site-1", "/home/user/docs", "/var/www/docs")

	t.Run("add and find", func(t *testing.T) {
		if err := store.AddProfile(profile); err != nil {
			t.Fatalf("AddProfile failed: %v", err)
		}

		found, err := store.FindProfile("Docs")
		if err != nil {
			t.Fatalf("FindProfile failed: %v", err)
		}
		if found.ID != profile.ID {
			t.Error("lookup returned wrong profile")
		}
		if found.Mode != models.SyncModeMirror {
			t.Errorf("mode = %s, want mirror", found.Mode)
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		dup := models.NewSyncProfile("DOCS", "site-1", "/a", "/b")
		if err := store.AddProfile(dup); err == nil {
			t.Error("expected error for duplicate name")
		}
	})

	t.Run("update", func(t *testing.T) {
		profile.Mode = models.SyncModeUploadOnly
		if err := store.UpdateProfile(profile); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}

		found, err := store.FindProfile(profile.ID)
		if err != nil {
			t.Fatalf("FindProfile failed: %v", err)
		}
		if found.Mode != models.SyncModeUploadOnly {
			t.Error("update not persisted")
		}
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		bad := models.NewSyncProfile("bad", "site-1", "/a", "/b")
		bad.Mode = models.SyncMode("sideways")
		if err := store.AddProfile(bad); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := store.RemoveProfile("docs"); err != nil {
			t.Fatalf("RemoveProfile failed: %v", err)
		}
		if _, err := store.FindProfile("docs"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
