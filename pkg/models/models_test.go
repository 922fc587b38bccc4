package models

import (
	"strings"
	"testing"
	"time"
)

// ============== TransferItem Tests ==============

func TestNewTransferItem(t *testing.T) {
	item := NewTransferItem("site-1", DirectionUpload, "/tmp/a.txt", "/srv/a.txt")

	if item.ID == "" {
		t.Error("ID should be generated")
	}
	if item.Status != StatusPending {
		t.Errorf("Status = %s, want %s", item.Status, StatusPending)
	}
	if item.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", item.MaxRetries)
	}
	if item.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", item.RetryCount)
	}
	if !item.VerifyChecksum {
		t.Error("VerifyChecksum should default to true")
	}
	if !item.PreserveTimestamp {
		t.Error("PreserveTimestamp should default to true")
	}
	if !item.CreateDirectories {
		t.Error("CreateDirectories should default to true")
	}
	if item.StartedAt != nil || item.CompletedAt != nil {
		t.Error("timestamps should be unset at creation")
	}

	other := NewTransferItem("site-1", DirectionUpload, "/tmp/a.txt", "/srv/a.txt")
	if other.ID == item.ID {
		t.Error("ids should be unique")
	}
}

func TestTransferItemProgress(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		transferred int64
		want        float64
	}{
		{"ZeroSize", 0, 0, 0},
		{"ZeroSizeWithBytes", 0, 512, 0},
		{"Halfway", 100, 50, 0.5},
		{"Complete", 100, 100, 1},
		{"OverSize", 100, 150, 1},
		{"NotStarted", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &TransferItem{Size: tt.size, Transferred: tt.transferred}
			if got := item.Progress(); got != tt.want {
				t.Errorf("Progress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransferItemCanRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		retryCount int
		maxRetries int
		want       bool
	}{
		{"FailedWithBudget", StatusFailed, 0, 3, true},
		{"FailedLastAttempt", StatusFailed, 2, 3, true},
		{"FailedExhausted", StatusFailed, 3, 3, false},
		{"PendingNotRetryable", StatusPending, 0, 3, false},
		{"RunningNotRetryable", StatusRunning, 0, 3, false},
		{"CompletedNotRetryable", StatusCompleted, 0, 3, false},
		{"CancelledNotRetryable", StatusCancelled, 0, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &TransferItem{Status: tt.status, RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
			if got := item.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	open := []Status{StatusPending, StatusRunning, StatusPaused}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestTransferItemClone(t *testing.T) {
	started := time.Now()
	item := NewTransferItem("site-1", DirectionDownload, "/tmp/b", "/srv/b")
	item.StartedAt = &started
	item.Transferred = 42

	clone := item.Clone()
	clone.Transferred = 7
	*clone.StartedAt = started.Add(time.Hour)

	if item.Transferred != 42 {
		t.Errorf("original Transferred mutated: %d", item.Transferred)
	}
	if !item.StartedAt.Equal(started) {
		t.Error("original StartedAt mutated through clone")
	}
}

// ============== Site Tests ==============

func TestNewSiteDefaults(t *testing.T) {
	site := NewSite("backup", ProtocolSFTP, "files.example.com")

	if site.ID == "" {
		t.Error("ID should be generated")
	}
	if site.Port != 22 {
		t.Errorf("Port = %d, want 22", site.Port)
	}
	if !site.PassiveMode {
		t.Error("PassiveMode should default to true")
	}
	if site.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", site.TimeoutSeconds)
	}
	if !site.VerifyCert {
		t.Error("VerifyCert should default to true")
	}
	if site.Address() != "files.example.com:22" {
		t.Errorf("Address() = %s", site.Address())
	}
}

func TestProtocolDefaultPort(t *testing.T) {
	tests := []struct {
		protocol Protocol
		want     int
	}{
		{ProtocolFTP, 21},
		{ProtocolFTPS, 21},
		{ProtocolSFTP, 22},
		{ProtocolS3, 0},
		{ProtocolLocal, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.protocol), func(t *testing.T) {
			if got := tt.protocol.DefaultPort(); got != tt.want {
				t.Errorf("DefaultPort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSiteValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		site := NewSite("srv", ProtocolFTP, "ftp.example.com")
		if err := site.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		site := NewSite("", ProtocolFTP, "ftp.example.com")
		if err := site.Validate(); err == nil {
			t.Error("expected error for missing name")
		}
	})

	t.Run("MissingHostname", func(t *testing.T) {
		site := NewSite("srv", ProtocolSFTP, "")
		if err := site.Validate(); err == nil {
			t.Error("expected error for missing hostname")
		}
	})

	t.Run("LocalWithoutHostname", func(t *testing.T) {
		site := NewSite("here", ProtocolLocal, "")
		if err := site.Validate(); err != nil {
			t.Errorf("local site should not require a hostname: %v", err)
		}
	})

	t.Run("PortOutOfRange", func(t *testing.T) {
		site := NewSite("srv", ProtocolFTP, "ftp.example.com")
		site.Port = 70000
		err := site.Validate()
		if err == nil {
			t.Fatal("expected error for port out of range")
		}
		verr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("error type = %T, want *ValidationError", err)
		}
		if verr.Field != "Port" {
			t.Errorf("Field = %s, want Port", verr.Field)
		}
	})
}

func TestCredentialResolvePassword(t *testing.T) {
	t.Run("Direct", func(t *testing.T) {
		c := &Credential{Password: "hunter2"}
		if got := c.ResolvePassword(); got != "hunter2" {
			t.Errorf("ResolvePassword() = %q", got)
		}
	})

	t.Run("FromEnv", func(t *testing.T) {
		t.Setenv("SKIFF_TEST_PASSWORD", "fromenv")
		c := &Credential{PasswordEnv: "SKIFF_TEST_PASSWORD"}
		if got := c.ResolvePassword(); got != "fromenv" {
			t.Errorf("ResolvePassword() = %q, want fromenv", got)
		}
	})

	t.Run("DirectWinsOverEnv", func(t *testing.T) {
		t.Setenv("SKIFF_TEST_PASSWORD", "fromenv")
		c := &Credential{Password: "direct", PasswordEnv: "SKIFF_TEST_PASSWORD"}
		if got := c.ResolvePassword(); got != "direct" {
			t.Errorf("ResolvePassword() = %q, want direct", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		c := &Credential{}
		if got := c.ResolvePassword(); got != "" {
			t.Errorf("ResolvePassword() = %q, want empty", got)
		}
	})
}

// ============== RemoteFile Tests ==============

func TestRemoteFile(t *testing.T) {
	t.Run("IsDir", func(t *testing.T) {
		dir := &RemoteFile{Name: "docs", Type: FileTypeDirectory}
		file := &RemoteFile{Name: "a.txt", Type: FileTypeFile}
		if !dir.IsDir() {
			t.Error("directory IsDir() = false")
		}
		if file.IsDir() {
			t.Error("file IsDir() = true")
		}
	})

	t.Run("IsHidden", func(t *testing.T) {
		if !(&RemoteFile{Name: ".bashrc"}).IsHidden() {
			t.Error(".bashrc should be hidden")
		}
		if (&RemoteFile{Name: "readme"}).IsHidden() {
			t.Error("readme should not be hidden")
		}
	})

	t.Run("Extension", func(t *testing.T) {
		tests := []struct {
			name string
			want string
		}{
			{"report.PDF", ".pdf"},
			{"archive.tar.gz", ".gz"},
			{"noext", ""},
		}
		for _, tt := range tests {
			f := &RemoteFile{Name: tt.name}
			if got := f.Extension(); got != tt.want {
				t.Errorf("Extension(%s) = %q, want %q", tt.name, got, tt.want)
			}
		}
	})
}

// ============== SyncProfile Tests ==============

func TestNewSyncProfileDefaults(t *testing.T) {
	p := NewSyncProfile("docs", "site-1", "/home/me/docs", "/srv/docs")

	if p.ID == "" {
		t.Error("ID should be generated")
	}
	if p.Mode != SyncModeMirror {
		t.Errorf("Mode = %s, want %s", p.Mode, SyncModeMirror)
	}
	if !p.PreserveTimestamps {
		t.Error("PreserveTimestamps should default to true")
	}
	if p.DeleteExtra {
		t.Error("DeleteExtra should default to false")
	}
	if p.DryRun {
		t.Error("DryRun should default to false")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestSyncProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SyncProfile)
		field  string
	}{
		{"MissingName", func(p *SyncProfile) { p.Name = "" }, "Name"},
		{"MissingSite", func(p *SyncProfile) { p.SiteID = "" }, "SiteID"},
		{"MissingLocal", func(p *SyncProfile) { p.LocalPath = "" }, "LocalPath"},
		{"MissingRemote", func(p *SyncProfile) { p.RemotePath = "" }, "RemotePath"},
		{"BadMode", func(p *SyncProfile) { p.Mode = "sideways" }, "Mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSyncProfile("docs", "site-1", "/a", "/b")
			tt.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

func TestSyncModeValid(t *testing.T) {
	for _, m := range []SyncMode{SyncModeMirror, SyncModeBidirectional, SyncModeUploadOnly, SyncModeDownloadOnly} {
		if !m.Valid() {
			t.Errorf("%s.Valid() = false, want true", m)
		}
	}
	if SyncMode("both-ways").Valid() {
		t.Error("unknown mode reported valid")
	}
}

// ============== SyncAction Tests ==============

func TestSyncActionString(t *testing.T) {
	tests := []struct {
		name   string
		action SyncAction
		want   string
	}{
		{
			"Upload",
			SyncAction{Kind: ActionUpload, LocalPath: "/l/a", RemotePath: "/r/a", Reason: "new file"},
			"Upload /l/a -> /r/a (new file)",
		},
		{
			"Download",
			SyncAction{Kind: ActionDownload, LocalPath: "/l/a", RemotePath: "/r/a", Reason: "remote newer"},
			"Download /r/a -> /l/a (remote newer)",
		},
		{
			"DeleteLocal",
			SyncAction{Kind: ActionDeleteLocal, LocalPath: "/l/old", Reason: "extra file"},
			"Delete local /l/old (extra file)",
		},
		{
			"DeleteRemote",
			SyncAction{Kind: ActionDeleteRemote, RemotePath: "/r/old", Reason: "extra file"},
			"Delete remote /r/old (extra file)",
		},
		{
			"MkdirLocal",
			SyncAction{Kind: ActionMkdirLocal, LocalPath: "/l/new"},
			"Create local directory /l/new",
		},
		{
			"MkdirRemote",
			SyncAction{Kind: ActionMkdirRemote, RemotePath: "/r/new"},
			"Create remote directory /r/new",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============== SyncResult Tests ==============

func TestSyncResult(t *testing.T) {
	r := NewSyncResult(false)
	if r.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
	if r.Duration() != 0 {
		t.Error("Duration should be 0 while the run is open")
	}

	r.Executed = []SyncAction{
		{Kind: ActionUpload, Size: 100},
		{Kind: ActionUpload, Size: 50},
		{Kind: ActionMkdirRemote},
	}
	r.Errors = []ActionError{
		{Action: SyncAction{Kind: ActionDownload}, Message: "connection reset"},
	}
	r.EndTime = r.StartTime.Add(3 * time.Second)

	if got := r.SuccessCount(); got != 3 {
		t.Errorf("SuccessCount() = %d, want 3", got)
	}
	if got := r.ErrorCount(); got != 1 {
		t.Errorf("ErrorCount() = %d, want 1", got)
	}
	if got := r.TotalSize(); got != 150 {
		t.Errorf("TotalSize() = %d, want 150", got)
	}
	if got := r.Duration(); got != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", got)
	}
}

// ============== ValidationError Tests ==============

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
	if !strings.Contains(err.Error(), "Port") {
		t.Errorf("Error() = %q, should contain field name", err.Error())
	}
}
