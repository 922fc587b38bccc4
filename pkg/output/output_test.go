package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/sdejongh/skiff/pkg/models"
)

func init() {
	// Keep assertions independent of whether the test runner is a terminal
	color.NoColor = true
}

func sampleActions() []models.SyncAction {
	return []models.SyncAction{
		{Kind: models.ActionMkdirRemote, LocalPath: "/local/docs", RemotePath: "/remote/docs", Reason: "new directory"},
		{Kind: models.ActionUpload, LocalPath: "/local/docs/a.txt", RemotePath: "/remote/docs/a.txt", Size: 2048, Reason: "new file"},
		{Kind: models.ActionDeleteRemote, RemotePath: "/remote/old.txt", Reason: "extra file"},
	}
}

func sampleResult() *models.SyncResult {
	actions := sampleActions()
	result := models.NewSyncResult(false)
	result.Planned = actions
	result.Executed = actions[:2]
	result.Errors = []models.ActionError{{Action: actions[2], Message: "remote delete refused"}}
	result.EndTime = result.StartTime.Add(1500 * time.Millisecond)
	return result
}

func TestHumanPlanComputed(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	if err := f.PlanComputed(sampleActions()); err != nil {
		t.Fatalf("PlanComputed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Planned actions (3):",
		"mkdir_remote",
		"upload",
		"/remote/docs/a.txt (2.0 KiB)",
		"[new file]",
		"delete_remote",
		"/remote/old.txt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestHumanPlanComputedEmpty(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	if err := f.PlanComputed(nil); err != nil {
		t.Fatalf("PlanComputed: %v", err)
	}
	if !strings.Contains(buf.String(), "Nothing to do") {
		t.Errorf("empty plan output = %q", buf.String())
	}
}

func TestHumanActionLines(t *testing.T) {
	actions := sampleActions()

	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	f.ActionStarted(actions[1], 2, 3)
	f.ActionDone(actions[1], 2, 3, nil)
	f.ActionDone(actions[2], 3, 3, errors.New("permission denied"))

	out := buf.String()
	if !strings.Contains(out, "[2/3] Upload /local/docs/a.txt -> /remote/docs/a.txt (new file)...") {
		t.Errorf("missing start line:\n%s", out)
	}
	if !strings.Contains(out, "[2/3] ✓ /remote/docs/a.txt") {
		t.Errorf("missing success line:\n%s", out)
	}
	if !strings.Contains(out, "[3/3] ✗ /remote/old.txt: permission denied") {
		t.Errorf("missing failure line:\n%s", out)
	}
}

func TestHumanSummary(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	if err := f.Summary(sampleResult()); err != nil {
		t.Fatalf("Summary: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Sync completed in 1.5s",
		"Planned:   3",
		"Executed:  2",
		"Errors:    1",
		"Data:      2.0 KiB",
		"Average:",
		"/remote/old.txt: remote delete refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestHumanSummaryDryRun(t *testing.T) {
	result := models.NewSyncResult(true)
	result.Planned = sampleActions()
	result.EndTime = result.StartTime.Add(20 * time.Millisecond)

	var buf bytes.Buffer
	f := NewHumanFormatter(&buf)

	if err := f.Summary(result); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !strings.Contains(buf.String(), "Dry run finished") {
		t.Errorf("dry run summary = %q", buf.String())
	}
}

func TestJSONFormatterEvents(t *testing.T) {
	actions := sampleActions()

	var buf bytes.Buffer
	f := NewJSONFormatter(&buf)

	f.PlanComputed(actions)
	f.ActionStarted(actions[0], 1, 3)
	f.ActionDone(actions[0], 1, 3, nil)
	f.ActionDone(actions[2], 3, 3, errors.New("boom"))
	if err := f.Summary(sampleResult()); err != nil {
		t.Fatalf("Summary: %v", err)
	}

	var events []JSONEvent
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}

	wantTypes := []string{"plan", "action", "action", "summary"}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d:\n%s", len(events), len(wantTypes), buf.String())
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d].Type = %q, want %q", i, events[i].Type, want)
		}
	}

	plan := events[0].Data.(map[string]any)
	if plan["count"].(float64) != 3 {
		t.Errorf("plan count = %v, want 3", plan["count"])
	}

	failedAction := events[2].Data.(map[string]any)
	if failedAction["error"] != "boom" {
		t.Errorf("action error = %v, want boom", failedAction["error"])
	}

	summary := events[3].Data.(map[string]any)
	if summary["planned"].(float64) != 3 || summary["executed"].(float64) != 2 {
		t.Errorf("summary counts = %v/%v, want 3/2", summary["planned"], summary["executed"])
	}
	if summary["total_bytes"].(float64) != 2048 {
		t.Errorf("summary total_bytes = %v, want 2048", summary["total_bytes"])
	}
}

func TestWriteReportHuman(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := WriteReport(sampleResult(), path, "human"); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	out := string(data)
	for _, want := range []string{
		"Sync Report",
		"Planned: 3, executed: 2, errors: 1",
		"Uploaded (1)",
		"Remote directories created (1)",
		"Errors (1)",
		"/remote/old.txt: remote delete refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReport(sampleResult(), path, "json"); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, data)
	}
	if report["planned"].(float64) != 3 {
		t.Errorf("planned = %v, want 3", report["planned"])
	}
	if executed := report["executed"].([]any); len(executed) != 2 {
		t.Errorf("executed entries = %d, want 2", len(executed))
	}
}

func TestProgressFallsBackWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	f := NewProgressFormatter(&buf)

	if f.Name() != "progress" {
		t.Errorf("Name() = %q", f.Name())
	}

	actions := sampleActions()
	f.PlanComputed(actions)
	f.ActionStarted(actions[0], 1, 3)
	f.ActionDone(actions[0], 1, 3, nil)
	if err := f.Summary(sampleResult()); err != nil {
		t.Fatalf("Summary: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Planned actions (3):") {
		t.Errorf("fallback should render the plain plan table:\n%s", out)
	}
	if !strings.Contains(out, "Sync completed in") {
		t.Errorf("fallback should render the plain summary:\n%s", out)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{2048, "2.0 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
