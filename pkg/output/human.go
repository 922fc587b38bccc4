package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/sdejongh/skiff/pkg/models"
)

var kindColors = map[models.ActionKind]*color.Color{
	models.ActionUpload:       color.New(color.FgGreen),
	models.ActionDownload:     color.New(color.FgCyan),
	models.ActionDeleteLocal:  color.New(color.FgRed),
	models.ActionDeleteRemote: color.New(color.FgRed),
	models.ActionMkdirLocal:   color.New(color.FgBlue),
	models.ActionMkdirRemote:  color.New(color.FgBlue),
}

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer io.Writer
}

// NewHumanFormatter creates a human-readable formatter writing to w,
// or to stdout when w is nil
func NewHumanFormatter(w io.Writer) *HumanFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &HumanFormatter{writer: w}
}

// PlanComputed displays the planned actions as a numbered table
func (f *HumanFormatter) PlanComputed(actions []models.SyncAction) error {
	if len(actions) == 0 {
		fmt.Fprintln(f.writer, "Nothing to do, both sides are in sync")
		return nil
	}

	fmt.Fprintf(f.writer, "Planned actions (%d):\n", len(actions))
	for i, action := range actions {
		verb := string(action.Kind)
		if c, ok := kindColors[action.Kind]; ok {
			verb = c.Sprint(verb)
		}
		fmt.Fprintf(f.writer, "  %3d. %-13s %s\n", i+1, verb, planLine(action))
	}

	return nil
}

// ActionStarted announces an action about to run
func (f *HumanFormatter) ActionStarted(action models.SyncAction, step, total int) error {
	fmt.Fprintf(f.writer, "[%d/%d] %s...\n", step, total, action)
	return nil
}

// ActionDone reports the outcome of a single action
func (f *HumanFormatter) ActionDone(action models.SyncAction, step, total int, err error) error {
	if err != nil {
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s: %v\n", step, total, actionTarget(action), err)
		return nil
	}

	fmt.Fprintf(f.writer, "[%d/%d] ✓ %s\n", step, total, actionTarget(action))
	return nil
}

// Summary finalizes output and displays the overall result
func (f *HumanFormatter) Summary(result *models.SyncResult) error {
	duration := result.Duration().Round(time.Millisecond)

	fmt.Fprintf(f.writer, "\n")
	if result.DryRun {
		fmt.Fprintf(f.writer, "Dry run finished in %s, nothing was changed\n", duration)
	} else {
		fmt.Fprintf(f.writer, "Sync completed in %s\n", duration)
	}
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Summary:\n")
	fmt.Fprintf(f.writer, "  Planned:   %d\n", len(result.Planned))
	fmt.Fprintf(f.writer, "  Executed:  %d\n", result.SuccessCount())
	fmt.Fprintf(f.writer, "  Errors:    %d\n", result.ErrorCount())
	fmt.Fprintf(f.writer, "  Data:      %s\n", FormatBytes(result.TotalSize()))

	if secs := result.Duration().Seconds(); secs > 0 && result.TotalSize() > 0 {
		avgSpeed := int64(float64(result.TotalSize()) / secs)
		fmt.Fprintf(f.writer, "  Average:   %s/s\n", FormatBytes(avgSpeed))
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(f.writer, "\nErrors:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(f.writer, "  %s: %s\n", actionTarget(e.Action), e.Message)
		}
	}

	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

// planLine renders the path and reason for one plan table row
func planLine(a models.SyncAction) string {
	line := actionTarget(a)
	if a.Kind == models.ActionUpload || a.Kind == models.ActionDownload {
		line += fmt.Sprintf(" (%s)", FormatBytes(a.Size))
	}
	if a.Reason != "" {
		line += fmt.Sprintf("  [%s]", a.Reason)
	}
	return line
}

// FormatBytes formats bytes in human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
