package output

import (
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/skiff/pkg/models"
)

// planBarTemplate renders the action counter, the bar itself and the
// path currently being worked on
var planBarTemplate pb.ProgressBarTemplate = `{{counters . }} {{bar . }} {{percent . }} {{string . "action"}}`

// maxActionLabel caps the path shown next to the bar so long paths
// don't wrap the line
const maxActionLabel = 50

// ProgressFormatter renders a progress bar over the action count. On a
// terminal it drives a live bar; everywhere else it degrades to the
// plain human formatter so piped output stays line-oriented.
type ProgressFormatter struct {
	writer      io.Writer
	plain       *HumanFormatter
	bar         *pb.ProgressBar
	interactive bool
	width       int
}

// NewProgressFormatter creates a progress-bar formatter writing to w,
// or to stdout when w is nil
func NewProgressFormatter(w io.Writer) *ProgressFormatter {
	if w == nil {
		w = os.Stdout
	}

	f := &ProgressFormatter{
		writer: w,
		plain:  NewHumanFormatter(w),
	}

	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		f.interactive = true
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			f.width = width
		}
	}

	return f
}

// PlanComputed prints a short header and starts the bar
func (f *ProgressFormatter) PlanComputed(actions []models.SyncAction) error {
	if !f.interactive {
		return f.plain.PlanComputed(actions)
	}

	if len(actions) == 0 {
		fmt.Fprintln(f.writer, "Nothing to do, both sides are in sync")
		return nil
	}

	var total int64
	for _, a := range actions {
		total += a.Size
	}
	fmt.Fprintf(f.writer, "Syncing %d actions, %s\n", len(actions), FormatBytes(total))

	f.bar = planBarTemplate.New(len(actions))
	f.bar.SetWriter(f.writer)
	if f.width > 0 {
		f.bar.SetMaxWidth(f.width)
	}
	f.bar.Start()

	return nil
}

// ActionStarted puts the action's path next to the bar
func (f *ProgressFormatter) ActionStarted(action models.SyncAction, step, total int) error {
	if !f.interactive {
		return f.plain.ActionStarted(action, step, total)
	}

	if f.bar != nil {
		f.bar.Set("action", truncatePath(actionTarget(action), maxActionLabel))
	}
	return nil
}

// ActionDone advances the bar. Failures advance it too, the summary
// lists them afterwards.
func (f *ProgressFormatter) ActionDone(action models.SyncAction, step, total int, err error) error {
	if !f.interactive {
		return f.plain.ActionDone(action, step, total, err)
	}

	if f.bar != nil {
		f.bar.Increment()
	}
	return nil
}

// Summary stops the bar and prints the human-readable result
func (f *ProgressFormatter) Summary(result *models.SyncResult) error {
	if f.bar != nil {
		f.bar.Set("action", "")
		f.bar.Finish()
		f.bar = nil
	}
	return f.plain.Summary(result)
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

// truncatePath shortens a path from the left, keeping the more
// interesting trailing components visible
func truncatePath(path string, max int) string {
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}
