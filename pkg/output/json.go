package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sdejongh/skiff/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting.
// Events are accumulated during the run and written as a single array
// when the summary arrives, keeping the output parseable as one document.
type JSONFormatter struct {
	writer io.Writer
	events []JSONEvent
}

// JSONEvent represents a single event in the JSON output stream
type JSONEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
}

// JSONActionData represents one planned or executed action
type JSONActionData struct {
	Kind       string `json:"kind"`
	LocalPath  string `json:"local_path,omitempty"`
	RemotePath string `json:"remote_path,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Step       int    `json:"step,omitempty"`
	Total      int    `json:"total,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JSONPlanData represents the data for a plan event
type JSONPlanData struct {
	Count   int              `json:"count"`
	Actions []JSONActionData `json:"actions"`
}

// JSONSummaryData represents the final result data
type JSONSummaryData struct {
	DryRun     bool             `json:"dry_run"`
	Duration   string           `json:"duration"`
	DurationMs int64            `json:"duration_ms"`
	Planned    int              `json:"planned"`
	Executed   int              `json:"executed"`
	Errors     int              `json:"errors"`
	TotalBytes int64            `json:"total_bytes"`
	Failed     []JSONActionData `json:"failed,omitempty"`
}

// NewJSONFormatter creates a JSON formatter writing to w, or to stdout
// when w is nil
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONFormatter{
		writer: w,
		events: make([]JSONEvent, 0),
	}
}

// PlanComputed records the plan event
func (f *JSONFormatter) PlanComputed(actions []models.SyncAction) error {
	f.events = append(f.events, JSONEvent{
		Timestamp: time.Now(),
		Type:      "plan",
		Data: JSONPlanData{
			Count:   len(actions),
			Actions: jsonActions(actions),
		},
	})
	return nil
}

// ActionStarted is a no-op; the action event is recorded once its
// outcome is known, keeping the output free of duplicate entries
func (f *JSONFormatter) ActionStarted(action models.SyncAction, step, total int) error {
	return nil
}

// ActionDone records the outcome of a single action
func (f *JSONFormatter) ActionDone(action models.SyncAction, step, total int, err error) error {
	data := jsonAction(action)
	data.Step = step
	data.Total = total
	if err != nil {
		data.Error = err.Error()
	}

	f.events = append(f.events, JSONEvent{
		Timestamp: time.Now(),
		Type:      "action",
		Data:      data,
	})
	return nil
}

// Summary records the final result and writes the accumulated events
// as one indented JSON array
func (f *JSONFormatter) Summary(result *models.SyncResult) error {
	var failed []JSONActionData
	for _, e := range result.Errors {
		data := jsonAction(e.Action)
		data.Error = e.Message
		failed = append(failed, data)
	}

	f.events = append(f.events, JSONEvent{
		Timestamp: time.Now(),
		Type:      "summary",
		Data: JSONSummaryData{
			DryRun:     result.DryRun,
			Duration:   result.Duration().Round(time.Millisecond).String(),
			DurationMs: result.Duration().Milliseconds(),
			Planned:    len(result.Planned),
			Executed:   result.SuccessCount(),
			Errors:     result.ErrorCount(),
			TotalBytes: result.TotalSize(),
			Failed:     failed,
		},
	})

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.events)
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func jsonAction(a models.SyncAction) JSONActionData {
	return JSONActionData{
		Kind:       string(a.Kind),
		LocalPath:  a.LocalPath,
		RemotePath: a.RemotePath,
		Size:       a.Size,
		Reason:     a.Reason,
	}
}

// WritePlanJSON encodes a computed plan to w without executing it. It is
// used by commands that only want the action list, where the formatter's
// event stream would never reach its Summary call.
func WritePlanJSON(w io.Writer, actions []models.SyncAction) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(JSONPlanData{
		Count:   len(actions),
		Actions: jsonActions(actions),
	})
}

func jsonActions(actions []models.SyncAction) []JSONActionData {
	out := make([]JSONActionData, 0, len(actions))
	for _, a := range actions {
		out = append(out, jsonAction(a))
	}
	return out
}
