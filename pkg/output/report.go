package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sdejongh/skiff/pkg/models"
)

// WriteReport writes a sync report to a file
// Format can be "human" or "json"
func WriteReport(result *models.SyncResult, path string, format string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		return writeReportJSON(result, file)
	default: // "human"
		return writeReportHuman(result, file)
	}
}

// writeReportHuman writes the report in human-readable format
func writeReportHuman(result *models.SyncResult, w io.Writer) error {
	fmt.Fprintf(w, "Sync Report\n")
	fmt.Fprintf(w, "===========\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Dry Run: %v\n", result.DryRun)
	fmt.Fprintf(w, "Duration: %s\n\n", formatDuration(result.Duration()))

	fmt.Fprintf(w, "Planned: %d, executed: %d, errors: %d, data: %s\n\n",
		len(result.Planned), result.SuccessCount(), result.ErrorCount(),
		FormatBytes(result.TotalSize()))

	// Group executed actions by kind
	byKind := make(map[models.ActionKind][]models.SyncAction)
	for _, action := range result.Executed {
		byKind[action.Kind] = append(byKind[action.Kind], action)
	}

	kindOrder := []models.ActionKind{
		models.ActionUpload,
		models.ActionDownload,
		models.ActionMkdirRemote,
		models.ActionMkdirLocal,
		models.ActionDeleteRemote,
		models.ActionDeleteLocal,
	}

	kindLabels := map[models.ActionKind]string{
		models.ActionUpload:       "Uploaded",
		models.ActionDownload:     "Downloaded",
		models.ActionMkdirRemote:  "Remote directories created",
		models.ActionMkdirLocal:   "Local directories created",
		models.ActionDeleteRemote: "Deleted on remote",
		models.ActionDeleteLocal:  "Deleted locally",
	}

	for _, kind := range kindOrder {
		actions, exists := byKind[kind]
		if !exists || len(actions) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d)", kindLabels[kind], len(actions))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))

		for _, action := range actions {
			fmt.Fprintf(w, "  %s", actionTarget(action))
			if action.Reason != "" {
				fmt.Fprintf(w, "  [%s]", action.Reason)
			}
			fmt.Fprintf(w, "\n")
		}

		fmt.Fprintf(w, "\n")
	}

	if len(result.Errors) > 0 {
		label := fmt.Sprintf("Errors (%d)", len(result.Errors))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s: %s\n", actionTarget(e.Action), e.Message)
		}
	}

	return nil
}

// writeReportJSON writes the report in JSON format
func writeReportJSON(result *models.SyncResult, w io.Writer) error {
	var failed []JSONActionData
	for _, e := range result.Errors {
		data := jsonAction(e.Action)
		data.Error = e.Message
		failed = append(failed, data)
	}

	output := struct {
		Generated  string           `json:"generated"`
		DryRun     bool             `json:"dry_run"`
		Duration   string           `json:"duration"`
		DurationMs int64            `json:"duration_ms"`
		Planned    int              `json:"planned"`
		TotalBytes int64            `json:"total_bytes"`
		Executed   []JSONActionData `json:"executed"`
		Errors     []JSONActionData `json:"errors,omitempty"`
	}{
		Generated:  time.Now().Format(time.RFC3339),
		DryRun:     result.DryRun,
		Duration:   result.Duration().Round(time.Millisecond).String(),
		DurationMs: result.Duration().Milliseconds(),
		Planned:    len(result.Planned),
		TotalBytes: result.TotalSize(),
		Executed:   jsonActions(result.Executed),
		Errors:     failed,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
