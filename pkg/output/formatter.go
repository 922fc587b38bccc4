// Package output renders sync plans and results for the terminal. The
// Formatter interface keeps the commands independent of the presentation,
// so human, JSON and progress-bar output stay interchangeable.
package output

import (
	"github.com/sdejongh/skiff/pkg/models"
)

// Formatter defines the interface for rendering the stages of a sync run
// Implementations include human-readable, JSON and progress-bar formatters
type Formatter interface {
	// PlanComputed shows the planned actions before any of them run
	PlanComputed(actions []models.SyncAction) error

	// ActionStarted announces the action about to run, step counts from 1
	ActionStarted(action models.SyncAction, step, total int) error

	// ActionDone reports the outcome of a single action
	ActionDone(action models.SyncAction, step, total int, err error) error

	// Summary finalizes output and displays the overall result
	Summary(result *models.SyncResult) error

	// Name returns the formatter name
	Name() string
}

// actionTarget picks the path a reader associates with an action, local
// for operations on the local side and remote for the rest
func actionTarget(a models.SyncAction) string {
	switch a.Kind {
	case models.ActionDownload, models.ActionDeleteLocal, models.ActionMkdirLocal:
		return a.LocalPath
	default:
		return a.RemotePath
	}
}
