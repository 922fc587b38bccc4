package models

import "time"

// ActionError pairs a failed action with its error text
type ActionError struct {
	Action  SyncAction
	Message string
}

// SyncResult is the aggregate outcome of one sync run. It is created when
// execution starts and read-only once execution ends.
type SyncResult struct {
	// Planned holds every action the comparison produced, in plan order
	Planned []SyncAction

	// Executed holds the successfully applied actions, a subset of
	// Planned in plan order
	Executed []SyncAction

	Errors []ActionError

	StartTime time.Time
	EndTime   time.Time
	DryRun    bool
}

// NewSyncResult starts a result with the clock running
func NewSyncResult(dryRun bool) *SyncResult {
	return &SyncResult{
		StartTime: time.Now(),
		DryRun:    dryRun,
	}
}

// Duration returns the elapsed run time, 0 while the run is still open
func (r *SyncResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// SuccessCount is the number of actions applied without error
func (r *SyncResult) SuccessCount() int {
	return len(r.Executed)
}

// ErrorCount is the number of actions that failed
func (r *SyncResult) ErrorCount() int {
	return len(r.Errors)
}

// TotalSize is the byte sum of executed actions
func (r *SyncResult) TotalSize() int64 {
	var total int64
	for _, a := range r.Executed {
		total += a.Size
	}
	return total
}
