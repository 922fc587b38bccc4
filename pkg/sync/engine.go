// Package sync reconciles a local directory tree with a remote one. A
// comparison pass scans both sides and produces an ordered action plan,
// an execution pass applies the plan through a protocol session. Plans
// are deterministic: creations run parents before children, deletions
// run children before parents.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sdejongh/skiff/pkg/events"
	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/output"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/verify"
)

// LocalIOError wraps a local filesystem failure during a sync run
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// Engine plans and executes folder synchronization. One engine runs one
// sync at a time; Cancel stops the run in flight.
type Engine struct {
	log       logging.Logger
	hub       *events.Hub
	formatter output.Formatter

	cancelled atomic.Bool
}

// NewEngine creates an idle engine
func NewEngine(log logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNullLogger()
	}
	return &Engine{
		log: log,
		hub: events.NewHub(),
	}
}

// Events returns the hub observers subscribe to
func (e *Engine) Events() *events.Hub {
	return e.hub
}

// SetFormatter attaches a renderer that narrates execution as it
// happens. Without one the engine runs silently and callers read the
// result instead.
func (e *Engine) SetFormatter(f output.Formatter) {
	e.formatter = f
}

// Cancel stops the current comparison or execution. Remaining actions
// are omitted silently.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// stopped reports whether the run should wind down
func (e *Engine) stopped(ctx context.Context) bool {
	return e.cancelled.Load() || ctx.Err() != nil
}

// Compare scans both trees and plans the actions that would reconcile
// them under the profile's mode. The plan is sorted and safe to execute
// front to back.
func (e *Engine) Compare(ctx context.Context, profile *models.SyncProfile, session protocol.Session) ([]models.SyncAction, error) {
	e.cancelled.Store(false)

	filter, err := newPatternFilter(profile.IncludePatterns, profile.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("sync filters: %w", err)
	}

	local, err := e.scanLocal(ctx, profile, filter)
	if err != nil {
		return nil, err
	}
	remote, err := e.scanRemote(ctx, session, profile, filter)
	if err != nil {
		return nil, fmt.Errorf("scan remote %s: %w", profile.RemotePath, err)
	}

	e.log.Debug(ctx, "folders compared", logging.Fields{
		"profile": profile.Name,
		"local":   len(local),
		"remote":  len(remote),
	})

	switch profile.Mode {
	case models.SyncModeMirror:
		return e.planMirror(local, remote, profile), nil
	case models.SyncModeBidirectional:
		return e.planBidirectional(local, remote, profile), nil
	case models.SyncModeUploadOnly:
		return e.planUpload(local, remote, profile), nil
	case models.SyncModeDownloadOnly:
		return e.planDownload(local, remote, profile), nil
	default:
		return nil, fmt.Errorf("unknown sync mode %q", profile.Mode)
	}
}

// Execute applies a plan in order. A nil plan means compare first. Each
// action is isolated: a failure is recorded on the result and the run
// moves on. A dry run records the plan and touches nothing.
func (e *Engine) Execute(ctx context.Context, profile *models.SyncProfile, session protocol.Session, actions []models.SyncAction) (*models.SyncResult, error) {
	result := models.NewSyncResult(profile.DryRun)

	if actions == nil {
		var err error
		actions, err = e.Compare(ctx, profile, session)
		if err != nil {
			result.EndTime = time.Now()
			e.hub.Publish(events.Event{
				Kind:      events.SyncFailed,
				ProfileID: profile.ID,
				Err:       err.Error(),
			})
			return nil, err
		}
	}
	result.Planned = actions

	e.hub.Publish(events.Event{
		Kind:      events.SyncStarted,
		ProfileID: profile.ID,
		Steps:     len(actions),
	})
	e.log.Info(ctx, "sync started", logging.Fields{
		"profile": profile.Name,
		"mode":    string(profile.Mode),
		"actions": len(actions),
		"dry_run": profile.DryRun,
	})

	if !profile.DryRun {
		total := len(actions)
		for i, action := range actions {
			if e.stopped(ctx) {
				break
			}

			if e.formatter != nil {
				e.formatter.ActionStarted(action, i+1, total)
			}
			err := e.apply(ctx, session, action)
			if err == nil && profile.VerifyChecksums &&
				(action.Kind == models.ActionUpload || action.Kind == models.ActionDownload) {
				err = e.verifyAction(ctx, session, action)
			}
			if e.formatter != nil {
				e.formatter.ActionDone(action, i+1, total, err)
			}
			if err != nil {
				e.log.Error(ctx, "sync action failed", err, logging.Fields{
					"action": action.String(),
				})
				result.Errors = append(result.Errors, models.ActionError{
					Action:  action,
					Message: err.Error(),
				})
				continue
			}

			result.Executed = append(result.Executed, action)
			e.hub.Publish(events.Event{
				Kind:      events.SyncProgress,
				ProfileID: profile.ID,
				Step:      i + 1,
				Steps:     total,
			})
		}
	}

	result.EndTime = time.Now()
	e.hub.Publish(events.Event{
		Kind:      events.SyncCompleted,
		ProfileID: profile.ID,
		Result:    result,
	})
	e.log.Info(ctx, "sync finished", logging.Fields{
		"profile":  profile.Name,
		"executed": result.SuccessCount(),
		"errors":   result.ErrorCount(),
	})

	return result, nil
}

// verifyAction compares local and remote digests after a transferred
// action when the session can produce them. Unsupported backends and
// remote hash failures skip the check; a digest mismatch fails the
// action.
func (e *Engine) verifyAction(ctx context.Context, session protocol.Session, action models.SyncAction) error {
	cs, ok := session.(protocol.Checksummer)
	if !ok {
		e.log.Debug(ctx, "checksum verification unsupported", logging.Fields{"path": action.RemotePath})
		return nil
	}

	for _, algo := range []string{verify.SHA256, verify.MD5} {
		remote, err := cs.Checksum(ctx, action.RemotePath, algo)
		if errors.Is(err, protocol.ErrChecksumUnsupported) {
			continue
		}
		if err != nil {
			e.log.Warn(ctx, "checksum verification skipped", logging.Fields{
				"path":  action.RemotePath,
				"error": err.Error(),
			})
			return nil
		}

		local, err := verify.Checksum(ctx, action.LocalPath, algo)
		if err != nil {
			return fmt.Errorf("local checksum: %w", err)
		}
		if !verify.Equal(local, remote) {
			return fmt.Errorf("checksum mismatch for %s: local %s, remote %s", action.RemotePath, local, remote)
		}
		return nil
	}
	e.log.Debug(ctx, "checksum verification unsupported", logging.Fields{"path": action.RemotePath})
	return nil
}

// apply performs a single planned action
func (e *Engine) apply(ctx context.Context, session protocol.Session, action models.SyncAction) error {
	switch action.Kind {
	case models.ActionUpload:
		return session.Upload(ctx, action.LocalPath, action.RemotePath, nil)

	case models.ActionDownload:
		parent := filepath.Dir(action.LocalPath)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return &LocalIOError{Op: "mkdir", Path: parent, Err: err}
		}
		return session.Download(ctx, action.RemotePath, action.LocalPath, nil)

	case models.ActionDeleteLocal:
		// Non-recursive on purpose: the plan lists children first
		if err := os.Remove(action.LocalPath); err != nil {
			return &LocalIOError{Op: "remove", Path: action.LocalPath, Err: err}
		}
		return nil

	case models.ActionDeleteRemote:
		info, err := session.Stat(ctx, action.RemotePath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return session.Rmdir(ctx, action.RemotePath)
		}
		return session.Remove(ctx, action.RemotePath)

	case models.ActionMkdirLocal:
		if err := os.MkdirAll(action.LocalPath, 0o755); err != nil {
			return &LocalIOError{Op: "mkdir", Path: action.LocalPath, Err: err}
		}
		return nil

	case models.ActionMkdirRemote:
		return session.Mkdir(ctx, action.RemotePath, true)

	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
