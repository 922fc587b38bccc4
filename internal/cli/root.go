// Package cli wires the commands of the skiff binary. Each command
// builds on the same helpers here: configuration loading, the site
// store, logging and session construction.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/config"
	"github.com/sdejongh/skiff/pkg/logging"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
	"github.com/sdejongh/skiff/pkg/ratelimit"

	// Session factories register themselves on import
	_ "github.com/sdejongh/skiff/pkg/protocol/ftp"
	_ "github.com/sdejongh/skiff/pkg/protocol/local"
	_ "github.com/sdejongh/skiff/pkg/protocol/s3"
	_ "github.com/sdejongh/skiff/pkg/protocol/sftp"
)

// loadConfig loads configuration from the config directory, falling
// back to defaults when no file exists yet
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigDir != "" {
		path := filepath.Join(platform.ExpandUser(globalFlags.ConfigDir), "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return config.LoadFromFile(path)
		}
		return config.Default(), nil
	}
	return config.LoadDefault()
}

// openStore opens the site and profile store in the config directory
func openStore() (*config.Store, error) {
	return config.NewStore(platform.ExpandUser(globalFlags.ConfigDir))
}

// newLogger builds the logger the command runs with. Logging goes to a
// file or nowhere; stdout stays reserved for command output.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	path := globalFlags.LogFile
	if path == "" && cfg.Logging.Enabled {
		path = cfg.Logging.File
		if path == "" {
			dir, err := platform.LogDir()
			if err != nil {
				return nil, fmt.Errorf("failed to locate log directory: %w", err)
			}
			path = filepath.Join(dir, "skiff.log")
		}
	}
	if path == "" {
		return logging.NewNullLogger(), nil
	}

	level := cfg.Logging.Level
	if globalFlags.LogLevel != "" {
		level = globalFlags.LogLevel
	}

	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       platform.ExpandUser(path),
		Format:     format,
		Level:      logging.ParseLevel(level),
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// sessionOptions maps transfer configuration onto session options
func sessionOptions(cfg *config.Config, log logging.Logger) protocol.Options {
	opts := protocol.Options{
		Logger:    log,
		ChunkSize: cfg.Transfers.ChunkSize,
	}
	if cfg.Transfers.BandwidthLimit > 0 {
		opts.Limiter = ratelimit.NewLimiter(cfg.Transfers.BandwidthLimit)
	}
	return opts
}

// resolveSite turns a command-line site reference into a site. A
// reference containing a scheme or user@host form is parsed as an ad
// hoc URL, anything else is looked up in the store by name or id.
func resolveSite(store *config.Store, ref string) (*models.Site, error) {
	if strings.Contains(ref, "://") || strings.Contains(ref, "@") {
		return protocol.ParseURL(ref)
	}
	return store.FindSite(ref)
}

// connectSession creates a session for the site and connects it
func connectSession(ctx context.Context, site *models.Site, opts protocol.Options) (protocol.Session, error) {
	sess, err := protocol.Create(site, opts)
	if err != nil {
		return nil, err
	}
	if err := sess.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", site.Name, err)
	}
	return sess, nil
}
