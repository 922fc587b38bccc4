package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds flag values shared by every command
type GlobalFlags struct {
	ConfigDir string
	LogLevel  string
	LogFile   string
	Quiet     bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds the persistent flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigDir,
		"config-dir",
		"",
		"configuration directory (default is $HOME/.config/skiff)",
	)
	cmd.PersistentFlags().StringVar(
		&globalFlags.LogLevel,
		"log-level",
		"",
		"log level: debug, info, warn, error",
	)
	cmd.PersistentFlags().StringVar(
		&globalFlags.LogFile,
		"log-file",
		"",
		"write logs to this file instead of the default location",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}
