package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/config"
	"github.com/sdejongh/skiff/pkg/output"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View or initialize the skiff configuration.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := globalFlags.ConfigDir
			if dir == "" {
				if dir, err = platform.ConfigDir(); err != nil {
					return err
				}
			}

			bandwidth := "unlimited"
			if cfg.Transfers.BandwidthLimit > 0 {
				bandwidth = output.FormatBytes(cfg.Transfers.BandwidthLimit) + "/s"
			}

			fmt.Printf("Config directory: %s\n", dir)
			fmt.Printf("Max concurrent transfers: %d\n", cfg.Transfers.MaxConcurrent)
			fmt.Printf("Queue size: %d\n", cfg.Transfers.QueueSize)
			fmt.Printf("Chunk size: %s\n", output.FormatBytes(int64(cfg.Transfers.ChunkSize)))
			fmt.Printf("Retry delay: %ds\n", cfg.Transfers.RetryDelaySeconds)
			fmt.Printf("Bandwidth limit: %s\n", bandwidth)
			fmt.Printf("Verify checksums: %t\n", cfg.Transfers.VerifyChecksums)
			fmt.Printf("Store passwords: %t\n", cfg.Security.StorePasswords)
			fmt.Printf("Output format: %s\n", cfg.Output.Format)
			fmt.Printf("Progress bars: %t\n", cfg.Output.Progress)
			fmt.Printf("Color: %t\n", cfg.Output.Color)
			fmt.Printf("Logging enabled: %t\n", cfg.Logging.Enabled)
			fmt.Printf("Log format: %s\n", cfg.Logging.Format)
			fmt.Printf("Log level: %s\n", cfg.Logging.Level)

			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			var err error
			if globalFlags.ConfigDir != "" {
				path = filepath.Join(platform.ExpandUser(globalFlags.ConfigDir), "config.yaml")
			} else if path, err = config.DefaultConfigPath(); err != nil {
				return err
			}

			cfg := config.Default()
			if err := config.SaveToFile(cfg, path); err != nil {
				return err
			}

			fmt.Printf("Configuration file created at: %s\n", path)
			return nil
		},
	}
}
