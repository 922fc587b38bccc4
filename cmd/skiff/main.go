package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sdejongh/skiff/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Credentials referenced by password-env may live in a local .env
	godotenv.Load()

	cli.Version = version
	cli.Commit = commit
	cli.BuildDate = date

	rootCmd := &cobra.Command{
		Use:   "skiff",
		Short: "File transfer and folder sync for FTP, SFTP and S3",
		Long: `skiff moves files between your machine and remote storage over FTP,
FTPS, SFTP and S3. It keeps a book of saved sites, runs queued
transfers through a worker pool, and synchronizes whole folder trees
in both directions.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	cli.AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(cli.NewSitesCommand())
	rootCmd.AddCommand(cli.NewProfilesCommand())
	rootCmd.AddCommand(cli.NewLsCommand())
	rootCmd.AddCommand(cli.NewPutCommand())
	rootCmd.AddCommand(cli.NewGetCommand())
	rootCmd.AddCommand(cli.NewSyncCommand())
	rootCmd.AddCommand(cli.NewPlanCommand())
	rootCmd.AddCommand(cli.NewConfigCommand())
	rootCmd.AddCommand(cli.NewVersionCommand())

	// Interrupts cancel the command context so runs wind down cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
