// Package cli defines the drive-cleaner command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/app"
	"github.com/Yulikepython/drive-cleaner/internal/config"
	"github.com/Yulikepython/drive-cleaner/internal/logger"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitConfiguration = 3
	exitReference     = 4
)

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	rootCmd := newRootCmd(version)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "drive-cleaner: %s\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, model.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, model.ErrReferenceResolution):
		return exitReference
	default:
		return exitFailure
	}
}

// globals is shared by every subcommand; it is filled in by the root's
// PersistentPreRunE.
type globals struct {
	json     bool
	logLevel string
	cfg      *config.Config
	stderr   io.Writer
}

func newRootCmd(version string) *cobra.Command {
	g := &globals{stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:   "drive-cleaner",
		Short: "Record stale files in a ledger, then trash them after review",
		Long: `drive-cleaner sweeps a folder in two phases.

discover records every file matching the sweep configuration (last-modified
cutoff, minimum size, owner) in the ledger. Operators review the ledger and
put a note on rows that must be kept. reconcile then trashes every recorded
file without a note and stamps the row with the removal time.

Settings come from the environment (and a .env file); the sweep criteria
come from SWEEP_CONFIG_FILE or the sweep_config table.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return &model.ConfigurationError{Field: "environment", Reason: "invalid settings", Err: err}
			}
			if g.logLevel != "" {
				cfg.LogLevel = g.logLevel
			}
			g.cfg = cfg

			slog.SetDefault(logger.New(g.stderr, cfg.LogLevel, cfg.LogFormat))
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&g.json, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		newPhaseCmd(g, model.PhaseDiscover),
		newPhaseCmd(g, model.PhaseReconcile),
		newServeCmd(g),
		newLedgerCmd(g),
		newConfigCmd(g),
		newTokenCmd(g),
		newMigrateCmd(g),
	)

	return rootCmd
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, g *globals, fn func(*app.App) error) error {
	a, err := app.New(ctx, g.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
