package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/app"
	"github.com/Yulikepython/drive-cleaner/internal/config"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// configSaver is implemented by sweep config sources that can be written.
type configSaver interface {
	Save(ctx context.Context, cfg model.SweepConfig) error
}

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the sweep criteria",
	}

	cmd.AddCommand(newConfigShowCmd(g), newConfigSetCmd(g))
	return cmd
}

func newConfigShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the sweep criteria the next run will use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app.App) error {
				cfg, err := a.SweepConfig.Load(cmd.Context())
				if err != nil {
					return err
				}

				if g.json {
					return writeJSON(cmd.OutOrStdout(), cfg)
				}
				return printSweepConfig(cmd.OutOrStdout(), cfg)
			})
		},
	}
}

func newConfigSetCmd(g *globals) *cobra.Command {
	var (
		folder    string
		cutoff    string
		minSize   int64
		owner     string
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the sweep criteria stored in PostgreSQL",
		Long: `Replace the sweep criteria row named SWEEP_CONFIG_NAME. Only the postgres
config source can be written; edit SWEEP_CONFIG_FILE directly otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.cfg.SweepConfigSource != config.ConfigSourcePostgres {
				return model.NewConfigurationError("source", "config set needs SWEEP_CONFIG_SOURCE=postgres")
			}

			year, month, err := model.ParseCutoff(cutoff)
			if err != nil {
				return err
			}
			cfg := model.SweepConfig{
				FolderRef:   folder,
				CutoffYear:  year,
				CutoffMonth: month,
				OwnerEmail:  owner,
				Recursive:   recursive,
			}
			if cmd.Flags().Changed("min-size") {
				cfg.MinSizeBytes = &minSize
			}

			return withApp(cmd.Context(), g, func(a *app.App) error {
				saver, ok := a.SweepConfig.(configSaver)
				if !ok {
					return model.NewConfigurationError("source", "sweep config source is read-only")
				}
				if err := saver.Save(cmd.Context(), cfg); err != nil {
					return err
				}

				if g.json {
					return writeJSON(cmd.OutOrStdout(), cfg)
				}
				return printSweepConfig(cmd.OutOrStdout(), cfg)
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "folder reference (required)")
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "last-modified cutoff, YYYY-MM or YYYY")
	cmd.Flags().Int64Var(&minSize, "min-size", 0, "minimum file size in bytes")
	cmd.Flags().StringVar(&owner, "owner", "", "owner email")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "descend into sub-folders")
	_ = cmd.MarkFlagRequired("folder")
	return cmd
}

func printSweepConfig(w io.Writer, cfg model.SweepConfig) error {
	cutoff := "-"
	if year, month, ok := cfg.Cutoff(); ok {
		cutoff = fmt.Sprintf("%04d-%02d", year, month)
	}
	minSize := "-"
	if cfg.MinSizeBytes != nil {
		minSize = fmt.Sprintf("%d", *cfg.MinSizeBytes)
	}
	owner := cfg.OwnerEmail
	if owner == "" {
		owner = "-"
	}

	_, err := fmt.Fprintf(w, "folder:    %s\ncutoff:    %s\nmin_size:  %s\nowner:     %s\nrecursive: %t\n",
		cfg.FolderRef, cutoff, minSize, owner, cfg.Recursive)
	return err
}
