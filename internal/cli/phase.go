package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/app"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

var phaseHelp = map[model.Phase]struct{ short, long string }{
	model.PhaseDiscover: {
		short: "Record matching files in the ledger",
		long: `Enumerate the configured folder and append every matching file that is not
yet in the ledger. Rows are written in chunks; a run records at most
DISCOVER_CAP files and the next run continues where it stopped.`,
	},
	model.PhaseReconcile: {
		short: "Trash recorded files that have no exemption note",
		long: `Trash every live ledger row without an exemption note and stamp its
removal time. Files that fail to trash stay live for the next run. A run
attempts at most DELETE_CAP files.`,
	},
}

func newPhaseCmd(g *globals, phase model.Phase) *cobra.Command {
	help := phaseHelp[phase]

	return &cobra.Command{
		Use:   string(phase),
		Short: help.short,
		Long:  help.long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app.App) error {
				run, err := a.Sweep.Run(cmd.Context(), phase, "cli")
				if run.RunID != "" {
					if printErr := printRun(cmd.OutOrStdout(), g.json, run); printErr != nil && err == nil {
						err = printErr
					}
				}
				return err
			})
		},
	}
}

func printRun(w io.Writer, asJSON bool, run model.RunRecord) error {
	if asJSON {
		return writeJSON(w, run)
	}

	fmt.Fprintf(w, "run %s %s %s\n", run.RunID, run.Phase, run.Status)
	if d := run.Discover; d != nil {
		fmt.Fprintf(w, "  scanned=%d matched=%d duplicates=%d written=%d flushes=%d cap_reached=%t\n",
			d.Scanned, d.Matched, d.Duplicates, d.Written, d.Flushes, d.CapReached)
	}
	if r := run.Reconcile; r != nil {
		fmt.Fprintf(w, "  live=%d exempt=%d eligible=%d attempted=%d deleted=%d failed=%d cap_reached=%t\n",
			r.Live, r.Exempt, r.Eligible, r.Attempted, r.Deleted, len(r.Failures), r.CapReached)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  failed row %d (%s): %s\n", f.RowPosition, f.FileID, f.Reason)
		}
	}
	return nil
}
