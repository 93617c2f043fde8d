package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/app"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

func newLedgerCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Review and annotate the ledger",
	}

	cmd.AddCommand(
		newLedgerListCmd(g),
		newLedgerExemptCmd(g),
		newLedgerExportCmd(g),
	)
	return cmd
}

func newLedgerListCmd(g *globals) *cobra.Command {
	var (
		filter string
		page   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app.App) error {
				data, meta, err := a.Ledger.List(cmd.Context(), model.LedgerQuery{
					Filter: model.LedgerFilter(strings.ToLower(filter)),
					Page:   page,
					Limit:  limit,
				})
				if err != nil {
					return err
				}

				if g.json {
					return writeJSON(cmd.OutOrStdout(), model.APIResponse{Success: true, Data: data, Meta: &meta})
				}
				return printLedgerRows(cmd.OutOrStdout(), data.Items, meta)
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "live, removed or exempt (default all rows)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 100, "rows per page")
	return cmd
}

func printLedgerRows(w io.Writer, rows []model.LedgerRow, meta model.Meta) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tFILE\tOWNER\tUPDATED\tSIZE\tNOTE\tDELETED")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			row.RowPosition, row.FileName, row.OwnerEmail, row.LastModified, row.FileSize, row.ExemptionNote, row.RemovedAt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "page %d/%d, %d rows\n", meta.Page, max(meta.TotalPages, 1), meta.Total)
	return err
}

func newLedgerExemptCmd(g *globals) *cobra.Command {
	var clearNote bool

	cmd := &cobra.Command{
		Use:   "exempt <row> [note...]",
		Short: "Set or clear the exemption note of a row",
		Long: `Set the exemption note of a ledger row. reconcile never trashes a row with
a note. --clear removes the note and makes the row eligible again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || row < 1 {
				return fmt.Errorf("%w: row must be a positive integer", model.ErrInvalidInput)
			}

			note := strings.Join(args[1:], " ")
			switch {
			case clearNote && note != "":
				return fmt.Errorf("%w: --clear takes no note", model.ErrInvalidInput)
			case !clearNote && strings.TrimSpace(note) == "":
				return fmt.Errorf("%w: a note is required (or --clear)", model.ErrInvalidInput)
			}

			return withApp(cmd.Context(), g, func(a *app.App) error {
				actor := model.AuditActor{UserID: currentUser(), Role: model.RoleOperator}
				updated, err := a.Ledger.SetExemption(cmd.Context(), row, note, actor)
				if err != nil {
					return err
				}

				if g.json {
					return writeJSON(cmd.OutOrStdout(), updated)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "row %d (%s): note=%q\n", updated.RowPosition, updated.FileName, updated.ExemptionNote)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&clearNote, "clear", false, "remove the note")
	return cmd
}

func newLedgerExportCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), g, func(a *app.App) error {
				if output == "" || output == "-" {
					return a.Ledger.Export(cmd.Context(), cmd.OutOrStdout())
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := a.Ledger.Export(cmd.Context(), f); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return "cli:" + name
	}
	return "cli"
}
