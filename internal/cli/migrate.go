package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/app"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Migrate(cmd.Context(), g.cfg); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
}
