package cli

import (
	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/app"
)

func newServeCmd(g *globals) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the cron scheduler",
		Long: `Serve the ledger review API under /api/v1, /health and /metrics, and run
DISCOVER_SCHEDULE / RECONCILE_SCHEDULE when they are set. Stops on SIGINT or
SIGTERM after in-flight requests and runs finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				g.cfg.ServerPort = port
			}
			return withApp(cmd.Context(), g, func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "override SERVER_PORT")
	return cmd
}
