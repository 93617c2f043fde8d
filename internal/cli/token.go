package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/internal/service"
)

func newTokenCmd(g *globals) *cobra.Command {
	var (
		role    string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Issue a signed bearer token for the HTTP API. viewer tokens can read the
ledger and run history; operator tokens can also set exemption notes,
trigger runs and read the audit log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.cfg.ValidateServer(); err != nil {
				return &model.ConfigurationError{Field: "JWT_SECRET", Reason: "cannot sign tokens", Err: err}
			}

			auth, err := service.NewAuthService(g.cfg.JWTSecret, g.cfg.JWTTokenTTL)
			if err != nil {
				return err
			}

			token, err := auth.IssueToken(subject, role, ttl)
			if err != nil {
				return err
			}

			if g.json {
				return writeJSON(cmd.OutOrStdout(), token)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return err
		},
	}

	cmd.Flags().StringVar(&role, "role", model.RoleViewer, "viewer or operator")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
