package cli

import (
	"time"

	"todo-backend/internal/config"
	"todo-backend/internal/format"
	"todo-backend/internal/web"

	"github.com/spf13/cobra"
)

func newTokenCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage session tokens for servers running with --auth token",
	}

	var ttl time.Duration
	var secretFile string
	issue := &cobra.Command{
		Use:   "issue <caller>",
		Short: "Sign a session token for caller with the server's key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := loadSecret(secretFile)
			if err != nil {
				return writeErr(cmd, err)
			}
			tok, exp, err := web.IssueToken(secret, args[0], ttl)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: map[string]any{
				"caller":    args[0],
				"token":     tok,
				"expiresAt": exp.UTC().Format(time.RFC3339),
			}})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", config.Default().Auth.TokenTTL, "Token lifetime")
	issue.Flags().StringVar(&secretFile, "secret-file", envOr("TODO_SECRET_FILE", ""), "Signing key file (default: user config dir)")

	cmd.AddCommand(issue)
	return cmd
}
