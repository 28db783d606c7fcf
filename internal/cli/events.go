package cli

import (
	"todo-backend/internal/format"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var limit uint64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the caller's journal of mutations (newest-first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := c.Events(cmd.Context(), limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: evs})
		},
	}
	cmd.Flags().Uint64Var(&limit, "limit", 50, "Max events to return")
	return cmd
}
