package cli

import (
	"strings"

	"todo-backend/internal/format"
	"todo-backend/internal/model"

	"github.com/spf13/cobra"
)

func newTodosCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "todos",
		Aliases: []string{"todo"},
		Short:   "Read and change the caller's to-do items",
	}

	cmd.AddCommand(newTodosListCmd(app))
	cmd.AddCommand(newTodosPageCmd(app))
	cmd.AddCommand(newTodosGetCmd(app))
	cmd.AddCommand(newTodosAddCmd(app))
	cmd.AddCommand(newTodosRemoveCmd(app))
	cmd.AddCommand(newTodosToggleCmd(app))
	cmd.AddCommand(newTodosSetTextCmd(app))
	return cmd
}

func newTodosListCmd(app *App) *cobra.Command {
	var offset, limit uint64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items by offset (skips live items)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := c.List(cmd.Context(), offset, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: items})
		},
	}
	cmd.Flags().Uint64Var(&offset, "offset", 0, "Live items to skip")
	cmd.Flags().Uint64Var(&limit, "limit", 0, "Max items (0 = server default)")
	return cmd
}

func newTodosPageCmd(app *App) *cobra.Command {
	var lastID, limit uint64
	cmd := &cobra.Command{
		Use:   "page",
		Short: "List the items after a cursor (the last id of the previous page)",
		Example: strings.TrimSpace(`
todo todos page --limit 20
todo todos page --last-id 41 --limit 20
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			var cursor *uint64
			if cmd.Flags().Changed("last-id") {
				cursor = &lastID
			}
			p, err := c.ListAfter(cmd.Context(), cursor, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			env := format.Envelope{Data: p.Items}
			if p.NextLastID != nil {
				env.Meta = map[string]any{"nextLastId": *p.NextLastID}
			}
			return writeOut(cmd, app, env)
		},
	}
	cmd.Flags().Uint64Var(&lastID, "last-id", 0, "Cursor: last id of the previous page (omit to start from the first item)")
	cmd.Flags().Uint64Var(&limit, "limit", 0, "Max items (0 = server default)")
	return cmd
}

func newTodosGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one item (data is null when absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			it, ok, err := c.Get(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeOut(cmd, app, format.Envelope{Data: nil})
			}
			return writeOut(cmd, app, format.Envelope{Data: it})
		},
	}
}

func newTodosAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>...",
		Short: "Add one item per argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := c.Add(cmd.Context(), args)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: model.Count{Count: n}})
		},
	}
}

func newTodosRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove items; missing ids are ignored",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := c.Remove(cmd.Context(), ids)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: model.Count{Count: n}})
		},
	}
}

func newTodosToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip an item's completed flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			done, err := c.Toggle(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: model.Toggled{Completed: done}})
		},
	}
}

func newTodosSetTextCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-text <id> <text>",
		Short: "Replace an item's text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			it, err := c.UpdateText(cmd.Context(), id, args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Envelope{Data: it})
		},
	}
}
