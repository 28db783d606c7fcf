package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"todo-backend/internal/client"
	"todo-backend/internal/format"

	"github.com/spf13/cobra"
)

const defaultServer = "http://127.0.0.1:3340"

type App struct {
	Server     string
	Token      string
	Caller     string
	PrettyJSON bool
	Format     string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "todo",
		Short:        "Per-user to-do service: server, CLI and TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the server (dev auth: callers identify with X-Todo-Caller)
  todo serve --addr 127.0.0.1:3340

  # Scriptable commands
  todo --caller alice todos add "buy milk" "call bob"
  todo --caller alice todos page --limit 20

  # Direct item lookup (shortcut for: todo todos get <id>)
  todo --caller alice 3

  # Interactive TUI
  todo --caller alice tui
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Server, "server", envOr("TODO_SERVER", defaultServer), "Server base URL")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr("TODO_TOKEN", ""), "Session token (server auth mode: token)")
	cmd.PersistentFlags().StringVar(&app.Caller, "caller", envOr("TODO_CALLER", ""), "Caller id (server auth mode: dev)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TODO_FORMAT", "json"), "Output format (json|edn)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTokenCmd(app))
	cmd.AddCommand(newTodosCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func (app *App) client() (*client.Client, error) {
	return client.New(client.Options{
		BaseURL: app.Server,
		Token:   app.Token,
		Caller:  app.Caller,
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func parseID(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: expected a non-negative integer", s)
	}
	return n, nil
}

func parseIDs(args []string) ([]uint64, error) {
	if len(args) == 0 {
		return nil, errors.New("missing ids")
	}
	out := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
