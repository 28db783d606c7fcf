package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"todo-backend/internal/config"
	"todo-backend/internal/eventlog"
	"todo-backend/internal/format"
	"todo-backend/internal/logging"
	"todo-backend/internal/todo"
	"todo-backend/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		cfgPath    string
		addr       string
		authMode   string
		secretFile string
		eventsDB   string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the to-do HTTP server (REST, JSON-RPC, websocket, SSE)",
		Long: strings.TrimSpace(`
Run the to-do server. Items live in memory and are lost on exit; the optional
events database only records what happened.

Settings are layered: built-in defaults, then --config (YAML), then TODO_*
environment variables, then flags.
`),
		Example: strings.TrimSpace(`
todo serve
todo serve --addr :3340 --auth token --events-db ./events.db
todo serve --config ./todo.yaml --log-format text --log-level debug
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("auth") {
				cfg.Auth.Mode = authMode
			}
			if flags.Changed("secret-file") {
				cfg.Auth.SecretFile = secretFile
			}
			if flags.Changed("events-db") {
				cfg.EventsDB = eventsDB
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Log.Format = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return writeErr(cmd, err)
			}

			log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srvCfg := web.ServerConfig{
				AuthMode:   cfg.Auth.Mode,
				RateLimit:  cfg.RateLimit,
				Pagination: cfg.Pagination,
				Logger:     log,
			}
			if cfg.Auth.Mode == config.AuthToken {
				secret, err := loadSecret(cfg.Auth.SecretFile)
				if err != nil {
					return writeErr(cmd, err)
				}
				srvCfg.Secret = secret
			}
			if cfg.EventsDB != "" {
				j, err := eventlog.Open(ctx, cfg.EventsDB, log)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer j.Close()
				srvCfg.Journal = j
			}

			svc := todo.NewService(todo.NewStore(), log)
			srv, err := web.NewServer(svc, srvCfg)
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()

			_ = writeOut(cmd, app, format.Envelope{Data: map[string]any{
				"addr":      actualAddr,
				"url":       "http://" + actualAddr + "/",
				"auth":      cfg.Auth.Mode,
				"eventsDb":  cfg.EventsDB,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
			}})
			log.Info("server listening", "addr", actualAddr, "auth", cfg.Auth.Mode)

			if err := serveUntilDone(ctx, ln, srv, log); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", envOr("TODO_CONFIG", ""), "Path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&authMode, "auth", "", "Auth mode (none|dev|token)")
	cmd.Flags().StringVar(&secretFile, "secret-file", "", "Token signing key file (created if missing)")
	cmd.Flags().StringVar(&eventsDB, "events-db", "", "SQLite file for the mutation journal (empty = disabled)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "Log format (json|text)")
	return cmd
}

func loadSecret(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		p, err := config.DefaultSecretFile()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return web.LoadOrInitSecret(path)
}

// serveUntilDone serves until ctx is cancelled, then drains in-flight requests.
func serveUntilDone(ctx context.Context, ln net.Listener, srv *web.Server, log *slog.Logger) error {
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		_ = hs.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
