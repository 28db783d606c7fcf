package web

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"todo-backend/internal/config"
	"todo-backend/internal/eventlog"
	"todo-backend/internal/rpc"
	"todo-backend/internal/todo"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ServerConfig struct {
	AuthMode string // none|dev|token
	Secret   []byte // required in token mode

	RateLimit  config.RateLimitConfig
	Pagination config.PaginationConfig

	// Journal is optional; without it /v1/events answers 404.
	Journal *eventlog.Journal
	Logger  *slog.Logger
}

type Server struct {
	cfg     ServerConfig
	svc     *todo.Service
	rpc     *rpc.Dispatcher
	hubs    *callerHubs
	limiter *callerLimiter
	metrics *metrics
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closed  bool
	closeCh chan struct{}
}

func NewServer(svc *todo.Service, cfg ServerConfig) (*Server, error) {
	if svc == nil {
		return nil, errors.New("web: nil service")
	}
	switch cfg.AuthMode {
	case config.AuthNone, config.AuthDev:
	case config.AuthToken:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("web: token auth requires a secret")
		}
	default:
		return nil, errors.New("web: unknown auth mode " + cfg.AuthMode)
	}
	if cfg.Pagination.DefaultLimit == 0 {
		cfg.Pagination.DefaultLimit = config.Default().Pagination.DefaultLimit
	}
	if cfg.Pagination.MaxLimit == 0 {
		cfg.Pagination.MaxLimit = config.Default().Pagination.MaxLimit
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		rpc:     rpc.NewDispatcher(svc, rpc.Limits{Default: cfg.Pagination.DefaultLimit, Max: cfg.Pagination.MaxLimit}),
		hubs:    newCallerHubs(),
		metrics: newMetrics(svc.Store()),
		log:     log.With("component", "web"),
		now:     time.Now,
		conns:   map[*websocket.Conn]struct{}{},
		closeCh: make(chan struct{}),
	}
	if cfg.RateLimit.Enabled {
		s.limiter = newCallerLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0)
	}
	svc.AddObserver(s.hubs)
	if cfg.Journal != nil {
		svc.AddObserver(cfg.Journal)
	}
	return s, nil
}

// Handler returns the routed handler. Routes marked public skip caller
// resolution and rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /health", "health", true, s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	s.route(mux, "GET /v1/todos", "getPaginatedTodos", false, s.handleList)
	s.route(mux, "GET /v1/todos/after", "getEffPaginatedTodos", false, s.handleListAfter)
	s.route(mux, "GET /v1/todos/{id}", "getTodo", false, s.handleGet)
	s.route(mux, "POST /v1/todos", "addTodos", false, s.handleAdd)
	s.route(mux, "POST /v1/todos/remove", "removeTodos", false, s.handleRemove)
	s.route(mux, "POST /v1/todos/{id}/toggle", "toggleTodo", false, s.handleToggle)
	s.route(mux, "PUT /v1/todos/{id}/text", "updateTodoText", false, s.handleUpdateText)
	s.route(mux, "GET /v1/events", "events", false, s.handleEvents)
	s.route(mux, "GET /v1/stream", "stream", false, s.handleStream)
	s.route(mux, "POST /rpc", "rpc", false, s.handleRPC)
	s.route(mux, "GET /v1/ws", "ws", false, s.handleWS)

	return mux
}

// Close ends open streams and websocket sessions. http.Server.Shutdown does
// not track hijacked connections, so callers should Close before Shutdown.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closeCh)
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

type ctxKey int

const (
	callerKey ctxKey = iota
	requestIDKey
)

func callerFrom(ctx context.Context) string {
	c, _ := ctx.Value(callerKey).(string)
	return c
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) route(mux *http.ServeMux, pattern, op string, public bool, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rid := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		caller := ""
		defer func() {
			d := s.now().Sub(start)
			s.metrics.observe(op, rec.status, d)
			s.log.LogAttrs(ctx, slog.LevelInfo, "request",
				slog.String("op", op),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("dur", d),
				slog.String("request_id", rid),
				slog.String("caller", caller),
			)
		}()

		if !public {
			c, err := s.resolveCaller(r)
			if err != nil {
				writeError(rec, http.StatusUnauthorized, codeUnauthorized, err.Error())
				return
			}
			caller = c
			if !s.limiter.Allow(caller, s.now()) {
				s.metrics.rateLimited.Inc()
				rec.Header().Set("Retry-After", "1")
				writeError(rec, http.StatusTooManyRequests, codeRateLimited, "rate limited")
				return
			}
			ctx = context.WithValue(ctx, callerKey, caller)
		}
		h(rec, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"ok": true}, nil)
}

// statusRecorder keeps the status for logs and metrics while still exposing
// the flushing and hijacking that the stream and websocket routes need.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	if !r.wroteHeader {
		r.status = http.StatusSwitchingProtocols
		r.wroteHeader = true
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
