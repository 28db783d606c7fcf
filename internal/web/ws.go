package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"todo-backend/internal/rpc"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts non-browser clients (no Origin header) and browsers whose
// Origin host is exactly the request host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
}

// handleWS speaks the rpc protocol over a websocket: one request per text
// frame, one response frame per request, in order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)
	ctx := r.Context()
	caller := callerFrom(ctx)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		start := s.now()
		var resp rpc.Response
		var req rpc.Request
		switch {
		case json.Unmarshal(data, &req) != nil:
			resp = rpc.Response{JSONRPC: "2.0", Error: &rpc.Error{Code: rpc.CodeParseError, Message: "parse error"}}
		case !s.limiter.Allow(caller, start):
			s.metrics.rateLimited.Inc()
			resp = rpc.Response{JSONRPC: "2.0", ID: req.ID, Error: &rpc.Error{Code: rpc.CodeRateLimited, Message: "rate limited"}}
		default:
			resp = s.rpc.Dispatch(ctx, caller, req)
		}
		s.metrics.observe("ws."+methodLabel(req.Method), rpcCode(resp), s.now().Sub(start))

		if err := conn.WriteJSON(resp); err != nil {
			s.log.DebugContext(ctx, "ws write failed", "err", err)
			return
		}
	}
}

func (s *Server) track(c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// handleRPC answers one rpc call per POST. Protocol errors are still 200s:
// the failure lives in the response body.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpc.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, rpc.Response{JSONRPC: "2.0", Error: &rpc.Error{Code: rpc.CodeParseError, Message: "parse error"}})
		return
	}
	resp := s.rpc.Dispatch(r.Context(), callerFrom(r.Context()), req)
	if resp.Error != nil {
		s.log.DebugContext(r.Context(), "rpc call failed",
			"method", req.Method,
			"code", resp.Error.Code,
			"request_id", requestIDFrom(r.Context()),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

// methodLabel keeps metric label cardinality bounded for unknown methods.
func methodLabel(m string) string {
	switch m {
	case "getPaginatedTodos", "getEffPaginatedTodos", "getTodo", "addTodos",
		"removeTodos", "toggleTodo", "updateTodoText":
		return m
	default:
		return "other"
	}
}

func rpcCode(resp rpc.Response) int {
	if resp.Error == nil {
		return 0
	}
	return resp.Error.Code
}
