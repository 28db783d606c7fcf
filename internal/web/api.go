package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"todo-backend/internal/format"
	"todo-backend/internal/model"
	"todo-backend/internal/todo"
)

const (
	codeBadRequest   = "bad_request"
	codeNotFound     = "not_found"
	codeNoSuchUser   = "no_such_user"
	codeUnauthorized = "unauthorized"
	codeRateLimited  = "rate_limited"
	codeNoJournal    = "journal_disabled"
	codeInternal     = "internal"

	maxBodyBytes = 1 << 20
)

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = format.WriteJSON(w, v, false)
}

func writeData(w http.ResponseWriter, status int, data any, meta map[string]any) {
	writeJSON(w, status, format.Envelope{Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: code})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, todo.ErrNoSuchUser):
		writeError(w, http.StatusNotFound, codeNoSuchUser, err.Error())
	case errors.Is(err, todo.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid json body: "+err.Error())
		return false
	}
	return true
}

func queryUint(r *http.Request, key string, def uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key + ": " + raw)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + key + ": " + raw)
	}
	return b, nil
}

// pageLimit reads ?limit=, applying the configured default and cap.
func (s *Server) pageLimit(r *http.Request) (uint64, error) {
	n, err := queryUint(r, "limit", s.cfg.Pagination.DefaultLimit)
	if err != nil {
		return 0, err
	}
	if maxLimit := s.cfg.Pagination.MaxLimit; maxLimit > 0 && n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func pathID(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid id: " + raw)
	}
	return n, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	offset, err := queryUint(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	limit, err := s.pageLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	items := s.svc.GetPaginatedTodos(r.Context(), callerFrom(r.Context()), offset, limit)
	writeData(w, http.StatusOK, items, map[string]any{"offset": offset, "limit": limit})
}

// handleListAfter serves cursor pages. By default lastId=0 is the first page
// (inclusive); with after=true the cursor is always exclusive and an absent
// lastId is the first page. nextLastId is only advertised when following it
// in the same mode makes progress.
func (s *Server) handleListAfter(w http.ResponseWriter, r *http.Request) {
	after, err := queryBool(r, "after")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	lastID, err := queryUint(r, "lastId", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	limit, err := s.pageLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	caller := callerFrom(r.Context())
	var items []model.Item
	if after {
		var cursor *uint64
		if strings.TrimSpace(r.URL.Query().Get("lastId")) != "" {
			cursor = &lastID
		}
		items = s.svc.GetTodosAfter(r.Context(), caller, cursor, limit)
	} else {
		items = s.svc.GetEffPaginatedTodos(r.Context(), caller, lastID, limit)
	}

	meta := map[string]any{"limit": limit}
	if after {
		meta["after"] = true
	}
	if n := len(items); n > 0 && uint64(n) == limit {
		// An inclusive cursor of 0 means "from the start"; it cannot resume after id 0.
		if next := items[n-1].ID; after || next != 0 {
			meta["nextLastId"] = next
		}
	}
	writeData(w, http.StatusOK, items, meta)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	it, ok := s.svc.GetTodo(r.Context(), callerFrom(r.Context()), id)
	if !ok {
		writeData(w, http.StatusOK, nil, nil)
		return
	}
	writeData(w, http.StatusOK, it, nil)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Texts []string `json:"texts"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	n := s.svc.AddTodos(r.Context(), callerFrom(r.Context()), body.Texts)
	writeData(w, http.StatusOK, model.Count{Count: n}, nil)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []uint64 `json:"ids"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	n := s.svc.RemoveTodos(r.Context(), callerFrom(r.Context()), body.IDs)
	writeData(w, http.StatusOK, model.Count{Count: n}, nil)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	completed, err := s.svc.ToggleTodo(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, model.Toggled{Completed: completed}, nil)
}

func (s *Server) handleUpdateText(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	var body struct {
		Text *string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Text == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing text")
		return
	}
	it, err := s.svc.UpdateTodoText(r.Context(), callerFrom(r.Context()), id, *body.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, it, nil)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeError(w, http.StatusNotFound, codeNoJournal, "event journal is not enabled")
		return
	}
	limit, err := s.pageLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	events, err := s.cfg.Journal.List(r.Context(), callerFrom(r.Context()), int(limit))
	if err != nil {
		s.log.ErrorContext(r.Context(), "list events failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "list events failed")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeData(w, http.StatusOK, events, nil)
}
