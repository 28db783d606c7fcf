// Package rpc maps JSON-RPC 2.0 style calls onto the to-do service. Method names
// are the public operation names (getPaginatedTodos, toggleTodo, ...). The same
// dispatcher serves POST /rpc and the websocket endpoint.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"todo-backend/internal/model"
	"todo-backend/internal/todo"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeNotFound       = -32004
	CodeNoSuchUser     = -32005
	CodeRateLimited    = -32029
)

type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Limits bound page sizes coming off the wire.
type Limits struct {
	Default uint64
	Max     uint64
}

func (l Limits) clamp(limit *uint64) uint64 {
	if limit == nil {
		return l.Default
	}
	if l.Max > 0 && *limit > l.Max {
		return l.Max
	}
	return *limit
}

type handlerFunc func(ctx context.Context, caller string, params json.RawMessage) (any, error)

type Dispatcher struct {
	svc      *todo.Service
	limits   Limits
	handlers map[string]handlerFunc
}

func NewDispatcher(svc *todo.Service, limits Limits) *Dispatcher {
	if limits.Default == 0 {
		limits.Default = 50
	}
	d := &Dispatcher{svc: svc, limits: limits}
	d.handlers = map[string]handlerFunc{
		"getPaginatedTodos":    d.getPaginatedTodos,
		"getEffPaginatedTodos": d.getEffPaginatedTodos,
		"getTodo":              d.getTodo,
		"addTodos":             d.addTodos,
		"removeTodos":          d.removeTodos,
		"toggleTodo":           d.toggleTodo,
		"updateTodoText":       d.updateTodoText,
	}
	return d
}

func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs one call for caller. It never returns a Go error: every failure
// is encoded in the response.
func (d *Dispatcher) Dispatch(ctx context.Context, caller string, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if req.Method == "" {
		resp.Error = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
		return resp
	}
	h, ok := d.handlers[req.Method]
	if !ok {
		resp.Error = &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
		return resp
	}
	result, err := h(ctx, caller, req.Params)
	if err != nil {
		resp.Error = toError(err)
		return resp
	}
	b, err := json.Marshal(result)
	if err != nil {
		resp.Error = &Error{Code: CodeInternal, Message: err.Error()}
		return resp
	}
	resp.Result = b
	return resp
}

var errInvalidParams = &Error{Code: CodeInvalidParams, Message: "invalid params"}

func toError(err error) *Error {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, todo.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, todo.ErrNoSuchUser):
		return &Error{Code: CodeNoSuchUser, Message: err.Error()}
	default:
		return &Error{Code: CodeInternal, Message: err.Error()}
	}
}

// decodeParams accepts either named params ({"offset":0,"limit":10}) or
// positional params ([0, 10]) mapped onto names in order.
func decodeParams(raw json.RawMessage, dst any, names ...string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var positional []json.RawMessage
	if err := json.Unmarshal(raw, &positional); err == nil {
		if len(positional) > len(names) {
			return errInvalidParams
		}
		obj := make(map[string]json.RawMessage, len(positional))
		for i, v := range positional {
			obj[names[i]] = v
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return errInvalidParams
		}
		raw = b
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidParams
	}
	return nil
}

func (d *Dispatcher) getPaginatedTodos(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		Offset uint64  `json:"offset"`
		Limit  *uint64 `json:"limit"`
	}
	if err := decodeParams(raw, &p, "offset", "limit"); err != nil {
		return nil, err
	}
	return d.svc.GetPaginatedTodos(ctx, caller, p.Offset, d.limits.clamp(p.Limit)), nil
}

func (d *Dispatcher) getEffPaginatedTodos(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		LastID *uint64 `json:"lastId"`
		Limit  *uint64 `json:"limit"`
		After  bool    `json:"after"`
	}
	if err := decodeParams(raw, &p, "lastId", "limit", "after"); err != nil {
		return nil, err
	}
	limit := d.limits.clamp(p.Limit)
	if p.After {
		return d.svc.GetTodosAfter(ctx, caller, p.LastID, limit), nil
	}
	var lastID uint64
	if p.LastID != nil {
		lastID = *p.LastID
	}
	return d.svc.GetEffPaginatedTodos(ctx, caller, lastID, limit), nil
}

func (d *Dispatcher) getTodo(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		ID *uint64 `json:"id"`
	}
	if err := decodeParams(raw, &p, "id"); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, errInvalidParams
	}
	it, ok := d.svc.GetTodo(ctx, caller, *p.ID)
	if !ok {
		// Absent is a value, not an error.
		return nil, nil
	}
	return it, nil
}

func (d *Dispatcher) addTodos(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		Texts []string `json:"texts"`
	}
	if err := decodeParams(raw, &p, "texts"); err != nil {
		return nil, err
	}
	return model.Count{Count: d.svc.AddTodos(ctx, caller, p.Texts)}, nil
}

func (d *Dispatcher) removeTodos(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		IDs []uint64 `json:"ids"`
	}
	if err := decodeParams(raw, &p, "ids"); err != nil {
		return nil, err
	}
	return model.Count{Count: d.svc.RemoveTodos(ctx, caller, p.IDs)}, nil
}

func (d *Dispatcher) toggleTodo(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		ID *uint64 `json:"id"`
	}
	if err := decodeParams(raw, &p, "id"); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, errInvalidParams
	}
	completed, err := d.svc.ToggleTodo(ctx, caller, *p.ID)
	if err != nil {
		return nil, err
	}
	return model.Toggled{Completed: completed}, nil
}

func (d *Dispatcher) updateTodoText(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
	var p struct {
		ID   *uint64 `json:"id"`
		Text *string `json:"text"`
	}
	if err := decodeParams(raw, &p, "id", "text"); err != nil {
		return nil, err
	}
	if p.ID == nil || p.Text == nil {
		return nil, errInvalidParams
	}
	return d.svc.UpdateTodoText(ctx, caller, *p.ID, *p.Text)
}
