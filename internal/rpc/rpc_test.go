package rpc

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"todo-backend/internal/model"
	"todo-backend/internal/todo"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(todo.NewService(todo.NewStore(), nil), Limits{Default: 2, Max: 3})
}

func call(t *testing.T, d *Dispatcher, caller, method, params string) Response {
	t.Helper()
	req := Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return d.Dispatch(context.Background(), caller, req)
}

func decode[T any](t *testing.T, resp Response) T {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var v T
	if err := json.Unmarshal(resp.Result, &v); err != nil {
		t.Fatalf("decode result %s: %v", string(resp.Result), err)
	}
	return v
}

func TestDispatch_FullFlow(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()

	cnt := decode[model.Count](t, call(t, d, "alice", "addTodos", `{"texts":["a","b","c","d"]}`))
	if cnt.Count != 4 {
		t.Fatalf("add: %+v", cnt)
	}

	// Positional params map onto names in order.
	cnt = decode[model.Count](t, call(t, d, "alice", "removeTodos", `[[1, 99]]`))
	if cnt.Count != 3 {
		t.Fatalf("remove: %+v", cnt)
	}

	page := decode[[]model.Item](t, call(t, d, "alice", "getPaginatedTodos", `{"offset":0}`))
	if len(page) != 2 || page[0].ID != 0 || page[1].ID != 2 {
		t.Fatalf("default limit page: %+v", page)
	}

	page = decode[[]model.Item](t, call(t, d, "alice", "getEffPaginatedTodos", `{"lastId":0,"limit":100}`))
	var got []uint64
	for _, it := range page {
		got = append(got, it.ID)
	}
	if !reflect.DeepEqual(got, []uint64{0, 2, 3}) {
		t.Fatalf("clamped cursor page: %v", got)
	}

	tg := decode[model.Toggled](t, call(t, d, "alice", "toggleTodo", `{"id":2}`))
	if !tg.Completed {
		t.Fatalf("toggle: %+v", tg)
	}

	it := decode[model.Item](t, call(t, d, "alice", "updateTodoText", `[3, "renamed"]`))
	if it.ID != 3 || it.Text != "renamed" {
		t.Fatalf("update: %+v", it)
	}

	it = decode[model.Item](t, call(t, d, "alice", "getTodo", `{"id":2}`))
	if !it.Completed {
		t.Fatalf("get: %+v", it)
	}
}

func TestDispatch_GetTodoAbsentIsNullResult(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	resp := call(t, d, "nobody", "getTodo", `{"id":5}`)
	if resp.Error != nil {
		t.Fatalf("absent item must not be an error: %+v", resp.Error)
	}
	if string(resp.Result) != "null" {
		t.Fatalf("expected null result, got %s", string(resp.Result))
	}

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"jsonrpc":"2.0","id":1,"result":null}` {
		t.Fatalf("wire shape: %s", string(b))
	}
}

func TestDispatch_Errors(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	call(t, d, "alice", "addTodos", `{"texts":["a"]}`)

	tests := []struct {
		name   string
		caller string
		method string
		params string
		code   int
	}{
		{name: "unknown method", caller: "alice", method: "dropTables", code: CodeMethodNotFound},
		{name: "empty method", caller: "alice", method: "", code: CodeInvalidRequest},
		{name: "toggle missing id", caller: "alice", method: "toggleTodo", params: `{"id":9}`, code: CodeNotFound},
		{name: "toggle unknown caller", caller: "bob", method: "toggleTodo", params: `{"id":0}`, code: CodeNoSuchUser},
		{name: "update unknown caller", caller: "bob", method: "updateTodoText", params: `{"id":0,"text":"x"}`, code: CodeNoSuchUser},
		{name: "toggle without id", caller: "alice", method: "toggleTodo", params: `{}`, code: CodeInvalidParams},
		{name: "update without text", caller: "alice", method: "updateTodoText", params: `{"id":0}`, code: CodeInvalidParams},
		{name: "negative id", caller: "alice", method: "getTodo", params: `{"id":-1}`, code: CodeInvalidParams},
		{name: "too many positional", caller: "alice", method: "getTodo", params: `[1,2]`, code: CodeInvalidParams},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, d, tt.caller, tt.method, tt.params)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", string(resp.Result))
			}
			if resp.Error.Code != tt.code {
				t.Fatalf("code: got %d want %d (%s)", resp.Error.Code, tt.code, resp.Error.Message)
			}
			if resp.Result != nil {
				t.Fatalf("error response must not carry a result")
			}
		})
	}
}

func TestDispatcher_Methods(t *testing.T) {
	t.Parallel()

	want := []string{
		"addTodos",
		"getEffPaginatedTodos",
		"getPaginatedTodos",
		"getTodo",
		"removeTodos",
		"toggleTodo",
		"updateTodoText",
	}
	if got := newTestDispatcher().Methods(); !reflect.DeepEqual(got, want) {
		t.Fatalf("methods: got %v want %v", got, want)
	}
}

func TestDispatch_CursorAfterIDZero(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	decode[model.Count](t, call(t, d, "alice", "addTodos", `{"texts":["a","b"]}`))

	page := decode[[]model.Item](t, call(t, d, "alice", "getEffPaginatedTodos", `{"lastId":0,"limit":1,"after":true}`))
	if len(page) != 1 || page[0].ID != 1 {
		t.Fatalf("after id 0: %+v", page)
	}
	page = decode[[]model.Item](t, call(t, d, "alice", "getEffPaginatedTodos", `[null, 1, true]`))
	if len(page) != 1 || page[0].ID != 0 {
		t.Fatalf("absent cursor starts at the first item: %+v", page)
	}
	page = decode[[]model.Item](t, call(t, d, "alice", "getEffPaginatedTodos", `{"lastId":0,"limit":1}`))
	if len(page) != 1 || page[0].ID != 0 {
		t.Fatalf("default cursor 0 is inclusive: %+v", page)
	}
}
