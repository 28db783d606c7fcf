package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"todo-backend/internal/client"
	"todo-backend/internal/model"
	"todo-backend/internal/todo"

	tea "github.com/charmbracelet/bubbletea"
)

// storeBackend serves the model straight from an in-memory store.
type storeBackend struct {
	caller string
	store  *todo.Store
	calls  []uint64 // limits passed to ListAfter
}

func (b *storeBackend) ListAfter(_ context.Context, lastID *uint64, limit uint64) (client.Page, error) {
	b.calls = append(b.calls, limit)
	var start uint64
	if lastID != nil {
		start = *lastID + 1
	}
	p := client.Page{Items: b.store.ListFrom(b.caller, start, limit)}
	if n := len(p.Items); n > 0 && uint64(n) == limit {
		next := p.Items[n-1].ID
		p.NextLastID = &next
	}
	return p, nil
}

func (b *storeBackend) Add(_ context.Context, texts []string) (uint64, error) {
	return b.store.Add(b.caller, texts), nil
}

func (b *storeBackend) Remove(_ context.Context, ids []uint64) (uint64, error) {
	return b.store.Remove(b.caller, ids), nil
}

func (b *storeBackend) Toggle(_ context.Context, id uint64) (bool, error) {
	return b.store.Toggle(b.caller, id)
}

func (b *storeBackend) UpdateText(_ context.Context, id uint64, text string) (model.Item, error) {
	return b.store.UpdateText(b.caller, id, text)
}

func newTestModel(t *testing.T, pageSize uint64, texts ...string) (appModel, *storeBackend) {
	t.Helper()
	b := &storeBackend{caller: "alice", store: todo.NewStore()}
	if len(texts) > 0 {
		b.store.Add("alice", texts)
	}
	m := newAppModel(context.Background(), b, Options{Caller: "alice", PageSize: pageSize})
	m = drain(t, m, m.Init())
	return m, b
}

// drain runs cmd and feeds back the messages this package produces, stopping
// at anything else (cursor blinks and the like).
func drain(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		switch msg.(type) {
		case pageLoadedMsg, mutatedMsg:
		default:
			return m
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(appModel)
	}
	return m
}

func press(t *testing.T, m appModel, k string) appModel {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	nm := next.(appModel)
	if nm.mode == modeAdd || nm.mode == modeEdit {
		// Focus returns a blink command; nothing to feed back.
		return nm
	}
	return drain(t, nm, cmd)
}

func listed(m appModel) []uint64 {
	var out []uint64
	for _, li := range m.list.Items() {
		out = append(out, li.(todoItem).ID)
	}
	return out
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestModel_PagesWithCursorStack(t *testing.T) {
	t.Parallel()

	m, b := newTestModel(t, 2, "a", "b", "c", "d", "e")
	b.store.Remove("alice", []uint64{2})

	m = press(t, m, "r")
	if got := listed(m); !equalIDs(got, []uint64{0, 1}) {
		t.Fatalf("page 1: %v", got)
	}
	m = press(t, m, "n")
	if got := listed(m); !equalIDs(got, []uint64{3, 4}) {
		t.Fatalf("page 2: %v", got)
	}
	if len(m.cursors) != 2 {
		t.Fatalf("cursor stack: %+v", m.cursors)
	}
	m = press(t, m, "n")
	if got := listed(m); len(got) != 0 || m.hasNext {
		t.Fatalf("page 3 must be empty: %v hasNext=%v", got, m.hasNext)
	}
	m = press(t, m, "n")
	if len(m.cursors) != 3 {
		t.Fatalf("next past the end must not push: %+v", m.cursors)
	}
	m = press(t, m, "p")
	m = press(t, m, "p")
	if got := listed(m); !equalIDs(got, []uint64{0, 1}) || len(m.cursors) != 1 {
		t.Fatalf("back to page 1: %v %+v", got, m.cursors)
	}
	m = press(t, m, "p")
	if len(m.cursors) != 1 {
		t.Fatalf("prev on the first page must be a no-op")
	}
}

func TestModel_NextPageAfterIDZero(t *testing.T) {
	t.Parallel()

	m, b := newTestModel(t, 1, "a", "b")
	if got := listed(m); !equalIDs(got, []uint64{0}) {
		t.Fatalf("page 1: %v", got)
	}
	m = press(t, m, "n")
	if got := listed(m); !equalIDs(got, []uint64{1}) {
		t.Fatalf("page 2 must skip id 0: %v", got)
	}
	if last := b.calls[len(b.calls)-1]; last != 1 {
		t.Fatalf("page size must be passed through, limit=%d", last)
	}
}

func TestModel_ToggleRemoveAndEdit(t *testing.T) {
	t.Parallel()

	m, b := newTestModel(t, 10, "a", "b")

	m = press(t, m, " ")
	if it, _ := b.store.Get("alice", 0); !it.Completed {
		t.Fatalf("space must toggle the selected item")
	}
	if sel, _ := m.selected(); !sel.Completed {
		t.Fatalf("list must reload after toggle: %+v", sel)
	}
	if !strings.Contains(m.status, "completed #0") {
		t.Fatalf("status: %q", m.status)
	}

	m = press(t, m, "e")
	if m.mode != modeEdit || m.input.Value() != "a" {
		t.Fatalf("edit must prefill: mode=%v value=%q", m.mode, m.input.Value())
	}
	m.input.SetValue("renamed")
	m = press(t, m, "enter")
	if it, _ := b.store.Get("alice", 0); it.Text != "renamed" {
		t.Fatalf("edit not applied: %+v", it)
	}

	m = press(t, m, "x")
	if _, ok := b.store.Get("alice", 0); ok {
		t.Fatalf("x must remove the selected item")
	}
	if got := listed(m); !equalIDs(got, []uint64{1}) {
		t.Fatalf("after remove: %v", got)
	}
}

func TestModel_AddAndCancel(t *testing.T) {
	t.Parallel()

	m, b := newTestModel(t, 10)
	if !strings.Contains(m.View(), "No items") {
		t.Fatalf("empty view: %q", m.View())
	}

	m = press(t, m, "a")
	if m.mode != modeAdd {
		t.Fatalf("a must open the add input")
	}
	m = press(t, m, "milk")
	m = press(t, m, "enter")
	if n := b.store.Count("alice"); n != 1 {
		t.Fatalf("count = %d", n)
	}
	if got := listed(m); !equalIDs(got, []uint64{0}) {
		t.Fatalf("after add: %v", got)
	}

	m = press(t, m, "a")
	m = press(t, m, "nope")
	m = press(t, m, "esc")
	if m.mode != modeList || b.store.Count("alice") != 1 {
		t.Fatalf("esc must cancel without adding")
	}
}

func TestModel_DetailView(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t, 10, "write the report")
	m = press(t, m, "enter")
	if m.mode != modeDetail {
		t.Fatalf("enter must open details")
	}
	if !strings.Contains(m.View(), "report") {
		t.Fatalf("detail view: %q", m.View())
	}
	m = press(t, m, "esc")
	if m.mode != modeList {
		t.Fatalf("esc must close details")
	}
}

type failingBackend struct{ storeBackend }

func (failingBackend) Toggle(context.Context, uint64) (bool, error) {
	return false, errors.New("server unreachable")
}

func TestModel_ShowsBackendErrors(t *testing.T) {
	t.Parallel()

	fb := &failingBackend{storeBackend{caller: "alice", store: todo.NewStore()}}
	fb.store.Add("alice", []string{"a"})
	m := newAppModel(context.Background(), fb, Options{})
	m = drain(t, m, m.Init())

	m = press(t, m, " ")
	if m.err == nil || !strings.Contains(m.View(), "server unreachable") {
		t.Fatalf("error not surfaced: %v", m.err)
	}
}

func TestFitWidth(t *testing.T) {
	t.Parallel()

	if got := fitWidth("abc", 5); got != "abc  " {
		t.Fatalf("pad: %q", got)
	}
	if got := fitWidth("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate: %q", got)
	}
}
