package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"todo-backend/internal/client"
	"todo-backend/internal/model"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Backend is what the TUI needs from the server. *client.Client implements it.
type Backend interface {
	ListAfter(ctx context.Context, lastID *uint64, limit uint64) (client.Page, error)
	Add(ctx context.Context, texts []string) (uint64, error)
	Remove(ctx context.Context, ids []uint64) (uint64, error)
	Toggle(ctx context.Context, id uint64) (bool, error)
	UpdateText(ctx context.Context, id uint64, text string) (model.Item, error)
}

type viewMode int

const (
	modeList viewMode = iota
	modeAdd
	modeEdit
	modeDetail
)

// pageCursor is where a page starts. The first page starts at id 0
// inclusive; later pages start strictly after lastID.
type pageCursor struct {
	lastID uint64
	after  bool
}

type pageLoadedMsg struct {
	items   []model.Item
	hasNext bool
	err     error
}

type mutatedMsg struct {
	status string
	err    error
}

type keyMap struct {
	Toggle key.Binding
	Add    key.Binding
	Edit   key.Binding
	Remove key.Binding
	Next   key.Binding
	Prev   key.Binding
	Reload key.Binding
	Open   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Remove: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		Next:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next page")),
		Prev:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev page")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Open:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type appModel struct {
	ctx      context.Context
	backend  Backend
	caller   string
	pageSize uint64
	keys     keyMap

	mode    viewMode
	list    list.Model
	input   textinput.Model
	cursors []pageCursor
	hasNext bool
	editID  uint64

	width, height int
	status        string
	err           error
}

func newAppModel(ctx context.Context, backend Backend, opts Options) appModel {
	if ctx == nil {
		ctx = context.Background()
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = 20
	}

	keys := newKeyMap()
	l := list.New(nil, newTodoDelegate(), 80, 20)
	l.Title = "todos"
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Add, keys.Edit, keys.Remove, keys.Next, keys.Prev, keys.Quit}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Add, keys.Edit, keys.Remove, keys.Next, keys.Prev, keys.Reload, keys.Open, keys.Quit}
	}

	in := textinput.New()
	in.CharLimit = 1024
	in.Width = 60

	return appModel{
		ctx:      ctx,
		backend:  backend,
		caller:   strings.TrimSpace(opts.Caller),
		pageSize: pageSize,
		keys:     keys,
		list:     l,
		input:    in,
		cursors:  []pageCursor{{}},
		width:    80,
		height:   24,
	}
}

func (m appModel) Init() tea.Cmd {
	return m.loadPage(m.current())
}

func (m appModel) current() pageCursor {
	return m.cursors[len(m.cursors)-1]
}

func (m appModel) loadPage(c pageCursor) tea.Cmd {
	backend, ctx, size := m.backend, m.ctx, m.pageSize
	return func() tea.Msg {
		var lastID *uint64
		if c.after {
			lastID = &c.lastID
		}
		p, err := backend.ListAfter(ctx, lastID, size)
		if err != nil {
			return pageLoadedMsg{err: err}
		}
		items := p.Items
		if uint64(len(items)) > size {
			items = items[:size]
		}
		return pageLoadedMsg{items: items, hasNext: p.NextLastID != nil}
	}
}

func (m appModel) mutate(f func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := f()
		return mutatedMsg{status: status, err: err}
	}
}

func (m appModel) selected() (model.Item, bool) {
	it, ok := m.list.SelectedItem().(todoItem)
	if !ok {
		return model.Item{}, false
	}
	return it.Item, true
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, max(1, msg.Height-4))
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case pageLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, 0, len(msg.items))
		for _, it := range msg.items {
			items = append(items, todoItem{it})
		}
		idx := m.list.Index()
		cmd := m.list.SetItems(items)
		if idx >= len(items) {
			idx = len(items) - 1
		}
		if idx >= 0 {
			m.list.Select(idx)
		}
		m.hasNext = msg.hasNext
		return m, cmd

	case mutatedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = msg.status
		return m, m.loadPage(m.current())

	case tea.KeyMsg:
		switch m.mode {
		case modeAdd, modeEdit:
			return m.updateInput(msg)
		case modeDetail:
			switch msg.String() {
			case "esc", "enter", "q":
				m.mode = modeList
			case "ctrl+c":
				return m, tea.Quit
			}
			return m, nil
		}
		return m.updateList(msg)
	}

	if m.mode == modeAdd || m.mode == modeEdit {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	backend, ctx := m.backend, m.ctx

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.mutate(func() (string, error) {
			done, err := backend.Toggle(ctx, it.ID)
			if err != nil {
				return "", err
			}
			if done {
				return fmt.Sprintf("completed #%d", it.ID), nil
			}
			return fmt.Sprintf("reopened #%d", it.ID), nil
		})

	case key.Matches(msg, m.keys.Remove):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.mutate(func() (string, error) {
			n, err := backend.Remove(ctx, []uint64{it.ID})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("removed #%d (%d left)", it.ID, n), nil
		})

	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.input.Placeholder = "new item"
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Edit):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.editID = it.ID
		m.input.Placeholder = ""
		m.input.SetValue(it.Text)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Next):
		if !m.hasNext {
			return m, nil
		}
		items := m.list.Items()
		if len(items) == 0 {
			return m, nil
		}
		last := items[len(items)-1].(todoItem)
		m.cursors = append(m.cursors, pageCursor{lastID: last.ID, after: true})
		m.list.Select(0)
		return m, m.loadPage(m.current())

	case key.Matches(msg, m.keys.Prev):
		if len(m.cursors) <= 1 {
			return m, nil
		}
		m.cursors = m.cursors[:len(m.cursors)-1]
		m.list.Select(0)
		return m, m.loadPage(m.current())

	case key.Matches(msg, m.keys.Reload):
		m.status = ""
		return m, m.loadPage(m.current())

	case key.Matches(msg, m.keys.Open):
		if _, ok := m.selected(); ok {
			m.mode = modeDetail
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	backend, ctx := m.backend, m.ctx

	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.input.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		mode, id := m.mode, m.editID
		m.mode = modeList
		m.input.Blur()
		if text == "" {
			return m, nil
		}
		if mode == modeAdd {
			return m, m.mutate(func() (string, error) {
				n, err := backend.Add(ctx, []string{text})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("added (%d total)", n), nil
			})
		}
		return m, m.mutate(func() (string, error) {
			if _, err := backend.UpdateText(ctx, id, text); err != nil {
				return "", err
			}
			return fmt.Sprintf("updated #%d", id), nil
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	var b strings.Builder

	header := "todos"
	if m.caller != "" {
		header += " · " + m.caller
	}
	header += " · page " + strconv.Itoa(len(m.cursors))
	b.WriteString(styleHeader().Render(fitWidth(header, max(10, m.width))))
	b.WriteString("\n")

	switch m.mode {
	case modeDetail:
		it, _ := m.selected()
		b.WriteString(renderMarkdown(detailMarkdown(it), max(10, m.width-2)))
		b.WriteString("\n")
		b.WriteString(styleMuted().Render("esc back"))
		return b.String()
	case modeAdd, modeEdit:
		label := "Add: "
		if m.mode == modeEdit {
			label = fmt.Sprintf("Edit #%d: ", m.editID)
		}
		b.WriteString(m.list.View())
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, m.input.View()))
		return b.String()
	}

	if len(m.list.Items()) == 0 {
		b.WriteString(styleMuted().Render("No items. Press a to add one."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteString("\n")
	}
	switch {
	case m.err != nil:
		b.WriteString(styleError().Render(m.err.Error()))
	case m.status != "":
		b.WriteString(styleMuted().Render(m.status))
	}
	return b.String()
}

func detailMarkdown(it model.Item) string {
	state := "open"
	if it.Completed {
		state = "done"
	}
	return fmt.Sprintf("# #%d\n\n%s\n\n*%s*", it.ID, it.Text, state)
}
