package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"todo-backend/internal/model"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// todoItem adapts model.Item to list.Item.
type todoItem struct{ model.Item }

func (i todoItem) FilterValue() string { return i.Text }

func (i todoItem) Title() string {
	box := "[ ]"
	if i.Completed {
		box = "[x]"
	}
	return box + " " + strconv.FormatUint(i.ID, 10) + "  " + i.Text
}

type todoDelegate struct {
	normal   lipgloss.Style
	done     lipgloss.Style
	selected lipgloss.Style
}

func newTodoDelegate() todoDelegate {
	return todoDelegate{
		normal: lipgloss.NewStyle(),
		done:   styleMuted().Strikethrough(true).Foreground(colorDone),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
	}
}

func (d todoDelegate) Height() int  { return 1 }
func (d todoDelegate) Spacing() int { return 0 }
func (d todoDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d todoDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	contentW := m.Width()
	if contentW < 4 {
		return
	}
	it, ok := item.(todoItem)
	if !ok {
		fmt.Fprint(w, xansi.Truncate(fmt.Sprint(item), contentW, "…"))
		return
	}

	style := d.normal
	if it.Completed {
		style = d.done
	}
	if index == m.Index() {
		style = d.selected
	}

	fmt.Fprint(w, style.Render(fitWidth(it.Title(), contentW)))
}

// fitWidth pads or truncates s to exactly w terminal cells.
func fitWidth(s string, w int) string {
	sw := xansi.StringWidth(s)
	switch {
	case sw < w:
		return s + strings.Repeat(" ", w-sw)
	case sw > w:
		return xansi.Truncate(s, w, "…")
	default:
		return s
	}
}
