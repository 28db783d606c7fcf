package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	Caller   string
	PageSize uint64
}

func Run(ctx context.Context, backend Backend, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := newAppModel(ctx, backend, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
