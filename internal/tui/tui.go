package tui

import (
	"context"
	"log/slog"
	"time"

	"tareas-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type Config struct {
	Context   context.Context
	Store     store.Store
	DB        *store.DB
	Workspace string
	// Theme is the tui.theme config value (light, dark or auto).
	Theme string
	Now   func() time.Time
	// NoReload disables polling the store for saves made by other processes.
	NoReload bool
}

// Run starts the terminal UI and blocks until it quits. The view settings are saved on exit.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Context == nil {
		cfg.Context = ctx
	}
	applyColorProfilePreference()
	applyThemePreference(cfg.Theme)

	st, err := cfg.Store.LoadTUIState()
	if err != nil {
		slog.Warn("tui state unreadable", "err", err)
		st = nil
	}
	m := newModel(cfg, st)

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(Model); ok {
		if serr := cfg.Store.SaveTUIState(fm.State()); serr != nil {
			slog.Warn("save tui state", "err", serr)
		}
	}
	return err
}
