package tui

import (
	"context"
	"slices"
	"strings"
	"time"

	"tareas-cli/internal/command"
	"tareas-cli/internal/model"
	"tareas-cli/internal/query"
	"tareas-cli/internal/store"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const reloadInterval = 2 * time.Second

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeAddSub
	modeEdit
	modeTags
	modeConfirmDelete
)

type sortMode int

const (
	sortManual sortMode = iota
	sortPriority
	sortDue
)

func (s sortMode) String() string {
	switch s {
	case sortPriority:
		return "priority"
	case sortDue:
		return "due"
	}
	return "manual"
}

type reloadTickMsg struct{}

// reloadedMsg carries a state another process saved. base is the in-memory revision the
// check started from; the reload is dropped if a local save happened meanwhile.
type reloadedMsg struct {
	base string
	db   *store.DB
	err  error
}

type Model struct {
	ctx       context.Context
	store     store.Store
	db        *store.DB
	workspace string
	now       func() time.Time
	autoLoad  bool

	keys    keyMap
	help    help.Model
	input   textinput.Model
	preview viewport.Model

	width  int
	height int

	view  query.View
	tags  []string
	sort  sortMode
	rows  []query.Row
	flat  bool
	stats query.Counts

	cursor     int
	selectedID int

	mode          mode
	pendingDelete int
	showPreview   bool
	showHelp      bool

	status string
	err    error
}

func newModel(cfg Config, st *store.TUIState) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 500

	m := Model{
		ctx:       ctx,
		store:     cfg.Store,
		db:        cfg.DB,
		workspace: strings.TrimSpace(cfg.Workspace),
		now:       now,
		autoLoad:  cfg.Store.Dir != "" && !cfg.NoReload,
		keys:      defaultKeyMap(),
		help:      help.New(),
		input:     in,
		preview:   viewport.New(0, 0),
		view:      query.ViewAll,
	}
	if st != nil {
		if v, ok := query.ParseView(st.View); ok {
			m.view = v
		}
		switch {
		case st.SortByPriority:
			m.sort = sortPriority
		case st.SortByDueDate:
			m.sort = sortDue
		}
		m.tags = slices.Clone(st.Tags)
		m.selectedID = st.SelectedTaskID
		m.showPreview = st.ShowPreview
	}
	m.refresh()
	return m
}

// State captures what a relaunch restores.
func (m Model) State() *store.TUIState {
	return &store.TUIState{
		Version:        1,
		View:           string(m.view),
		SortByPriority: m.sort == sortPriority,
		SortByDueDate:  m.sort == sortDue,
		Tags:           slices.Clone(m.tags),
		SelectedTaskID: m.selectedID,
		ShowPreview:    m.showPreview,
	}
}

func (m Model) Init() tea.Cmd {
	if !m.autoLoad {
		return nil
	}
	return reloadTick()
}

func reloadTick() tea.Cmd {
	return tea.Tick(reloadInterval, func(time.Time) tea.Msg { return reloadTickMsg{} })
}

// checkReload loads the store when its revision moved past base.
func (m Model) checkReload() tea.Cmd {
	s, ctx, base := m.store, m.ctx, m.db.Revision
	return func() tea.Msg {
		rev, err := s.Revision(ctx)
		if err != nil {
			return reloadedMsg{base: base, err: err}
		}
		if rev == "" || rev == base {
			return reloadedMsg{base: base}
		}
		db, err := s.LoadContext(ctx)
		return reloadedMsg{base: base, db: db, err: err}
	}
}

func (m Model) options() query.Options {
	return query.Options{
		View:           m.view,
		Tags:           m.tags,
		SortByPriority: m.sort == sortPriority,
		SortByDueDate:  m.sort == sortDue,
		Now:            m.now(),
	}
}

// refresh recomputes the visible rows and keeps the cursor on the selected task, or on its
// nearest visible ancestor when it got hidden.
func (m *Model) refresh() {
	m.rows = nil
	m.flat = false
	m.stats = query.Counts{}
	f := m.db.CurrentForest()
	if f == nil {
		m.cursor = 0
		return
	}
	p := query.Project(f, m.options())
	m.rows = p.Rows()
	m.flat = !p.Hierarchical
	m.stats = query.Stats(f)

	if len(m.rows) == 0 {
		m.cursor = 0
		return
	}
	for id := m.selectedID; id > 0; {
		if i := m.rowIndex(id); i >= 0 {
			m.cursor = i
			m.selectedID = id
			m.syncPreview()
			return
		}
		parent, ok := f.Parent(id)
		if !ok {
			break
		}
		id = parent.ID
	}
	m.cursor = min(max(m.cursor, 0), len(m.rows)-1)
	m.selectedID = m.rows[m.cursor].Task.ID
	m.syncPreview()
}

func (m *Model) rowIndex(id int) int {
	for i, r := range m.rows {
		if r.Task.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) selected() (*model.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil, false
	}
	return m.rows[m.cursor].Task, true
}

func (m *Model) moveCursor(to int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(to, 0), len(m.rows)-1)
	m.selectedID = m.rows[m.cursor].Task.ID
	m.syncPreview()
}

// exec applies c and saves. Skipped commands only set the status line.
func (m *Model) exec(c command.Command) (command.Outcome, bool) {
	out, err := command.Exec(m.ctx, m.store, m.db, c, m.now())
	if err != nil {
		m.err = err
		m.refresh()
		return out, false
	}
	m.err = nil
	if out.Skipped != "" {
		m.status = out.Skipped
		return out, false
	}
	m.refresh()
	return out, true
}

func (m *Model) syncPreview() {
	t, ok := m.selected()
	if !ok || !m.showPreview {
		m.preview.SetContent("")
		return
	}
	w := m.previewWidth()
	body := renderMarkdown(t.Description, w)
	if body == "" {
		body = styleMuted().Render("(sin descripción)")
	}
	m.preview.SetContent(body)
	m.preview.GotoTop()
}

func (m Model) previewWidth() int {
	if m.width <= 0 {
		return 40
	}
	return max(m.width*2/5-2, 10)
}
