package tui

import (
	"slices"
	"strings"

	"tareas-cli/internal/command"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/query"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		m.preview.Width = m.previewWidth()
		m.preview.Height = max(m.listHeight(), 1)
		m.syncPreview()
		return m, nil

	case reloadTickMsg:
		if m.mode != modeNormal {
			return m, reloadTick()
		}
		return m, m.checkReload()

	case reloadedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else if msg.db != nil && msg.base == m.db.Revision {
			m.db = msg.db
			m.status = "recargado"
			m.refresh()
		}
		if m.autoLoad {
			return m, reloadTick()
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.updatePrompt(msg)
		}
		return m.updateNormal(msg)
	}

	if m.showPreview {
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, k.Up):
		m.moveCursor(m.cursor - 1)
	case key.Matches(msg, k.Down):
		m.moveCursor(m.cursor + 1)
	case key.Matches(msg, k.Top):
		m.moveCursor(0)
	case key.Matches(msg, k.Bottom):
		m.moveCursor(len(m.rows) - 1)

	case key.Matches(msg, k.Toggle):
		if t, ok := m.selected(); ok {
			m.exec(command.ToggleCompletion{ID: t.ID})
		}
	case key.Matches(msg, k.Expand):
		if t, ok := m.selected(); ok && t.HasChildren() && !m.flat {
			m.exec(command.ToggleExpansion{ID: t.ID})
		}
	case key.Matches(msg, k.Collapse):
		m.collapseOrParent()
	case key.Matches(msg, k.AllFold):
		m.exec(command.SetAllExpanded{})

	case key.Matches(msg, k.Add):
		return m.prompt(modeAdd, "Nueva tarea", "")
	case key.Matches(msg, k.AddSub):
		if _, ok := m.selected(); ok {
			return m.prompt(modeAddSub, "Nueva subtarea", "")
		}
	case key.Matches(msg, k.Edit):
		if t, ok := m.selected(); ok {
			return m.prompt(modeEdit, "Texto", t.Text)
		}
	case key.Matches(msg, k.Dup):
		if t, ok := m.selected(); ok {
			if out, ok := m.exec(command.DuplicateTask{ID: t.ID}); ok && out.Task != nil {
				m.selectedID = out.Task.ID
				m.refresh()
			}
		}
	case key.Matches(msg, k.Delete):
		if t, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
			m.pendingDelete = t.ID
		}

	case key.Matches(msg, k.MoveUp):
		m.reorder(-1)
	case key.Matches(msg, k.MoveDown):
		m.reorder(1)
	case key.Matches(msg, k.Indent):
		m.indent()
	case key.Matches(msg, k.Outdent):
		m.outdent()

	case key.Matches(msg, k.View):
		i := slices.Index(query.Views, m.view)
		m.view = query.Views[(i+1)%len(query.Views)]
		m.refresh()
	case key.Matches(msg, k.Sort):
		m.sort = (m.sort + 1) % 3
		m.refresh()
	case key.Matches(msg, k.Tags):
		return m.prompt(modeTags, "Etiquetas (separadas por coma)", strings.Join(m.tags, ", "))
	case key.Matches(msg, k.Preview):
		m.showPreview = !m.showPreview
		m.syncPreview()
	case key.Matches(msg, k.Reload):
		if m.store.Dir != "" {
			return m, m.checkReload()
		}
	}
	return m, nil
}

func (m Model) prompt(md mode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = md
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeConfirmDelete {
		switch strings.ToLower(msg.String()) {
		case "y", "s", "enter":
			id := m.pendingDelete
			m.mode, m.pendingDelete = modeNormal, 0
			if _, ok := m.exec(command.DeleteTask{ID: id}); ok {
				m.status = "tarea eliminada"
			}
		default:
			m.mode, m.pendingDelete = modeNormal, 0
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		md := m.mode
		m.mode = modeNormal
		m.input.Blur()
		m.submit(md, value)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit(md mode, value string) {
	switch md {
	case modeTags:
		m.tags = nil
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "#")); part != "" {
				m.tags = append(m.tags, part)
			}
		}
		m.refresh()
		return
	}
	if value == "" {
		return
	}
	switch md {
	case modeAdd:
		if out, ok := m.exec(command.AddTask{Text: value}); ok && out.Task != nil {
			m.selectedID = out.Task.ID
			m.refresh()
		}
	case modeAddSub:
		t, ok := m.selected()
		if !ok {
			return
		}
		parent := t.ID
		if out, ok := m.exec(command.AddTask{ParentID: &parent, Text: value}); ok && out.Task != nil {
			m.selectedID = out.Task.ID
			m.refresh()
		}
	case modeEdit:
		if t, ok := m.selected(); ok && value != t.Text {
			m.exec(command.EditTask{ID: t.ID, Patch: patchText(value)})
		}
	}
}

func patchText(s string) mutate.TaskPatch {
	return mutate.TaskPatch{Text: &s}
}

// collapseOrParent collapses an expanded task, otherwise jumps to its parent.
func (m *Model) collapseOrParent() {
	t, ok := m.selected()
	if !ok || m.flat {
		return
	}
	if t.HasChildren() && t.Expanded {
		m.exec(command.ToggleExpansion{ID: t.ID})
		return
	}
	if t.ParentID != nil {
		if i := m.rowIndex(*t.ParentID); i >= 0 {
			m.moveCursor(i)
		}
	}
}

// manualOrder reports whether structural edits make sense: the outline is shown in stored
// order.
func (m *Model) manualOrder() bool {
	if m.flat || m.sort != sortManual {
		m.status = "reordenar solo en la vista jerárquica sin ordenar"
		return false
	}
	return true
}

// siblings returns the selected task's sibling ids and its index among them.
func (m *Model) siblings() ([]int, int, bool) {
	t, ok := m.selected()
	if !ok {
		return nil, 0, false
	}
	f := m.db.CurrentForest()
	if f == nil {
		return nil, 0, false
	}
	var ids []int
	if t.ParentID == nil {
		ids = f.RootIDs()
	} else if p, ok := f.Get(*t.ParentID); ok {
		ids = p.Children
	}
	i := slices.Index(ids, t.ID)
	return ids, i, i >= 0
}

func (m *Model) reorder(dir int) {
	if !m.manualOrder() {
		return
	}
	ids, i, ok := m.siblings()
	if !ok {
		return
	}
	j := i + dir
	if j < 0 || j >= len(ids) {
		return
	}
	m.exec(command.ReorderTask{TaskID: ids[i], ReferenceID: ids[j], After: dir > 0})
}

func (m *Model) indent() {
	if !m.manualOrder() {
		return
	}
	ids, i, ok := m.siblings()
	if !ok {
		return
	}
	if i == 0 {
		m.status = "no hay una tarea anterior al mismo nivel"
		return
	}
	m.exec(command.ConvertToSubtask{TaskID: ids[i], NewParentID: ids[i-1]})
}

func (m *Model) outdent() {
	if !m.manualOrder() {
		return
	}
	t, ok := m.selected()
	if !ok || t.ParentID == nil {
		return
	}
	m.exec(command.ReorderTask{TaskID: t.ID, ReferenceID: *t.ParentID, After: true})
}
