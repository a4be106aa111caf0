package tui

import (
	"fmt"
	"strings"

	"tareas-cli/internal/query"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// chrome is the number of lines outside the task list: header, blank, status, help.
const chrome = 4

func (m Model) listHeight() int {
	h := m.height - chrome
	if m.mode != modeNormal {
		h--
	}
	if m.showHelp {
		h -= 4
	}
	return max(h, 1)
}

func (m Model) listWidth() int {
	if m.width <= 0 {
		return 80
	}
	if m.showPreview {
		return max(m.width-m.previewWidth()-3, 20)
	}
	return m.width
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")

	list := m.viewList()
	if m.showPreview {
		sep := styleMuted().Render(strings.Repeat("│\n", max(m.listHeight()-1, 0)) + "│")
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, " ", sep, " ", m.preview.View())
	}
	b.WriteString(list)
	b.WriteString("\n")

	switch m.mode {
	case modeNormal:
	case modeConfirmDelete:
		b.WriteString(styleError().Render(m.confirmText()))
		b.WriteString("\n")
	default:
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewHeader() string {
	title := "tareas"
	if sc, pr, ok := m.db.Current(); ok {
		title = fmt.Sprintf("%s %s / %s %s", sc.Icon, sc.Name, pr.Icon, pr.Name)
	}
	parts := []string{styleHeader().Render(strings.TrimSpace(title))}
	if m.workspace != "" {
		parts = append(parts, styleMuted().Render("["+m.workspace+"]"))
	}
	meta := fmt.Sprintf("vista:%s  orden:%s", m.view, m.sort)
	if len(m.tags) > 0 {
		meta += "  #" + strings.Join(m.tags, " #")
	}
	parts = append(parts, styleMuted().Render(meta))
	parts = append(parts, styleMuted().Render(fmt.Sprintf("%d/%d hechas", m.stats.Completed, m.stats.Total)))
	return ansi.Truncate(strings.Join(parts, "  "), max(m.width, 20), "…")
}

// visibleRange keeps the cursor inside a window of listHeight rows.
func (m Model) visibleRange() (int, int) {
	h := m.listHeight()
	if len(m.rows) <= h {
		return 0, len(m.rows)
	}
	start := max(m.cursor-h/2, 0)
	end := start + h
	if end > len(m.rows) {
		end = len(m.rows)
		start = end - h
	}
	return start, end
}

func (m Model) viewList() string {
	w := m.listWidth()
	if len(m.rows) == 0 {
		msg := "Sin tareas. Pulsa a para añadir una."
		if m.db.CurrentForest() == nil {
			msg = "No hay un proyecto seleccionado."
		}
		return lipgloss.NewStyle().Width(w).Height(m.listHeight()).Render(styleMuted().Render(msg))
	}
	start, end := m.visibleRange()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i == m.cursor, w))
	}
	return lipgloss.NewStyle().Width(w).Height(m.listHeight()).Render(strings.Join(lines, "\n"))
}

func (m Model) renderRow(r query.Row, selected bool, width int) string {
	t := r.Task
	indent := ""
	if !m.flat {
		indent = strings.Repeat("  ", r.Depth)
	}

	marker := "  "
	if r.HasChildren && !m.flat {
		marker = "▸ "
		if t.Expanded {
			marker = "▾ "
		}
	}
	check := "[ ] "
	if t.Completed {
		check = "[x] "
	}

	text := t.Text
	if t.Completed {
		text = styleDone().Render(text)
	}

	var extra []string
	if r.TotalChildren > 0 {
		extra = append(extra, styleMuted().Render(fmt.Sprintf("(%d/%d)", r.DoneChildren, r.TotalChildren)))
	}
	now := m.now()
	for _, bd := range query.TaskBadges(t, now) {
		if bd.Class == "tag-item" {
			extra = append(extra, styleTag().Render("#"+bd.Text))
			continue
		}
		extra = append(extra, badgeStyle(bd.Class).Render(bd.String()))
	}
	for _, a := range t.Alerts {
		if !a.Active {
			continue
		}
		if c := query.AlertCountdown(a.AlertDate, now); c != "" {
			extra = append(extra, styleMuted().Render(c))
		}
	}

	line := indent + marker + check + text
	if len(extra) > 0 {
		line += "  " + strings.Join(extra, " ")
	}
	line = ansi.Truncate(line, width, "…")
	if selected {
		if pad := width - ansi.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		return styleSelected().Render(line)
	}
	return line
}

func (m Model) confirmText() string {
	text := fmt.Sprintf("task %d", m.pendingDelete)
	if f := m.db.CurrentForest(); f != nil {
		if t, ok := f.Get(m.pendingDelete); ok {
			text = fmt.Sprintf("%q", t.Text)
			if n := len(f.Subtree(t.ID)) - 1; n > 0 {
				text += fmt.Sprintf(" y %d subtareas", n)
			}
		}
	}
	return fmt.Sprintf("¿Eliminar %s? (s/N)", text)
}

func (m Model) viewStatus() string {
	if m.err != nil {
		return styleError().Render("error: " + m.err.Error())
	}
	if m.status != "" {
		return styleStatus().Render(m.status)
	}
	return styleMuted().Render(fmt.Sprintf("%d de %d visibles", len(m.rows), m.stats.Total))
}
