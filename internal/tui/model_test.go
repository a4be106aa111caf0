package tui

import (
	"strings"
	"testing"
	"time"

	"tareas-cli/internal/command"
	"tareas-cli/internal/query"
	"tareas-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, texts ...string) Model {
	t.Helper()
	db := store.NewDB()
	for _, text := range texts {
		if _, err := command.Apply(db, command.AddTask{Text: text}, testNow); err != nil {
			t.Fatalf("AddTask(%q): %v", text, err)
		}
	}
	m := newModel(Config{
		Store:    store.Store{Dir: t.TempDir()},
		DB:       db,
		Now:      func() time.Time { return testNow },
		NoReload: true,
	}, nil)
	m.width, m.height = 100, 30
	return m
}

func addChild(t *testing.T, m *Model, parent int, text string) int {
	t.Helper()
	out, err := command.Apply(m.db, command.AddTask{ParentID: &parent, Text: text}, testNow)
	if err != nil {
		t.Fatalf("AddTask(%q): %v", text, err)
	}
	m.refresh()
	return out.Task.ID
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		nm, ok := next.(Model)
		if !ok {
			t.Fatalf("expected Model from Update; got %T", next)
		}
		m = nm
	}
	return m
}

func rowTexts(m Model) []string {
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.Task.Text)
	}
	return out
}

func TestAddTaskFromPrompt(t *testing.T) {
	m := newTestModel(t)
	m = press(t, m, "a")
	if m.mode != modeAdd {
		t.Fatalf("expected add mode; got %v", m.mode)
	}
	m = press(t, m, "Comprar pan", "enter")
	if m.mode != modeNormal {
		t.Fatalf("expected normal mode after enter; got %v", m.mode)
	}
	if got := rowTexts(m); len(got) != 1 || got[0] != "Comprar pan" {
		t.Fatalf("expected [Comprar pan]; got %v", got)
	}
	if m.err != nil {
		t.Fatalf("unexpected error: %v", m.err)
	}
	if m.db.Revision == "" {
		t.Fatalf("expected the add to be saved")
	}
}

func TestEscCancelsPrompt(t *testing.T) {
	m := newTestModel(t, "uno")
	m = press(t, m, "e", "cambiado", "esc")
	if got := rowTexts(m); got[0] != "uno" {
		t.Fatalf("expected text unchanged; got %v", got)
	}
}

func TestAddSubtaskNestsUnderSelection(t *testing.T) {
	m := newTestModel(t, "padre")
	m = press(t, m, "A", "hijo", "enter")
	if len(m.rows) != 2 {
		t.Fatalf("expected 2 rows; got %d", len(m.rows))
	}
	child := m.rows[1]
	if child.Task.Text != "hijo" || child.Depth != 1 {
		t.Fatalf("expected hijo at depth 1; got %q at %d", child.Task.Text, child.Depth)
	}
	if m.cursor != 1 {
		t.Fatalf("expected the new subtask selected; got cursor %d", m.cursor)
	}
}

func TestToggleCompletionCascades(t *testing.T) {
	m := newTestModel(t, "padre")
	parent := m.rows[0].Task.ID
	addChild(t, &m, parent, "hijo")

	m = press(t, m, " ")
	for _, r := range m.rows {
		if !r.Task.Completed {
			t.Fatalf("expected %q completed", r.Task.Text)
		}
	}
	if m.stats.Completed != 2 {
		t.Fatalf("expected 2 completed; got %d", m.stats.Completed)
	}
}

func TestCollapseMovesToParentThenFolds(t *testing.T) {
	m := newTestModel(t, "padre")
	parent := m.rows[0].Task.ID
	addChild(t, &m, parent, "hijo")

	m = press(t, m, "j")
	if m.selectedID == parent {
		t.Fatalf("expected the child selected")
	}
	m = press(t, m, "h")
	if m.selectedID != parent {
		t.Fatalf("expected parent selected; got %d", m.selectedID)
	}
	m = press(t, m, "h")
	if len(m.rows) != 1 {
		t.Fatalf("expected children hidden; got %v", rowTexts(m))
	}
	m = press(t, m, "enter")
	if len(m.rows) != 2 {
		t.Fatalf("expected children shown again; got %v", rowTexts(m))
	}
}

func TestIndentAndOutdent(t *testing.T) {
	m := newTestModel(t, "uno", "dos")
	first := m.rows[0].Task.ID

	m = press(t, m, "j", "tab")
	sel, ok := m.selected()
	if !ok || sel.ParentID == nil || *sel.ParentID != first {
		t.Fatalf("expected dos under uno; got %+v", sel)
	}

	m = press(t, m, "shift+tab")
	sel, _ = m.selected()
	if sel.ParentID != nil {
		t.Fatalf("expected dos back at the root")
	}
	if got := rowTexts(m); strings.Join(got, ",") != "uno,dos" {
		t.Fatalf("expected uno,dos; got %v", got)
	}
}

func TestIndentFirstSiblingIsRefused(t *testing.T) {
	m := newTestModel(t, "uno", "dos")
	m = press(t, m, "tab")
	if m.status == "" {
		t.Fatalf("expected a status explaining the refusal")
	}
	if sel, _ := m.selected(); sel.ParentID != nil {
		t.Fatalf("expected uno to stay at the root")
	}
}

func TestReorderSwapsSiblings(t *testing.T) {
	m := newTestModel(t, "uno", "dos", "tres")
	m = press(t, m, "G", "K")
	if got := strings.Join(rowTexts(m), ","); got != "uno,tres,dos" {
		t.Fatalf("expected uno,tres,dos; got %s", got)
	}
	if sel, _ := m.selected(); sel.Text != "tres" {
		t.Fatalf("expected tres to stay selected; got %q", sel.Text)
	}
	m = press(t, m, "J")
	if got := strings.Join(rowTexts(m), ","); got != "uno,dos,tres" {
		t.Fatalf("expected uno,dos,tres; got %s", got)
	}
}

func TestStructuralEditsNeedManualOrder(t *testing.T) {
	m := newTestModel(t, "uno", "dos")
	m = press(t, m, "s")
	if m.sort != sortPriority {
		t.Fatalf("expected priority sort; got %v", m.sort)
	}
	before := strings.Join(rowTexts(m), ",")
	m = press(t, m, "J")
	if m.status == "" {
		t.Fatalf("expected a status explaining the refusal")
	}
	if after := strings.Join(rowTexts(m), ","); after != before {
		t.Fatalf("expected order unchanged; got %s", after)
	}
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	m := newTestModel(t, "uno")
	m = press(t, m, "D")
	if m.mode != modeConfirmDelete {
		t.Fatalf("expected confirm mode; got %v", m.mode)
	}
	if !strings.Contains(m.View(), "¿Eliminar") {
		t.Fatalf("expected the confirmation in the view")
	}
	m = press(t, m, "n")
	if len(m.rows) != 1 {
		t.Fatalf("expected the task kept; got %d rows", len(m.rows))
	}

	m = press(t, m, "D", "s")
	if len(m.rows) != 0 {
		t.Fatalf("expected the task deleted; got %v", rowTexts(m))
	}
}

func TestDuplicateSelectsCopy(t *testing.T) {
	m := newTestModel(t, "uno")
	orig := m.selectedID
	m = press(t, m, "d")
	if len(m.rows) != 2 {
		t.Fatalf("expected 2 rows; got %d", len(m.rows))
	}
	if m.selectedID == orig {
		t.Fatalf("expected the copy selected")
	}
}

func TestTagFilterPrompt(t *testing.T) {
	m := newTestModel(t)
	m = press(t, m, "t", "#casa, trabajo", "enter")
	if strings.Join(m.tags, ",") != "casa,trabajo" {
		t.Fatalf("expected [casa trabajo]; got %v", m.tags)
	}
	if st := m.State(); strings.Join(st.Tags, ",") != "casa,trabajo" {
		t.Fatalf("expected tags in state; got %v", st.Tags)
	}
}

func TestViewCycleAndStateRestore(t *testing.T) {
	m := newTestModel(t, "uno")
	m = press(t, m, "v")
	if m.view != query.Views[1] {
		t.Fatalf("expected view %s; got %s", query.Views[1], m.view)
	}
	st := m.State()

	restored := newModel(Config{Store: m.store, DB: m.db, NoReload: true}, st)
	if restored.view != m.view {
		t.Fatalf("expected restored view %s; got %s", m.view, restored.view)
	}
}

func TestSelectionFallsBackToVisibleAncestor(t *testing.T) {
	m := newTestModel(t, "padre")
	parent := m.rows[0].Task.ID
	child := addChild(t, &m, parent, "hijo")

	st := &store.TUIState{SelectedTaskID: child}
	if _, err := command.Apply(m.db, command.ToggleExpansion{ID: parent}, testNow); err != nil {
		t.Fatalf("ToggleExpansion: %v", err)
	}
	restored := newModel(Config{Store: m.store, DB: m.db, NoReload: true}, st)
	if restored.selectedID != parent {
		t.Fatalf("expected selection on the parent; got %d", restored.selectedID)
	}
}

func TestReloadIgnoredAfterLocalSave(t *testing.T) {
	m := newTestModel(t, "uno")
	m.db.Revision = "local"
	next, _ := m.Update(reloadedMsg{base: "older", db: store.NewDB()})
	m = next.(Model)
	if len(m.rows) != 1 {
		t.Fatalf("expected the stale reload dropped; got %d rows", len(m.rows))
	}

	next, _ = m.Update(reloadedMsg{base: "local", db: store.NewDB()})
	m = next.(Model)
	if len(m.rows) != 0 {
		t.Fatalf("expected the reload applied; got %d rows", len(m.rows))
	}
}

func TestViewShowsRowsAndBadges(t *testing.T) {
	m := newTestModel(t, "Comprar pan")
	out := m.View()
	if !strings.Contains(out, "Comprar pan") {
		t.Fatalf("expected the task text in the view")
	}
	if !strings.Contains(out, "[ ]") {
		t.Fatalf("expected an open checkbox in the view")
	}
}

func TestResolveTheme(t *testing.T) {
	t.Setenv("TAREAS_TUI_THEME", "")
	t.Setenv("COLORFGBG", "")
	if got := resolveTheme("dark"); got != "dark" {
		t.Fatalf("expected dark from config; got %q", got)
	}
	t.Setenv("TAREAS_TUI_THEME", "light")
	if got := resolveTheme("dark"); got != "light" {
		t.Fatalf("expected env to win; got %q", got)
	}
	t.Setenv("TAREAS_TUI_THEME", "")
	t.Setenv("COLORFGBG", "15;0")
	if got := resolveTheme(""); got != "dark" {
		t.Fatalf("expected dark from COLORFGBG; got %q", got)
	}
	t.Setenv("COLORFGBG", "0;15")
	if got := resolveTheme("auto"); got != "light" {
		t.Fatalf("expected light from COLORFGBG; got %q", got)
	}
}
