package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"tareas-cli/internal/model"
)

func TestSQLiteStateRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := Store{Dir: t.TempDir()}
	db := seedDB(t)
	db.CurrentScenarioID = 2
	db.AllTasksCollapsed = true
	hook := "https://example.test/hook"
	sc1, _ := db.FindScenario(1)
	p1, _ := sc1.FindProject(1)
	call, _ := p1.Tasks.Get(4)
	call.Alerts = []model.Alert{{ID: NextID(db, model.KindAlert), Title: "t", Message: "m", AlertDate: "2030-01-01T10:00", WebhookURL: &hook, Active: true, Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}}
	call.DueDate = "2030-01-02"

	if err := s.SaveContext(ctx, db); err != nil {
		t.Fatalf("save: %v", err)
	}
	if db.Revision == "" {
		t.Fatalf("expected save to stamp a revision")
	}

	got, err := s.LoadContext(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentScenarioID != 2 || got.CurrentProjectID != 1 || !got.AllTasksCollapsed {
		t.Fatalf("expected selection 2/1 collapsed; got %d/%d %v", got.CurrentScenarioID, got.CurrentProjectID, got.AllTasksCollapsed)
	}
	if got.Revision != db.Revision {
		t.Fatalf("expected revision %q; got %q", db.Revision, got.Revision)
	}
	if len(got.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios; got %d", len(got.Scenarios))
	}
	for _, kind := range []model.Kind{model.KindTask, model.KindScenario, model.KindProject, model.KindTag, model.KindAlert} {
		if PeekID(got, kind) != PeekID(db, kind) {
			t.Fatalf("expected counter %s=%d; got %d", kind, PeekID(db, kind), PeekID(got, kind))
		}
	}
	if err := got.Check(); err != nil {
		t.Fatalf("expected loaded state to pass Check: %v", err)
	}

	gsc, _ := got.FindScenario(1)
	gp, _ := gsc.FindProject(1)
	var order []int
	for _, tk := range gp.Tasks.Flatten() {
		order = append(order, tk.ID)
	}
	if want := []int{1, 2, 3, 4}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected pre-order %v; got %v", want, order)
	}
	entera, _ := gp.Tasks.Get(3)
	if entera.Depth != 2 || entera.ParentID == nil || *entera.ParentID != 2 {
		t.Fatalf("expected task 3 at depth 2 under 2; got depth=%d parent=%v", entera.Depth, entera.ParentID)
	}
	root, _ := gp.Tasks.Get(1)
	if len(root.Tags) != 2 || root.Tags[0].Labeled() || !root.Tags[1].Labeled() || root.Tags[1].Text != "urgente" {
		t.Fatalf("expected mixed tags to survive; got %#v", root.Tags)
	}
	gcall, _ := gp.Tasks.Get(4)
	if len(gcall.Alerts) != 1 || gcall.Alerts[0].WebhookURL == nil || *gcall.Alerts[0].WebhookURL != hook {
		t.Fatalf("expected alert with webhook; got %#v", gcall.Alerts)
	}
	if gcall.DueDate != "2030-01-02" {
		t.Fatalf("expected due date to survive; got %q", gcall.DueDate)
	}
}

func TestSQLiteSaveReplacesPreviousState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := Store{Dir: t.TempDir()}
	db := seedDB(t)
	if err := s.SaveContext(ctx, db); err != nil {
		t.Fatalf("save: %v", err)
	}
	first := db.Revision

	db.CurrentForest().Remove(1)
	if err := s.SaveContext(ctx, db); err != nil {
		t.Fatalf("save 2: %v", err)
	}
	if db.Revision == first {
		t.Fatalf("expected a new revision per save")
	}
	rev, err := s.Revision(ctx)
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	if rev != db.Revision {
		t.Fatalf("expected stored revision %q; got %q", db.Revision, rev)
	}

	got, err := s.LoadContext(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := got.CurrentForest().Len(); n != 1 {
		t.Fatalf("expected 1 task after deleting a subtree; got %d", n)
	}
}

func TestLoadFreshStoreReturnsDefaults(t *testing.T) {
	t.Parallel()

	s := Store{Dir: t.TempDir()}
	db, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(db.Scenarios) != 1 || db.CurrentForest() == nil || db.CurrentForest().Len() != 0 {
		t.Fatalf("expected the default empty state; got %#v", db)
	}
}

func TestLoadImportsLegacyStateDocumentOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := `{
  "data": {
    "1": {"id": 1, "name": "Por defecto", "icon": "🏠", "description": "Escenario principal",
      "projects": {"1": {"id": 1, "name": "Sin proyecto", "icon": "📋", "description": "Tareas sin categorizar",
        "tasks": [{"id": 7, "text": "Viejo", "completed": false, "parentId": null, "expanded": true, "depth": 0,
          "priority": "alta", "tags": ["a", {"id": 3, "text": "b"}],
          "children": [{"id": 8, "text": "Hijo", "completed": true, "parentId": 7, "depth": 1, "tags": [], "children": []}]}]}}}
  },
  "taskIdCounter": 9, "scenarioIdCounter": 2, "projectIdCounter": 2, "tagIdCounter": 4,
  "currentScenario": 1, "currentProject": 1, "allTasksCollapsed": false
}`
	if err := os.WriteFile(filepath.Join(dir, stateFileName), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := Store{Dir: dir}
	db, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f := db.CurrentForest()
	child, ok := f.Get(8)
	if !ok || child.Depth != 1 || child.ParentID == nil || *child.ParentID != 7 {
		t.Fatalf("expected imported child 8 under 7; got %#v", child)
	}
	if got := NextID(db, model.KindTask); got != 9 {
		t.Fatalf("expected task counter 9; got %d", got)
	}

	// Once imported, SQLite is authoritative: a changed document is ignored.
	if err := os.WriteFile(filepath.Join(dir, stateFileName), []byte(`{"data": {}}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	again, err := s.Load()
	if err != nil {
		t.Fatalf("load again: %v", err)
	}
	if again.CurrentForest().Len() != 2 {
		t.Fatalf("expected imported tasks to persist; got %d", again.CurrentForest().Len())
	}
}

func TestEventLogAppendAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := Store{Dir: t.TempDir()}
	for i, typ := range []string{"AddTask", "ToggleCompletion", "DeleteTask"} {
		entity := "task:1"
		if i == 2 {
			entity = "task:2"
		}
		if _, err := s.AppendEvent(ctx, typ, entity, map[string]any{"n": i}); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}
	if _, err := s.AppendEvent(ctx, " ", "x", nil); err == nil {
		t.Fatalf("expected an error for an empty type")
	}

	all, err := s.ReadEvents(ctx, "", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events; got %d", len(all))
	}
	if all[0].Type != "AddTask" || all[2].Type != "DeleteTask" {
		t.Fatalf("expected chronological order; got %s..%s", all[0].Type, all[2].Type)
	}
	if all[0].ID == "" || all[0].ID == all[1].ID {
		t.Fatalf("expected unique event ids")
	}

	byTask, err := s.ReadEvents(ctx, "task:1", 0)
	if err != nil {
		t.Fatalf("read filtered: %v", err)
	}
	if len(byTask) != 2 {
		t.Fatalf("expected 2 events for task:1; got %d", len(byTask))
	}

	last, err := s.ReadEvents(ctx, "", 1)
	if err != nil {
		t.Fatalf("read limited: %v", err)
	}
	if len(last) != 1 || last[0].Type != "DeleteTask" {
		t.Fatalf("expected only the newest event; got %#v", last)
	}
}
