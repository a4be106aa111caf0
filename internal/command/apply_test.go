package command

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/registry"
	"tareas-cli/internal/store"
)

var now = time.Date(2030, 1, 10, 12, 0, 0, 0, time.Local)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func mustApply(t *testing.T, db *store.DB, cmd Command) Outcome {
	t.Helper()
	out, err := Apply(db, cmd, now)
	if err != nil {
		t.Fatalf("%s: %v", cmd.Name(), err)
	}
	if err := db.Check(); err != nil {
		t.Fatalf("%s broke invariants: %v", cmd.Name(), err)
	}
	return out
}

func TestApplyAddTaskReturnsSnapshot(t *testing.T) {
	db := store.NewDB()
	parent := mustApply(t, db, AddTask{Text: "Comprar"})
	if !parent.Changed || parent.Task == nil || parent.Task.ID != 1 || parent.EntityID != "task-1" {
		t.Fatalf("unexpected outcome: %#v", parent)
	}
	child := mustApply(t, db, AddTask{ParentID: intPtr(1), Text: "Leche"})
	if child.Task.Depth != 1 {
		t.Fatalf("expected depth 1; got %d", child.Task.Depth)
	}

	// The earlier snapshot must not see the new child.
	if len(parent.Task.Children) != 0 {
		t.Fatalf("expected snapshot to be detached from the forest; got children %v", parent.Task.Children)
	}
	live, _ := db.CurrentForest().Get(1)
	if len(live.Children) != 1 {
		t.Fatalf("expected live task to have one child; got %v", live.Children)
	}
}

func TestApplyNotFoundIsSkipped(t *testing.T) {
	db := store.NewDB()
	for _, cmd := range []Command{
		DeleteTask{ID: 42},
		ToggleCompletion{ID: 42},
		EditTask{ID: 42, Patch: mutate.TaskPatch{}},
		ToggleAlert{AlertID: 9},
		DeleteProject{ID: 7},
		Select{ScenarioID: 9},
	} {
		out, err := Apply(db, cmd, now)
		if err != nil {
			t.Fatalf("%s: expected no error; got %v", cmd.Name(), err)
		}
		if out.Changed || out.Skipped == "" {
			t.Fatalf("%s: expected skipped no-op; got %#v", cmd.Name(), out)
		}
	}
}

func TestApplySurfacesCycleAndValidation(t *testing.T) {
	db := store.NewDB()
	mustApply(t, db, AddTask{Text: "A"})
	mustApply(t, db, AddTask{ParentID: intPtr(1), Text: "B"})

	_, err := Apply(db, ConvertToSubtask{TaskID: 1, NewParentID: 2}, now)
	var cerr mutate.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError; got %v", err)
	}

	_, err = Apply(db, CreateScenario{Input: registry.Input{Name: "  "}}, now)
	var verr mutate.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError; got %v", err)
	}

	_, err = Apply(db, Import{Kind: "carpeta", Data: json.RawMessage(`{}`)}, now)
	if !errors.As(err, &verr) || verr.Field != "kind" {
		t.Fatalf("expected kind ValidationError; got %v", err)
	}
}

func TestApplyProtectedDeletesAreNoOps(t *testing.T) {
	db := store.NewDB()
	for _, cmd := range []Command{DeleteScenario{ID: 1}, DeleteProject{ID: 1}} {
		out := mustApply(t, db, cmd)
		if out.Changed || out.Skipped != "" {
			t.Fatalf("%s: expected silent no-op; got %#v", cmd.Name(), out)
		}
	}
}

func TestApplyRegistryCommands(t *testing.T) {
	db := store.NewDB()
	sc := mustApply(t, db, CreateScenario{Input: registry.Input{Name: "Trabajo"}})
	if sc.Data == nil || sc.Data.Kind != model.KindScenario || sc.Data.ID != 2 || sc.EntityID != "scenario-2" {
		t.Fatalf("unexpected scenario outcome: %#v", sc.Data)
	}
	p := mustApply(t, db, CreateProject{ScenarioID: 2, Input: registry.Input{Name: "Informe"}})
	if p.Data.Kind != model.KindProject || p.Data.ScenarioID != 2 || p.Data.Name != "Informe" {
		t.Fatalf("unexpected project outcome: %#v", p.Data)
	}
	sel := mustApply(t, db, Select{ScenarioID: 2, ProjectID: p.Data.ID})
	if !sel.Changed || db.CurrentScenarioID != 2 || db.CurrentProjectID != p.Data.ID {
		t.Fatalf("expected selection 2/%d; got %d/%d", p.Data.ID, db.CurrentScenarioID, db.CurrentProjectID)
	}
	if again := mustApply(t, db, Select{ScenarioID: 2, ProjectID: p.Data.ID}); again.Changed {
		t.Fatalf("expected reselecting to be unchanged")
	}

	name := "Informe anual"
	up := mustApply(t, db, UpdateProject{ID: p.Data.ID, Patch: registry.Patch{Name: &name}})
	if !up.Changed || up.Data.Name != name {
		t.Fatalf("unexpected update outcome: %#v", up)
	}

	del := mustApply(t, db, DeleteScenario{ID: 2})
	if !del.Changed || db.CurrentScenarioID != 1 || db.CurrentProjectID != 1 {
		t.Fatalf("expected fallback to 1/1 after delete; got %d/%d", db.CurrentScenarioID, db.CurrentProjectID)
	}
}

func TestApplyImportProject(t *testing.T) {
	db := store.NewDB()
	data := json.RawMessage(`{"name":"Casa","tasks":[{"id":50,"text":"Pintar","children":[{"id":51,"text":"Comprar pintura"}]}]}`)
	out := mustApply(t, db, Import{Kind: "proyecto", Data: data})
	if !out.Changed || out.Data == nil || !strings.HasPrefix(out.Data.Name, "Casa (importado 2030-01-10)") {
		t.Fatalf("unexpected import outcome: %#v", out.Data)
	}
}

func TestApplySetAllExpanded(t *testing.T) {
	db := store.NewDB()
	mustApply(t, db, AddTask{Text: "A"})
	mustApply(t, db, AddTask{ParentID: intPtr(1), Text: "B"})

	mustApply(t, db, SetAllExpanded{Expanded: boolPtr(false)})
	a, _ := db.CurrentForest().Get(1)
	if a.Expanded || !db.AllTasksCollapsed {
		t.Fatalf("expected collapsed state")
	}
	mustApply(t, db, SetAllExpanded{})
	if !a.Expanded || db.AllTasksCollapsed {
		t.Fatalf("expected toggle to expand again")
	}
}

func TestApplyAlertOutcome(t *testing.T) {
	db := store.NewDB()
	mustApply(t, db, AddTask{Text: "A"})
	out := mustApply(t, db, AddAlert{TaskID: 1, AlertInput: mutate.AlertInput{Title: "t", Message: "m", AlertDate: "2030-01-11T09:00"}})
	if out.Alert == nil || out.Alert.ID != 1 || out.EntityID != "alert-1" {
		t.Fatalf("unexpected alert outcome: %#v", out)
	}
	trig := mustApply(t, db, TriggerAlert{AlertID: 1})
	if !trig.Changed || trig.Alert.Active {
		t.Fatalf("expected trigger to deactivate; got %#v", trig.Alert)
	}
	if out.Alert.Active != true {
		t.Fatalf("expected earlier snapshot to keep active=true")
	}
}

func TestApplyAssistantCall(t *testing.T) {
	db := store.NewDB()
	call := assistant.Call{
		Operation:  assistant.OpAdd,
		EntityType: assistant.EntityTasks,
		Items:      []assistant.Item{{Title: "Regar plantas"}, {Title: ""}},
	}
	out := mustApply(t, db, AssistantCall{Call: call})
	if !out.Changed || len(out.Messages) != 2 {
		t.Fatalf("unexpected outcome: %#v", out)
	}
	if !strings.HasPrefix(out.Messages[0], "✅") || !strings.HasPrefix(out.Messages[1], "❌") {
		t.Fatalf("unexpected messages: %q", out.Messages)
	}

	_, err := Apply(db, AssistantCall{Call: assistant.Call{Operation: "volar", EntityType: assistant.EntityTasks}}, now)
	if err == nil {
		t.Fatalf("expected invalid call to be rejected")
	}
}
