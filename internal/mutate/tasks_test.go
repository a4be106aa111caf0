package mutate

import (
	"errors"
	"reflect"
	"testing"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
)

func intPtr(v int) *int { return &v }

func mustAdd(t *testing.T, db *store.DB, parent *int, text string) int {
	t.Helper()
	res, err := AddTask(db, parent, text)
	if err != nil {
		t.Fatalf("AddTask(%q): %v", text, err)
	}
	return res.Task.ID
}

func mustCheck(t *testing.T, db *store.DB) {
	t.Helper()
	if err := db.Check(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func flatIDs(db *store.DB) []int {
	var out []int
	for _, t := range db.CurrentForest().Flatten() {
		out = append(out, t.ID)
	}
	return out
}

func TestAddTask(t *testing.T) {
	db := store.NewDB()
	root := mustAdd(t, db, nil, "  Comprar  ")
	rt, _ := db.CurrentForest().Get(root)
	if rt.Text != "Comprar" || rt.Priority != model.PriorityMedium || !rt.Expanded || rt.Tags == nil {
		t.Fatalf("unexpected new task: %#v", rt)
	}

	rt.Expanded = false
	child := mustAdd(t, db, intPtr(root), "Leche")
	ct, _ := db.CurrentForest().Get(child)
	if ct.Depth != 1 || ct.ParentID == nil || *ct.ParentID != root {
		t.Fatalf("expected child under %d at depth 1; got %#v", root, ct)
	}
	if !rt.Expanded {
		t.Fatalf("expected parent to be expanded after adding a subtask")
	}

	orphan := mustAdd(t, db, intPtr(999), "Huérfana")
	ot, _ := db.CurrentForest().Get(orphan)
	if ot.ParentID != nil || ot.Depth != 0 {
		t.Fatalf("expected unresolved parent to fall back to root; got %#v", ot)
	}

	_, err := AddTask(db, nil, "   ")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for empty text; got %v", err)
	}
	if db.CurrentForest().Len() != 3 {
		t.Fatalf("expected 3 tasks; got %d", db.CurrentForest().Len())
	}
	mustCheck(t, db)
}

func TestDuplicateTaskDeepCopies(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	b := mustAdd(t, db, intPtr(a), "B")
	c := mustAdd(t, db, intPtr(b), "C")
	z := mustAdd(t, db, nil, "Z")
	f := db.CurrentForest()
	for _, id := range []int{a, b, c} {
		x, _ := f.Get(id)
		x.Completed = true
		x.Priority = model.PriorityHigh
		x.Tags = []model.Tag{model.PlainTag("casa")}
	}

	res, err := DuplicateTask(db, a)
	if err != nil {
		t.Fatalf("DuplicateTask: %v", err)
	}
	if len(res.IDs) != 3 {
		t.Fatalf("expected 3 created ids; got %v", res.IDs)
	}
	for _, id := range res.IDs {
		if id == a || id == b || id == c {
			t.Fatalf("expected fresh ids; got %v", res.IDs)
		}
		x, _ := f.Get(id)
		if x.Completed {
			t.Fatalf("expected copy %d to start incomplete", id)
		}
		if x.Priority != model.PriorityHigh || len(x.Tags) != 1 {
			t.Fatalf("expected priority and tags preserved; got %#v", x)
		}
	}
	if res.Task.Text != "A (copia)" {
		t.Fatalf("expected root suffix; got %q", res.Task.Text)
	}
	child, _ := f.Get(res.IDs[1])
	if child.Text != "B" {
		t.Fatalf("expected children without suffix; got %q", child.Text)
	}
	if got, want := f.RootIDs(), []int{a, res.Task.ID, z}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected copy right after the original: want %v got %v", want, got)
	}
	mustCheck(t, db)
}

func TestDeleteTaskRemovesSubtree(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	b := mustAdd(t, db, intPtr(a), "B")
	mustAdd(t, db, intPtr(b), "C")
	z := mustAdd(t, db, nil, "Z")

	res, err := DeleteTask(db, a)
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if len(res.IDs) != 3 {
		t.Fatalf("expected 3 removed ids; got %v", res.IDs)
	}
	if got := flatIDs(db); !reflect.DeepEqual(got, []int{z}) {
		t.Fatalf("expected only %d left; got %v", z, got)
	}
	if _, err := DeleteTask(db, a); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
	mustCheck(t, db)
}

func TestToggleCompletionCascadesDown(t *testing.T) {
	db := store.NewDB()
	ids := []int{mustAdd(t, db, nil, "L0")}
	for i := 1; i < 5; i++ {
		ids = append(ids, mustAdd(t, db, intPtr(ids[i-1]), "L"))
	}
	f := db.CurrentForest()

	if _, err := ToggleCompletion(db, ids[0]); err != nil {
		t.Fatalf("ToggleCompletion: %v", err)
	}
	for _, id := range ids {
		x, _ := f.Get(id)
		if !x.Completed {
			t.Fatalf("expected task %d completed after cascade", id)
		}
	}

	if _, err := ToggleCompletion(db, ids[2]); err != nil {
		t.Fatalf("ToggleCompletion: %v", err)
	}
	for i, id := range ids {
		x, _ := f.Get(id)
		want := i < 2
		if x.Completed != want {
			t.Fatalf("expected task %d completed=%v; got %v", id, want, x.Completed)
		}
	}
}

func TestToggleExpansionNeedsChildren(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	res, err := ToggleExpansion(db, a)
	if err != nil {
		t.Fatalf("ToggleExpansion: %v", err)
	}
	if res.Changed || !res.Task.Expanded {
		t.Fatalf("expected leaf task to stay expanded and unchanged")
	}
	mustAdd(t, db, intPtr(a), "B")
	res, err = ToggleExpansion(db, a)
	if err != nil {
		t.Fatalf("ToggleExpansion: %v", err)
	}
	if !res.Changed || res.Task.Expanded {
		t.Fatalf("expected parent to collapse")
	}
}

func TestSetAllExpanded(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	b := mustAdd(t, db, intPtr(a), "B")
	c := mustAdd(t, db, intPtr(b), "C")

	res, err := ToggleAllExpanded(db)
	if err != nil {
		t.Fatalf("ToggleAllExpanded: %v", err)
	}
	if !db.AllTasksCollapsed {
		t.Fatalf("expected collapsed flag set")
	}
	if !reflect.DeepEqual(res.IDs, []int{a, b}) {
		t.Fatalf("expected only parents touched; got %v", res.IDs)
	}
	f := db.CurrentForest()
	for _, id := range []int{a, b} {
		x, _ := f.Get(id)
		if x.Expanded {
			t.Fatalf("expected %d collapsed", id)
		}
	}
	leaf, _ := f.Get(c)
	if !leaf.Expanded {
		t.Fatalf("expected leaf untouched")
	}

	if _, err := ToggleAllExpanded(db); err != nil {
		t.Fatalf("ToggleAllExpanded: %v", err)
	}
	x, _ := f.Get(a)
	if db.AllTasksCollapsed || !x.Expanded {
		t.Fatalf("expected everything expanded again")
	}
}

func TestBulkOperations(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	b := mustAdd(t, db, intPtr(a), "B")
	c := mustAdd(t, db, nil, "C")
	d := mustAdd(t, db, nil, "D")
	f := db.CurrentForest()

	res, err := BulkComplete(db, []int{a, 404, c})
	if err != nil {
		t.Fatalf("BulkComplete: %v", err)
	}
	if !reflect.DeepEqual(res.IDs, []int{a, c}) {
		t.Fatalf("expected a and c completed; got %v", res.IDs)
	}
	child, _ := f.Get(b)
	if !child.Completed {
		t.Fatalf("expected bulk complete to cascade")
	}

	res, err = BulkDuplicate(db, []int{a, c})
	if err != nil {
		t.Fatalf("BulkDuplicate: %v", err)
	}
	if len(res.IDs) != 3 {
		t.Fatalf("expected 3 created tasks; got %v", res.IDs)
	}
	roots := f.Roots()
	var texts []string
	for _, r := range roots {
		texts = append(texts, r.Text)
	}
	if want := []string{"A", "A (copia)", "C", "C (copia)", "D"}; !reflect.DeepEqual(texts, want) {
		t.Fatalf("expected %v; got %v", want, texts)
	}

	res, err = BulkDelete(db, []int{a, b, d})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if !reflect.DeepEqual(res.IDs, []int{a, b, d}) {
		t.Fatalf("expected a, b and d removed once each; got %v", res.IDs)
	}
	if f.Len() != 4 {
		t.Fatalf("expected 4 tasks left; got %d", f.Len())
	}
	mustCheck(t, db)
}

func TestTags(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	if _, err := AddTag(db, a, " casa ", false); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	res, err := AddTag(db, a, "casa", true)
	if err != nil {
		t.Fatalf("AddTag dup: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected duplicate tag to be ignored")
	}
	res, err = AddTag(db, a, "urgente", true)
	if err != nil {
		t.Fatalf("AddTag labeled: %v", err)
	}
	tags := res.Task.Tags
	if len(tags) != 2 || tags[0].Labeled() || tags[0].Text != "casa" || !tags[1].Labeled() || tags[1].ID != 1 {
		t.Fatalf("unexpected tags: %#v", tags)
	}
	res, err = RemoveTag(db, a, "casa")
	if err != nil || !res.Changed || len(res.Task.Tags) != 1 {
		t.Fatalf("expected casa removed; got %#v (%v)", res.Task.Tags, err)
	}
}
