package mutate

import (
	"reflect"
	"testing"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
)

func strPtr(s string) *string { return &s }

func repeatPtr(r model.RepeatKind) *model.RepeatKind { return &r }

func TestEditTaskAppliesPatch(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	high := model.PriorityHigh
	res, err := EditTask(db, a, TaskPatch{
		Text:        strPtr(" Nueva "),
		Priority:    &high,
		Description: strPtr("**nota**"),
		DueDate:     strPtr("2030-05-01"),
		Tags:        []model.Tag{model.PlainTag("x")},
	})
	if err != nil {
		t.Fatalf("EditTask: %v", err)
	}
	got := res.Task
	if got.Text != "Nueva" || got.Priority != model.PriorityHigh || got.Description != "**nota**" || got.DueDate != "2030-05-01" || len(got.Tags) != 1 {
		t.Fatalf("unexpected task after edit: %#v", got)
	}
	if len(res.IDs) != 0 {
		t.Fatalf("expected no repetitions; got %v", res.IDs)
	}

	for _, bad := range []TaskPatch{
		{Text: strPtr("  ")},
		{DueDate: strPtr("mañana")},
		{Repeat: repeatPtr("hourly")},
	} {
		if _, err := EditTask(db, a, bad); err == nil {
			t.Fatalf("expected validation error for %#v", bad)
		}
	}
	if _, err := EditTask(db, 404, TaskPatch{}); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
}

func TestEditTaskGeneratesDailyRepetitions(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "Regar")
	sub := mustAdd(t, db, intPtr(a), "Plantas")
	mustAdd(t, db, nil, "Z")
	f := db.CurrentForest()
	st, _ := f.Get(sub)
	st.Completed = true

	count := 3
	res, err := EditTask(db, a, TaskPatch{DueDate: strPtr("2030-01-30"), Repeat: repeatPtr(model.RepeatDaily), RepeatCount: &count})
	if err != nil {
		t.Fatalf("EditTask: %v", err)
	}
	if len(res.IDs) != 4 {
		t.Fatalf("expected 2 occurrences with one subtask each; got %v", res.IDs)
	}

	roots := f.Roots()
	var texts, dates []string
	for _, r := range roots {
		texts = append(texts, r.Text)
		dates = append(dates, r.DueDate)
	}
	if want := []string{"Regar", "Z", "Regar (2/3)", "Regar (3/3)"}; !reflect.DeepEqual(texts, want) {
		t.Fatalf("expected %v; got %v", want, texts)
	}
	if want := []string{"2030-01-30", "", "2030-01-31", "2030-02-01"}; !reflect.DeepEqual(dates, want) {
		t.Fatalf("expected %v; got %v", want, dates)
	}

	occ := roots[2]
	if !occ.IsRepeated || occ.OriginalTaskID == nil || *occ.OriginalTaskID != a || occ.RepeatSequence != 2 {
		t.Fatalf("expected repetition bookkeeping; got %#v", occ)
	}
	kids := f.Children(occ.ID)
	if len(kids) != 1 || kids[0].Text != "Plantas" || kids[0].Completed || kids[0].ID == sub {
		t.Fatalf("expected a fresh incomplete copy of the subtask; got %#v", kids)
	}
	orig, _ := f.Get(a)
	if orig.Repeat != model.RepeatNone || orig.RepeatCount != 0 {
		t.Fatalf("expected original repeat cleared; got %q/%d", orig.Repeat, orig.RepeatCount)
	}
	mustCheck(t, db)
}

func TestRepetitionShapesAndCounts(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "Pagar")
	one := 1
	res, err := EditTask(db, a, TaskPatch{DueDate: strPtr("2030-01-31T09:30"), Repeat: repeatPtr(model.RepeatMonthly), RepeatCount: &one})
	if err != nil {
		t.Fatalf("EditTask: %v", err)
	}
	if len(res.IDs) != 0 || db.CurrentForest().Len() != 1 {
		t.Fatalf("expected repeatCount=1 to create nothing")
	}

	rep, err := CreateRepeatedTasks(db, db.CurrentForest(), a, model.RepeatMonthly, 2)
	if err != nil {
		t.Fatalf("CreateRepeatedTasks: %v", err)
	}
	occ, _ := db.CurrentForest().Get(rep.IDs[0])
	// Jan 31 + 1 month normalizes like the calendar does: March 3rd (2030 is not leap).
	if occ.DueDate != "2030-03-03T09:30" {
		t.Fatalf("expected datetime shape preserved; got %q", occ.DueDate)
	}

	weekly, err := CreateRepeatedTasks(db, db.CurrentForest(), a, model.RepeatWeekly, 2)
	if err != nil {
		t.Fatalf("CreateRepeatedTasks weekly: %v", err)
	}
	w, _ := db.CurrentForest().Get(weekly.IDs[0])
	if w.DueDate != "2030-02-07T09:30" {
		t.Fatalf("expected one week later; got %q", w.DueDate)
	}

	b := mustAdd(t, db, nil, "Sin fecha")
	if _, err := CreateRepeatedTasks(db, db.CurrentForest(), b, model.RepeatDaily, 3); err == nil {
		t.Fatalf("expected an error without a due date")
	}
}

func TestEditTaskRepeatOnUnparseableStoredDueLeavesTask(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "Alquiler")
	task, _ := db.CurrentForest().Get(a)
	task.DueDate = "15/03/2025"

	count := 3
	_, err := EditTask(db, a, TaskPatch{Text: strPtr("Pagar alquiler"), Repeat: repeatPtr(model.RepeatDaily), RepeatCount: &count})
	if err == nil {
		t.Fatalf("expected a validation error")
	}
	if task.Text != "Alquiler" {
		t.Fatalf("expected text unchanged; got %q", task.Text)
	}
	if task.Repeat != model.RepeatNone || task.RepeatCount != 0 {
		t.Fatalf("expected repeat unchanged; got %q x%d", task.Repeat, task.RepeatCount)
	}
	if n := db.CurrentForest().Len(); n != 1 {
		t.Fatalf("expected 1 task; got %d", n)
	}

	// A parseable due date in the same patch makes the edit valid.
	if _, err := EditTask(db, a, TaskPatch{DueDate: strPtr("2025-03-15"), Repeat: repeatPtr(model.RepeatDaily), RepeatCount: &count}); err != nil {
		t.Fatalf("EditTask with new due date: %v", err)
	}
}

func TestEditTaskWeeklyRepeatFromMarchFirst(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "Reunión")
	count := 3
	res, err := EditTask(db, a, TaskPatch{DueDate: strPtr("2025-03-01"), Repeat: repeatPtr(model.RepeatWeekly), RepeatCount: &count})
	if err != nil {
		t.Fatalf("EditTask: %v", err)
	}
	if len(res.IDs) != 2 {
		t.Fatalf("expected 2 repetitions; got %v", res.IDs)
	}
	f := db.CurrentForest()
	var dues []string
	for _, id := range res.IDs {
		occ, ok := f.Get(id)
		if !ok {
			t.Fatalf("expected task %d", id)
		}
		if occ.ParentID != nil {
			t.Fatalf("expected repetition %d at the root", id)
		}
		dues = append(dues, occ.DueDate)
	}
	if want := []string{"2025-03-08", "2025-03-15"}; !reflect.DeepEqual(dues, want) {
		t.Fatalf("expected %v; got %v", want, dues)
	}
	orig, _ := f.Get(a)
	if orig.Repeat != model.RepeatNone || orig.RepeatCount != 0 {
		t.Fatalf("expected repeat cleared on the original; got %q x%d", orig.Repeat, orig.RepeatCount)
	}
	if orig.DueDate != "2025-03-01" {
		t.Fatalf("expected original due kept; got %q", orig.DueDate)
	}
}
