package mutate

import (
	"fmt"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"
)

// TaskPatch carries the fields of an edit. Nil fields are left unchanged; a non-nil empty
// Tags slice clears the tags.
type TaskPatch struct {
	Text        *string           `json:"text,omitempty"`
	Priority    *model.Priority   `json:"priority,omitempty"`
	Description *string           `json:"description,omitempty"`
	DueDate     *string           `json:"dueDate,omitempty"`
	Tags        []model.Tag       `json:"tags,omitempty"`
	Repeat      *model.RepeatKind `json:"repeat,omitempty"`
	RepeatCount *int              `json:"repeatCount,omitempty"`
}

func (p TaskPatch) validate() error {
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return ValidationError{Field: "text", Msg: "el texto de la tarea no puede estar vacío"}
	}
	if p.Priority != nil {
		if _, ok := model.ParsePriority(string(*p.Priority)); !ok {
			return ValidationError{Field: "priority", Msg: fmt.Sprintf("prioridad inválida %q", *p.Priority)}
		}
	}
	if p.DueDate != nil && !model.ValidDue(*p.DueDate) {
		return ValidationError{Field: "dueDate", Msg: fmt.Sprintf("fecha inválida %q", *p.DueDate)}
	}
	if p.Repeat != nil && !p.Repeat.Valid() {
		return ValidationError{Field: "repeat", Msg: fmt.Sprintf("repetición inválida %q", *p.Repeat)}
	}
	if p.RepeatCount != nil && *p.RepeatCount < 1 {
		return ValidationError{Field: "repeatCount", Msg: "debe ser al menos 1"}
	}
	return nil
}

// EditTask applies patch to a task of the current project. When the task ends up with a
// repeat kind, a due date and a repeat count above 1, the repetitions are generated as
// siblings at the end of its list. The original's repeat settings are always cleared.
func EditTask(db *store.DB, id int, patch TaskPatch) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	return EditTaskIn(db, f, id, patch)
}

func EditTaskIn(db *store.DB, f *tree.Forest, id int, patch TaskPatch) (Result, error) {
	t, err := getTask(f, id)
	if err != nil {
		return Result{}, err
	}
	if err := patch.validate(); err != nil {
		return Result{}, err
	}
	if err := checkRepeat(t, patch); err != nil {
		return Result{}, err
	}

	changed := map[string]any{}
	if patch.Text != nil {
		t.Text = strings.TrimSpace(*patch.Text)
		changed["text"] = t.Text
	}
	if patch.Priority != nil {
		t.Priority, _ = model.ParsePriority(string(*patch.Priority))
		changed["priority"] = t.Priority
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
		changed["description"] = t.Description
	}
	if patch.DueDate != nil {
		t.DueDate = strings.TrimSpace(*patch.DueDate)
		changed["dueDate"] = t.DueDate
	}
	if patch.Tags != nil {
		t.Tags = append([]model.Tag{}, patch.Tags...)
		changed["tags"] = t.Tags
	}
	if patch.Repeat != nil {
		t.Repeat = *patch.Repeat
	}
	if patch.RepeatCount != nil {
		t.RepeatCount = *patch.RepeatCount
	}

	var created []int
	if t.Repeat != model.RepeatNone && t.DueDate != "" && t.RepeatCount > 1 {
		rep, err := CreateRepeatedTasks(db, f, t.ID, t.Repeat, t.RepeatCount)
		if err != nil {
			return Result{}, err
		}
		created = rep.IDs
		changed["repeat"] = t.Repeat
		changed["repeatCount"] = t.RepeatCount
	}
	t.Repeat = model.RepeatNone
	t.RepeatCount = 0

	payload := map[string]any{"id": t.ID, "changes": changed}
	if len(created) > 0 {
		payload["created"] = created
	}
	return Result{Task: t, IDs: created, Changed: true, EventPayload: payload}, nil
}

// checkRepeat fails when the edit would expand repetitions from a due date that does not
// parse. Nothing is written before this check.
func checkRepeat(t *model.Task, patch TaskPatch) error {
	due, repeat, count := t.DueDate, t.Repeat, t.RepeatCount
	if patch.DueDate != nil {
		due = strings.TrimSpace(*patch.DueDate)
	}
	if patch.Repeat != nil {
		repeat = *patch.Repeat
	}
	if patch.RepeatCount != nil {
		count = *patch.RepeatCount
	}
	if repeat == model.RepeatNone || due == "" || count <= 1 {
		return nil
	}
	if _, _, ok := model.ParseDue(due, time.Local); !ok {
		return ValidationError{Field: "dueDate", Msg: "la repetición necesita una fecha"}
	}
	return nil
}

// CreateRepeatedTasks appends count-1 occurrences of the original to the end of its list.
// Occurrence i (2..count) is due i-1 periods after the original, is titled "text (i/count)"
// and carries a fresh copy of the original's subtree. Date-only due dates stay date-only.
func CreateRepeatedTasks(db *store.DB, f *tree.Forest, originalID int, repeat model.RepeatKind, count int) (Result, error) {
	orig, err := getTask(f, originalID)
	if err != nil {
		return Result{}, err
	}
	if repeat == model.RepeatNone || !repeat.Valid() {
		return Result{}, ValidationError{Field: "repeat", Msg: fmt.Sprintf("repetición inválida %q", repeat)}
	}
	base, dateOnly, ok := model.ParseDue(orig.DueDate, time.Local)
	if !ok {
		return Result{}, ValidationError{Field: "dueDate", Msg: "la repetición necesita una fecha"}
	}

	parentID := copyParent(orig.ParentID)
	var created []int
	for i := 1; i < count; i++ {
		rt := orig.Content()
		rt.ID = store.NextID(db, model.KindTask)
		rt.Text = fmt.Sprintf("%s (%d/%d)", orig.Text, i+1, count)
		rt.DueDate = model.FormatDue(addPeriods(base, repeat, i), dateOnly)
		rt.Completed = false
		rt.Repeat = model.RepeatNone
		rt.RepeatCount = 0
		if rt.Priority == "" {
			rt.Priority = model.PriorityMedium
		}
		rt.IsRepeated = true
		origID := orig.ID
		rt.OriginalTaskID = &origID
		rt.RepeatSequence = i + 1
		if err := f.Insert(&rt, parentID, -1); err != nil {
			return Result{}, err
		}
		created = append(created, rt.ID)
		err := cloneChildren(db, f, orig.ID, rt.ID, func(c *model.Task) {
			c.Repeat = model.RepeatNone
			c.RepeatCount = 0
		}, &created)
		if err != nil {
			return Result{}, err
		}
	}
	return Result{
		Task:         orig,
		IDs:          created,
		Changed:      len(created) > 0,
		EventPayload: map[string]any{"originalId": orig.ID, "repeat": repeat, "count": count, "created": created},
	}, nil
}

func addPeriods(t time.Time, repeat model.RepeatKind, n int) time.Time {
	switch repeat {
	case model.RepeatDaily:
		return t.AddDate(0, 0, n)
	case model.RepeatWeekly:
		return t.AddDate(0, 0, 7*n)
	case model.RepeatMonthly:
		return t.AddDate(0, n, 0)
	case model.RepeatYearly:
		return t.AddDate(n, 0, 0)
	}
	return t
}

func copyParent(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
