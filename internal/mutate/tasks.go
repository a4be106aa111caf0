package mutate

import (
	"strings"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"
)

// Result describes the outcome of one mutation.
// Callers are responsible for saving db and appending the event.
type Result struct {
	Task  *model.Task
	Alert *model.Alert
	// IDs lists task ids created or removed by the operation, in pre-order.
	IDs          []int
	Changed      bool
	EventPayload map[string]any
}

func currentForest(db *store.DB) (*tree.Forest, error) {
	if db == nil {
		return nil, NotFoundError{Kind: "project", ID: 0}
	}
	f := db.CurrentForest()
	if f == nil {
		return nil, NotFoundError{Kind: "project", ID: db.CurrentProjectID}
	}
	return f, nil
}

func getTask(f *tree.Forest, id int) (*model.Task, error) {
	t, ok := f.Get(id)
	if !ok {
		return nil, NotFoundError{Kind: "task", ID: id}
	}
	return t, nil
}

// AddTask appends a new task to the current project, under parentID when it resolves.
func AddTask(db *store.DB, parentID *int, text string) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	return AddTaskIn(db, f, parentID, text)
}

// AddTaskIn is AddTask against an explicit forest. An unresolved parentID adds a root task.
func AddTaskIn(db *store.DB, f *tree.Forest, parentID *int, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ValidationError{Field: "text", Msg: "el texto de la tarea no puede estar vacío"}
	}
	var parent *model.Task
	if parentID != nil {
		if p, ok := f.Get(*parentID); ok {
			parent = p
		} else {
			parentID = nil
		}
	}
	t := &model.Task{
		ID:       store.NextID(db, model.KindTask),
		Text:     text,
		Expanded: true,
		Priority: model.PriorityMedium,
		Tags:     []model.Tag{},
	}
	if err := f.Insert(t, parentID, -1); err != nil {
		return Result{}, err
	}
	if parent != nil {
		parent.Expanded = true
	}
	payload := map[string]any{"id": t.ID, "text": t.Text}
	if parentID != nil {
		payload["parentId"] = *parentID
	}
	return Result{Task: t, IDs: []int{t.ID}, Changed: true, EventPayload: payload}, nil
}

// cloneChildren copies the subtree below srcID under dstID with fresh ids. prep adjusts each
// copy before insertion. Created ids are appended to created in pre-order.
func cloneChildren(db *store.DB, f *tree.Forest, srcID, dstID int, prep func(*model.Task), created *[]int) error {
	for _, c := range f.Children(srcID) {
		cp := c.Content()
		cp.ID = store.NextID(db, model.KindTask)
		cp.Completed = false
		if cp.Priority == "" {
			cp.Priority = model.PriorityMedium
		}
		if prep != nil {
			prep(&cp)
		}
		if err := f.Insert(&cp, &dstID, -1); err != nil {
			return err
		}
		*created = append(*created, cp.ID)
		if err := cloneChildren(db, f, c.ID, cp.ID, prep, created); err != nil {
			return err
		}
	}
	return nil
}

// DuplicateTask deep-copies a task right after the original. Every copy gets a fresh id and
// starts incomplete; only the copied root gets the " (copia)" suffix. Alerts are not copied.
func DuplicateTask(db *store.DB, id int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	return duplicateIn(db, f, id)
}

func duplicateIn(db *store.DB, f *tree.Forest, id int) (Result, error) {
	orig, err := getTask(f, id)
	if err != nil {
		return Result{}, err
	}
	parentID, index, _ := f.IndexOf(id)

	cp := orig.Content()
	cp.ID = store.NextID(db, model.KindTask)
	cp.Text = orig.Text + " (copia)"
	cp.Completed = false
	if cp.Priority == "" {
		cp.Priority = model.PriorityMedium
	}
	if err := f.Insert(&cp, parentID, index+1); err != nil {
		return Result{}, err
	}
	created := []int{cp.ID}
	if err := cloneChildren(db, f, orig.ID, cp.ID, nil, &created); err != nil {
		return Result{}, err
	}
	dup, _ := f.Get(cp.ID)
	return Result{
		Task:         dup,
		IDs:          created,
		Changed:      true,
		EventPayload: map[string]any{"sourceId": id, "id": dup.ID, "created": created},
	}, nil
}

// DeleteTask removes a task and its entire subtree.
func DeleteTask(db *store.DB, id int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	return DeleteTaskIn(f, id)
}

func DeleteTaskIn(f *tree.Forest, id int) (Result, error) {
	t, err := getTask(f, id)
	if err != nil {
		return Result{}, err
	}
	removed := f.Remove(id)
	return Result{
		Task:         t,
		IDs:          removed,
		Changed:      true,
		EventPayload: map[string]any{"id": id, "removed": removed},
	}, nil
}

// ToggleCompletion flips completed and pushes the new value down to every descendant.
// Ancestors are left alone.
func ToggleCompletion(db *store.DB, id int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	t, err := getTask(f, id)
	if err != nil {
		return Result{}, err
	}
	setCompletedCascade(f, t, !t.Completed)
	return Result{
		Task:         t,
		IDs:          f.Subtree(id),
		Changed:      true,
		EventPayload: map[string]any{"id": id, "completed": t.Completed},
	}, nil
}

func setCompletedCascade(f *tree.Forest, t *model.Task, completed bool) {
	for _, id := range f.Subtree(t.ID) {
		if x, ok := f.Get(id); ok {
			x.Completed = completed
		}
	}
}

// SetCompletedIn sets completed on one task without touching its subtasks.
func SetCompletedIn(f *tree.Forest, id int, completed bool) (Result, error) {
	t, err := getTask(f, id)
	if err != nil {
		return Result{}, err
	}
	if t.Completed == completed {
		return Result{Task: t}, nil
	}
	t.Completed = completed
	return Result{
		Task:         t,
		Changed:      true,
		EventPayload: map[string]any{"id": id, "completed": completed},
	}, nil
}

// ToggleExpansion flips the expanded hint. Tasks without children are left unchanged.
func ToggleExpansion(db *store.DB, id int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	t, err := getTask(f, id)
	if err != nil {
		return Result{}, err
	}
	if !t.HasChildren() {
		return Result{Task: t}, nil
	}
	t.Expanded = !t.Expanded
	return Result{
		Task:         t,
		Changed:      true,
		EventPayload: map[string]any{"id": id, "expanded": t.Expanded},
	}, nil
}

// SetAllExpanded records the collapse-all flag and applies it to every task with children
// in the current project.
func SetAllExpanded(db *store.DB, expanded bool) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	db.AllTasksCollapsed = !expanded
	var touched []int
	for _, t := range f.Flatten() {
		if t.HasChildren() {
			t.Expanded = expanded
			touched = append(touched, t.ID)
		}
	}
	return Result{
		IDs:          touched,
		Changed:      true,
		EventPayload: map[string]any{"expanded": expanded, "tasks": touched},
	}, nil
}

// ToggleAllExpanded flips the collapse-all flag.
func ToggleAllExpanded(db *store.DB) (Result, error) {
	return SetAllExpanded(db, db.AllTasksCollapsed)
}

// BulkComplete marks every still-incomplete selected task completed, cascading to subtasks.
// Unknown ids are skipped.
func BulkComplete(db *store.DB, ids []int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	selected := append([]int(nil), ids...)
	var done []int
	for _, id := range selected {
		t, ok := f.Get(id)
		if !ok || t.Completed {
			continue
		}
		setCompletedCascade(f, t, true)
		done = append(done, id)
	}
	return Result{
		IDs:          done,
		Changed:      len(done) > 0,
		EventPayload: map[string]any{"completed": done},
	}, nil
}

// BulkDuplicate duplicates the selected tasks, last selected first, so each copy lands right
// after its original.
func BulkDuplicate(db *store.DB, ids []int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	var targets []int
	for _, id := range ids {
		if _, ok := f.Get(id); ok {
			targets = append(targets, id)
		}
	}
	var created []int
	for i := len(targets) - 1; i >= 0; i-- {
		res, err := duplicateIn(db, f, targets[i])
		if err != nil {
			return Result{}, err
		}
		created = append(created, res.IDs...)
	}
	return Result{
		IDs:          created,
		Changed:      len(created) > 0,
		EventPayload: map[string]any{"sources": targets, "created": created},
	}, nil
}

// BulkDelete removes every selected task with its subtree. Ids already removed as part of
// an earlier subtree are skipped.
func BulkDelete(db *store.DB, ids []int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	selected := append([]int(nil), ids...)
	var removed []int
	for _, id := range selected {
		if _, ok := f.Get(id); !ok {
			continue
		}
		removed = append(removed, f.Remove(id)...)
	}
	return Result{
		IDs:          removed,
		Changed:      len(removed) > 0,
		EventPayload: map[string]any{"removed": removed},
	}, nil
}
