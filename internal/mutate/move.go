package mutate

import (
	"errors"

	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"
)

// ConvertToSubtask moves a task (with its subtree) to the end of newParentID's children and
// expands the new parent.
func ConvertToSubtask(db *store.DB, taskID, newParentID int) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	return ConvertToSubtaskIn(f, taskID, newParentID)
}

func ConvertToSubtaskIn(f *tree.Forest, taskID, newParentID int) (Result, error) {
	if err := CheckSubtaskMove(f, taskID, newParentID); err != nil {
		return Result{}, err
	}
	t, _ := f.Get(taskID)
	parent, _ := f.Get(newParentID)
	from := t.ParentID
	if err := f.Move(taskID, &newParentID, -1); err != nil {
		if errors.Is(err, tree.ErrCycle) {
			return Result{}, CycleError{TaskID: taskID, ParentID: newParentID}
		}
		return Result{}, err
	}
	parent.Expanded = true

	payload := map[string]any{"id": taskID, "parentId": newParentID, "depth": t.Depth}
	if from != nil {
		payload["fromParentId"] = *from
	}
	return Result{Task: t, Changed: true, EventPayload: payload}, nil
}

// CheckSubtaskMove reports whether taskID may become a child of newParentID, without
// touching the forest.
func CheckSubtaskMove(f *tree.Forest, taskID, newParentID int) error {
	if _, err := getTask(f, taskID); err != nil {
		return err
	}
	if _, err := getTask(f, newParentID); err != nil {
		return err
	}
	if taskID == newParentID || f.IsDescendant(taskID, newParentID) {
		return CycleError{TaskID: taskID, ParentID: newParentID}
	}
	return nil
}

// ReorderTask places a task immediately before or after referenceID, at the reference's
// level. Subtree depths follow the move.
func ReorderTask(db *store.DB, taskID, referenceID int, after bool) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	t, err := getTask(f, taskID)
	if err != nil {
		return Result{}, err
	}
	if _, err := getTask(f, referenceID); err != nil {
		return Result{}, err
	}
	if taskID == referenceID {
		return Result{Task: t}, nil
	}
	if err := f.MoveBeside(taskID, referenceID, after); err != nil {
		if errors.Is(err, tree.ErrCycle) {
			return Result{}, CycleError{TaskID: taskID, ParentID: referenceID}
		}
		return Result{}, err
	}
	position := "before"
	if after {
		position = "after"
	}
	payload := map[string]any{"id": taskID, "referenceId": referenceID, "position": position, "depth": t.Depth}
	if t.ParentID != nil {
		payload["parentId"] = *t.ParentID
	}
	return Result{Task: t, Changed: true, EventPayload: payload}, nil
}
