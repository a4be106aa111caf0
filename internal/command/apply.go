package command

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/registry"
	"tareas-cli/internal/store"
)

// Ref names a scenario or project touched by a registry command.
type Ref struct {
	Kind       model.Kind `json:"kind"`
	ID         int        `json:"id"`
	ScenarioID int        `json:"scenarioId,omitempty"`
	Name       string     `json:"name"`
}

// Outcome is the result of one applied command. Task and Alert are copies taken right after
// the change, safe to read outside the writer goroutine.
type Outcome struct {
	Command  string       `json:"command"`
	Changed  bool         `json:"changed"`
	Skipped  string       `json:"skipped,omitempty"`
	EntityID string       `json:"entityId,omitempty"`
	Task     *model.Task  `json:"task,omitempty"`
	Alert    *model.Alert `json:"alert,omitempty"`
	IDs      []int        `json:"ids,omitempty"`
	Messages []string     `json:"messages,omitempty"`
	Data     *Ref         `json:"data,omitempty"`

	Payload map[string]any `json:"-"`
}

// Apply runs cmd against db. Unknown tasks, alerts, scenarios and projects make the command a
// no-op with Skipped set; validation and cycle errors are returned.
func Apply(db *store.DB, cmd Command, now time.Time) (Outcome, error) {
	out := Outcome{Command: cmd.Name()}
	var (
		res   mutate.Result
		reg   registry.Result
		isReg bool
		err   error
	)
	switch c := cmd.(type) {
	case AddTask:
		res, err = mutate.AddTask(db, c.ParentID, c.Text)
	case DuplicateTask:
		res, err = mutate.DuplicateTask(db, c.ID)
	case DeleteTask:
		res, err = mutate.DeleteTask(db, c.ID)
	case ToggleCompletion:
		res, err = mutate.ToggleCompletion(db, c.ID)
	case ToggleExpansion:
		res, err = mutate.ToggleExpansion(db, c.ID)
	case ConvertToSubtask:
		res, err = mutate.ConvertToSubtask(db, c.TaskID, c.NewParentID)
	case ReorderTask:
		res, err = mutate.ReorderTask(db, c.TaskID, c.ReferenceID, c.After)
	case EditTask:
		res, err = mutate.EditTask(db, c.ID, c.Patch)
	case SetAllExpanded:
		if c.Expanded == nil {
			res, err = mutate.ToggleAllExpanded(db)
		} else {
			res, err = mutate.SetAllExpanded(db, *c.Expanded)
		}
	case BulkComplete:
		res, err = mutate.BulkComplete(db, c.IDs)
	case BulkDuplicate:
		res, err = mutate.BulkDuplicate(db, c.IDs)
	case BulkDelete:
		res, err = mutate.BulkDelete(db, c.IDs)
	case AddTag:
		res, err = mutate.AddTag(db, c.TaskID, c.Text, c.Labeled)
	case RemoveTag:
		res, err = mutate.RemoveTag(db, c.TaskID, c.Text)
	case AddAlert:
		res, err = mutate.AddAlert(db, c.TaskID, c.AlertInput, now)
	case EditAlertDate:
		res, err = mutate.EditAlertDate(db, c.AlertID, c.AlertDate, now)
	case ToggleAlert:
		res, err = mutate.ToggleAlert(db, c.AlertID)
	case DuplicateAlert:
		res, err = mutate.DuplicateAlert(db, c.AlertID, now)
	case DeleteAlert:
		res, err = mutate.DeleteAlert(db, c.AlertID)
	case TriggerAlert:
		res, err = mutate.TriggerAlert(db, c.AlertID)
	case CreateScenario:
		isReg = true
		reg, err = registry.CreateScenario(db, c.Input)
	case CreateProject:
		isReg = true
		reg, err = registry.CreateProject(db, c.ScenarioID, c.Input)
	case UpdateScenario:
		isReg = true
		reg, err = registry.UpdateScenario(db, c.ID, c.Patch)
	case UpdateProject:
		isReg = true
		reg, err = registry.UpdateProject(db, c.ScenarioID, c.ID, c.Patch)
	case DeleteScenario:
		isReg = true
		reg, err = registry.DeleteScenario(db, c.ID)
	case DeleteProject:
		isReg = true
		reg, err = registry.DeleteProject(db, c.ScenarioID, c.ID)
	case Select:
		isReg = true
		reg, err = registry.Select(db, c.ScenarioID, c.ProjectID)
	case Import:
		kind, ok := registry.ParseKind(c.Kind)
		if !ok {
			return out, mutate.ValidationError{Field: "kind", Msg: fmt.Sprintf("tipo de importación desconocido %q", c.Kind)}
		}
		isReg = true
		reg, err = registry.Import(db, kind, c.Data, now)
	case AssistantCall:
		if err := c.Call.Validate(); err != nil {
			return out, mutate.ValidationError{Field: "assistant", Msg: err.Error()}
		}
		rep := assistant.Execute(db, c.Call, assistant.Options{CurrentProjectOnly: c.CurrentProjectOnly}, now)
		out.Changed = rep.Changed
		out.Messages = rep.Messages
		out.Payload = map[string]any{
			"operation": c.Operation,
			"entity":    c.EntityType,
			"items":     len(c.Items),
			"messages":  rep.Messages,
		}
		return out, nil
	default:
		return out, fmt.Errorf("unsupported command %T", cmd)
	}

	if err != nil {
		if mutate.IsNotFound(err) {
			out.Skipped = err.Error()
			return out, nil
		}
		return out, err
	}
	if isReg {
		return registryOutcome(out, reg), nil
	}
	return mutateOutcome(out, res), nil
}

func mutateOutcome(out Outcome, res mutate.Result) Outcome {
	out.Changed = res.Changed
	out.Task = snapshotTask(res.Task)
	if res.Alert != nil {
		a := *res.Alert
		out.Alert = &a
	}
	out.IDs = slices.Clone(res.IDs)
	out.Payload = res.EventPayload
	switch {
	case out.Alert != nil:
		out.EntityID = "alert-" + strconv.Itoa(out.Alert.ID)
	case out.Task != nil:
		out.EntityID = "task-" + strconv.Itoa(out.Task.ID)
	}
	return out
}

func registryOutcome(out Outcome, reg registry.Result) Outcome {
	out.Changed = reg.Changed
	out.Payload = reg.EventPayload
	switch {
	case reg.Project != nil:
		out.Data = &Ref{Kind: model.KindProject, ID: reg.Project.ID, Name: reg.Project.Name}
		if reg.Scenario != nil {
			out.Data.ScenarioID = reg.Scenario.ID
		}
		out.EntityID = "project-" + strconv.Itoa(reg.Project.ID)
	case reg.Scenario != nil:
		out.Data = &Ref{Kind: model.KindScenario, ID: reg.Scenario.ID, Name: reg.Scenario.Name}
		out.EntityID = "scenario-" + strconv.Itoa(reg.Scenario.ID)
	}
	return out
}

// snapshotTask copies a task so the copy does not share slices with the forest.
func snapshotTask(t *model.Task) *model.Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Children = slices.Clone(t.Children)
	cp.Tags = slices.Clone(t.Tags)
	cp.Alerts = slices.Clone(t.Alerts)
	if t.ParentID != nil {
		p := *t.ParentID
		cp.ParentID = &p
	}
	if t.OriginalTaskID != nil {
		o := *t.OriginalTaskID
		cp.OriginalTaskID = &o
	}
	return &cp
}
