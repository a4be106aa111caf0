// Package registry manages the scenarios and projects that hold the task forests: creation,
// renaming, deletion with selection fallback, selection, and single-item import/export.
package registry

import (
	"fmt"
	"strings"

	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"

	"github.com/go-playground/validator/v10"
)

const (
	defaultIcon        = "📁"
	defaultDescription = "Sin descripción"
)

var validate = validator.New()

// Result reports the entity an operation touched. Changed is false for no-ops such as
// deleting a protected entity.
type Result struct {
	Scenario     *store.Scenario
	Project      *store.Project
	Changed      bool
	EventPayload map[string]any
}

// Input is the user-provided part of a new scenario or project.
type Input struct {
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Patch updates the fields that are non-nil. Details only applies to projects.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Description *string `json:"description,omitempty"`
	Details     *string `json:"details,omitempty"`
}

func kindLabel(kind model.Kind) string {
	if kind == model.KindScenario {
		return "escenario"
	}
	return "proyecto"
}

func requireName(kind model.Kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", mutate.ValidationError{Field: "name", Msg: fmt.Sprintf("El nombre del %s es obligatorio", kindLabel(kind))}
	}
	return name, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func getScenario(db *store.DB, id int) (*store.Scenario, error) {
	sc, ok := db.FindScenario(id)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "scenario", ID: id}
	}
	return sc, nil
}

// scenarioOrCurrent resolves id, where 0 means the current scenario.
func scenarioOrCurrent(db *store.DB, id int) (*store.Scenario, error) {
	if id == 0 {
		id = db.CurrentScenarioID
	}
	return getScenario(db, id)
}

func getProject(sc *store.Scenario, id int) (*store.Project, error) {
	p, ok := sc.FindProject(id)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "project", ID: id}
	}
	return p, nil
}

// CreateScenario adds a scenario seeded with the permanent project 1.
func CreateScenario(db *store.DB, in Input) (Result, error) {
	name, err := requireName(model.KindScenario, in.Name)
	if err != nil {
		return Result{}, err
	}
	sc := &store.Scenario{
		ID:          store.NextID(db, model.KindScenario),
		Name:        name,
		Icon:        orDefault(in.Icon, defaultIcon),
		Description: orDefault(in.Description, defaultDescription),
		Projects:    []*store.Project{store.NewDefaultProject()},
	}
	db.Scenarios = append(db.Scenarios, sc)
	db.SortScenarios()
	return Result{
		Scenario:     sc,
		Changed:      true,
		EventPayload: map[string]any{"scenarioId": sc.ID, "name": sc.Name},
	}, nil
}

// CreateProject adds an empty project to scenarioID, or to the current scenario when it is 0.
func CreateProject(db *store.DB, scenarioID int, in Input) (Result, error) {
	name, err := requireName(model.KindProject, in.Name)
	if err != nil {
		return Result{}, err
	}
	sc, err := scenarioOrCurrent(db, scenarioID)
	if err != nil {
		return Result{}, err
	}
	p := &store.Project{
		ID:          store.NextID(db, model.KindProject),
		Name:        name,
		Icon:        orDefault(in.Icon, defaultIcon),
		Description: orDefault(in.Description, defaultDescription),
		Details:     strings.TrimSpace(in.Details),
		Tasks:       tree.New(),
	}
	sc.Projects = append(sc.Projects, p)
	return Result{
		Scenario:     sc,
		Project:      p,
		Changed:      true,
		EventPayload: map[string]any{"scenarioId": sc.ID, "projectId": p.ID, "name": p.Name},
	}, nil
}

func applyPatch(kind model.Kind, patch Patch, name, icon, description, details *string) (map[string]any, error) {
	changes := map[string]any{}
	if patch.Name != nil {
		v, err := requireName(kind, *patch.Name)
		if err != nil {
			return nil, err
		}
		*name = v
		changes["name"] = v
	}
	if patch.Icon != nil {
		*icon = orDefault(*patch.Icon, defaultIcon)
		changes["icon"] = *icon
	}
	if patch.Description != nil {
		*description = strings.TrimSpace(*patch.Description)
		changes["description"] = *description
	}
	if patch.Details != nil && details != nil {
		*details = strings.TrimSpace(*patch.Details)
		changes["details"] = *details
	}
	return changes, nil
}

func UpdateScenario(db *store.DB, id int, patch Patch) (Result, error) {
	sc, err := getScenario(db, id)
	if err != nil {
		return Result{}, err
	}
	changes, err := applyPatch(model.KindScenario, patch, &sc.Name, &sc.Icon, &sc.Description, nil)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Scenario:     sc,
		Changed:      len(changes) > 0,
		EventPayload: map[string]any{"scenarioId": sc.ID, "changes": changes},
	}, nil
}

// UpdateProject edits a project of scenarioID (0 for the current scenario).
func UpdateProject(db *store.DB, scenarioID, id int, patch Patch) (Result, error) {
	sc, err := scenarioOrCurrent(db, scenarioID)
	if err != nil {
		return Result{}, err
	}
	p, err := getProject(sc, id)
	if err != nil {
		return Result{}, err
	}
	changes, err := applyPatch(model.KindProject, patch, &p.Name, &p.Icon, &p.Description, &p.Details)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Scenario:     sc,
		Project:      p,
		Changed:      len(changes) > 0,
		EventPayload: map[string]any{"scenarioId": sc.ID, "projectId": p.ID, "changes": changes},
	}, nil
}

// DeleteScenario removes a scenario with everything in it. Scenario 1 cannot be deleted.
// When the scenario was selected the selection falls back to 1/1.
func DeleteScenario(db *store.DB, id int) (Result, error) {
	if id == model.DefaultScenarioID {
		return Result{}, nil
	}
	sc, err := getScenario(db, id)
	if err != nil {
		return Result{}, err
	}
	kept := make([]*store.Scenario, 0, len(db.Scenarios)-1)
	for _, x := range db.Scenarios {
		if x.ID != id {
			kept = append(kept, x)
		}
	}
	db.Scenarios = kept
	if db.CurrentScenarioID == id {
		db.CurrentScenarioID = model.DefaultScenarioID
		db.CurrentProjectID = model.DefaultProjectID
	}
	return Result{
		Scenario:     sc,
		Changed:      true,
		EventPayload: map[string]any{"scenarioId": id, "tasks": countTasks(sc)},
	}, nil
}

// DeleteProject moves the project's tasks after the roots of project 1 of the same scenario
// and removes the project. Project 1 cannot be deleted.
func DeleteProject(db *store.DB, scenarioID, id int) (Result, error) {
	if id == model.DefaultProjectID {
		return Result{}, nil
	}
	sc, err := scenarioOrCurrent(db, scenarioID)
	if err != nil {
		return Result{}, err
	}
	p, err := getProject(sc, id)
	if err != nil {
		return Result{}, err
	}
	target, err := getProject(sc, model.DefaultProjectID)
	if err != nil {
		return Result{}, err
	}
	moved := p.Tasks.RootIDs()
	if err := target.Tasks.Append(p.Tasks); err != nil {
		return Result{}, fmt.Errorf("move tasks of project %d: %w", id, err)
	}
	kept := make([]*store.Project, 0, len(sc.Projects)-1)
	for _, x := range sc.Projects {
		if x.ID != id {
			kept = append(kept, x)
		}
	}
	sc.Projects = kept
	if db.CurrentScenarioID == sc.ID && db.CurrentProjectID == id {
		db.CurrentProjectID = model.DefaultProjectID
	}
	return Result{
		Scenario:     sc,
		Project:      p,
		Changed:      true,
		EventPayload: map[string]any{"scenarioId": sc.ID, "projectId": id, "movedRoots": moved},
	}, nil
}

// Select changes the current scenario and project. projectID 0 picks the first project of
// the scenario.
func Select(db *store.DB, scenarioID, projectID int) (Result, error) {
	sc, err := getScenario(db, scenarioID)
	if err != nil {
		return Result{}, err
	}
	if projectID == 0 {
		projectID = firstProjectID(sc)
	}
	p, err := getProject(sc, projectID)
	if err != nil {
		return Result{}, err
	}
	changed := db.CurrentScenarioID != sc.ID || db.CurrentProjectID != p.ID
	db.CurrentScenarioID = sc.ID
	db.CurrentProjectID = p.ID
	return Result{
		Scenario:     sc,
		Project:      p,
		Changed:      changed,
		EventPayload: map[string]any{"scenarioId": sc.ID, "projectId": p.ID},
	}, nil
}

func firstProjectID(sc *store.Scenario) int {
	first := 0
	for _, p := range sc.Projects {
		if first == 0 || p.ID < first {
			first = p.ID
		}
	}
	if first == 0 {
		return model.DefaultProjectID
	}
	return first
}

func countTasks(sc *store.Scenario) int {
	n := 0
	for _, p := range sc.Projects {
		n += p.Tasks.Len()
	}
	return n
}
