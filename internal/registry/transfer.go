package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"
)

// scenarioFile and projectFile are the single-item export documents. Only the name and the
// container field are required on import.
type scenarioFile struct {
	Name        string                    `json:"name" validate:"required"`
	Icon        string                    `json:"icon"`
	Description string                    `json:"description"`
	Projects    map[int]store.WireProject `json:"projects" validate:"required"`
}

type projectFile struct {
	Name        string           `json:"name" validate:"required"`
	Icon        string           `json:"icon"`
	Description string           `json:"description"`
	Details     string           `json:"details,omitempty"`
	Tasks       []store.WireTask `json:"tasks" validate:"required"`
}

// ParseKind accepts the English and Spanish names of the two importable kinds.
func ParseKind(s string) (model.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scenario", "escenario":
		return model.KindScenario, true
	case "project", "proyecto":
		return model.KindProject, true
	}
	return "", false
}

func importSuffix(now time.Time) string {
	return fmt.Sprintf(" (importado %s)", now.Format(model.DateLayout))
}

// Import adds a scenario or project from its export document. The item gets a fresh id and
// an "(importado YYYY-MM-DD)" name suffix; tasks and alerts get fresh ids so they stay unique
// across the application. Imported projects join the current scenario.
func Import(db *store.DB, kind model.Kind, data []byte, now time.Time) (Result, error) {
	switch kind {
	case model.KindScenario:
		var in scenarioFile
		if err := decodeImport(data, &in); err != nil {
			return Result{}, err
		}
		in.Name = strings.TrimSpace(in.Name)
		if err := validate.Struct(in); err != nil {
			return Result{}, mutate.ValidationError{Field: "import", Msg: "El archivo no contiene un escenario válido"}
		}
		return importScenario(db, in, now)
	case model.KindProject:
		var in projectFile
		if err := decodeImport(data, &in); err != nil {
			return Result{}, err
		}
		in.Name = strings.TrimSpace(in.Name)
		if err := validate.Struct(in); err != nil {
			return Result{}, mutate.ValidationError{Field: "import", Msg: "El archivo no contiene un proyecto válido"}
		}
		sc, err := scenarioOrCurrent(db, 0)
		if err != nil {
			return Result{}, err
		}
		p, err := importProject(db, in, in.Name+importSuffix(now), store.NextID(db, model.KindProject))
		if err != nil {
			return Result{}, err
		}
		sc.Projects = append(sc.Projects, p)
		return Result{
			Scenario:     sc,
			Project:      p,
			Changed:      true,
			EventPayload: map[string]any{"kind": kind, "scenarioId": sc.ID, "projectId": p.ID, "tasks": p.Tasks.Len()},
		}, nil
	}
	return Result{}, mutate.ValidationError{Field: "kind", Msg: fmt.Sprintf("tipo de importación desconocido %q", kind)}
}

func decodeImport(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) || len(strings.TrimSpace(string(data))) == 0 {
			return mutate.ValidationError{Field: "import", Msg: "El archivo no tiene un formato JSON válido"}
		}
		return mutate.ValidationError{Field: "import", Msg: "Formato de datos inválido"}
	}
	return nil
}

func importScenario(db *store.DB, in scenarioFile, now time.Time) (Result, error) {
	sc := &store.Scenario{
		ID:          store.NextID(db, model.KindScenario),
		Name:        in.Name + importSuffix(now),
		Icon:        orDefault(in.Icon, defaultIcon),
		Description: in.Description,
	}
	keys := make([]int, 0, len(in.Projects))
	for key := range in.Projects {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	tasks := 0
	for _, key := range keys {
		wp := in.Projects[key]
		id := wp.ID
		if id == 0 {
			id = key
		}
		if id != model.DefaultProjectID {
			id = store.NextID(db, model.KindProject)
		}
		if _, dup := sc.FindProject(id); dup {
			id = store.NextID(db, model.KindProject)
		}
		pf := projectFile{Name: wp.Name, Icon: wp.Icon, Description: wp.Description, Details: wp.Details, Tasks: wp.Tasks}
		p, err := importProject(db, pf, wp.Name, id)
		if err != nil {
			return Result{}, err
		}
		tasks += p.Tasks.Len()
		sc.Projects = append(sc.Projects, p)
	}
	if _, ok := sc.FindProject(model.DefaultProjectID); !ok {
		sc.Projects = append(sc.Projects, store.NewDefaultProject())
	}
	db.Scenarios = append(db.Scenarios, sc)
	db.SortScenarios()
	return Result{
		Scenario:     sc,
		Changed:      true,
		EventPayload: map[string]any{"kind": model.KindScenario, "scenarioId": sc.ID, "projects": len(sc.Projects), "tasks": tasks},
	}, nil
}

func importProject(db *store.DB, in projectFile, name string, id int) (*store.Project, error) {
	renamed := map[int]int{}
	f, err := store.BuildForest(in.Tasks, func(old int) int {
		next := store.NextID(db, model.KindTask)
		renamed[old] = next
		return next
	})
	if err != nil {
		return nil, mutate.ValidationError{Field: "tasks", Msg: err.Error()}
	}
	renumberRefs(db, f, renamed)
	return &store.Project{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Icon:        orDefault(in.Icon, defaultIcon),
		Description: in.Description,
		Details:     in.Details,
		Tasks:       f,
	}, nil
}

// renumberRefs gives imported alerts and labeled tags fresh ids and points repetition
// bookkeeping at the renumbered originals.
func renumberRefs(db *store.DB, f *tree.Forest, renamed map[int]int) {
	for _, t := range f.Flatten() {
		for i := range t.Alerts {
			t.Alerts[i].ID = store.NextID(db, model.KindAlert)
		}
		for i := range t.Tags {
			if t.Tags[i].Labeled() {
				t.Tags[i].ID = store.NextID(db, model.KindTag)
			}
		}
		if t.OriginalTaskID != nil {
			if id, ok := renamed[*t.OriginalTaskID]; ok {
				t.OriginalTaskID = &id
			} else {
				t.OriginalTaskID = nil
			}
		}
	}
}

// Export is a single-item document with its suggested file name.
type Export struct {
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
}

func exportName(prefix, name string, now time.Time) string {
	name = strings.NewReplacer("/", "-", `\`, "-").Replace(strings.TrimSpace(name))
	return fmt.Sprintf("%s_%s_%s.json", prefix, name, now.Format(model.DateLayout))
}

func ExportScenario(db *store.DB, id int, now time.Time) (Export, error) {
	sc, err := getScenario(db, id)
	if err != nil {
		return Export{}, err
	}
	b, err := json.MarshalIndent(store.ScenarioToWire(sc), "", "  ")
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: exportName("escenario", sc.Name, now), Data: b}, nil
}

// ExportProject exports a project of scenarioID (0 for the current scenario).
func ExportProject(db *store.DB, scenarioID, id int, now time.Time) (Export, error) {
	sc, err := scenarioOrCurrent(db, scenarioID)
	if err != nil {
		return Export{}, err
	}
	p, err := getProject(sc, id)
	if err != nil {
		return Export{}, err
	}
	b, err := json.MarshalIndent(store.ProjectToWire(p), "", "  ")
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: exportName("proyecto", p.Name, now), Data: b}, nil
}
