package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"tareas-cli/internal/model"
	"tareas-cli/internal/tree"
)

// Document is the single-JSON state format used by the original browser storage and by
// `tareas state export|import`. Tasks are nested under their parents.
type Document struct {
	Data              map[int]WireScenario `json:"data"`
	TaskIDCounter     int                  `json:"taskIdCounter"`
	ScenarioIDCounter int                  `json:"scenarioIdCounter"`
	ProjectIDCounter  int                  `json:"projectIdCounter"`
	TagIDCounter      int                  `json:"tagIdCounter"`
	AlertIDCounter    int                  `json:"alertIdCounter"`
	CurrentScenario   int                  `json:"currentScenario"`
	CurrentProject    int                  `json:"currentProject"`
	AllTasksCollapsed bool                 `json:"allTasksCollapsed"`
}

type WireScenario struct {
	ID          int                 `json:"id"`
	Name        string              `json:"name"`
	Icon        string              `json:"icon"`
	Description string              `json:"description"`
	Projects    map[int]WireProject `json:"projects"`
}

type WireProject struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon"`
	Description string     `json:"description"`
	Details     string     `json:"details,omitempty"`
	Tasks       []WireTask `json:"tasks"`
}

// WireTask is a task with its children nested by value. The outer Children field shadows
// the embedded id list when encoding.
type WireTask struct {
	model.Task
	Children []WireTask `json:"children"`
}

// ForestToWire renders a forest as nested tasks in display order.
func ForestToWire(f *tree.Forest) []WireTask {
	return tasksToWire(f, f.Roots())
}

// SubtreeToWire renders one task with its descendants.
func SubtreeToWire(f *tree.Forest, id int) (WireTask, bool) {
	t, ok := f.Get(id)
	if !ok {
		return WireTask{}, false
	}
	return tasksToWire(f, []*model.Task{t})[0], true
}

func tasksToWire(f *tree.Forest, ts []*model.Task) []WireTask {
	out := make([]WireTask, 0, len(ts))
	for _, t := range ts {
		wt := WireTask{Task: *t}
		wt.Task.Children = nil
		wt.Children = tasksToWire(f, f.Children(t.ID))
		out = append(out, wt)
	}
	return out
}

// BuildForest inserts nested tasks into a fresh forest. Parent links and depths come from
// the nesting, not from the stored parentId/depth. When renumber is non-nil every task gets
// the id it returns instead of its own.
func BuildForest(tasks []WireTask, renumber func(old int) int) (*tree.Forest, error) {
	f := tree.New()
	var add func(ws []WireTask, parent *int) error
	add = func(ws []WireTask, parent *int) error {
		for _, wt := range ws {
			t := wt.Task
			t.Children = nil
			t.ParentID = nil
			if t.Tags == nil {
				t.Tags = []model.Tag{}
			}
			if t.Priority == "" {
				t.Priority = model.PriorityMedium
			}
			if renumber != nil {
				t.ID = renumber(t.ID)
			}
			task := t
			if err := f.Insert(&task, parent, -1); err != nil {
				return err
			}
			id := task.ID
			if err := add(wt.Children, &id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(tasks, nil); err != nil {
		return nil, err
	}
	return f, nil
}

func ProjectToWire(p *Project) WireProject {
	return WireProject{
		ID:          p.ID,
		Name:        p.Name,
		Icon:        p.Icon,
		Description: p.Description,
		Details:     p.Details,
		Tasks:       ForestToWire(p.Tasks),
	}
}

func ScenarioToWire(sc *Scenario) WireScenario {
	out := WireScenario{
		ID:          sc.ID,
		Name:        sc.Name,
		Icon:        sc.Icon,
		Description: sc.Description,
		Projects:    map[int]WireProject{},
	}
	for _, p := range sc.Projects {
		out.Projects[p.ID] = ProjectToWire(p)
	}
	return out
}

func projectFromWire(wp WireProject) (*Project, error) {
	f, err := BuildForest(wp.Tasks, nil)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", wp.ID, err)
	}
	return &Project{
		ID:          wp.ID,
		Name:        wp.Name,
		Icon:        wp.Icon,
		Description: wp.Description,
		Details:     wp.Details,
		Tasks:       f,
	}, nil
}

func EncodeDocument(db *DB) Document {
	doc := Document{
		Data:              map[int]WireScenario{},
		TaskIDCounter:     PeekID(db, model.KindTask),
		ScenarioIDCounter: PeekID(db, model.KindScenario),
		ProjectIDCounter:  PeekID(db, model.KindProject),
		TagIDCounter:      PeekID(db, model.KindTag),
		AlertIDCounter:    PeekID(db, model.KindAlert),
		CurrentScenario:   db.CurrentScenarioID,
		CurrentProject:    db.CurrentProjectID,
		AllTasksCollapsed: db.AllTasksCollapsed,
	}
	for _, sc := range db.Scenarios {
		doc.Data[sc.ID] = ScenarioToWire(sc)
	}
	return doc
}

// DecodeDocument rebuilds the arena state from a document and validates it.
func DecodeDocument(doc Document) (*DB, error) {
	db := &DB{
		Version: 1,
		NextIDs: map[model.Kind]int{
			model.KindTask:     doc.TaskIDCounter,
			model.KindScenario: doc.ScenarioIDCounter,
			model.KindProject:  doc.ProjectIDCounter,
			model.KindTag:      doc.TagIDCounter,
			model.KindAlert:    doc.AlertIDCounter,
		},
		CurrentScenarioID: doc.CurrentScenario,
		CurrentProjectID:  doc.CurrentProject,
		AllTasksCollapsed: doc.AllTasksCollapsed,
	}
	for key, ws := range doc.Data {
		if ws.ID == 0 {
			ws.ID = key
		}
		sc := &Scenario{ID: ws.ID, Name: ws.Name, Icon: ws.Icon, Description: ws.Description}
		for pkey, wp := range ws.Projects {
			if wp.ID == 0 {
				wp.ID = pkey
			}
			p, err := projectFromWire(wp)
			if err != nil {
				return nil, fmt.Errorf("scenario %d: %w", ws.ID, err)
			}
			sc.Projects = append(sc.Projects, p)
		}
		db.Scenarios = append(db.Scenarios, sc)
	}
	db.SortScenarios()
	db.EnsureDefaults()
	if err := db.Check(); err != nil {
		return nil, err
	}
	return db, nil
}

func MarshalDocument(db *DB, pretty bool) ([]byte, error) {
	doc := EncodeDocument(db)
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

func ParseDocument(b []byte) (*DB, error) {
	if len(b) == 0 {
		return nil, errors.New("empty state document")
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("invalid state document: %w", err)
	}
	return DecodeDocument(doc)
}
