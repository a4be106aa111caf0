package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tareas-cli/internal/model"
	"tareas-cli/internal/tree"
)

const (
	storeDirName  = ".tareas"
	stateFileName = "state.json"
)

// DB is the whole application state: every scenario, project and task forest, the id
// counters, and the current selection. Operations take it by pointer; nothing else holds
// state.
type DB struct {
	Version           int                `json:"version"`
	NextIDs           map[model.Kind]int `json:"nextIds"`
	CurrentScenarioID int                `json:"currentScenario"`
	CurrentProjectID  int                `json:"currentProject"`
	AllTasksCollapsed bool               `json:"allTasksCollapsed"`
	Scenarios         []*Scenario        `json:"scenarios"`

	// Revision changes on every save; used to detect writes from other processes.
	Revision string `json:"-"`
}

type Scenario struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon"`
	Description string     `json:"description"`
	Projects    []*Project `json:"projects"`
}

type Project struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon"`
	Description string       `json:"description"`
	Details     string       `json:"details,omitempty"`
	Tasks       *tree.Forest `json:"tasks"`
}

type Store struct {
	Dir string
}

// NewDB returns a fresh state holding only the default scenario and project.
func NewDB() *DB {
	db := &DB{
		Version:           1,
		NextIDs:           map[model.Kind]int{},
		CurrentScenarioID: model.DefaultScenarioID,
		CurrentProjectID:  model.DefaultProjectID,
	}
	db.EnsureDefaults()
	return db
}

func NewDefaultScenario() *Scenario {
	return &Scenario{
		ID:          model.DefaultScenarioID,
		Name:        "Por defecto",
		Icon:        "🏠",
		Description: "Escenario principal",
		Projects:    []*Project{NewDefaultProject()},
	}
}

func NewDefaultProject() *Project {
	return &Project{
		ID:          model.DefaultProjectID,
		Name:        "Sin proyecto",
		Icon:        "📋",
		Description: "Tareas sin categorizar",
		Tasks:       tree.New(),
	}
}

// EnsureDefaults restores the permanent scenario/project fixtures, the counters and a valid
// selection. It reports whether anything changed.
func (db *DB) EnsureDefaults() bool {
	changed := false
	if db.NextIDs == nil {
		db.NextIDs = map[model.Kind]int{}
		changed = true
	}
	if db.Version == 0 {
		db.Version = 1
		changed = true
	}
	if _, ok := db.FindScenario(model.DefaultScenarioID); !ok {
		db.Scenarios = append([]*Scenario{NewDefaultScenario()}, db.Scenarios...)
		changed = true
	}
	for _, sc := range db.Scenarios {
		if _, ok := sc.FindProject(model.DefaultProjectID); !ok {
			sc.Projects = append([]*Project{NewDefaultProject()}, sc.Projects...)
			changed = true
		}
		for _, p := range sc.Projects {
			if p.Tasks == nil {
				p.Tasks = tree.New()
				changed = true
			}
		}
	}
	if db.syncCounters() {
		changed = true
	}
	if _, _, ok := db.Current(); !ok {
		db.CurrentScenarioID = model.DefaultScenarioID
		db.CurrentProjectID = model.DefaultProjectID
		changed = true
	}
	return changed
}

func (db *DB) FindScenario(id int) (*Scenario, bool) {
	for _, sc := range db.Scenarios {
		if sc.ID == id {
			return sc, true
		}
	}
	return nil, false
}

func (sc *Scenario) FindProject(id int) (*Project, bool) {
	if sc == nil {
		return nil, false
	}
	for _, p := range sc.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Current returns the selected scenario and project.
func (db *DB) Current() (*Scenario, *Project, bool) {
	sc, ok := db.FindScenario(db.CurrentScenarioID)
	if !ok {
		return nil, nil, false
	}
	p, ok := sc.FindProject(db.CurrentProjectID)
	if !ok {
		return sc, nil, false
	}
	return sc, p, true
}

// CurrentForest is the task forest the mutation and query engines address by default.
func (db *DB) CurrentForest() *tree.Forest {
	_, p, ok := db.Current()
	if !ok {
		return nil
	}
	return p.Tasks
}

// Location identifies where a task lives.
type Location struct {
	Scenario *Scenario
	Project  *Project
}

// FindTask searches every project of every scenario.
func (db *DB) FindTask(id int) (*model.Task, Location, bool) {
	for _, sc := range db.Scenarios {
		for _, p := range sc.Projects {
			if t, ok := p.Tasks.Get(id); ok {
				return t, Location{Scenario: sc, Project: p}, true
			}
		}
	}
	return nil, Location{}, false
}

// EachProject visits projects in scenario order.
func (db *DB) EachProject(fn func(sc *Scenario, p *Project)) {
	for _, sc := range db.Scenarios {
		for _, p := range sc.Projects {
			fn(sc, p)
		}
	}
}

// Check validates every forest and global id uniqueness.
func (db *DB) Check() error {
	seen := map[int]string{}
	var firstErr error
	db.EachProject(func(sc *Scenario, p *Project) {
		if firstErr != nil {
			return
		}
		where := fmt.Sprintf("scenario %d / project %d", sc.ID, p.ID)
		if err := p.Tasks.Check(); err != nil {
			firstErr = fmt.Errorf("%s: %w", where, err)
			return
		}
		for _, id := range p.Tasks.IDs() {
			if prev, dup := seen[id]; dup {
				firstErr = fmt.Errorf("task id %d appears in %s and %s", id, prev, where)
				return
			}
			seen[id] = where
		}
	})
	return firstErr
}

// SortScenarios keeps scenarios and projects in ascending id order, which is the listing
// order of the state document.
func (db *DB) SortScenarios() {
	sort.SliceStable(db.Scenarios, func(i, j int) bool { return db.Scenarios[i].ID < db.Scenarios[j].ID })
	for _, sc := range db.Scenarios {
		sort.SliceStable(sc.Projects, func(i, j int) bool { return sc.Projects[i].ID < sc.Projects[j].ID })
	}
}

func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, storeDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func WorkspaceDir(name string) (string, error) {
	name, err := NormalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workspaces", name), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) statePath() string {
	return filepath.Join(s.Dir, stateFileName)
}

// Load reads the state from SQLite, importing a legacy state.json once when the database is
// empty, and repairs the default fixtures.
func (s Store) Load() (*DB, error) {
	return s.LoadContext(context.Background())
}

func (s Store) LoadContext(ctx context.Context) (*DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	db, err := s.LoadSQLite(ctx)
	if err != nil {
		return nil, err
	}
	db.EnsureDefaults()
	return db, nil
}

func (s Store) Save(db *DB) error {
	return s.SaveContext(context.Background(), db)
}

func (s Store) SaveContext(ctx context.Context, db *DB) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	return s.SaveSQLite(ctx, db)
}
