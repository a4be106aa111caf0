package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/tree"

	"github.com/google/uuid"
)

// Rows store the record as a JSON blob next to a few indexed columns. Structure is carried
// by the blobs: project rows hold the root order, task rows hold their child ids.
type scenarioRow struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type projectRow struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
	Roots       []int  `json:"roots"`
}

// LoadSQLite loads the state from the workspace SQLite db. If the database holds no
// scenarios yet but a state.json document exists next to it, the document is imported once.
func (s Store) LoadSQLite(ctx context.Context) (*DB, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	hasState, err := sqliteStateHasAnyRows(ctx, db)
	if err != nil {
		return nil, err
	}
	if !hasState {
		if b, err := os.ReadFile(s.statePath()); err == nil && len(b) > 0 {
			legacy, err := ParseDocument(b)
			if err != nil {
				return nil, fmt.Errorf("import %s: %w", stateFileName, err)
			}
			if err := s.saveSQLite(ctx, db, legacy); err != nil {
				return nil, err
			}
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		} else {
			return NewDB(), nil
		}
	}

	return loadStateFromSQLite(ctx, db)
}

func (s Store) SaveSQLite(ctx context.Context, st *DB) error {
	if st == nil {
		return errors.New("nil db")
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return s.saveSQLite(ctx, db, st)
}

func (s Store) saveSQLite(ctx context.Context, db *sql.DB, st *DB) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	revision := uuid.NewString()
	meta := map[string]string{
		"version":             strconv.Itoa(st.Version),
		"current_scenario_id": strconv.Itoa(st.CurrentScenarioID),
		"current_project_id":  strconv.Itoa(st.CurrentProjectID),
		"all_tasks_collapsed": strconv.FormatBool(st.AllTasksCollapsed),
		"revision":            revision,
	}
	for _, kind := range []model.Kind{model.KindTask, model.KindScenario, model.KindProject, model.KindTag, model.KindAlert} {
		meta["next_id_"+string(kind)] = strconv.Itoa(PeekID(st, kind))
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO state_meta(k, v) VALUES(?, ?)`, k, v); err != nil {
			return err
		}
	}

	// Replace-all: the state is small and a save must be one atomic snapshot.
	for _, t := range []string{"scenarios", "projects", "tasks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}

	nowMs := time.Now().UTC().UnixMilli()
	for _, sc := range st.Scenarios {
		raw, _ := json.Marshal(scenarioRow{ID: sc.ID, Name: sc.Name, Icon: sc.Icon, Description: sc.Description})
		if _, err := tx.ExecContext(ctx, `INSERT INTO scenarios(id, name, json, updated_at_unixms) VALUES(?, ?, ?, ?)`,
			sc.ID, sc.Name, string(raw), nowMs); err != nil {
			return err
		}
		for _, p := range sc.Projects {
			roots := p.Tasks.RootIDs()
			if roots == nil {
				roots = []int{}
			}
			raw, _ := json.Marshal(projectRow{ID: p.ID, Name: p.Name, Icon: p.Icon, Description: p.Description, Details: p.Details, Roots: roots})
			if _, err := tx.ExecContext(ctx, `INSERT INTO projects(scenario_id, id, name, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
				sc.ID, p.ID, p.Name, string(raw), nowMs); err != nil {
				return err
			}
			for _, t := range p.Tasks.Flatten() {
				raw, _ := json.Marshal(t)
				tagsJSON, _ := json.Marshal(t.Tags)
				var parent any
				if t.ParentID != nil {
					parent = *t.ParentID
				}
				if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(
					id, scenario_id, project_id, parent_id, depth,
					text, completed, priority, due_date, tags_json,
					json, updated_at_unixms
				) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					t.ID, sc.ID, p.ID, parent, t.Depth,
					t.Text, boolToInt(t.Completed), string(t.Priority), strings.TrimSpace(t.DueDate), string(tagsJSON),
					string(raw), nowMs,
				); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	st.Revision = revision
	return nil
}

func sqliteStateHasAnyRows(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scenarios`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func loadStateFromSQLite(ctx context.Context, db *sql.DB) (*DB, error) {
	out := &DB{Version: 1, NextIDs: map[model.Kind]int{}}

	readMeta := func(k string) string {
		var v string
		_ = db.QueryRowContext(ctx, `SELECT v FROM state_meta WHERE k = ?`, k).Scan(&v)
		return strings.TrimSpace(v)
	}
	atoi := func(k string) int {
		n, _ := strconv.Atoi(readMeta(k))
		return n
	}
	if n := atoi("version"); n > 0 {
		out.Version = n
	}
	out.CurrentScenarioID = atoi("current_scenario_id")
	out.CurrentProjectID = atoi("current_project_id")
	out.AllTasksCollapsed, _ = strconv.ParseBool(readMeta("all_tasks_collapsed"))
	out.Revision = readMeta("revision")
	for _, kind := range []model.Kind{model.KindTask, model.KindScenario, model.KindProject, model.KindTag, model.KindAlert} {
		out.NextIDs[kind] = atoi("next_id_" + string(kind))
	}

	scenarios, err := readJSONRows[scenarioRow](ctx, db, `SELECT json FROM scenarios ORDER BY id`)
	if err != nil {
		return nil, err
	}
	type projectKey struct{ scenario, project int }
	tasksByProject := map[projectKey][]*model.Task{}
	rows, err := db.QueryContext(ctx, `SELECT scenario_id, project_id, json FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var scID, pID int
		var js string
		if err := rows.Scan(&scID, &pID, &js); err != nil {
			return nil, err
		}
		var t model.Task
		if err := json.Unmarshal([]byte(js), &t); err != nil {
			return nil, err
		}
		k := projectKey{scID, pID}
		tasksByProject[k] = append(tasksByProject[k], &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range scenarios {
		sc := &Scenario{ID: r.ID, Name: r.Name, Icon: r.Icon, Description: r.Description}
		prs, err := readJSONRows[projectRow](ctx, db, `SELECT json FROM projects WHERE scenario_id = ? ORDER BY id`, r.ID)
		if err != nil {
			return nil, err
		}
		for _, pr := range prs {
			f, err := tree.FromLinked(tasksByProject[projectKey{r.ID, pr.ID}], pr.Roots)
			if err != nil {
				return nil, fmt.Errorf("scenario %d / project %d: %w", r.ID, pr.ID, err)
			}
			sc.Projects = append(sc.Projects, &Project{
				ID:          pr.ID,
				Name:        pr.Name,
				Icon:        pr.Icon,
				Description: pr.Description,
				Details:     pr.Details,
				Tasks:       f,
			})
		}
		out.Scenarios = append(out.Scenarios, sc)
	}
	return out, nil
}

// Revision returns the revision stamped by the last successful save, or "" for a fresh store.
func (s Store) Revision(ctx context.Context) (string, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return readRevision(ctx, db)
}

func readRevision(ctx context.Context, db *sql.DB) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT v FROM state_meta WHERE k = 'revision'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return strings.TrimSpace(v), err
}

// RevisionReader keeps one connection open for repeated revision checks. Closing the last
// connection checkpoints the WAL, which a file watcher would see as another write.
type RevisionReader struct {
	db *sql.DB
}

func (s Store) OpenRevisionReader(ctx context.Context) (*RevisionReader, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	return &RevisionReader{db: db}, nil
}

func (r *RevisionReader) Revision(ctx context.Context) (string, error) {
	return readRevision(ctx, r.db)
}

func (r *RevisionReader) Close() error {
	return r.db.Close()
}

func readJSONRows[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
