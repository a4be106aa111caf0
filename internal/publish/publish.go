package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
)

type WriteOptions struct {
	IncludeCompleted bool
	Overwrite        bool
	Now              time.Time
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteProject writes <toDir>/projects/<id>/index.md plus one page per published task under
// tasks/. Existing files are kept unless Overwrite is set.
func WriteProject(sc *store.Scenario, p *store.Project, toDir string, opt WriteOptions) (WriteResult, error) {
	if sc == nil || p == nil {
		return WriteResult{}, errors.New("missing project")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)
	ropt := RenderOptions{IncludeCompleted: opt.IncludeCompleted, Now: opt.Now}

	projectDir := filepath.Join(toDir, "projects", strconv.Itoa(p.ID))
	tasksDir := filepath.Join(projectDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexMD, err := RenderProjectMarkdown(sc, p, ropt)
	if err != nil {
		return WriteResult{}, err
	}
	indexPath := filepath.Join(projectDir, "index.md")
	if err := writeFile(indexPath, []byte(indexMD), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on the first error.
	written := []string{indexPath}
	for _, t := range published(p, ropt) {
		md, err := RenderTaskMarkdown(p, t, ropt)
		if err != nil {
			return WriteResult{}, err
		}
		path := filepath.Join(tasksDir, taskFileName(t.ID))
		if err := writeFile(path, []byte(md), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, path)
	}
	return WriteResult{Written: written}, nil
}

// published lists the tasks the index links to: kept tasks whose ancestors are kept too.
func published(p *store.Project, opt RenderOptions) []*model.Task {
	if p.Tasks == nil {
		return nil
	}
	var out []*model.Task
	var walk func(ts []*model.Task)
	walk = func(ts []*model.Task) {
		for _, t := range ts {
			if !opt.keep(t) {
				continue
			}
			out = append(out, t)
			walk(p.Tasks.Children(t.ID))
		}
	}
	walk(p.Tasks.Roots())
	return out
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return store.WriteFileAtomic(path, b)
}
