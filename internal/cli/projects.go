package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tareas-cli/internal/command"
	"tareas-cli/internal/model"
	"tareas-cli/internal/publish"
	"tareas-cli/internal/query"
	"tareas-cli/internal/registry"
	"tareas-cli/internal/store"

	"github.com/spf13/cobra"
)

// registryFlags binds name/icon/description(/details) for create and update.
type registryFlags struct {
	name        string
	icon        string
	description string
	details     string
}

func (r *registryFlags) bind(cmd *cobra.Command, withDetails bool) {
	cmd.Flags().StringVar(&r.name, "name", "", "Name")
	cmd.Flags().StringVar(&r.icon, "icon", "", "Icon (emoji)")
	cmd.Flags().StringVar(&r.description, "description", "", "Short description")
	if withDetails {
		cmd.Flags().StringVar(&r.details, "details", "", "Longer details (markdown)")
	}
}

func (r *registryFlags) input(args []string) registry.Input {
	name := r.name
	if name == "" && len(args) > 0 {
		name = strings.Join(args, " ")
	}
	return registry.Input{Name: name, Icon: r.icon, Description: r.description, Details: r.details}
}

func (r *registryFlags) patch(cmd *cobra.Command) (registry.Patch, bool) {
	var p registry.Patch
	set := false
	bind := func(flag string, dst **string, v *string) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			*dst = v
			set = true
		}
	}
	bind("name", &p.Name, &r.name)
	bind("icon", &p.Icon, &r.icon)
	bind("description", &p.Description, &r.description)
	bind("details", &p.Details, &r.details)
	return p, set
}

type projectRow struct {
	ID          int          `json:"id"`
	ScenarioID  int          `json:"scenarioId"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon"`
	Description string       `json:"description"`
	Current     bool         `json:"current"`
	Stats       query.Counts `json:"stats"`
}

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Project commands (within a scenario)",
	}

	cmd.AddCommand(newProjectsListCmd(app))
	cmd.AddCommand(newProjectsCreateCmd(app))
	cmd.AddCommand(newProjectsUpdateCmd(app))
	cmd.AddCommand(newProjectsRmCmd(app))
	cmd.AddCommand(newProjectsUseCmd(app))
	cmd.AddCommand(newExportCmd(app, model.KindProject))
	cmd.AddCommand(newImportCmd(app, model.KindProject))
	cmd.AddCommand(newProjectsPublishCmd(app))

	return cmd
}

func newProjectsListCmd(app *App) *cobra.Command {
	var scenarioID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects of the current scenario (or --scenario)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			sid := scenarioID
			if sid == 0 {
				sid = db.CurrentScenarioID
			}
			sc, ok := db.FindScenario(sid)
			if !ok {
				return writeErr(cmd, fmt.Errorf("scenario not found: %d", sid))
			}
			rows := make([]projectRow, 0, len(sc.Projects))
			for _, p := range sc.Projects {
				rows = append(rows, projectRow{
					ID:          p.ID,
					ScenarioID:  sc.ID,
					Name:        p.Name,
					Icon:        p.Icon,
					Description: p.Description,
					Current:     sc.ID == db.CurrentScenarioID && p.ID == db.CurrentProjectID,
					Stats:       query.Stats(p.Tasks),
				})
			}
			return writeOut(cmd, app, rows)
		},
	}
	cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	return cmd
}

func newProjectsCreateCmd(app *App) *cobra.Command {
	var rf registryFlags
	var scenarioID int

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a project in the current scenario (or --scenario)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, command.CreateProject{ScenarioID: scenarioID, Input: rf.input(args)})
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	return cmd
}

func newProjectsUpdateCmd(app *App) *cobra.Command {
	var rf registryFlags
	var scenarioID int

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project's name, icon, description or details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			patch, ok := rf.patch(cmd)
			if !ok {
				return writeErr(cmd, errors.New("nothing to update"))
			}
			return run(cmd, app, command.UpdateProject{ScenarioID: scenarioID, ID: id, Patch: patch})
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	return cmd
}

func newProjectsRmCmd(app *App) *cobra.Command {
	var scenarioID int

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a project; its tasks move to the scenario's default project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.DeleteProject{ScenarioID: scenarioID, ID: id})
		},
	}
	cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	return cmd
}

func newProjectsUseCmd(app *App) *cobra.Command {
	var scenarioID int

	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Make a project current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			sid := scenarioID
			if sid == 0 {
				db, _, err := loadDB(app)
				if err != nil {
					return writeErr(cmd, err)
				}
				sid = db.CurrentScenarioID
			}
			return run(cmd, app, command.Select{ScenarioID: sid, ProjectID: id})
		},
	}
	cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	return cmd
}

// newExportCmd writes a scenario or project export document to --out (a directory or file;
// "-" for stdout).
func newExportCmd(app *App, kind model.Kind) *cobra.Command {
	var out string
	var scenarioID int

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: fmt.Sprintf("Export a %s as a JSON document", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(string(kind)+" id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var exp registry.Export
			if kind == model.KindScenario {
				exp, err = registry.ExportScenario(db, id, app.now())
			} else {
				exp, err = registry.ExportProject(db, scenarioID, id, app.now())
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(append(exp.Data, '\n'))
				return err
			}
			path := exportPath(out, exp.Filename)
			if err := store.WriteFileAtomic(path, append(exp.Data, '\n')); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"kind": kind, "id": id, "path": path})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output directory or file ('-' for stdout; default: working directory)")
	if kind == model.KindProject {
		cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	}
	return cmd
}

func exportPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if st, err := os.Stat(out); err == nil && st.IsDir() {
		return filepath.Join(out, filename)
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) {
		return filepath.Join(out, filename)
	}
	return out
}

func newImportCmd(app *App, kind model.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: fmt.Sprintf("Import a %s export document", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.Import{Kind: string(kind), Data: data})
		},
	}
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func newProjectsPublishCmd(app *App) *cobra.Command {
	var to string
	var scenarioID int
	var overwrite bool
	var includeCompleted bool

	cmd := &cobra.Command{
		Use:   "publish <id> --to <dir>",
		Short: "Write a project as Markdown checklists (index plus one page per task)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			sid := scenarioID
			if sid == 0 {
				sid = db.CurrentScenarioID
			}
			sc, ok := db.FindScenario(sid)
			if !ok {
				return writeErr(cmd, fmt.Errorf("scenario not found: %d", sid))
			}
			p, ok := sc.FindProject(id)
			if !ok {
				return writeErr(cmd, fmt.Errorf("project not found: %d", id))
			}
			res, err := publish.WriteProject(sc, p, to, publish.WriteOptions{
				IncludeCompleted: includeCompleted,
				Overwrite:        overwrite,
				Now:              app.now(),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOutMeta(cmd, app, res, map[string]any{"project": p.ID, "files": len(res.Written)})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target directory")
	cmd.Flags().IntVar(&scenarioID, "scenario", 0, "Scenario id (default: current)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().BoolVar(&includeCompleted, "include-completed", false, "Include completed tasks")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
