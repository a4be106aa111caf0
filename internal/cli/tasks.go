package cli

import (
	"errors"
	"fmt"
	"strings"

	"tareas-cli/internal/command"
	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/query"
	"tareas-cli/internal/store"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Task commands (current project)",
	}

	cmd.AddCommand(newTasksAddCmd(app))
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksEditCmd(app))
	cmd.AddCommand(newTasksDoneCmd(app))
	cmd.AddCommand(newTasksExpandCmd(app))
	cmd.AddCommand(newTasksCollapseAllCmd(app))
	cmd.AddCommand(newTasksDupCmd(app))
	cmd.AddCommand(newTasksRmCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksReorderCmd(app))
	cmd.AddCommand(newTasksTagCmd(app))
	cmd.AddCommand(newTasksSelectCmd(app))
	cmd.AddCommand(newTasksBulkCmd(app))

	return cmd
}

// patchFlags binds the editable task fields. Only flags the user actually passed end up in
// the patch.
type patchFlags struct {
	text        string
	priority    string
	description string
	due         string
	tags        []string
	clearTags   bool
	repeat      string
	repeatCount int
}

func (p *patchFlags) bind(cmd *cobra.Command, withText bool) {
	if withText {
		cmd.Flags().StringVar(&p.text, "text", "", "New task text")
	}
	cmd.Flags().StringVar(&p.priority, "priority", "", "Priority (alta|media|baja)")
	cmd.Flags().StringVar(&p.description, "description", "", "Description (markdown)")
	cmd.Flags().StringVar(&p.due, "due", "", "Due date (YYYY-MM-DD or YYYY-MM-DDTHH:MM; empty clears)")
	cmd.Flags().StringSliceVar(&p.tags, "tag", nil, "Tags (repeatable; replaces the task's tags)")
	cmd.Flags().BoolVar(&p.clearTags, "clear-tags", false, "Remove every tag")
	cmd.Flags().StringVar(&p.repeat, "repeat", "", "Repeat (daily|weekly|monthly|yearly; empty clears)")
	cmd.Flags().IntVar(&p.repeatCount, "repeat-count", 0, "How many occurrences to generate (with --repeat and --due)")
}

func (p *patchFlags) patch(cmd *cobra.Command) (mutate.TaskPatch, bool, error) {
	var out mutate.TaskPatch
	set := false
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("text") {
		out.Text = &p.text
		set = true
	}
	if changed("priority") {
		pr, ok := model.ParsePriority(strings.TrimSpace(p.priority))
		if !ok {
			return out, false, invalidArgError{name: "priority", value: p.priority}
		}
		out.Priority = &pr
		set = true
	}
	if changed("description") {
		out.Description = &p.description
		set = true
	}
	if changed("due") {
		due := strings.TrimSpace(p.due)
		out.DueDate = &due
		set = true
	}
	if changed("tag") || p.clearTags {
		out.Tags = []model.Tag{}
		for _, t := range p.tags {
			if t = strings.TrimSpace(t); t != "" {
				out.Tags = append(out.Tags, model.PlainTag(t))
			}
		}
		set = true
	}
	if changed("repeat") {
		r := model.RepeatKind(strings.TrimSpace(p.repeat))
		out.Repeat = &r
		set = true
	}
	if changed("repeat-count") {
		out.RepeatCount = &p.repeatCount
		set = true
	}
	return out, set, nil
}

func newTasksAddCmd(app *App) *cobra.Command {
	var parent int
	var pf patchFlags

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task (root or subtask) to the current project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, hasPatch, err := pf.patch(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			add := command.AddTask{Text: strings.Join(args, " ")}
			if parent > 0 {
				add.ParentID = &parent
			}
			ctx := cmdContext(cmd)
			out, err := command.Exec(ctx, s, db, add, app.now())
			if err != nil {
				return writeErr(cmd, err)
			}
			if out.Skipped != "" {
				return writeErr(cmd, skippedError{command: out.Command, reason: out.Skipped})
			}
			if hasPatch && out.Task != nil {
				edit, err := command.Exec(ctx, s, db, command.EditTask{ID: out.Task.ID, Patch: patch}, app.now())
				if err != nil {
					return writeErr(cmd, err)
				}
				out.Task = edit.Task
				out.IDs = append(out.IDs, edit.IDs...)
			}
			return writeOut(cmd, app, out)
		},
	}

	cmd.Flags().IntVar(&parent, "parent", 0, "Parent task id (creates a subtask)")
	pf.bind(cmd, false)
	return cmd
}

// taskNode is the listing shape: the task with nested child objects and its badges.
type taskNode struct {
	model.Task
	Badges   []string   `json:"badges,omitempty"`
	Children []taskNode `json:"children"`
}

func toTaskNodes(ns []query.Node, app *App) []taskNode {
	out := make([]taskNode, 0, len(ns))
	now := app.now()
	for _, n := range ns {
		tn := taskNode{Task: *n.Task, Children: toTaskNodes(n.Children, app)}
		for _, b := range query.TaskBadges(n.Task, now) {
			tn.Badges = append(tn.Badges, b.String())
		}
		out = append(out, tn)
	}
	return out
}

// viewFlags binds the projection options shared by list and select.
type viewFlags struct {
	view         string
	tags         []string
	sortPriority bool
	sortDue      bool
}

func (v *viewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.view, "view", "all", "View (all|today|tomorrow|overdue|pending|completed)")
	cmd.Flags().StringSliceVar(&v.tags, "tag", nil, "Only tasks with any of these tags (repeatable)")
	cmd.Flags().BoolVar(&v.sortPriority, "sort-priority", false, "Sort by urgency, priority first")
	cmd.Flags().BoolVar(&v.sortDue, "sort-due", false, "Sort by urgency, due date first")
}

func (v *viewFlags) options(app *App) (query.Options, error) {
	view, ok := query.ParseView(v.view)
	if !ok {
		return query.Options{}, invalidArgError{name: "view", value: v.view}
	}
	return query.Options{
		View:           view,
		Tags:           v.tags,
		SortByPriority: v.sortPriority,
		SortByDueDate:  v.sortDue,
		Now:            app.now(),
	}, nil
}

func currentSelection(db *store.DB) (*store.Scenario, *store.Project, error) {
	sc, p, ok := db.Current()
	if !ok {
		return nil, nil, errors.New("no current project (use `tareas projects use <id>`)")
	}
	return sc, p, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var vf viewFlags
	var flat bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks of the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := vf.options(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			sc, p, err := currentSelection(db)
			if err != nil {
				return writeErr(cmd, err)
			}
			proj := query.Project(p.Tasks, opts)
			meta := map[string]any{
				"scenario":     sc.ID,
				"project":      p.ID,
				"view":         string(opts.View),
				"hierarchical": proj.Hierarchical,
				"stats":        query.Stats(p.Tasks),
			}
			if flat {
				type flatRow struct {
					model.Task
					Level         int      `json:"level"`
					Badges        []string `json:"badges,omitempty"`
					DoneChildren  int      `json:"doneChildren"`
					TotalChildren int      `json:"totalChildren"`
				}
				rows := []flatRow{}
				for _, r := range proj.Rows() {
					fr := flatRow{Task: *r.Task, Level: r.Depth, DoneChildren: r.DoneChildren, TotalChildren: r.TotalChildren}
					for _, b := range query.TaskBadges(r.Task, opts.Now) {
						fr.Badges = append(fr.Badges, b.String())
					}
					rows = append(rows, fr)
				}
				return writeOutMeta(cmd, app, rows, meta)
			}
			return writeOutMeta(cmd, app, toTaskNodes(proj.Nodes, app), meta)
		},
	}

	vf.bind(cmd)
	cmd.Flags().BoolVar(&flat, "flat", false, "Visible rows in display order instead of nested objects")
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task (searches every project)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, loc, ok := db.FindTask(id)
			if !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "task", ID: id})
			}
			wt, _ := store.SubtreeToWire(loc.Project.Tasks, t.ID)
			badges := []string{}
			for _, b := range query.TaskBadges(t, app.now()) {
				badges = append(badges, b.String())
			}
			return writeOutMeta(cmd, app, wt, map[string]any{
				"scenario": loc.Scenario.ID,
				"project":  loc.Project.ID,
				"badges":   badges,
			})
		},
	}
}

func newTasksEditCmd(app *App) *cobra.Command {
	var pf patchFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit task fields (only the flags you pass change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			patch, ok, err := pf.patch(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeErr(cmd, errors.New("nothing to edit (pass at least one field flag)"))
			}
			return run(cmd, app, command.EditTask{ID: id, Patch: patch})
		},
	}

	pf.bind(cmd, true)
	return cmd
}

// idCmd builds a subcommand that takes one task id and runs mk(id).
func idCmd(app *App, use, short string, mk func(id int) command.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, mk(id))
		},
	}
}

func newTasksDoneCmd(app *App) *cobra.Command {
	cmd := idCmd(app, "done", "Toggle completion (cascades to subtasks)", func(id int) command.Command {
		return command.ToggleCompletion{ID: id}
	})
	cmd.Aliases = []string{"toggle"}
	return cmd
}

func newTasksExpandCmd(app *App) *cobra.Command {
	return idCmd(app, "expand", "Toggle a task's expanded state", func(id int) command.Command {
		return command.ToggleExpansion{ID: id}
	})
}

func newTasksCollapseAllCmd(app *App) *cobra.Command {
	var expand bool
	var toggle bool

	cmd := &cobra.Command{
		Use:   "collapse-all",
		Short: "Collapse (or with --expand, expand) every task that has subtasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if toggle {
				return run(cmd, app, command.SetAllExpanded{})
			}
			return run(cmd, app, command.SetAllExpanded{Expanded: &expand})
		},
	}
	cmd.Flags().BoolVar(&expand, "expand", false, "Expand instead of collapse")
	cmd.Flags().BoolVar(&toggle, "toggle", false, "Flip the global collapsed flag")
	return cmd
}

func newTasksDupCmd(app *App) *cobra.Command {
	return idCmd(app, "dup", "Duplicate a task with its subtree", func(id int) command.Command {
		return command.DuplicateTask{ID: id}
	})
}

func newTasksRmCmd(app *App) *cobra.Command {
	return idCmd(app, "rm", "Delete a task with its subtree", func(id int) command.Command {
		return command.DeleteTask{ID: id}
	})
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var parent int

	cmd := &cobra.Command{
		Use:   "move <id> --parent <id>",
		Short: "Make a task the last subtask of another task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if parent <= 0 {
				return writeErr(cmd, errors.New("missing --parent"))
			}
			return run(cmd, app, command.ConvertToSubtask{TaskID: id, NewParentID: parent})
		},
	}
	cmd.Flags().IntVar(&parent, "parent", 0, "New parent task id")
	return cmd
}

func newTasksReorderCmd(app *App) *cobra.Command {
	var before int
	var after int

	cmd := &cobra.Command{
		Use:   "reorder <id> (--before <id> | --after <id>)",
		Short: "Move a task next to another task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			switch {
			case before > 0 && after > 0:
				return writeErr(cmd, errors.New("pass only one of --before or --after"))
			case before > 0:
				return run(cmd, app, command.ReorderTask{TaskID: id, ReferenceID: before})
			case after > 0:
				return run(cmd, app, command.ReorderTask{TaskID: id, ReferenceID: after, After: true})
			}
			return writeErr(cmd, errors.New("missing --before or --after"))
		},
	}
	cmd.Flags().IntVar(&before, "before", 0, "Place before this task")
	cmd.Flags().IntVar(&after, "after", 0, "Place after this task")
	return cmd
}

func newTasksTagCmd(app *App) *cobra.Command {
	var labeled bool
	var remove bool

	cmd := &cobra.Command{
		Use:   "tag <id> <text>",
		Short: "Add (or with --remove, remove) a tag",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.Join(args[1:], " ")
			if remove {
				return run(cmd, app, command.RemoveTag{TaskID: id, Text: text})
			}
			return run(cmd, app, command.AddTag{TaskID: id, Text: text, Labeled: labeled})
		},
	}
	cmd.Flags().BoolVar(&labeled, "labeled", false, "Create a labeled tag with its own id")
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the tag instead")
	return cmd
}

// selectRange resolves the visible range between two task ids under the given view.
func selectRange(app *App, vf *viewFlags, from, to int) ([]int, error) {
	opts, err := vf.options(app)
	if err != nil {
		return nil, err
	}
	db, _, err := loadDB(app)
	if err != nil {
		return nil, err
	}
	_, p, err := currentSelection(db)
	if err != nil {
		return nil, err
	}
	ids, ok := query.SelectRange(query.VisibleOrder(p.Tasks, opts), from, to)
	if !ok {
		return nil, fmt.Errorf("tasks %d and %d are not both visible", from, to)
	}
	return ids, nil
}

func newTasksSelectCmd(app *App) *cobra.Command {
	var vf viewFlags

	cmd := &cobra.Command{
		Use:   "select <from-id> <to-id>",
		Short: "Print the ids between two visible tasks (inclusive, visible order)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			to, err := parseID("task id", args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			ids, err := selectRange(app, &vf, from, to)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, ids)
		},
	}
	vf.bind(cmd)
	return cmd
}

func newTasksBulkCmd(app *App) *cobra.Command {
	var vf viewFlags
	var from int
	var to int

	cmd := &cobra.Command{
		Use:   "bulk (complete|dup|rm) [ids...]",
		Short: "Apply one operation to many tasks (ids or a --from/--to visible range)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []int
			var err error
			if from > 0 || to > 0 {
				if from <= 0 || to <= 0 {
					return writeErr(cmd, errors.New("--from and --to go together"))
				}
				ids, err = selectRange(app, &vf, from, to)
			} else {
				ids, err = parseIDs("task id", args[1:])
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(ids) == 0 {
				return writeErr(cmd, errors.New("no task ids given"))
			}
			switch args[0] {
			case "complete", "done":
				return run(cmd, app, command.BulkComplete{IDs: ids})
			case "dup", "duplicate":
				return run(cmd, app, command.BulkDuplicate{IDs: ids})
			case "rm", "delete":
				return run(cmd, app, command.BulkDelete{IDs: ids})
			}
			return writeErr(cmd, invalidArgError{name: "bulk operation", value: args[0]})
		},
	}
	vf.bind(cmd)
	cmd.Flags().IntVar(&from, "from", 0, "First task of the range")
	cmd.Flags().IntVar(&to, "to", 0, "Last task of the range")
	return cmd
}
