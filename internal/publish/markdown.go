package publish

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/query"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tree"
)

type RenderOptions struct {
	// IncludeCompleted keeps completed tasks (and their subtrees) in the output.
	IncludeCompleted bool
	// Now anchors the "days remaining" notes; zero means time.Now.
	Now time.Time
}

func (o RenderOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o RenderOptions) keep(t *model.Task) bool {
	return o.IncludeCompleted || !t.Completed
}

type lineWriter struct{ bytes.Buffer }

func (w *lineWriter) ln(s string) {
	w.WriteString(s)
	w.WriteString("\n")
}

func taskFileName(id int) string {
	return "task-" + strconv.Itoa(id) + ".md"
}

func checkbox(t *model.Task) string {
	if t.Completed {
		return "[x]"
	}
	return "[ ]"
}

// RenderProjectMarkdown renders the task tree of p as a nested checklist. Task entries link
// to the per-task pages written next to the index.
func RenderProjectMarkdown(sc *store.Scenario, p *store.Project, opt RenderOptions) (string, error) {
	if sc == nil || p == nil {
		return "", fmt.Errorf("missing project")
	}
	var w lineWriter
	w.ln("# " + strings.TrimSpace(p.Icon+" "+p.Name))
	w.ln("")
	if d := strings.TrimSpace(p.Description); d != "" {
		w.ln("> " + d)
		w.ln("")
	}

	w.ln("## Meta")
	w.ln("")
	w.ln("- Scenario: " + strings.TrimSpace(sc.Name) + " (" + strconv.Itoa(sc.ID) + ")")
	w.ln("- Project: " + strconv.Itoa(p.ID))
	c := query.Stats(p.Tasks)
	w.ln(fmt.Sprintf("- Tasks: %d (%d completed, %d pending)", c.Total, c.Completed, c.Pending))
	w.ln("")

	if d := strings.TrimSpace(p.Details); d != "" {
		w.ln("## Details")
		w.ln("")
		w.ln(d)
		w.ln("")
	}

	w.ln("## Tasks")
	w.ln("")
	if p.Tasks == nil || p.Tasks.Len() == 0 {
		w.ln("_No tasks._")
		return w.String(), nil
	}
	var walk func(ts []*model.Task, depth int)
	walk = func(ts []*model.Task, depth int) {
		for _, t := range ts {
			if !opt.keep(t) {
				continue
			}
			line := strings.Repeat("  ", depth) + "- " + checkbox(t) + " [" + mdEscape(t.Text) + "](tasks/" + taskFileName(t.ID) + ")"
			if meta := inlineMeta(t); meta != "" {
				line += " " + meta
			}
			w.ln(line)
			walk(p.Tasks.Children(t.ID), depth+1)
		}
	}
	walk(p.Tasks.Roots(), 0)
	return w.String(), nil
}

// RenderTaskMarkdown renders one task page: meta, description, alerts and direct subtasks.
func RenderTaskMarkdown(p *store.Project, t *model.Task, opt RenderOptions) (string, error) {
	if p == nil || t == nil {
		return "", fmt.Errorf("missing task")
	}
	f := p.Tasks
	now := opt.now()
	var w lineWriter
	w.ln("# " + checkbox(t) + " " + strings.TrimSpace(t.Text))
	w.ln("")

	w.ln("## Meta")
	w.ln("")
	w.ln("- ID: " + strconv.Itoa(t.ID))
	w.ln("- Project: " + strings.TrimSpace(p.Name) + " (" + strconv.Itoa(p.ID) + ")")
	if parent, ok := parentOf(f, t); ok {
		w.ln("- Parent: [" + mdEscape(parent.Text) + "](" + taskFileName(parent.ID) + ")")
	}
	w.ln("- Priority: " + string(t.Priority))
	if due := strings.TrimSpace(t.DueDate); due != "" {
		line := "- Due: " + due
		if b, ok := query.DaysRemainingBadge(due, now); ok {
			line += " (" + b.Text + ")"
		}
		w.ln(line)
	}
	if t.Repeat != model.RepeatNone {
		line := "- Repeat: " + string(t.Repeat)
		if t.RepeatCount > 0 {
			line += fmt.Sprintf(" x%d", t.RepeatCount)
		}
		w.ln(line)
	}
	if tags := tagList(t); tags != "" {
		w.ln("- Tags: " + tags)
	}
	if t.Completed {
		w.ln("- Completed: true")
	}
	w.ln("")

	if d := strings.TrimSpace(t.Description); d != "" {
		w.ln("## Description")
		w.ln("")
		w.ln(d)
		w.ln("")
	}

	if len(t.Alerts) > 0 {
		w.ln("## Alerts")
		w.ln("")
		for _, a := range t.Alerts {
			state := "active"
			if !a.Active {
				state = "inactive"
			}
			line := fmt.Sprintf("- %s: %s (%s)", a.AlertDate, strings.TrimSpace(a.Title), state)
			if msg := strings.TrimSpace(a.Message); msg != "" {
				line += " - " + msg
			}
			w.ln(line)
		}
		w.ln("")
	}

	if f != nil {
		var kids []*model.Task
		for _, c := range f.Children(t.ID) {
			if opt.keep(c) {
				kids = append(kids, c)
			}
		}
		if len(kids) > 0 {
			w.ln("## Subtasks")
			w.ln("")
			for _, c := range kids {
				w.ln("- " + checkbox(c) + " [" + mdEscape(c.Text) + "](" + taskFileName(c.ID) + ")")
			}
			w.ln("")
		}
	}
	return strings.TrimRight(w.String(), "\n") + "\n", nil
}

func parentOf(f *tree.Forest, t *model.Task) (*model.Task, bool) {
	if f == nil || t.ParentID == nil {
		return nil, false
	}
	return f.Get(*t.ParentID)
}

func inlineMeta(t *model.Task) string {
	var parts []string
	if t.Priority == model.PriorityHigh {
		parts = append(parts, "**!**")
	}
	if due := strings.TrimSpace(t.DueDate); due != "" {
		parts = append(parts, "📅 "+due)
	}
	if tags := tagList(t); tags != "" {
		parts = append(parts, tags)
	}
	return strings.Join(parts, " ")
}

func tagList(t *model.Task) string {
	var out []string
	for _, tag := range t.Tags {
		if k := tag.Key(); k != "" {
			out = append(out, "`#"+k+"`")
		}
	}
	return strings.Join(out, " ")
}

var mdEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, "`", "\\`", `*`, `\*`, `_`, `\_`)

func mdEscape(s string) string {
	return mdEscaper.Replace(strings.TrimSpace(s))
}
