package query

import (
	"reflect"
	"testing"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/tree"
)

var now = time.Date(2030, 1, 10, 12, 0, 0, 0, time.Local)

func intPtr(v int) *int { return &v }

type spec struct {
	id       int
	parent   *int
	text     string
	due      string
	done     bool
	priority model.Priority
	tags     []string
}

func build(t *testing.T, specs ...spec) *tree.Forest {
	t.Helper()
	f := tree.New()
	for _, s := range specs {
		task := &model.Task{ID: s.id, Text: s.text, DueDate: s.due, Completed: s.done, Priority: s.priority, Expanded: true}
		if task.Priority == "" {
			task.Priority = model.PriorityMedium
		}
		for _, tg := range s.tags {
			task.Tags = append(task.Tags, model.PlainTag(tg))
		}
		if err := f.Insert(task, s.parent, -1); err != nil {
			t.Fatalf("insert %d: %v", s.id, err)
		}
	}
	return f
}

func taskIDs(ts []*model.Task) []int {
	out := []int{}
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestViewFilters(t *testing.T) {
	f := build(t,
		spec{id: 1, text: "ayer", due: "2030-01-09"},
		spec{id: 2, text: "hoy", due: "2030-01-10"},
		spec{id: 3, text: "hoy tarde", due: "2030-01-10T18:00"},
		spec{id: 4, text: "mañana", due: "2030-01-11"},
		spec{id: 5, text: "hoy hecha", due: "2030-01-10", done: true},
		spec{id: 6, text: "sin fecha"},
		spec{id: 7, text: "hoy temprano", due: "2030-01-10T08:00"},
	)
	cases := []struct {
		view View
		want []int
	}{
		{ViewAll, []int{1, 2, 3, 4, 5, 6, 7}},
		{ViewToday, []int{1, 2, 3, 7}},
		{ViewTomorrow, []int{4}},
		{ViewOverdue, []int{1, 2, 7}},
		{ViewPending, []int{1, 2, 3, 4, 6, 7}},
		{ViewCompleted, []int{5}},
	}
	for _, tc := range cases {
		got := taskIDs(Filter(f, Options{View: tc.view, Now: now}))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("view %s: expected %v; got %v", tc.view, tc.want, got)
		}
	}
}

func TestTagFilterIsOrOverNormalizedText(t *testing.T) {
	f := build(t,
		spec{id: 1, text: "a", tags: []string{"casa "}},
		spec{id: 2, text: "b", tags: []string{"trabajo"}},
		spec{id: 3, text: "c"},
	)
	got := taskIDs(Filter(f, Options{Tags: []string{" casa", "trabajo"}, Now: now}))
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("expected tasks 1 and 2; got %v", got)
	}
	if tags := AllTags(f); !reflect.DeepEqual(tags, []string{"casa", "trabajo"}) {
		t.Fatalf("expected distinct tags; got %v", tags)
	}
}

func TestProjectionModes(t *testing.T) {
	f := build(t,
		spec{id: 1, text: "b raíz", priority: model.PriorityLow},
		spec{id: 2, parent: intPtr(1), text: "hija", priority: model.PriorityHigh},
		spec{id: 3, text: "a raíz", priority: model.PriorityHigh},
	)

	p := Project(f, Options{Now: now})
	if !p.Hierarchical || len(p.Nodes) != 2 || p.Nodes[0].Task.ID != 1 || len(p.Nodes[0].Children) != 1 {
		t.Fatalf("expected stored hierarchy; got %#v", p)
	}

	p = Project(f, Options{SortByPriority: true, Now: now})
	if !p.Hierarchical || p.Nodes[0].Task.ID != 3 || p.Nodes[1].Task.ID != 1 || len(p.Nodes[1].Children) != 1 {
		t.Fatalf("expected sorted roots keeping children; got %#v", p)
	}

	p = Project(f, Options{View: ViewPending, Now: now})
	if p.Hierarchical || len(p.Nodes) != 3 {
		t.Fatalf("expected 3 flat rows; got %#v", p)
	}
	row := p.Nodes[1].Task
	if row.ID != 2 || row.ParentID != nil || row.Depth != 0 || len(p.Nodes[1].Children) != 0 {
		t.Fatalf("expected detached row for task 2; got %#v", row)
	}
	orig, _ := f.Get(2)
	if orig.ParentID == nil || orig.Depth != 1 {
		t.Fatalf("expected the forest to stay untouched")
	}
}

func TestRowsSkipCollapsedChildren(t *testing.T) {
	f := build(t,
		spec{id: 1, text: "a"},
		spec{id: 2, parent: intPtr(1), text: "b", done: true},
		spec{id: 3, parent: intPtr(1), text: "c"},
		spec{id: 4, text: "d"},
	)
	rows := Project(f, Options{Now: now}).Rows()
	if len(rows) != 4 || rows[1].Depth != 1 || !rows[0].HasChildren || rows[0].DoneChildren != 1 || rows[0].TotalChildren != 2 {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	a, _ := f.Get(1)
	a.Expanded = false
	rows = Project(f, Options{Now: now}).Rows()
	if len(rows) != 2 || rows[1].Task.ID != 4 {
		t.Fatalf("expected collapsed children hidden; got %d rows", len(rows))
	}
}

func TestVisibleOrderAndSelectRange(t *testing.T) {
	f := build(t,
		spec{id: 1, text: "a"},
		spec{id: 2, parent: intPtr(1), text: "b", done: true},
		spec{id: 3, text: "c"},
		spec{id: 4, text: "d"},
	)
	order := VisibleOrder(f, Options{Now: now})
	got, ok := SelectRange(order, 3, 2)
	if !ok || !reflect.DeepEqual(got, []int{2, 3}) {
		t.Fatalf("expected [2 3]; got %v (ok=%v)", got, ok)
	}
	order = VisibleOrder(f, Options{View: ViewPending, Now: now})
	got, ok = SelectRange(order, 1, 4)
	if !ok || !reflect.DeepEqual(got, []int{1, 3, 4}) {
		t.Fatalf("expected [1 3 4]; got %v (ok=%v)", got, ok)
	}
	if _, ok := SelectRange(order, 1, 2); ok {
		t.Fatalf("expected hidden task to fail the range")
	}
}

func TestStats(t *testing.T) {
	f := build(t,
		spec{id: 1, text: "a", done: true},
		spec{id: 2, parent: intPtr(1), text: "b"},
	)
	if got := Stats(f); got != (Counts{Total: 2, Completed: 1, Pending: 1}) {
		t.Fatalf("unexpected stats: %#v", got)
	}
	if v, ok := ParseView(" Today "); !ok || v != ViewToday {
		t.Fatalf("expected today view; got %q", v)
	}
	if _, ok := ParseView("someday"); ok {
		t.Fatalf("expected unknown view to be rejected")
	}
}
