// Package query projects a task forest into the lists the front ends render: view and tag
// filters, urgency sorting, hierarchical or flat projection, and visible order.
package query

import (
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/tree"
)

type View string

const (
	ViewAll       View = "all"
	ViewToday     View = "today"
	ViewTomorrow  View = "tomorrow"
	ViewOverdue   View = "overdue"
	ViewPending   View = "pending"
	ViewCompleted View = "completed"
)

// Views lists every view in menu order.
var Views = []View{ViewAll, ViewToday, ViewTomorrow, ViewOverdue, ViewPending, ViewCompleted}

func ParseView(s string) (View, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ViewAll, true
	}
	for _, v := range Views {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Options select what a projection shows. The zero value is the plain "all" outline.
type Options struct {
	View           View
	Tags           []string
	SortByPriority bool
	SortByDueDate  bool
	Now            time.Time
}

func (o Options) view() View {
	if o.View == "" {
		return ViewAll
	}
	return o.View
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) sorting() bool { return o.SortByPriority || o.SortByDueDate }

func (o Options) tagKeys() []string {
	var out []string
	for _, t := range o.Tags {
		if k := model.NormalizeTag(t); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Hierarchical reports whether the projection keeps the tree shape.
func (o Options) Hierarchical() bool {
	return o.view() == ViewAll && len(o.tagKeys()) == 0
}

// MatchesView applies the view filter to one task.
func MatchesView(t *model.Task, v View, now time.Time) bool {
	switch v {
	case ViewPending:
		return !t.Completed
	case ViewCompleted:
		return t.Completed
	case ViewToday, ViewTomorrow, ViewOverdue:
		if t.Completed {
			return false
		}
		due, _, ok := model.ParseDue(t.DueDate, now.Location())
		if !ok {
			return false
		}
		day := model.DayOf(due)
		today := model.DayOf(now)
		switch v {
		case ViewToday:
			return !day.After(today)
		case ViewTomorrow:
			return day.Equal(today.AddDate(0, 0, 1))
		default:
			return due.Before(now)
		}
	}
	return true
}

// MatchesTags is true when no tags are active or the task carries any of them.
func MatchesTags(t *model.Task, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		if model.HasTag(t.Tags, k) {
			return true
		}
	}
	return false
}

// Filter returns every task of f (pre-order) passing the view and tag filters, sorted when a
// sort key is active.
func Filter(f *tree.Forest, opts Options) []*model.Task {
	now := opts.now()
	keys := opts.tagKeys()
	var out []*model.Task
	for _, t := range f.Flatten() {
		if MatchesView(t, opts.view(), now) && MatchesTags(t, keys) {
			out = append(out, t)
		}
	}
	if opts.sorting() {
		Sort(out, opts.SortByPriority, opts.SortByDueDate, now)
	}
	return out
}

// Node is one entry of a projection. Flat rows are detached copies: no parent, no children,
// depth 0.
type Node struct {
	Task     *model.Task
	Children []Node
}

type Projection struct {
	Hierarchical bool
	Nodes        []Node
}

// Project builds the render tree.
//
//   - all, no tags, no sort: roots in stored order with nested children
//   - all, no tags, sort: roots in sorted order with nested children
//   - anything else: every match as a flat row
func Project(f *tree.Forest, opts Options) Projection {
	if opts.Hierarchical() {
		roots := f.Roots()
		if opts.sorting() {
			Sort(roots, opts.SortByPriority, opts.SortByDueDate, opts.now())
		}
		return Projection{Hierarchical: true, Nodes: nest(f, roots)}
	}
	matches := Filter(f, opts)
	nodes := make([]Node, 0, len(matches))
	for _, t := range matches {
		row := *t
		row.ParentID = nil
		row.Children = nil
		row.Depth = 0
		nodes = append(nodes, Node{Task: &row})
	}
	return Projection{Nodes: nodes}
}

func nest(f *tree.Forest, ts []*model.Task) []Node {
	out := make([]Node, 0, len(ts))
	for _, t := range ts {
		out = append(out, Node{Task: t, Children: nest(f, f.Children(t.ID))})
	}
	return out
}

// Row is a projection node laid out for line-based rendering.
type Row struct {
	Task          *model.Task
	Depth         int
	HasChildren   bool
	DoneChildren  int
	TotalChildren int
}

// Rows flattens a projection in display order, skipping the children of collapsed tasks.
func (p Projection) Rows() []Row {
	var out []Row
	var walk func(ns []Node, depth int)
	walk = func(ns []Node, depth int) {
		for _, n := range ns {
			r := Row{Task: n.Task, Depth: depth, HasChildren: len(n.Children) > 0, TotalChildren: len(n.Children)}
			for _, c := range n.Children {
				if c.Task.Completed {
					r.DoneChildren++
				}
			}
			out = append(out, r)
			if n.Task.Expanded {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(p.Nodes, 0)
	return out
}

// VisibleOrder is the order range selection walks: the whole forest in pre-order for the
// "all" view, the filtered and sorted list otherwise.
func VisibleOrder(f *tree.Forest, opts Options) []*model.Task {
	if opts.view() == ViewAll {
		return f.Flatten()
	}
	return Filter(f, opts)
}

// SelectRange returns the ids between a and b inclusive in order. ok is false when either
// id is not in order.
func SelectRange(order []*model.Task, a, b int) ([]int, bool) {
	ia, ib := -1, -1
	for i, t := range order {
		if t.ID == a {
			ia = i
		}
		if t.ID == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return nil, false
	}
	if ia > ib {
		ia, ib = ib, ia
	}
	out := make([]int, 0, ib-ia+1)
	for _, t := range order[ia : ib+1] {
		out = append(out, t.ID)
	}
	return out, true
}

// AllTags lists the distinct tag texts used in f, in collation order.
func AllTags(f *tree.Forest) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range f.Flatten() {
		for _, tag := range t.Tags {
			k := tag.Key()
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	sortTexts(out)
	return out
}

type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

func Stats(f *tree.Forest) Counts {
	var c Counts
	for _, t := range f.Flatten() {
		c.Total++
		if t.Completed {
			c.Completed++
		}
	}
	c.Pending = c.Total - c.Completed
	return c
}
