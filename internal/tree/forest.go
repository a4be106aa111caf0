package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"tareas-cli/internal/model"
)

// Forest owns every task of one project.
//
// Tasks live in a flat map keyed by id; structure is expressed with id references
// (Task.ParentID, Task.Children) plus the ordered root list. The methods below are the only
// code that edits those link fields or Task.Depth.
type Forest struct {
	nodes map[int]*model.Task
	roots []int
}

var (
	ErrDuplicateID = errors.New("task id already present")
	ErrCycle       = errors.New("task cannot be moved under itself or its descendants")
)

func New() *Forest {
	return &Forest{nodes: map[int]*model.Task{}}
}

func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.nodes)
}

// Get finds a task anywhere in the forest.
func (f *Forest) Get(id int) (*model.Task, bool) {
	if f == nil {
		return nil, false
	}
	t, ok := f.nodes[id]
	return t, ok
}

// FindInAll searches forests in order and returns the first forest holding id.
func FindInAll(forests []*Forest, id int) (*model.Task, *Forest, bool) {
	for _, f := range forests {
		if t, ok := f.Get(id); ok {
			return t, f, true
		}
	}
	return nil, nil, false
}

// Parent returns the structural parent; ok is false for roots and unknown ids.
func (f *Forest) Parent(id int) (*model.Task, bool) {
	t, ok := f.Get(id)
	if !ok || t.ParentID == nil {
		return nil, false
	}
	return f.Get(*t.ParentID)
}

func (f *Forest) RootIDs() []int {
	if f == nil {
		return nil
	}
	return append([]int(nil), f.roots...)
}

func (f *Forest) Roots() []*model.Task {
	if f == nil {
		return nil
	}
	out := make([]*model.Task, 0, len(f.roots))
	for _, id := range f.roots {
		out = append(out, f.nodes[id])
	}
	return out
}

func (f *Forest) Children(id int) []*model.Task {
	t, ok := f.Get(id)
	if !ok {
		return nil
	}
	out := make([]*model.Task, 0, len(t.Children))
	for _, cid := range t.Children {
		out = append(out, f.nodes[cid])
	}
	return out
}

// Flatten returns every task in pre-order: a parent, then its subtree, then the next sibling.
func (f *Forest) Flatten() []*model.Task {
	if f == nil {
		return nil
	}
	out := make([]*model.Task, 0, len(f.nodes))
	var walk func(ids []int)
	walk = func(ids []int) {
		for _, id := range ids {
			t := f.nodes[id]
			out = append(out, t)
			walk(t.Children)
		}
	}
	walk(f.roots)
	return out
}

// Subtree returns id and all of its descendants in pre-order.
func (f *Forest) Subtree(id int) []int {
	t, ok := f.Get(id)
	if !ok {
		return nil
	}
	out := []int{t.ID}
	for _, cid := range t.Children {
		out = append(out, f.Subtree(cid)...)
	}
	return out
}

// IsDescendant reports whether id lies strictly below ancestorID.
func (f *Forest) IsDescendant(ancestorID, id int) bool {
	cur, ok := f.Get(id)
	for ok && cur.ParentID != nil {
		if *cur.ParentID == ancestorID {
			return true
		}
		cur, ok = f.Get(*cur.ParentID)
	}
	return false
}

// CalculateDepth is 0 for nil or unknown parents, else the parent's depth + 1.
func (f *Forest) CalculateDepth(parentID *int) int {
	if parentID == nil {
		return 0
	}
	p, ok := f.Get(*parentID)
	if !ok {
		return 0
	}
	return p.Depth + 1
}

// IndexOf returns the container of id (nil parent for roots) and its position in it.
func (f *Forest) IndexOf(id int) (parentID *int, index int, ok bool) {
	t, found := f.Get(id)
	if !found {
		return nil, -1, false
	}
	list := f.container(t.ParentID)
	for i, x := range list {
		if x == id {
			return copyID(t.ParentID), i, true
		}
	}
	return nil, -1, false
}

// Insert adds a detached task under parentID (nil = root) at index; a negative or
// out-of-range index appends. The task must not have children. An unresolved parentID
// inserts at root level.
func (f *Forest) Insert(t *model.Task, parentID *int, index int) error {
	if t == nil {
		return errors.New("nil task")
	}
	if _, exists := f.nodes[t.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, t.ID)
	}
	if len(t.Children) > 0 {
		return errors.New("insert expects a task without children")
	}
	if f.nodes == nil {
		f.nodes = map[int]*model.Task{}
	}
	if parentID != nil {
		if _, ok := f.nodes[*parentID]; !ok {
			parentID = nil
		}
	}
	t.Children = nil
	f.nodes[t.ID] = t
	f.attach(t, parentID, index)
	return nil
}

// Move detaches id and re-attaches it under parentID at index, carrying its subtree.
// index counts positions in the destination list after id has left it.
// Moving a task under itself or a descendant returns ErrCycle without changes.
func (f *Forest) Move(id int, parentID *int, index int) error {
	t, ok := f.Get(id)
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}
	if parentID != nil {
		if *parentID == id || f.IsDescendant(id, *parentID) {
			return ErrCycle
		}
		if _, ok := f.Get(*parentID); !ok {
			return fmt.Errorf("task %d not found", *parentID)
		}
	}
	f.detach(t)
	f.attach(t, parentID, index)
	return nil
}

// MoveBeside places id immediately before or after refID, in refID's container, at
// refID's level. When refID is unknown the task is appended to the root list.
func (f *Forest) MoveBeside(id, refID int, after bool) error {
	t, ok := f.Get(id)
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}
	if refID == id {
		return nil
	}
	ref, ok := f.Get(refID)
	if !ok {
		f.detach(t)
		f.attach(t, nil, -1)
		return nil
	}
	if ref.ParentID != nil && (*ref.ParentID == id || f.IsDescendant(id, *ref.ParentID)) {
		return ErrCycle
	}
	parentID := copyID(ref.ParentID)
	f.detach(t)
	index := -1
	for i, x := range f.container(parentID) {
		if x == refID {
			index = i
			if after {
				index = i + 1
			}
			break
		}
	}
	f.attach(t, parentID, index)
	return nil
}

// Remove deletes id and its entire subtree and returns the removed ids in pre-order.
func (f *Forest) Remove(id int) []int {
	t, ok := f.Get(id)
	if !ok {
		return nil
	}
	removed := f.Subtree(id)
	f.detach(t)
	for _, rid := range removed {
		delete(f.nodes, rid)
	}
	return removed
}

// Append moves every tree of src after the roots of f, keeping ids, order and depths. src is
// left empty. Nothing moves when an id of src is already present in f.
func (f *Forest) Append(src *Forest) error {
	if src == nil || src == f {
		return nil
	}
	for id := range src.nodes {
		if _, dup := f.nodes[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
	}
	if f.nodes == nil {
		f.nodes = map[int]*model.Task{}
	}
	for id, t := range src.nodes {
		f.nodes[id] = t
	}
	f.roots = append(f.roots, src.roots...)
	src.nodes = map[int]*model.Task{}
	src.roots = nil
	return nil
}

// Check verifies the structural invariants and reports the first violation.
func (f *Forest) Check() error {
	if f == nil {
		return nil
	}
	seen := map[int]bool{}
	var walk func(ids []int, parent *model.Task) error
	walk = func(ids []int, parent *model.Task) error {
		for _, id := range ids {
			t, ok := f.nodes[id]
			if !ok {
				return fmt.Errorf("task %d is linked but missing", id)
			}
			if seen[id] {
				return fmt.Errorf("task %d is linked twice", id)
			}
			seen[id] = true
			wantDepth := 0
			if parent != nil {
				wantDepth = parent.Depth + 1
				if t.ParentID == nil || *t.ParentID != parent.ID {
					return fmt.Errorf("task %d has parentId %v, want %d", id, derefID(t.ParentID), parent.ID)
				}
			} else if t.ParentID != nil {
				return fmt.Errorf("root task %d has parentId %d", id, *t.ParentID)
			}
			if t.Depth != wantDepth {
				return fmt.Errorf("task %d has depth %d, want %d", id, t.Depth, wantDepth)
			}
			if err := walk(t.Children, t); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(f.roots, nil); err != nil {
		return err
	}
	if len(seen) != len(f.nodes) {
		return fmt.Errorf("%d tasks are unreachable from the roots", len(f.nodes)-len(seen))
	}
	return nil
}

// IDs returns every task id in ascending order.
func (f *Forest) IDs() []int {
	if f == nil {
		return nil
	}
	out := make([]int, 0, len(f.nodes))
	for id := range f.nodes {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (f *Forest) container(parentID *int) []int {
	if parentID == nil {
		return f.roots
	}
	if p, ok := f.nodes[*parentID]; ok {
		return p.Children
	}
	return nil
}

func (f *Forest) setContainer(parentID *int, list []int) {
	if parentID == nil {
		f.roots = list
		return
	}
	if p, ok := f.nodes[*parentID]; ok {
		p.Children = list
	}
}

func (f *Forest) detach(t *model.Task) {
	list := f.container(t.ParentID)
	for i, x := range list {
		if x == t.ID {
			out := make([]int, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			f.setContainer(t.ParentID, out)
			break
		}
	}
	t.ParentID = nil
}

func (f *Forest) attach(t *model.Task, parentID *int, index int) {
	list := f.container(parentID)
	if index < 0 || index > len(list) {
		index = len(list)
	}
	out := make([]int, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, t.ID)
	out = append(out, list[index:]...)
	f.setContainer(parentID, out)
	t.ParentID = copyID(parentID)
	t.Depth = f.CalculateDepth(parentID)
	f.repairDepths(t)
}

func (f *Forest) repairDepths(t *model.Task) {
	for _, cid := range t.Children {
		c := f.nodes[cid]
		c.ParentID = copyID(&t.ID)
		c.Depth = t.Depth + 1
		f.repairDepths(c)
	}
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func derefID(id *int) any {
	if id == nil {
		return nil
	}
	return *id
}

type forestJSON struct {
	Roots []int         `json:"roots"`
	Tasks []*model.Task `json:"tasks"`
}

// MarshalJSON encodes the arena as its root order plus tasks in pre-order.
func (f *Forest) MarshalJSON() ([]byte, error) {
	out := forestJSON{Roots: f.RootIDs(), Tasks: f.Flatten()}
	if out.Roots == nil {
		out.Roots = []int{}
	}
	if out.Tasks == nil {
		out.Tasks = []*model.Task{}
	}
	return json.Marshal(out)
}

func (f *Forest) UnmarshalJSON(b []byte) error {
	var in forestJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	built, err := FromLinked(in.Tasks, in.Roots)
	if err != nil {
		return err
	}
	*f = *built
	return nil
}

// FromLinked rebuilds a forest from tasks whose Children/ParentID links are already set,
// repairing depths and validating the result.
func FromLinked(tasks []*model.Task, roots []int) (*Forest, error) {
	f := New()
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if _, dup := f.nodes[t.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, t.ID)
		}
		f.nodes[t.ID] = t
	}
	f.roots = append([]int(nil), roots...)
	seen := map[int]bool{}
	var link func(t *model.Task, parent *model.Task) error
	link = func(t *model.Task, parent *model.Task) error {
		if seen[t.ID] {
			return fmt.Errorf("task %d is linked twice", t.ID)
		}
		seen[t.ID] = true
		if parent == nil {
			t.ParentID = nil
			t.Depth = 0
		} else {
			t.ParentID = copyID(&parent.ID)
			t.Depth = parent.Depth + 1
		}
		for _, cid := range t.Children {
			c, ok := f.nodes[cid]
			if !ok {
				return fmt.Errorf("task %d is linked but missing", cid)
			}
			if err := link(c, t); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range f.roots {
		t, ok := f.nodes[id]
		if !ok {
			return nil, fmt.Errorf("root task %d is missing", id)
		}
		if err := link(t, nil); err != nil {
			return nil, err
		}
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f, nil
}
