package model

import "time"

// Kind names an id sequence of the identity allocator.
type Kind string

const (
	KindTask     Kind = "task"
	KindScenario Kind = "scenario"
	KindProject  Kind = "project"
	KindTag      Kind = "tag"
	KindAlert    Kind = "alert"
)

// Reserved ids for the permanent default scenario and the per-scenario default project.
const (
	DefaultScenarioID = 1
	DefaultProjectID  = 1
)

type Priority string

const (
	PriorityHigh   Priority = "alta"
	PriorityMedium Priority = "media"
	PriorityLow    Priority = "baja"
)

// ParsePriority accepts the stored values plus a few English aliases.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "alta", "high":
		return PriorityHigh, true
	case "media", "medium", "":
		return PriorityMedium, true
	case "baja", "low":
		return PriorityLow, true
	}
	return "", false
}

// Rank orders priorities for single-key sorting (alta first).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

type RepeatKind string

const (
	RepeatNone    RepeatKind = ""
	RepeatDaily   RepeatKind = "daily"
	RepeatWeekly  RepeatKind = "weekly"
	RepeatMonthly RepeatKind = "monthly"
	RepeatYearly  RepeatKind = "yearly"
)

func (r RepeatKind) Valid() bool {
	switch r {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

// Task is one node of a project forest.
//
// ParentID, Children and Depth are link fields owned by tree.Forest; other packages read
// them but never assign them.
type Task struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`

	ParentID *int  `json:"parentId"`
	Children []int `json:"children"`
	Expanded bool  `json:"expanded"`
	Depth    int   `json:"depth"`

	Priority    Priority   `json:"priority"`
	Description string     `json:"description,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Repeat      RepeatKind `json:"repeat,omitempty"`
	RepeatCount int        `json:"repeatCount,omitempty"`
	Tags        []Tag      `json:"tags"`
	Alerts      []Alert    `json:"alerts,omitempty"`

	// Set on tasks produced by repetition expansion.
	IsRepeated     bool `json:"isRepeated,omitempty"`
	OriginalTaskID *int `json:"originalTaskId,omitempty"`
	RepeatSequence int  `json:"repeatSequence,omitempty"`
}

// HasChildren reports whether the task currently owns any subtasks.
func (t *Task) HasChildren() bool {
	return t != nil && len(t.Children) > 0
}

// Content returns a copy of the task's own fields with link fields cleared.
// Tags are copied; alerts are not, since alert ids must stay unique.
func (t Task) Content() Task {
	out := Task{
		Text:        t.Text,
		Completed:   t.Completed,
		Expanded:    t.Expanded,
		Priority:    t.Priority,
		Description: t.Description,
		DueDate:     t.DueDate,
		Repeat:      t.Repeat,
		RepeatCount: t.RepeatCount,
	}
	if len(t.Tags) > 0 {
		out.Tags = append([]Tag(nil), t.Tags...)
	} else {
		out.Tags = []Tag{}
	}
	return out
}

// Alert is a scheduled reminder attached to a task.
type Alert struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	AlertDate  string    `json:"alertDate"`
	WebhookURL *string   `json:"webhookUrl"`
	Active     bool      `json:"active"`
	Created    time.Time `json:"created"`
}
