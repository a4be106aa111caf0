package query

import (
	"math"
	"sort"
	"time"

	"tareas-cli/internal/model"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// newCollator returns a Spanish collator. Collators keep internal buffers, so each sort
// gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Spanish)
}

func sortTexts(ss []string) {
	c := newCollator()
	sort.SliceStable(ss, func(i, j int) bool { return c.CompareString(ss[i], ss[j]) < 0 })
}

var priorityScores = map[model.Priority]float64{
	model.PriorityHigh:   100,
	model.PriorityMedium: 50,
	model.PriorityLow:    10,
}

// UrgencyScore combines priority and due date; higher is more urgent.
//
// Date part: overdue 1000+|h|, within 24h 500+(24-h)*10, within a week 200+(168-h),
// later max(0, 100-h/24), undated 5; h is hours until due.
func UrgencyScore(t *model.Task, now time.Time) float64 {
	score, ok := priorityScores[t.Priority]
	if !ok {
		score = priorityScores[model.PriorityMedium]
	}
	due, _, ok := model.ParseDue(t.DueDate, now.Location())
	if !ok {
		return score + 5
	}
	h := due.Sub(now).Hours()
	switch {
	case h < 0:
		return score + 1000 + math.Abs(h)
	case h <= 24:
		return score + 500 + (24-h)*10
	case h <= 168:
		return score + 200 + (168 - h)
	default:
		return score + math.Max(0, 100-h/24)
	}
}

// Sort orders tasks in place. With both keys the urgency score decides (highest first);
// with only the due date, undated tasks go last and the rest ascend; with only priority,
// alta < media < baja. Ties fall back to Spanish text collation.
func Sort(tasks []*model.Task, byPriority, byDueDate bool, now time.Time) {
	if !byPriority && !byDueDate {
		return
	}
	c := newCollator()
	byText := func(a, b *model.Task) bool { return c.CompareString(a.Text, b.Text) < 0 }

	switch {
	case byPriority && byDueDate:
		scores := make(map[*model.Task]float64, len(tasks))
		for _, t := range tasks {
			scores[t] = UrgencyScore(t, now)
		}
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i], tasks[j]
			if scores[a] != scores[b] {
				return scores[a] > scores[b]
			}
			return byText(a, b)
		})
	case byDueDate:
		loc := now.Location()
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i], tasks[j]
			da, _, okA := model.ParseDue(a.DueDate, loc)
			db, _, okB := model.ParseDue(b.DueDate, loc)
			switch {
			case !okA && !okB:
				return byText(a, b)
			case !okA:
				return false
			case !okB:
				return true
			case !da.Equal(db):
				return da.Before(db)
			}
			return byText(a, b)
		})
	default:
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i], tasks[j]
			if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
				return ra < rb
			}
			return byText(a, b)
		})
	}
}
