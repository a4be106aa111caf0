package query

import (
	"fmt"
	"time"

	"tareas-cli/internal/model"
)

// Badge is a derived label shown next to a task. Class is the CSS class the web view uses;
// the TUI maps it to a color.
type Badge struct {
	Class string `json:"class"`
	Icon  string `json:"icon"`
	Text  string `json:"text"`
}

func (b Badge) String() string {
	if b.Icon == "" {
		return b.Text
	}
	return b.Icon + " " + b.Text
}

func PriorityBadge(p model.Priority) Badge {
	switch p {
	case model.PriorityHigh:
		return Badge{Class: "priority-high", Icon: "🔴", Text: "Alta"}
	case model.PriorityLow:
		return Badge{Class: "priority-low", Icon: "🟢", Text: "Baja"}
	}
	return Badge{Class: "priority-medium", Icon: "🟡", Text: "Media"}
}

// DueBadge renders the due date as dd/mm/yyyy, plus HH:MM when it has a time.
func DueBadge(due string, now time.Time) (Badge, bool) {
	t, dateOnly, ok := model.ParseDue(due, now.Location())
	if !ok {
		return Badge{}, false
	}
	text := t.Format("02/01/2006")
	if !dateOnly {
		text += t.Format(" 15:04")
	}
	class := "due-future"
	if !t.After(now) {
		class = "due-overdue"
	}
	return Badge{Class: class, Icon: "🕐", Text: text}, true
}

// DaysRemaining is the difference in calendar days between the due date and now.
func DaysRemaining(due string, now time.Time) (int, bool) {
	t, _, ok := model.ParseDue(due, now.Location())
	if !ok {
		return 0, false
	}
	return calendarDays(now, t), true
}

func calendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// DaysRemainingBadge describes how far away the due date is. For a due time later today
// it shows the hours and minutes left; date-only values due today show "Hoy".
func DaysRemainingBadge(due string, now time.Time) (Badge, bool) {
	t, dateOnly, ok := model.ParseDue(due, now.Location())
	if !ok {
		return Badge{}, false
	}
	days := calendarDays(now, t)
	b := Badge{Icon: "📅"}
	switch {
	case days < 0:
		n := -days
		b.Class = "days-remaining-overdue"
		b.Text = fmt.Sprintf("Vencido %d día", n)
		if n > 1 {
			b.Text += "s"
		}
	case days == 0:
		b.Class = "days-remaining-today"
		b.Text = todayText(t, dateOnly, now)
	case days == 1:
		b.Class = "days-remaining-soon"
		b.Text = "Mañana"
	case days <= 7:
		b.Class = "days-remaining-soon"
		b.Text = fmt.Sprintf("%d días", days)
	default:
		b.Class = "days-remaining-future"
		b.Text = fmt.Sprintf("%d días", days)
	}
	return b, true
}

func todayText(due time.Time, dateOnly bool, now time.Time) string {
	if dateOnly {
		return "Hoy"
	}
	if !due.After(now) {
		return "Hoy (vencido)"
	}
	left := due.Sub(now)
	hours := int(left / time.Hour)
	minutes := int((left % time.Hour) / time.Minute)
	switch {
	case hours > 0:
		return fmt.Sprintf("Hoy (%dh %dm)", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("Hoy (%dm)", minutes)
	}
	return "Hoy (<1m)"
}

// AlertCountdown is the time left before an alert fires.
func AlertCountdown(alertDate string, now time.Time) string {
	t, _, ok := model.ParseDue(alertDate, now.Location())
	if !ok {
		return ""
	}
	left := t.Sub(now)
	if left <= 0 {
		return "⏰ Vencida"
	}
	days := int(left / (24 * time.Hour))
	hours := int((left % (24 * time.Hour)) / time.Hour)
	minutes := int((left % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("⏱️ %dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("⏱️ %dh %dm", hours, minutes)
	}
	return fmt.Sprintf("⏱️ %dm", minutes)
}

// TaskBadges returns the badges of a task in display order: due date, days remaining,
// tags, priority.
func TaskBadges(t *model.Task, now time.Time) []Badge {
	var out []Badge
	if b, ok := DueBadge(t.DueDate, now); ok {
		out = append(out, b)
	}
	if b, ok := DaysRemainingBadge(t.DueDate, now); ok {
		out = append(out, b)
	}
	for _, tag := range t.Tags {
		if k := tag.Key(); k != "" {
			out = append(out, Badge{Class: "tag-item", Icon: "🏷️", Text: k})
		}
	}
	return append(out, PriorityBadge(t.Priority))
}
