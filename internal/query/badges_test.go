package query

import (
	"testing"
	"time"

	"tareas-cli/internal/model"
)

func TestPriorityBadge(t *testing.T) {
	if b := PriorityBadge(model.PriorityHigh); b.String() != "🔴 Alta" || b.Class != "priority-high" {
		t.Fatalf("unexpected high badge: %#v", b)
	}
	if b := PriorityBadge(""); b.Class != "priority-medium" || b.Text != "Media" {
		t.Fatalf("expected media fallback; got %#v", b)
	}
}

func TestDueBadge(t *testing.T) {
	b, ok := DueBadge("2030-01-10T18:30", now)
	if !ok || b.Text != "10/01/2030 18:30" || b.Class != "due-future" {
		t.Fatalf("unexpected badge: %#v", b)
	}
	b, ok = DueBadge("2030-01-09", now)
	if !ok || b.Text != "09/01/2030" || b.Class != "due-overdue" {
		t.Fatalf("unexpected date-only badge: %#v", b)
	}
	if _, ok := DueBadge("", now); ok {
		t.Fatalf("expected no badge without a date")
	}
}

func TestDaysRemainingBadge(t *testing.T) {
	cases := []struct {
		due   string
		text  string
		class string
	}{
		{"2030-01-09", "Vencido 1 día", "days-remaining-overdue"},
		{"2030-01-05T10:00", "Vencido 5 días", "days-remaining-overdue"},
		{"2030-01-10", "Hoy", "days-remaining-today"},
		{"2030-01-10T14:30", "Hoy (2h 30m)", "days-remaining-today"},
		{"2030-01-10T12:20", "Hoy (20m)", "days-remaining-today"},
		{"2030-01-10T12:00", "Hoy (vencido)", "days-remaining-today"},
		{"2030-01-11", "Mañana", "days-remaining-soon"},
		{"2030-01-17", "7 días", "days-remaining-soon"},
		{"2030-01-18", "8 días", "days-remaining-future"},
	}
	for _, tc := range cases {
		b, ok := DaysRemainingBadge(tc.due, now)
		if !ok || b.Text != tc.text || b.Class != tc.class {
			t.Fatalf("%s: expected %q/%s; got %#v", tc.due, tc.text, tc.class, b)
		}
	}
	if d, ok := DaysRemaining("2030-02-10", now); !ok || d != 31 {
		t.Fatalf("expected 31 days; got %d", d)
	}
	b, _ := DaysRemainingBadge("2030-01-10T12:00", now.Add(-30*time.Second))
	if b.Text != "Hoy (<1m)" {
		t.Fatalf("expected <1m; got %q", b.Text)
	}
}

func TestAlertCountdown(t *testing.T) {
	cases := map[string]string{
		"2030-01-10T11:00": "⏰ Vencida",
		"2030-01-10T12:45": "⏱️ 45m",
		"2030-01-10T15:10": "⏱️ 3h 10m",
		"2030-01-12T13:05": "⏱️ 2d 1h 5m",
	}
	for date, want := range cases {
		if got := AlertCountdown(date, now); got != want {
			t.Fatalf("%s: expected %q; got %q", date, want, got)
		}
	}
}

func TestTaskBadgesOrder(t *testing.T) {
	task := &model.Task{DueDate: "2030-01-11", Priority: model.PriorityLow, Tags: []model.Tag{model.PlainTag("casa")}}
	bs := TaskBadges(task, now)
	if len(bs) != 4 || bs[0].Icon != "🕐" || bs[1].Text != "Mañana" || bs[2].Text != "casa" || bs[3].Text != "Baja" {
		t.Fatalf("unexpected badges: %#v", bs)
	}
}
