package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTagJSON_AcceptsBothShapes(t *testing.T) {
	var tags []Tag
	if err := json.Unmarshal([]byte(`["urgente", {"id": 3, "text": " casa "}]`), &tags); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags; got %d", len(tags))
	}
	if tags[0].Labeled() || tags[0].Key() != "urgente" {
		t.Fatalf("expected plain tag urgente; got %+v", tags[0])
	}
	if !tags[1].Labeled() || tags[1].ID != 3 || tags[1].Key() != "casa" {
		t.Fatalf("expected labeled tag 3/casa; got %+v", tags[1])
	}

	b, err := json.Marshal(tags)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `["urgente",{"id":3,"text":" casa "}]`; got != want {
		t.Fatalf("expected %s; got %s", want, got)
	}
}

func TestTagJSON_RejectsNumbers(t *testing.T) {
	var tag Tag
	if err := json.Unmarshal([]byte(`42`), &tag); err == nil {
		t.Fatalf("expected error for numeric tag")
	}
}

func TestHasTag_UsesNormalizedText(t *testing.T) {
	tags := []Tag{PlainTag("trabajo"), LabeledTag(1, "casa ")}
	if !HasTag(tags, " casa") {
		t.Fatalf("expected casa to match")
	}
	if HasTag(tags, "Casa") {
		t.Fatalf("expected comparison to stay case sensitive")
	}
	if HasTag(tags, "  ") {
		t.Fatalf("expected blank tag to never match")
	}
}

func TestParseDue(t *testing.T) {
	loc := time.UTC
	d, dateOnly, ok := ParseDue("2025-03-01", loc)
	if !ok || !dateOnly || !d.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected date-only parse: %v %v %v", d, dateOnly, ok)
	}
	d, dateOnly, ok = ParseDue("2025-03-01T09:30", loc)
	if !ok || dateOnly || d.Hour() != 9 || d.Minute() != 30 {
		t.Fatalf("unexpected date-time parse: %v %v %v", d, dateOnly, ok)
	}
	if _, _, ok := ParseDue("2025-03-01T09:30:00.000Z", loc); !ok {
		t.Fatalf("expected ISO timestamp to parse")
	}
	if _, _, ok := ParseDue("mañana", loc); ok {
		t.Fatalf("expected garbage to fail")
	}
	if got := FormatDue(time.Date(2025, 3, 8, 14, 5, 0, 0, loc), false); got != "2025-03-08T14:05" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestParsePriority(t *testing.T) {
	if p, ok := ParsePriority(""); !ok || p != PriorityMedium {
		t.Fatalf("expected empty priority to default to media; got %q", p)
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatalf("expected unknown priority to fail")
	}
	if PriorityHigh.Rank() >= PriorityMedium.Rank() || PriorityMedium.Rank() >= PriorityLow.Rank() {
		t.Fatalf("expected alta < media < baja")
	}
}
