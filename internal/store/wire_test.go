package store

import (
	"encoding/json"
	"strings"
	"testing"

	"tareas-cli/internal/model"
)

func TestDocumentRoundTripPreservesStructure(t *testing.T) {
	db := seedDB(t)
	b, err := MarshalDocument(db, false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := ParseDocument(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b2, err := MarshalDocument(got, false)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if string(b) != string(b2) {
		t.Fatalf("expected stable encoding:\n%s\n%s", b, b2)
	}
	if PeekID(got, model.KindTask) != PeekID(db, model.KindTask) {
		t.Fatalf("expected task counter to round trip")
	}
}

func TestDocumentNestsChildren(t *testing.T) {
	db := seedDB(t)
	doc := EncodeDocument(db)
	tasks := doc.Data[1].Projects[1].Tasks
	if len(tasks) != 2 {
		t.Fatalf("expected 2 root tasks; got %d", len(tasks))
	}
	if len(tasks[0].Children) != 1 || tasks[0].Children[0].Text != "Leche" {
		t.Fatalf("expected Leche nested under Comprar; got %#v", tasks[0].Children)
	}
	if got := tasks[0].Children[0].Children[0].Text; got != "Entera" {
		t.Fatalf("expected Entera at depth 2; got %q", got)
	}

	b, err := json.Marshal(tasks[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"tags":["casa",{"id":1,"text":"urgente"}]`) {
		t.Fatalf("expected mixed tag encoding; got %s", b)
	}
	if !strings.Contains(string(b), `"children":[{"id":2`) {
		t.Fatalf("expected nested child objects; got %s", b)
	}
}

func TestBuildForestRenumbers(t *testing.T) {
	in := []WireTask{{
		Task:     model.Task{ID: 10, Text: "a"},
		Children: []WireTask{{Task: model.Task{ID: 11, Text: "b"}}},
	}}
	next := 100
	f, err := BuildForest(in, func(int) int { next++; return next })
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	child, ok := f.Get(102)
	if !ok || child.ParentID == nil || *child.ParentID != 101 || child.Depth != 1 {
		t.Fatalf("expected child 102 under 101; got %#v", child)
	}
	if child.Priority != model.PriorityMedium || child.Tags == nil {
		t.Fatalf("expected defaults for priority and tags; got %#v", child)
	}
}

func TestParseDocumentRejectsDuplicateIDs(t *testing.T) {
	doc := `{"data": {"1": {"id": 1, "name": "S", "projects": {
		"1": {"id": 1, "name": "A", "tasks": [{"id": 5, "text": "x"}]},
		"2": {"id": 2, "name": "B", "tasks": [{"id": 5, "text": "y"}]}}}}}`
	if _, err := ParseDocument([]byte(doc)); err == nil {
		t.Fatalf("expected duplicate task ids across projects to be rejected")
	}
	if _, err := ParseDocument(nil); err == nil {
		t.Fatalf("expected empty input to be rejected")
	}
}
