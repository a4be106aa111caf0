package mutate

import (
	"strings"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
)

// AddTag attaches a tag to a task of the current project. Labeled tags take an id from the
// tag counter. A tag whose normalized text is already present is ignored.
func AddTag(db *store.DB, taskID int, text string, labeled bool) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	t, err := getTask(f, taskID)
	if err != nil {
		return Result{}, err
	}
	text = model.NormalizeTag(text)
	if text == "" {
		return Result{}, ValidationError{Field: "tag", Msg: "la etiqueta no puede estar vacía"}
	}
	if model.HasTag(t.Tags, text) {
		return Result{Task: t}, nil
	}
	tag := model.PlainTag(text)
	if labeled {
		tag = model.LabeledTag(store.NextID(db, model.KindTag), text)
	}
	t.Tags = append(t.Tags, tag)
	payload := map[string]any{"id": t.ID, "tag": text}
	if tag.Labeled() {
		payload["tagId"] = tag.ID
	}
	return Result{Task: t, Changed: true, EventPayload: payload}, nil
}

// RemoveTag drops every tag of the task whose normalized text matches.
func RemoveTag(db *store.DB, taskID int, text string) (Result, error) {
	f, err := currentForest(db)
	if err != nil {
		return Result{}, err
	}
	t, err := getTask(f, taskID)
	if err != nil {
		return Result{}, err
	}
	key := model.NormalizeTag(text)
	kept := make([]model.Tag, 0, len(t.Tags))
	for _, tag := range t.Tags {
		if tag.Key() != key {
			kept = append(kept, tag)
		}
	}
	if len(kept) == len(t.Tags) {
		return Result{Task: t}, nil
	}
	t.Tags = kept
	return Result{Task: t, Changed: true, EventPayload: map[string]any{"id": t.ID, "removedTag": strings.TrimSpace(text)}}, nil
}
