package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Tag is either plain text or a labeled record with its own id.
// Older state documents stored bare strings; newer ones store {id, text}.
// Both forms are kept as-is when re-encoded.
type Tag struct {
	ID   int
	Text string
}

func PlainTag(text string) Tag { return Tag{Text: text} }

func LabeledTag(id int, text string) Tag { return Tag{ID: id, Text: text} }

// Labeled reports whether the tag carries an id.
func (t Tag) Labeled() bool { return t.ID > 0 }

// Key is the normalized text used for every comparison and display of a tag.
func (t Tag) Key() string { return NormalizeTag(t.Text) }

func NormalizeTag(s string) string {
	return strings.TrimSpace(s)
}

// HasTag reports whether tags contains one whose normalized text equals text.
func HasTag(tags []Tag, text string) bool {
	key := NormalizeTag(text)
	if key == "" {
		return false
	}
	for _, t := range tags {
		if t.Key() == key {
			return true
		}
	}
	return false
}

type labeledTagJSON struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if t.Labeled() {
		return json.Marshal(labeledTagJSON{ID: t.ID, Text: t.Text})
	}
	return json.Marshal(t.Text)
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty tag")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Tag{Text: s}
		return nil
	case '{':
		var v labeledTagJSON
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = Tag{ID: v.ID, Text: v.Text}
		return nil
	}
	return errors.New("tag must be a string or an {id, text} object")
}
