package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Envelope wraps every CLI result. Meta carries hints such as counts or the selection a
// listing was taken from; it is omitted when empty.
type Envelope struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Format names an output encoding.
type Format string

const (
	JSON Format = "json"
	EDN  Format = "edn"
)

// Parse accepts "", "json" and "edn" in any case.
func Parse(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "edn":
		return EDN, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// Write writes v in the requested format.
//
// Supported formats:
// - json (default)
// - edn
func Write(w io.Writer, v any, format string, pretty bool) error {
	f, err := Parse(format)
	if err != nil {
		return err
	}
	if f == EDN {
		return WriteEDN(w, v, pretty)
	}
	return WriteJSON(w, v, pretty)
}

// WriteData writes {"data": data, "meta": meta}.
func WriteData(w io.Writer, data any, meta map[string]any, format string, pretty bool) error {
	return Write(w, Envelope{Data: data, Meta: meta}, format, pretty)
}

// WriteJSON writes strict JSON followed by a newline.
//
// Output stays strict JSON; hints about fetching more belong in `meta`.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
