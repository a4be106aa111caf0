package command

import (
	"encoding/json"
	"strings"
	"testing"

	"tareas-cli/internal/assistant"
)

func TestDecodeEnvelope(t *testing.T) {
	cmd, err := Decode([]byte(`{"type":"AddTask","payload":{"parentId":3,"text":"Leche"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	add, ok := cmd.(AddTask)
	if !ok {
		t.Fatalf("expected AddTask; got %T", cmd)
	}
	if add.ParentID == nil || *add.ParentID != 3 || add.Text != "Leche" {
		t.Fatalf("unexpected payload: %#v", add)
	}

	cmd, err = Decode([]byte(`{"type":"SetAllExpanded"}`))
	if err != nil {
		t.Fatalf("Decode without payload: %v", err)
	}
	if sae, ok := cmd.(SetAllExpanded); !ok || sae.Expanded != nil {
		t.Fatalf("expected toggling SetAllExpanded; got %#v", cmd)
	}
}

func TestDecodeFlattenedPayloads(t *testing.T) {
	cmd, err := Decode([]byte(`{"type":"CreateProject","payload":{"scenarioId":2,"name":"Casa","icon":"🏡"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cp := cmd.(CreateProject)
	if cp.ScenarioID != 2 || cp.Input.Name != "Casa" || cp.Input.Icon != "🏡" {
		t.Fatalf("unexpected CreateProject: %#v", cp)
	}

	cmd, err = Decode([]byte(`{"type":"AssistantCall","payload":{"operacion":"obtener","tipo":"tasks","currentProjectOnly":true}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ac := cmd.(AssistantCall)
	if ac.Operation != assistant.OpGet || ac.EntityType != assistant.EntityTasks || !ac.CurrentProjectOnly {
		t.Fatalf("unexpected AssistantCall: %#v", ac)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"missing type": `{"payload":{}}`,
		"unknown type": `{"type":"Explode"}`,
		"bad payload":  `{"type":"DeleteTask","payload":{"id":"x"}}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeAll(t *testing.T) {
	cmds, err := DecodeAll([]byte(" \n{\"type\":\"DeleteTask\",\"payload\":{\"id\":4}}"))
	if err != nil || len(cmds) != 1 {
		t.Fatalf("expected one command; got %v, %v", cmds, err)
	}

	cmds, err = DecodeAll([]byte(`[{"type":"ToggleCompletion","payload":{"id":1}},{"type":"BulkDelete","payload":{"ids":[2,3]}}]`))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(cmds) != 2 || cmds[0].Name() != "ToggleCompletion" || cmds[1].Name() != "BulkDelete" {
		t.Fatalf("unexpected commands: %#v", cmds)
	}

	_, err = DecodeAll([]byte(`[{"type":"ToggleCompletion"},{"type":"Nope"}]`))
	if err == nil || !strings.Contains(err.Error(), "command 1") {
		t.Fatalf("expected error naming the second command; got %v", err)
	}
	if _, err := DecodeAll([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	in := ReorderTask{TaskID: 5, ReferenceID: 2, After: true}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.Type != "ReorderTask" {
		t.Fatalf("expected type ReorderTask; got %q", env.Type)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.(ReorderTask) != in {
		t.Fatalf("expected %#v; got %#v", in, out)
	}
}

func TestNamesCoverDecoders(t *testing.T) {
	names := Names()
	if len(names) != len(decoders) {
		t.Fatalf("expected %d names; got %d", len(decoders), len(names))
	}
	for _, n := range names {
		cmd, err := decoders[n](nil)
		if err != nil {
			t.Fatalf("%s: %v", n, err)
		}
		if cmd.Name() != n {
			t.Fatalf("decoder %s builds %s", n, cmd.Name())
		}
	}
}
