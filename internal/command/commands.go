// Package command is the single entry point for state changes. Front ends turn their input
// into a Command, Apply runs it against the state, and the Dispatcher serializes Apply,
// persistence and the event log behind one goroutine.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/registry"
)

// Command is one state change request. Name is also the wire type and the event type.
type Command interface {
	Name() string
}

type AddTask struct {
	ParentID *int   `json:"parentId,omitempty"`
	Text     string `json:"text"`
}

type DuplicateTask struct {
	ID int `json:"id"`
}

type DeleteTask struct {
	ID int `json:"id"`
}

type ToggleCompletion struct {
	ID int `json:"id"`
}

type ToggleExpansion struct {
	ID int `json:"id"`
}

type ConvertToSubtask struct {
	TaskID      int `json:"taskId"`
	NewParentID int `json:"newParentId"`
}

// ReorderTask places TaskID before ReferenceID, or after it when After is set.
type ReorderTask struct {
	TaskID      int  `json:"taskId"`
	ReferenceID int  `json:"referenceId"`
	After       bool `json:"after,omitempty"`
}

type EditTask struct {
	ID    int              `json:"id"`
	Patch mutate.TaskPatch `json:"patch"`
}

// SetAllExpanded expands or collapses every task with subtasks. A nil Expanded toggles the
// collapse-all flag.
type SetAllExpanded struct {
	Expanded *bool `json:"expanded,omitempty"`
}

type BulkComplete struct {
	IDs []int `json:"ids"`
}

type BulkDuplicate struct {
	IDs []int `json:"ids"`
}

type BulkDelete struct {
	IDs []int `json:"ids"`
}

type AddTag struct {
	TaskID  int    `json:"taskId"`
	Text    string `json:"text"`
	Labeled bool   `json:"labeled,omitempty"`
}

type RemoveTag struct {
	TaskID int    `json:"taskId"`
	Text   string `json:"text"`
}

type AddAlert struct {
	TaskID int `json:"taskId"`
	mutate.AlertInput
}

type EditAlertDate struct {
	AlertID   int    `json:"alertId"`
	AlertDate string `json:"alertDate"`
}

type ToggleAlert struct {
	AlertID int `json:"alertId"`
}

type DuplicateAlert struct {
	AlertID int `json:"alertId"`
}

type DeleteAlert struct {
	AlertID int `json:"alertId"`
}

// TriggerAlert deactivates a due alert. It is submitted by the alert scheduler.
type TriggerAlert struct {
	AlertID int `json:"alertId"`
}

type CreateScenario struct {
	registry.Input
}

// CreateProject adds a project to ScenarioID, or to the current scenario when it is 0.
type CreateProject struct {
	ScenarioID int `json:"scenarioId,omitempty"`
	registry.Input
}

type UpdateScenario struct {
	ID int `json:"id"`
	registry.Patch
}

type UpdateProject struct {
	ScenarioID int `json:"scenarioId,omitempty"`
	ID         int `json:"id"`
	registry.Patch
}

type DeleteScenario struct {
	ID int `json:"id"`
}

type DeleteProject struct {
	ScenarioID int `json:"scenarioId,omitempty"`
	ID         int `json:"id"`
}

// Select changes the current scenario and project. ProjectID 0 picks the scenario's first
// project.
type Select struct {
	ScenarioID int `json:"scenarioId"`
	ProjectID  int `json:"projectId,omitempty"`
}

// Import adds a scenario or project from an export file. Kind is "scenario" or "project".
type Import struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// AssistantCall runs one assistant function call as a single command.
type AssistantCall struct {
	assistant.Call
	CurrentProjectOnly bool `json:"currentProjectOnly,omitempty"`
}

func (AddTask) Name() string          { return "AddTask" }
func (DuplicateTask) Name() string    { return "DuplicateTask" }
func (DeleteTask) Name() string       { return "DeleteTask" }
func (ToggleCompletion) Name() string { return "ToggleCompletion" }
func (ToggleExpansion) Name() string  { return "ToggleExpansion" }
func (ConvertToSubtask) Name() string { return "ConvertToSubtask" }
func (ReorderTask) Name() string      { return "ReorderTask" }
func (EditTask) Name() string         { return "EditTask" }
func (SetAllExpanded) Name() string   { return "SetAllExpanded" }
func (BulkComplete) Name() string     { return "BulkComplete" }
func (BulkDuplicate) Name() string    { return "BulkDuplicate" }
func (BulkDelete) Name() string       { return "BulkDelete" }
func (AddTag) Name() string           { return "AddTag" }
func (RemoveTag) Name() string        { return "RemoveTag" }
func (AddAlert) Name() string         { return "AddAlert" }
func (EditAlertDate) Name() string    { return "EditAlertDate" }
func (ToggleAlert) Name() string      { return "ToggleAlert" }
func (DuplicateAlert) Name() string   { return "DuplicateAlert" }
func (DeleteAlert) Name() string      { return "DeleteAlert" }
func (TriggerAlert) Name() string     { return "TriggerAlert" }
func (CreateScenario) Name() string   { return "CreateScenario" }
func (CreateProject) Name() string    { return "CreateProject" }
func (UpdateScenario) Name() string   { return "UpdateScenario" }
func (UpdateProject) Name() string    { return "UpdateProject" }
func (DeleteScenario) Name() string   { return "DeleteScenario" }
func (DeleteProject) Name() string    { return "DeleteProject" }
func (Select) Name() string           { return "Select" }
func (Import) Name() string           { return "Import" }
func (AssistantCall) Name() string    { return "AssistantCall" }

var decoders = map[string]func(json.RawMessage) (Command, error){
	"AddTask":          decodeAs[AddTask],
	"DuplicateTask":    decodeAs[DuplicateTask],
	"DeleteTask":       decodeAs[DeleteTask],
	"ToggleCompletion": decodeAs[ToggleCompletion],
	"ToggleExpansion":  decodeAs[ToggleExpansion],
	"ConvertToSubtask": decodeAs[ConvertToSubtask],
	"ReorderTask":      decodeAs[ReorderTask],
	"EditTask":         decodeAs[EditTask],
	"SetAllExpanded":   decodeAs[SetAllExpanded],
	"BulkComplete":     decodeAs[BulkComplete],
	"BulkDuplicate":    decodeAs[BulkDuplicate],
	"BulkDelete":       decodeAs[BulkDelete],
	"AddTag":           decodeAs[AddTag],
	"RemoveTag":        decodeAs[RemoveTag],
	"AddAlert":         decodeAs[AddAlert],
	"EditAlertDate":    decodeAs[EditAlertDate],
	"ToggleAlert":      decodeAs[ToggleAlert],
	"DuplicateAlert":   decodeAs[DuplicateAlert],
	"DeleteAlert":      decodeAs[DeleteAlert],
	"TriggerAlert":     decodeAs[TriggerAlert],
	"CreateScenario":   decodeAs[CreateScenario],
	"CreateProject":    decodeAs[CreateProject],
	"UpdateScenario":   decodeAs[UpdateScenario],
	"UpdateProject":    decodeAs[UpdateProject],
	"DeleteScenario":   decodeAs[DeleteScenario],
	"DeleteProject":    decodeAs[DeleteProject],
	"Select":           decodeAs[Select],
	"Import":           decodeAs[Import],
	"AssistantCall":    decodeAs[AssistantCall],
}

func decodeAs[T Command](raw json.RawMessage) (Command, error) {
	var c T
	if len(raw) == 0 || string(raw) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Names lists every command type accepted by Decode, sorted.
func Names() []string {
	out := make([]string, 0, len(decoders))
	for name := range decoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Envelope is the wire form of a command.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses one {"type": ..., "payload": ...} envelope.
func Decode(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid command envelope: %w", err)
	}
	return env.Command()
}

// Command resolves the envelope into its typed command.
func (e Envelope) Command() (Command, error) {
	typ := strings.TrimSpace(e.Type)
	if typ == "" {
		return nil, errors.New("command: missing type")
	}
	dec, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", typ)
	}
	cmd, err := dec(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s payload: %w", typ, err)
	}
	return cmd, nil
}

// DecodeAll accepts a single envelope or a JSON array of envelopes.
func DecodeAll(raw []byte) ([]Command, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("no commands")
	}
	if trimmed[0] != '[' {
		cmd, err := Decode(trimmed)
		if err != nil {
			return nil, err
		}
		return []Command{cmd}, nil
	}
	var envs []Envelope
	if err := json.Unmarshal(trimmed, &envs); err != nil {
		return nil, fmt.Errorf("invalid command list: %w", err)
	}
	out := make([]Command, 0, len(envs))
	for i, env := range envs {
		cmd, err := env.Command()
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

// Encode produces the wire envelope of cmd.
func Encode(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: cmd.Name(), Payload: payload})
}
