// Package assistant turns chat-model function calls into task tree operations. Execute runs
// one validated call against the state; Client drives the OpenAI conversation and hands each
// call to a Runner, which in the server is the command dispatcher.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const FunctionName = "manipular_datos"

type Operation string

const (
	OpGet             Operation = "obtener"
	OpAdd             Operation = "agregar"
	OpEdit            Operation = "editar"
	OpDelete          Operation = "eliminar"
	OpMarkDone        Operation = "marcar_completada"
	OpMarkPending     Operation = "marcar_pendiente"
	OpCreateStructure Operation = "crear_estructura_completa"
)

type EntityType string

const (
	EntityTasks     EntityType = "tasks"
	EntityProjects  EntityType = "projects"
	EntityScenarios EntityType = "scenarios"
	EntityStructure EntityType = "estructura_completa"
)

// Call is the argument object of one manipular_datos function call.
type Call struct {
	Operation  Operation  `json:"operacion" validate:"required,oneof=obtener agregar editar eliminar marcar_completada marcar_pendiente crear_estructura_completa"`
	EntityType EntityType `json:"tipo" validate:"required,oneof=tasks projects scenarios estructura_completa"`
	Topic      string     `json:"tema,omitempty"`
	Items      []Item     `json:"datos,omitempty" validate:"dive"`
}

// Item is one element of Call.Items. Which fields matter depends on the operation; Kind is
// only read by crear_estructura_completa.
type Item struct {
	Kind        string   `json:"tipo,omitempty" validate:"omitempty,oneof=escenario proyecto tarea"`
	ID          int      `json:"id,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Priority    string   `json:"priority,omitempty" validate:"omitempty,oneof=alta media baja"`
	DueDate     *string  `json:"dueDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Completed   *bool    `json:"completed,omitempty"`
	ParentID    *int     `json:"parentId,omitempty"`
	ScenarioID  int      `json:"scenarioId,omitempty"`
	ProjectID   int      `json:"projectId,omitempty"`
	Repeat      string   `json:"repeat,omitempty" validate:"omitempty,oneof=daily weekly monthly yearly"`
	RepeatCount *int     `json:"repeatCount,omitempty" validate:"omitempty,min=1"`
	Subtasks    []Item   `json:"subtasks,omitempty" validate:"dive"`
}

var validate = validator.New()

// Validate reports the first problem with the call in a form the model can act on.
func (c Call) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: valor inválido %q (%s)", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ParseCall decodes and validates function call arguments.
func ParseCall(arguments string) (Call, error) {
	var c Call
	if err := json.Unmarshal([]byte(arguments), &c); err != nil {
		return Call{}, fmt.Errorf("argumentos inválidos: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Call{}, err
	}
	return c, nil
}
