package mutate

import (
	"errors"
	"strings"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// AlertInput is the user-provided part of a new alert.
type AlertInput struct {
	Title      string `json:"title" validate:"required"`
	Message    string `json:"message" validate:"required"`
	AlertDate  string `json:"alertDate" validate:"required"`
	WebhookURL string `json:"webhookUrl,omitempty" validate:"omitempty,url"`
}

func (in AlertInput) normalized() AlertInput {
	return AlertInput{
		Title:      strings.TrimSpace(in.Title),
		Message:    strings.TrimSpace(in.Message),
		AlertDate:  strings.TrimSpace(in.AlertDate),
		WebhookURL: strings.TrimSpace(in.WebhookURL),
	}
}

// FindAlert locates an alert on any task of any project.
func FindAlert(db *store.DB, alertID int) (*model.Task, *model.Alert, bool) {
	var (
		task  *model.Task
		found *model.Alert
	)
	db.EachProject(func(_ *store.Scenario, p *store.Project) {
		if found != nil {
			return
		}
		for _, t := range p.Tasks.Flatten() {
			for i := range t.Alerts {
				if t.Alerts[i].ID == alertID {
					task, found = t, &t.Alerts[i]
					return
				}
			}
		}
	})
	return task, found, found != nil
}

func getAlert(db *store.DB, alertID int) (*model.Task, *model.Alert, error) {
	t, a, ok := FindAlert(db, alertID)
	if !ok {
		return nil, nil, NotFoundError{Kind: "alert", ID: alertID}
	}
	return t, a, nil
}

func requireFuture(field, date string, now time.Time) error {
	at, _, ok := model.ParseDue(date, now.Location())
	if !ok {
		return ValidationError{Field: field, Msg: "fecha inválida"}
	}
	if !at.After(now) {
		return ValidationError{Field: field, Msg: "La fecha de la alerta debe ser en el futuro"}
	}
	return nil
}

func alertResult(t *model.Task, a *model.Alert, payload map[string]any) Result {
	cp := *a
	payload["alertId"] = a.ID
	payload["taskId"] = t.ID
	return Result{Task: t, Alert: &cp, Changed: true, EventPayload: payload}
}

// AddAlert attaches an active alert to a task. Title, message and date are required and the
// date must lie in the future.
func AddAlert(db *store.DB, taskID int, in AlertInput, now time.Time) (Result, error) {
	t, _, ok := db.FindTask(taskID)
	if !ok {
		return Result{}, NotFoundError{Kind: "task", ID: taskID}
	}
	in = in.normalized()
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "url" {
			return Result{}, ValidationError{Field: "webhookUrl", Msg: "URL de webhook inválida"}
		}
		return Result{}, ValidationError{Field: "alert", Msg: "Título, mensaje y fecha son requeridos para la alerta"}
	}
	if err := requireFuture("alertDate", in.AlertDate, now); err != nil {
		return Result{}, err
	}
	a := model.Alert{
		ID:        store.NextID(db, model.KindAlert),
		Title:     in.Title,
		Message:   in.Message,
		AlertDate: in.AlertDate,
		Active:    true,
		Created:   now.UTC(),
	}
	if in.WebhookURL != "" {
		hook := in.WebhookURL
		a.WebhookURL = &hook
	}
	t.Alerts = append(t.Alerts, a)
	return alertResult(t, &t.Alerts[len(t.Alerts)-1], map[string]any{"alertDate": a.AlertDate}), nil
}

// EditAlertDate moves an alert to a new future date.
func EditAlertDate(db *store.DB, alertID int, date string, now time.Time) (Result, error) {
	t, a, err := getAlert(db, alertID)
	if err != nil {
		return Result{}, err
	}
	date = strings.TrimSpace(date)
	if err := requireFuture("alertDate", date, now); err != nil {
		return Result{}, err
	}
	if a.AlertDate == date {
		cp := *a
		return Result{Task: t, Alert: &cp}, nil
	}
	a.AlertDate = date
	return alertResult(t, a, map[string]any{"alertDate": date}), nil
}

func ToggleAlert(db *store.DB, alertID int) (Result, error) {
	t, a, err := getAlert(db, alertID)
	if err != nil {
		return Result{}, err
	}
	a.Active = !a.Active
	return alertResult(t, a, map[string]any{"active": a.Active}), nil
}

// DuplicateAlert copies an alert onto the same task, one hour later, active.
func DuplicateAlert(db *store.DB, alertID int, now time.Time) (Result, error) {
	t, a, err := getAlert(db, alertID)
	if err != nil {
		return Result{}, err
	}
	at, _, ok := model.ParseDue(a.AlertDate, now.Location())
	if !ok {
		return Result{}, ValidationError{Field: "alertDate", Msg: "fecha inválida"}
	}
	dup := model.Alert{
		ID:        store.NextID(db, model.KindAlert),
		Title:     a.Title + " (Copia)",
		Message:   a.Message,
		AlertDate: at.Add(time.Hour).Format(model.DateTimeLayout),
		Active:    true,
		Created:   now.UTC(),
	}
	if a.WebhookURL != nil {
		hook := *a.WebhookURL
		dup.WebhookURL = &hook
	}
	sourceID := a.ID
	t.Alerts = append(t.Alerts, dup)
	return alertResult(t, &t.Alerts[len(t.Alerts)-1], map[string]any{"sourceId": sourceID, "alertDate": dup.AlertDate}), nil
}

func DeleteAlert(db *store.DB, alertID int) (Result, error) {
	t, a, err := getAlert(db, alertID)
	if err != nil {
		return Result{}, err
	}
	removed := *a
	kept := make([]model.Alert, 0, len(t.Alerts)-1)
	for _, x := range t.Alerts {
		if x.ID != alertID {
			kept = append(kept, x)
		}
	}
	t.Alerts = kept
	return Result{
		Task:         t,
		Alert:        &removed,
		Changed:      true,
		EventPayload: map[string]any{"alertId": alertID, "taskId": t.ID},
	}, nil
}

// TriggerAlert marks a fired alert inactive. An alert that was deactivated in the meantime
// does not fire: Changed is false and the caller must not notify.
func TriggerAlert(db *store.DB, alertID int) (Result, error) {
	t, a, err := getAlert(db, alertID)
	if err != nil {
		return Result{}, err
	}
	if !a.Active {
		cp := *a
		return Result{Task: t, Alert: &cp}, nil
	}
	a.Active = false
	return alertResult(t, a, map[string]any{"title": a.Title}), nil
}
