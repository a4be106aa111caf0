package mutate

import (
	"errors"
	"testing"
	"time"

	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
)

func TestAlertLifecycle(t *testing.T) {
	db := store.NewDB()
	a := mustAdd(t, db, nil, "A")
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.Local)

	_, err := AddAlert(db, a, AlertInput{Title: "t", Message: "", AlertDate: "2030-01-02T10:00"}, now)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for missing message; got %v", err)
	}
	if _, err := AddAlert(db, a, AlertInput{Title: "t", Message: "m", AlertDate: "2030-01-01T11:00"}, now); err == nil {
		t.Fatalf("expected past date to be rejected")
	}
	if _, err := AddAlert(db, a, AlertInput{Title: "t", Message: "m", AlertDate: "2030-01-02T10:00", WebhookURL: "not a url"}, now); err == nil {
		t.Fatalf("expected invalid webhook url to be rejected")
	}

	res, err := AddAlert(db, a, AlertInput{Title: " Llamar ", Message: "m", AlertDate: "2030-01-02T10:00", WebhookURL: "https://example.test/h"}, now)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	al := res.Alert
	if al.ID != 1 || al.Title != "Llamar" || !al.Active || al.WebhookURL == nil {
		t.Fatalf("unexpected alert: %#v", al)
	}

	dup, err := DuplicateAlert(db, al.ID, now)
	if err != nil {
		t.Fatalf("DuplicateAlert: %v", err)
	}
	if dup.Alert.ID != 2 || dup.Alert.Title != "Llamar (Copia)" || dup.Alert.AlertDate != "2030-01-02T11:00" || !dup.Alert.Active {
		t.Fatalf("unexpected duplicate: %#v", dup.Alert)
	}

	if _, err := EditAlertDate(db, al.ID, "2029-12-31T00:00", now); err == nil {
		t.Fatalf("expected past edit to be rejected")
	}
	ed, err := EditAlertDate(db, al.ID, "2030-01-03T08:00", now)
	if err != nil || ed.Alert.AlertDate != "2030-01-03T08:00" {
		t.Fatalf("EditAlertDate: %#v %v", ed.Alert, err)
	}

	tog, err := ToggleAlert(db, al.ID)
	if err != nil || tog.Alert.Active {
		t.Fatalf("expected alert deactivated; got %#v %v", tog.Alert, err)
	}
	fired, err := TriggerAlert(db, al.ID)
	if err != nil || fired.Changed {
		t.Fatalf("expected inactive alert not to fire; got changed=%v err=%v", fired.Changed, err)
	}
	fired, err = TriggerAlert(db, dup.Alert.ID)
	if err != nil || !fired.Changed || fired.Alert.Active {
		t.Fatalf("expected active alert to fire once; got %#v %v", fired.Alert, err)
	}

	if _, err := DeleteAlert(db, al.ID); err != nil {
		t.Fatalf("DeleteAlert: %v", err)
	}
	task, _ := db.CurrentForest().Get(a)
	if len(task.Alerts) != 1 || task.Alerts[0].ID != dup.Alert.ID {
		t.Fatalf("expected only the duplicate left; got %#v", task.Alerts)
	}
	if _, err := ToggleAlert(db, al.ID); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
}

func TestFindAlertAcrossScenarios(t *testing.T) {
	db := store.NewDB()
	sc := store.NewDefaultScenario()
	sc.ID = store.NextID(db, model.KindScenario)
	db.Scenarios = append(db.Scenarios, sc)
	db.CurrentScenarioID = sc.ID
	a := mustAdd(t, db, nil, "remota")
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.Local)
	res, err := AddAlert(db, a, AlertInput{Title: "t", Message: "m", AlertDate: "2030-02-01"}, now)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	db.CurrentScenarioID = 1

	task, al, ok := FindAlert(db, res.Alert.ID)
	if !ok || task.ID != a || al.Title != "t" {
		t.Fatalf("expected alert on task %d; got ok=%v", a, ok)
	}
}
