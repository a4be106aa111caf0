package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/model"
	"tareas-cli/internal/store"
)

type fakeSaver struct {
	mu      sync.Mutex
	saves   int
	events  []model.Event
	saveErr error
}

func (f *fakeSaver) SaveContext(_ context.Context, db *store.DB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	db.Revision = "rev"
	return nil
}

func (f *fakeSaver) AppendEvent(_ context.Context, typ, entityID string, payload any) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := model.Event{Type: typ, EntityID: entityID, Payload: payload}
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeSaver) counts() (int, []model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves, append([]model.Event(nil), f.events...)
}

func startDispatcher(t *testing.T, db *store.DB, opts DispatcherOpts) *Dispatcher {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return now }
	}
	d := NewDispatcher(db, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func TestDispatcherPersistsChanges(t *testing.T) {
	saver := &fakeSaver{}
	d := startDispatcher(t, store.NewDB(), DispatcherOpts{Saver: saver})
	ctx := context.Background()

	out, err := d.Dispatch(ctx, AddTask{Text: "Comprar"})
	if err != nil || !out.Changed {
		t.Fatalf("expected change; got %#v, %v", out, err)
	}
	if _, err := d.Dispatch(ctx, DeleteTask{ID: 99}); err != nil {
		t.Fatalf("expected skipped command to succeed; got %v", err)
	}
	if _, err := d.Dispatch(ctx, AddTask{Text: " "}); err == nil {
		t.Fatalf("expected validation error")
	}

	saves, events := saver.counts()
	if saves != 1 || len(events) != 1 {
		t.Fatalf("expected one save and one event; got %d saves, %d events", saves, len(events))
	}
	if events[0].Type != "AddTask" || events[0].EntityID != "task-1" {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestDispatcherKeepsStateWhenSaveFails(t *testing.T) {
	saver := &fakeSaver{saveErr: errors.New("disk full")}
	d := startDispatcher(t, store.NewDB(), DispatcherOpts{Saver: saver})
	ctx := context.Background()

	if _, err := d.Dispatch(ctx, AddTask{Text: "A"}); err != nil {
		t.Fatalf("expected save failure to be logged, not returned; got %v", err)
	}
	var n int
	if err := d.Snapshot(ctx, func(db *store.DB) { n = db.CurrentForest().Len() }); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected in-memory state to keep the task; got %d tasks", n)
	}
	if _, events := saver.counts(); len(events) != 0 {
		t.Fatalf("expected no event after a failed save; got %d", len(events))
	}
}

func TestDispatcherNotifiesSubscribers(t *testing.T) {
	var syncs int
	d := startDispatcher(t, store.NewDB(), DispatcherOpts{
		Saver:       &fakeSaver{},
		AfterChange: func(*store.DB) { syncs++ },
	})
	ctx := context.Background()
	updates, cancel := d.Subscribe()
	defer cancel()

	if _, err := d.Dispatch(ctx, AddTask{Text: "A"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	select {
	case u := <-updates:
		if u.Outcome.Command != "AddTask" || u.Revision != "rev" {
			t.Fatalf("unexpected update: %#v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an update")
	}

	// Unchanged commands are not broadcast.
	if _, err := d.Dispatch(ctx, ToggleExpansion{ID: 1}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	select {
	case u := <-updates:
		t.Fatalf("expected no update for an unchanged command; got %#v", u)
	default:
	}

	fresh := store.NewDB()
	fresh.Revision = "other"
	if err := d.Replace(ctx, fresh); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	u := <-updates
	if u.Outcome.Command != "Reload" || u.Revision != "other" {
		t.Fatalf("unexpected reload update: %#v", u)
	}

	var got int
	_ = d.Snapshot(ctx, func(*store.DB) { got = syncs })
	// Run start, the add, the reload.
	if got != 3 {
		t.Fatalf("expected 3 after-change hooks; got %d", got)
	}
}

func TestDispatcherStops(t *testing.T) {
	d := NewDispatcher(store.NewDB(), DispatcherOpts{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), AddTask{Text: "A"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped; got %v", err)
	}
}

func TestAssistantRunnerUsesExecutor(t *testing.T) {
	saver := &fakeSaver{}
	db := store.NewDB()
	ex := Local{Saver: saver, DB: db, Now: func() time.Time { return now }}
	runner := AssistantRunner(ex, true)

	rep, err := runner.RunCall(context.Background(), assistant.Call{
		Operation:  assistant.OpAdd,
		EntityType: assistant.EntityTasks,
		Items:      []assistant.Item{{Title: "Regar"}},
	})
	if err != nil {
		t.Fatalf("RunCall: %v", err)
	}
	if !rep.Changed || len(rep.Messages) != 1 {
		t.Fatalf("unexpected report: %#v", rep)
	}
	saves, events := saver.counts()
	if saves != 1 || len(events) != 1 || events[0].Type != "AssistantCall" {
		t.Fatalf("expected one persisted AssistantCall; got %d saves, %#v", saves, events)
	}
	if db.CurrentForest().Len() != 1 {
		t.Fatalf("expected the task in the local state")
	}
}
