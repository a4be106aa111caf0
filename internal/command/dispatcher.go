package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/model"
	"tareas-cli/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tareas_commands_total",
		Help: "Commands applied by the dispatcher, by command and outcome",
	}, []string{"command", "outcome"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tareas_command_duration_seconds",
		Help:    "Time to apply and persist one command",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"command"})
)

// ErrStopped is returned by Dispatch, Snapshot and Replace once Run has returned.
var ErrStopped = errors.New("command dispatcher stopped")

// Saver persists the state and the event log. store.Store implements it.
type Saver interface {
	SaveContext(ctx context.Context, db *store.DB) error
	AppendEvent(ctx context.Context, typ, entityID string, payload any) (model.Event, error)
}

// Executor runs commands. Both Dispatcher and Local implement it.
type Executor interface {
	Dispatch(ctx context.Context, cmd Command) (Outcome, error)
}

// Exec applies cmd and, when the state changed, saves db and appends the event.
func Exec(ctx context.Context, s Saver, db *store.DB, cmd Command, now time.Time) (Outcome, error) {
	out, err := Apply(db, cmd, now)
	if err != nil || !out.Changed {
		return out, err
	}
	if err := s.SaveContext(ctx, db); err != nil {
		return out, fmt.Errorf("save state: %w", err)
	}
	if _, err := s.AppendEvent(ctx, out.Command, out.EntityID, out.Payload); err != nil {
		return out, fmt.Errorf("append event: %w", err)
	}
	return out, nil
}

// Local executes commands synchronously against a state owned by the caller. The CLI uses
// it for one-shot invocations where no other writer runs.
type Local struct {
	Saver Saver
	DB    *store.DB
	Now   func() time.Time
}

func (l Local) Dispatch(ctx context.Context, cmd Command) (Outcome, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	return Exec(ctx, l.Saver, l.DB, cmd, now)
}

// AssistantRunner submits assistant calls as AssistantCall commands.
func AssistantRunner(ex Executor, currentProjectOnly bool) assistant.Runner {
	return assistant.RunnerFunc(func(ctx context.Context, call assistant.Call) (assistant.Report, error) {
		out, err := ex.Dispatch(ctx, AssistantCall{Call: call, CurrentProjectOnly: currentProjectOnly})
		if err != nil {
			return assistant.Report{}, err
		}
		return assistant.Report{Messages: out.Messages, Changed: out.Changed}, nil
	})
}

// Update is sent to subscribers after every changing command and every Replace.
type Update struct {
	Outcome  Outcome
	Revision string
}

type DispatcherOpts struct {
	Saver  Saver
	Logger *slog.Logger
	Now    func() time.Time

	// AfterChange runs on the writer goroutine after each changing command and each
	// Replace. The alert scheduler resyncs its timers here.
	AfterChange func(db *store.DB)
}

type request struct {
	cmd     Command
	read    func(db *store.DB)
	replace *store.DB
	done    chan response
}

type response struct {
	out Outcome
	err error
}

// Dispatcher owns the state and applies commands one at a time on the goroutine running Run.
type Dispatcher struct {
	db     *store.DB
	saver  Saver
	logger *slog.Logger
	now    func() time.Time
	after  func(db *store.DB)

	reqs    chan request
	stopped chan struct{}

	mu      sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

func NewDispatcher(db *store.DB, opts DispatcherOpts) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		db:      db,
		saver:   opts.Saver,
		logger:  logger,
		now:     now,
		after:   opts.AfterChange,
		reqs:    make(chan request),
		stopped: make(chan struct{}),
		subs:    map[int]chan Update{},
	}
}

// Run serves requests until ctx is done. It must be called exactly once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)
	if d.after != nil {
		d.after(d.db)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-d.reqs:
			r.done <- d.handle(ctx, r)
		}
	}
}

func (d *Dispatcher) submit(ctx context.Context, r request) (Outcome, error) {
	r.done = make(chan response, 1)
	select {
	case d.reqs <- r:
	case <-d.stopped:
		return Outcome{}, ErrStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case resp := <-r.done:
		return resp.out, resp.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Dispatch applies cmd on the writer goroutine and waits for the outcome. Persistence
// failures are logged, not returned: the in-memory state stays authoritative and the next
// successful save writes it out.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Outcome, error) {
	if cmd == nil {
		return Outcome{}, errors.New("nil command")
	}
	return d.submit(ctx, request{cmd: cmd})
}

// Snapshot runs fn on the writer goroutine. fn must not keep references into db.
func (d *Dispatcher) Snapshot(ctx context.Context, fn func(db *store.DB)) error {
	if fn == nil {
		return nil
	}
	_, err := d.submit(ctx, request{read: fn})
	return err
}

// Replace swaps in a state loaded from disk, after another process wrote the store.
func (d *Dispatcher) Replace(ctx context.Context, db *store.DB) error {
	if db == nil {
		return errors.New("nil state")
	}
	_, err := d.submit(ctx, request{replace: db})
	return err
}

// Subscribe returns a channel of updates and a cancel func. Slow subscribers miss updates
// rather than block the writer.
func (d *Dispatcher) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
			close(ch)
		})
	}
}

func (d *Dispatcher) publish(u Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, r request) response {
	switch {
	case r.read != nil:
		r.read(d.db)
		return response{}
	case r.replace != nil:
		d.db = r.replace
		d.logger.Info("state reloaded", "revision", d.db.Revision)
		if d.after != nil {
			d.after(d.db)
		}
		out := Outcome{Command: "Reload", Changed: true}
		d.publish(Update{Outcome: out, Revision: d.db.Revision})
		return response{out: out}
	}

	name := r.cmd.Name()
	start := time.Now()
	out, err := Apply(d.db, r.cmd, d.now())
	label := "changed"
	switch {
	case err != nil:
		label = "error"
	case out.Skipped != "":
		label = "skipped"
	case !out.Changed:
		label = "unchanged"
	}
	if err != nil {
		d.logger.Warn("command rejected", "command", name, "err", err)
	} else if out.Changed {
		d.persist(ctx, out)
		if d.after != nil {
			d.after(d.db)
		}
		d.publish(Update{Outcome: out, Revision: d.db.Revision})
	} else if out.Skipped != "" {
		d.logger.Debug("command skipped", "command", name, "reason", out.Skipped)
	}
	commandsTotal.WithLabelValues(name, label).Inc()
	commandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return response{out: out, err: err}
}

func (d *Dispatcher) persist(ctx context.Context, out Outcome) {
	if d.saver == nil {
		return
	}
	if err := d.saver.SaveContext(ctx, d.db); err != nil {
		d.logger.Error("save state failed", "command", out.Command, "err", err)
		return
	}
	if _, err := d.saver.AppendEvent(ctx, out.Command, out.EntityID, out.Payload); err != nil {
		d.logger.Error("append event failed", "command", out.Command, "err", err)
	}
}
