// Package alerts fires task alerts at their due time. The Scheduler keeps one timer per
// active future alert; when a timer fires it submits a TriggerAlert command and, if the
// alert was still active, notifies and posts the webhook.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tareas-cli/internal/command"
	"tareas-cli/internal/model"
	"tareas-cli/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsScheduled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tareas_alerts_scheduled",
		Help: "Alert timers currently pending",
	})

	alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tareas_alerts_fired_total",
		Help: "Alert timers that fired, by result",
	}, []string{"result"})
)

type SchedulerOpts struct {
	Executor  command.Executor
	Notifiers []Notifier
	Webhooks  *WebhookSender
	Logger    *slog.Logger
	Now       func() time.Time
}

type pending struct {
	at    time.Time
	timer *time.Timer
}

type Scheduler struct {
	ex        command.Executor
	notifiers []Notifier
	webhooks  *WebhookSender
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	pending map[int]*pending
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(opts SchedulerOpts) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		ex:        opts.Executor,
		notifiers: opts.Notifiers,
		webhooks:  opts.Webhooks,
		logger:    logger,
		now:       now,
		ctx:       context.Background(),
		pending:   map[int]*pending{},
	}
}

// Run ties fired alerts to ctx and stops every timer when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Sync reschedules timers to match db: one timer per active alert due in the future.
// Timers of deleted, deactivated or past alerts are cancelled and edited dates move their
// timer. It must run where db is safe to read, which for the server is the dispatcher's
// AfterChange hook.
func (s *Scheduler) Sync(db *store.DB) {
	now := s.now()
	want := map[int]time.Time{}
	db.EachProject(func(_ *store.Scenario, p *store.Project) {
		for _, t := range p.Tasks.Flatten() {
			for _, a := range t.Alerts {
				if !a.Active {
					continue
				}
				at, _, ok := model.ParseDue(a.AlertDate, now.Location())
				if !ok || !at.After(now) {
					continue
				}
				want[a.ID] = at
			}
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	for id, p := range s.pending {
		if at, ok := want[id]; !ok || !at.Equal(p.at) {
			p.timer.Stop()
			delete(s.pending, id)
		}
	}
	for id, at := range want {
		if _, ok := s.pending[id]; ok {
			continue
		}
		s.scheduleLocked(id, at, at.Sub(now))
	}
	alertsScheduled.Set(float64(len(s.pending)))
}

func (s *Scheduler) scheduleLocked(id int, at time.Time, delay time.Duration) {
	p := &pending{at: at}
	p.timer = time.AfterFunc(delay, func() { s.fire(id, p) })
	s.pending[id] = p
}

// Cancel drops the timer of one alert, if any.
func (s *Scheduler) Cancel(alertID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[alertID]; ok {
		p.timer.Stop()
		delete(s.pending, alertID)
		alertsScheduled.Set(float64(len(s.pending)))
	}
}

// Pending returns the ids with a pending timer and their due times.
func (s *Scheduler) Pending() map[int]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]time.Time, len(s.pending))
	for id, p := range s.pending {
		out[id] = p.at
	}
	return out
}

// Stop cancels every timer and waits for deliveries already in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
	alertsScheduled.Set(0)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire(id int, p *pending) {
	s.mu.Lock()
	if s.stopped || s.pending[id] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	alertsScheduled.Set(float64(len(s.pending)))
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.ex == nil {
		return
	}
	out, err := s.ex.Dispatch(ctx, command.TriggerAlert{AlertID: id})
	if err != nil {
		alertsFired.WithLabelValues("error").Inc()
		s.logger.Error("trigger alert failed", "alert", id, "err", err)
		return
	}
	if !out.Changed || out.Alert == nil {
		alertsFired.WithLabelValues("inactive").Inc()
		return
	}
	alertsFired.WithLabelValues("fired").Inc()
	s.deliver(ctx, out)
}

func (s *Scheduler) deliver(ctx context.Context, out command.Outcome) {
	a := out.Alert
	n := Notification{
		AlertID:     a.ID,
		Title:       a.Title,
		Message:     a.Message,
		AlertDate:   a.AlertDate,
		TriggeredAt: s.now(),
	}
	if out.Task != nil {
		n.TaskID = out.Task.ID
		n.TaskText = out.Task.Text
	}
	for _, nt := range s.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			s.logger.Warn("alert notification failed", "alert", a.ID, "err", err)
		}
	}
	if a.WebhookURL != nil && *a.WebhookURL != "" && s.webhooks != nil {
		if err := s.webhooks.Send(ctx, *a.WebhookURL, n); err != nil {
			s.logger.Warn("alert webhook failed", "alert", a.ID, "err", err)
		}
	}
}
