package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Notification is what a fired alert tells the user.
type Notification struct {
	AlertID     int
	TaskID      int
	TaskText    string
	Title       string
	Message     string
	AlertDate   string
	TriggeredAt time.Time
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier records fired alerts in the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("alert fired", "alert", n.AlertID, "task", n.TaskID, "title", n.Title, "alertDate", n.AlertDate)
	return nil
}

// WriterNotifier prints "🔔 title: message" lines, the terminal counterpart of a desktop
// notification.
type WriterNotifier struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *WriterNotifier) Notify(_ context.Context, n Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	line := fmt.Sprintf("🔔 %s: %s", n.Title, n.Message)
	if n.TaskText != "" {
		line += fmt.Sprintf(" (tarea %d: %s)", n.TaskID, n.TaskText)
	}
	_, err := fmt.Fprintln(w.W, line)
	return err
}
