package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"tareas-cli/internal/alerts"
	"tareas-cli/internal/assistant"
	"tareas-cli/internal/command"
	"tareas-cli/internal/store"
	"tareas-cli/internal/web"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr      string
		open      bool
		noWatch   bool
		bell      bool
		keepAlive time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web view, the command API and alert delivery",
		Long: strings.TrimSpace(`
Run the long-lived side of tareas:
- a server-rendered task view, kept live over server-sent events
- POST /api/commands and a /ws websocket accepting wire commands
- the alert scheduler (log notification plus optional webhooks)
- a store watcher that reloads when the CLI changes the workspace

The assistant endpoint is enabled when an API key is configured.
`),
		Example: strings.TrimSpace(`
# Serve the current workspace on localhost
tareas serve

# Serve a specific workspace on every interface
tareas --workspace casa serve --addr :3340
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = cfg.Web.AddrOrDefault()
			}

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := slog.Default()

			// The scheduler dispatches through d and d resyncs the scheduler after every
			// change; sched is assigned before d.Run starts.
			var sched *alerts.Scheduler
			d := command.NewDispatcher(db, command.DispatcherOpts{
				Saver:  s,
				Logger: logger,
				Now:    app.now,
				AfterChange: func(db *store.DB) {
					sched.Sync(db)
				},
			})
			notifiers := []alerts.Notifier{alerts.LogNotifier{Logger: logger}}
			if bell {
				notifiers = append(notifiers, &alerts.WriterNotifier{W: cmd.ErrOrStderr()})
			}
			sched = alerts.NewScheduler(alerts.SchedulerOpts{
				Executor:  d,
				Notifiers: notifiers,
				Webhooks: alerts.NewWebhookSender(alerts.WebhookOpts{
					Timeout:   cfg.Alerts.WebhookTimeoutOrDefault(),
					PerMinute: cfg.Alerts.WebhooksPerMinute,
				}),
				Logger: logger,
				Now:    app.now,
			})

			var chat *assistant.Client
			if cfg.Assistant.APIKey() != "" {
				only := cfg.Assistant.CurrentProjectOnly
				chat, err = assistant.NewClient(assistant.Config{
					APIKey:             cfg.Assistant.APIKey(),
					BaseURL:            cfg.Assistant.BaseURL,
					Model:              cfg.Assistant.ModelOrDefault(),
					MaxTokens:          cfg.Assistant.MaxTokens,
					RequestsPerMinute:  cfg.Assistant.RequestsPerMinute,
					CurrentProjectOnly: only,
					Logger:             logger,
				}, command.AssistantRunner(d, only))
				if err != nil {
					return writeErr(cmd, err)
				}
			}

			srv, err := web.NewServer(web.Config{
				Dispatcher: d,
				Store:      s,
				Workspace:  strings.TrimSpace(app.Workspace),
				Assistant:  chat,
				Logger:     logger,
				Now:        app.now,
				KeepAlive:  keepAlive,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			opened := false
			openErr := ""
			if open {
				if err := openBrowser(url); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}
			_ = writeOut(cmd, app, map[string]any{
				"addr":      actualAddr,
				"url":       url,
				"workspace": strings.TrimSpace(app.Workspace),
				"dir":       s.Dir,
				"assistant": chat != nil,
				"opened":    opened,
				"openError": openErr,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "tareas serving %s (workspace=%s)\n", url, strings.TrimSpace(app.Workspace))

			httpSrv := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return d.Run(gctx) })
			g.Go(func() error { return sched.Run(gctx) })
			if !noWatch {
				g.Go(func() error { return srv.Watch(gctx) })
			}
			g.Go(func() error {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default from config or 127.0.0.1:3340)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the view in your default browser")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload when another process changes the store")
	cmd.Flags().BoolVar(&bell, "bell", true, "Print fired alerts to stderr")
	cmd.Flags().DurationVar(&keepAlive, "keep-alive", 25*time.Second, "Event stream keep-alive interval")
	return cmd
}

func openBrowser(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Run()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Run()
	default:
		return exec.Command("xdg-open", url).Run()
	}
}
