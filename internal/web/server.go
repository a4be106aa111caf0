// Package web serves the task view over HTTP: a server-rendered page kept live with a
// datastar SSE stream, a websocket command channel, and a small JSON API. Every change goes
// through the command dispatcher; handlers only read state inside Dispatcher.Snapshot.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/command"
	"tareas-cli/internal/format"
	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/query"
	"tareas-cli/internal/store"

	"github.com/CAFxX/httpcompression"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxCommandBody = 1 << 20

type Config struct {
	Dispatcher *command.Dispatcher
	Store      store.Store
	Workspace  string

	// Assistant is optional; POST /api/assistant answers 503 without it.
	Assistant *assistant.Client

	Logger *slog.Logger
	Now    func() time.Time

	// KeepAlive is the SSE keep-alive interval (default 25s).
	KeepAlive time.Duration
	// Debounce groups bursts of store file events before a reload check (default 250ms).
	Debounce time.Duration
}

type Server struct {
	cfg      Config
	d        *command.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
	compress func(http.Handler) http.Handler
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("web: nil dispatcher")
	}
	cfg.Workspace = strings.TrimSpace(cfg.Workspace)
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 25 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, fmt.Errorf("web: compression: %w", err)
	}
	return &Server{cfg: cfg, d: cfg.Dispatcher, logger: logger, now: now, compress: compress}, nil
}

// Handler routes every endpoint. Streaming endpoints (/events, /ws) bypass compression.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /{$}", s.compress(http.HandlerFunc(s.handlePage)))
	mux.Handle("GET /api/tasks", s.compress(http.HandlerFunc(s.handleTasks)))
	mux.HandleFunc("POST /api/commands", s.handleCommands)
	mux.HandleFunc("POST /api/assistant", s.handleAssistant)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := pageTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// render builds and renders a template from a state snapshot.
func (s *Server) render(r *http.Request, name string, p viewParams) (html, revision string, err error) {
	serr := s.d.Snapshot(r.Context(), func(db *store.DB) {
		vm := buildPage(db, s.cfg.Workspace, p, s.now())
		revision = vm.Revision
		html, err = s.renderTemplate(name, vm)
	})
	if serr != nil {
		return "", "", serr
	}
	return html, revision, err
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	html, _, err := s.render(r, "page", parseViewParams(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

// apiTask is a task with nested children and rendered badges.
type apiTask struct {
	model.Task
	Badges   []query.Badge `json:"badges"`
	Subtasks []apiTask     `json:"subtasks"`
}

func apiTasks(ns []query.Node, now time.Time) []apiTask {
	out := make([]apiTask, 0, len(ns))
	for _, n := range ns {
		out = append(out, apiTask{
			Task:     *n.Task,
			Badges:   query.TaskBadges(n.Task, now),
			Subtasks: apiTasks(n.Children, now),
		})
	}
	return out
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	p := parseViewParams(r.URL.Query())
	var (
		body []byte
		err  error
	)
	// Encoded inside the snapshot: the copies still share tag and alert slices with state.
	serr := s.d.Snapshot(r.Context(), func(db *store.DB) {
		sc, proj, ok := db.Current()
		if !ok {
			err = errors.New("no current project")
			return
		}
		now := s.now()
		projection := query.Project(proj.Tasks, p.options(now))
		var buf strings.Builder
		err = format.WriteData(&buf, apiTasks(projection.Nodes, now), map[string]any{
			"scenario":     sc.ID,
			"project":      proj.ID,
			"view":         string(p.View),
			"hierarchical": projection.Hierarchical,
			"stats":        query.Stats(proj.Tasks),
			"revision":     db.Revision,
		}, "json", false)
		body = []byte(buf.String())
	})
	if serr != nil {
		err = serr
	}
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	cmds, err := command.DecodeAll(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	outs := make([]command.Outcome, 0, len(cmds))
	for i, c := range cmds {
		out, err := s.d.Dispatch(r.Context(), c)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusFor(err))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":   fmt.Sprintf("command %d (%s): %v", i, c.Name(), err),
				"applied": outs,
			})
			return
		}
		outs = append(outs, out)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = format.WriteData(w, outs, map[string]any{"applied": len(outs)}, "json", false)
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Assistant == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("assistant not configured"))
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCommandBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	reply, err := s.cfg.Assistant.Ask(r.Context(), req.Message)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = format.WriteData(w, map[string]any{"reply": reply}, nil, "json", false)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrStopped):
		return http.StatusServiceUnavailable
	case isClientError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func isClientError(err error) bool {
	var (
		verr mutate.ValidationError
		cerr mutate.CycleError
	)
	return errors.As(err, &verr) || errors.As(err, &cerr) || mutate.IsNotFound(err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}
