package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tareas-cli/internal/command"
	"tareas-cli/internal/format"
	"tareas-cli/internal/store"
	"tareas-cli/internal/tui"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	Workspace  string
	PrettyJSON bool
	Format     string
	LogLevel   string

	// Now is replaced in tests.
	Now func() time.Time
}

func (app *App) now() time.Time {
	if app.Now != nil {
		return app.Now()
	}
	return time.Now()
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "tareas",
		Short:        "Tareas: hierarchical to-do trees (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  tareas

  # Scriptable commands
  tareas tasks add "Comprar" --priority alta
  tareas tasks add "Leche" --parent 1
  tareas tasks list --view today --sort-due

  # Apply wire commands from a file
  tareas apply < commands.json

  # Serve the web view, alerts and the command API
  tareas serve --addr 127.0.0.1:3340
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd, app.LogLevel)
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("TAREAS_DIR", ""), "Path to store dir (overrides workspace resolution; for fixtures/tests)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", envOr("TAREAS_WORKSPACE", ""), "Workspace name (default: 'default')")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TAREAS_FORMAT", "json"), "Output format (json|edn)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("TAREAS_LOG_LEVEL", "warn"), "Log level for stderr (debug|info|warn|error)")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newWorkspaceCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newAlertsCmd(app))
	cmd.AddCommand(newScenariosCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newStateCmd(app))
	cmd.AddCommand(newApplyCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newAssistantCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func setupLogging(cmd *cobra.Command, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
	return nil
}

func runTUI(cmd *cobra.Command, app *App) error {
	db, s, err := loadDB(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	cfg, err := store.LoadConfig()
	if err != nil {
		cfg = &store.GlobalConfig{}
	}
	return tui.Run(cmd.Context(), tui.Config{
		Store:     s,
		DB:        db,
		Workspace: app.Workspace,
		Theme:     cfg.TUI.Theme,
	})
}

// resolveDir picks the store directory:
//  1. --dir
//  2. --workspace
//  3. currentWorkspace from ~/.tareas/config.yaml
//  4. a .tareas/ directory in the working directory or one of its parents
//  5. the "default" workspace
func resolveDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	name := app.Workspace
	if name == "" {
		if cfg, err := store.LoadConfig(); err == nil && cfg.CurrentWorkspace != "" {
			name = cfg.CurrentWorkspace
		}
	}
	if name == "" {
		if wd, err := os.Getwd(); err == nil {
			if dir, ok := store.DiscoverDir(wd); ok {
				app.Dir = dir
				return dir, nil
			}
		}
		name = "default"
	}
	dir, err := store.WorkspaceDir(name)
	if err != nil {
		return "", err
	}
	app.Workspace = name
	app.Dir = dir
	return dir, nil
}

func loadDB(app *App) (*store.DB, store.Store, error) {
	dir, err := resolveDir(app)
	if err != nil {
		return nil, store.Store{}, err
	}
	s := store.Store{Dir: dir}
	db, err := s.Load()
	if err != nil {
		return nil, s, err
	}
	return db, s, nil
}

// run applies one command to the stored state and writes the outcome.
func run(cmd *cobra.Command, app *App, c command.Command) error {
	out, err := runQuiet(cmd, app, c)
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, out)
}

// runQuiet applies c like run but leaves output to the caller. A skipped command (unknown
// id) is an error on the command line.
func runQuiet(cmd *cobra.Command, app *App, c command.Command) (command.Outcome, error) {
	db, s, err := loadDB(app)
	if err != nil {
		return command.Outcome{}, err
	}
	out, err := command.Exec(cmdContext(cmd), s, db, c, app.now())
	if err != nil {
		return out, err
	}
	if out.Skipped != "" {
		return out, skippedError{command: out.Command, reason: out.Skipped}
	}
	return out, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, data any) error {
	return format.WriteData(cmd.OutOrStdout(), data, nil, app.Format, app.PrettyJSON)
}

func writeOutMeta(cmd *cobra.Command, app *App, data any, meta map[string]any) error {
	return format.WriteData(cmd.OutOrStdout(), data, meta, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
