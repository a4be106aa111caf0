package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tareas-cli/internal/command"
	"tareas-cli/internal/store"

	"github.com/spf13/cobra"
)

func newStateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Whole-state document commands",
	}
	cmd.AddCommand(newStateExportCmd(app))
	cmd.AddCommand(newStateImportCmd(app))
	return cmd
}

func newStateExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole state as a JSON document (stdout by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := store.MarshalDocument(db, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			b = append(b, '\n')
			if out == "" || out == "-" {
				_, err := cmd.OutOrStdout().Write(b)
				return err
			}
			if err := store.WriteFileAtomic(out, b); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"path": out})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	return cmd
}

func newStateImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the whole state with a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			db, err := store.ParseDocument(b)
			if err != nil {
				return writeErr(cmd, err)
			}
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			s := store.Store{Dir: dir}
			ctx := cmdContext(cmd)
			if err := s.SaveContext(ctx, db); err != nil {
				return writeErr(cmd, err)
			}
			payload := map[string]any{"scenarios": len(db.Scenarios)}
			if _, err := s.AppendEvent(ctx, "ReplaceState", "", payload); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, payload)
		},
	}
}

func newApplyCmd(app *App) *cobra.Command {
	var file string
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply wire commands ({\"type\":...,\"payload\":...} or an array of them)",
		Long: strings.TrimSpace(`
Reads one command envelope, or a JSON array of envelopes, from --file or stdin and applies
them in order. Each changing command is saved and logged before the next one runs.

Command types: ` + strings.Join(command.Names(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if file == "" || file == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			cmds, err := command.DecodeAll(raw)
			if err != nil {
				return writeErr(cmd, err)
			}
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmdContext(cmd)
			outs := make([]command.Outcome, 0, len(cmds))
			var failed error
			for i, c := range cmds {
				out, err := command.Exec(ctx, s, db, c, app.now())
				if err != nil {
					err = fmt.Errorf("command %d (%s): %w", i, c.Name(), err)
					if !keepGoing {
						_ = writeOutMeta(cmd, app, outs, map[string]any{"applied": len(outs), "total": len(cmds)})
						return writeErr(cmd, err)
					}
					failed = errors.Join(failed, err)
					continue
				}
				outs = append(outs, out)
			}
			if err := writeOutMeta(cmd, app, outs, map[string]any{"applied": len(outs), "total": len(cmds)}); err != nil {
				return err
			}
			if failed != nil {
				return writeErr(cmd, failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Read commands from this file (default: stdin)")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue after a failing command")
	return cmd
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the stored state's invariants (unique ids, parent links, depths)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := db.Check(); err != nil {
				return writeErr(cmd, err)
			}
			tasks := 0
			db.EachProject(func(_ *store.Scenario, p *store.Project) { tasks += p.Tasks.Len() })
			return writeOut(cmd, app, map[string]any{"ok": true, "scenarios": len(db.Scenarios), "tasks": tasks})
		},
	}
}
