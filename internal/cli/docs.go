package cli

import (
	"fmt"
	"strings"

	"tareas-cli/internal/docs"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Reference topics (commands, views, alerts, serve, assistant)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, docs.Topics())
			}
			body, ok := docs.Get(args[0])
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown topic %q (topics: %s)", args[0], strings.Join(docs.Topics(), ", ")))
			}
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return writeOut(cmd, app, map[string]any{"topic": strings.ToLower(strings.TrimSpace(args[0])), "markdown": body})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the Markdown instead of a JSON envelope")
	return cmd
}
