package cli

import (
	"errors"
	"strings"

	"tareas-cli/internal/assistant"
	"tareas-cli/internal/command"
	"tareas-cli/internal/store"

	"github.com/spf13/cobra"
)

func newAssistantCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Chat assistant that edits tasks, projects and scenarios",
	}
	cmd.AddCommand(newAssistantAskCmd(app))
	cmd.AddCommand(newAssistantExecCmd(app))
	return cmd
}

func newAssistantAskCmd(app *App) *cobra.Command {
	var onlyCurrent bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message to the assistant (needs an OpenAI API key)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			db, s, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			only := cfg.Assistant.CurrentProjectOnly
			if cmd.Flags().Changed("current-project") {
				only = onlyCurrent
			}
			runner := command.AssistantRunner(command.Local{Saver: s, DB: db, Now: app.now}, only)
			client, err := assistant.NewClient(assistant.Config{
				APIKey:             cfg.Assistant.APIKey(),
				BaseURL:            cfg.Assistant.BaseURL,
				Model:              cfg.Assistant.ModelOrDefault(),
				MaxTokens:          cfg.Assistant.MaxTokens,
				RequestsPerMinute:  cfg.Assistant.RequestsPerMinute,
				CurrentProjectOnly: only,
			}, runner)
			if err != nil {
				return writeErr(cmd, err)
			}
			reply, err := client.Ask(cmdContext(cmd), strings.Join(args, " "))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"reply": reply})
		},
	}
	cmd.Flags().BoolVar(&onlyCurrent, "current-project", false, "Restrict lookups to the current project")
	return cmd
}

// newAssistantExecCmd runs a manipular_datos argument object without a model, which is how
// scripted or recorded assistant calls are replayed.
func newAssistantExecCmd(app *App) *cobra.Command {
	var onlyCurrent bool

	cmd := &cobra.Command{
		Use:   "exec <file|->",
		Short: "Run one assistant function call (JSON arguments) directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(string(b)) == "" {
				return writeErr(cmd, errors.New("empty assistant call"))
			}
			call, err := assistant.ParseCall(string(b))
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.AssistantCall{Call: call, CurrentProjectOnly: onlyCurrent})
		},
	}
	cmd.Flags().BoolVar(&onlyCurrent, "current-project", false, "Restrict lookups to the current project")
	return cmd
}
