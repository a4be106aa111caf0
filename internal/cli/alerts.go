package cli

import (
	"tareas-cli/internal/command"
	"tareas-cli/internal/model"
	"tareas-cli/internal/mutate"
	"tareas-cli/internal/query"

	"github.com/spf13/cobra"
)

func newAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"alert"},
		Short:   "Task alert commands",
	}

	cmd.AddCommand(newAlertsAddCmd(app))
	cmd.AddCommand(newAlertsListCmd(app))
	cmd.AddCommand(newAlertsEditCmd(app))
	cmd.AddCommand(idAlertCmd(app, "toggle", "Activate or deactivate an alert", func(id int) command.Command {
		return command.ToggleAlert{AlertID: id}
	}))
	cmd.AddCommand(idAlertCmd(app, "dup", "Duplicate an alert (new date one hour later)", func(id int) command.Command {
		return command.DuplicateAlert{AlertID: id}
	}))
	cmd.AddCommand(idAlertCmd(app, "rm", "Delete an alert", func(id int) command.Command {
		return command.DeleteAlert{AlertID: id}
	}))

	return cmd
}

func idAlertCmd(app *App, use, short string, mk func(id int) command.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <alert-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("alert id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, mk(id))
		},
	}
}

func newAlertsAddCmd(app *App) *cobra.Command {
	var in mutate.AlertInput

	cmd := &cobra.Command{
		Use:   "add <task-id> --at <date>",
		Short: "Schedule an alert on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.AddAlert{TaskID: id, AlertInput: in})
		},
	}

	cmd.Flags().StringVar(&in.AlertDate, "at", "", "When to fire (YYYY-MM-DDTHH:MM, local time; must be in the future)")
	cmd.Flags().StringVar(&in.Title, "title", "", "Alert title")
	cmd.Flags().StringVar(&in.Message, "message", "", "Alert message")
	cmd.Flags().StringVar(&in.WebhookURL, "webhook", "", "Webhook URL to POST to when the alert fires")
	return cmd
}

type alertRow struct {
	model.Alert
	TaskID    int    `json:"taskId"`
	TaskText  string `json:"taskText"`
	Countdown string `json:"countdown,omitempty"`
}

func newAlertsListCmd(app *App) *cobra.Command {
	var activeOnly bool
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts of the current project (or every project with --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			now := app.now()
			rows := []alertRow{}
			collect := func(ts []*model.Task) {
				for _, t := range ts {
					for _, a := range t.Alerts {
						if activeOnly && !a.Active {
							continue
						}
						r := alertRow{Alert: a, TaskID: t.ID, TaskText: t.Text}
						if a.Active {
							r.Countdown = query.AlertCountdown(a.AlertDate, now)
						}
						rows = append(rows, r)
					}
				}
			}
			if all {
				for _, sc := range db.Scenarios {
					for _, p := range sc.Projects {
						collect(p.Tasks.Flatten())
					}
				}
			} else {
				_, p, err := currentSelection(db)
				if err != nil {
					return writeErr(cmd, err)
				}
				collect(p.Tasks.Flatten())
			}
			return writeOutMeta(cmd, app, rows, map[string]any{"count": len(rows)})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active alerts")
	cmd.Flags().BoolVar(&all, "all", false, "Alerts of every scenario and project")
	return cmd
}

func newAlertsEditCmd(app *App) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "edit <alert-id> --at <date>",
		Short: "Change an alert's date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("alert id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.EditAlertDate{AlertID: id, AlertDate: at})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "New date (must be in the future)")
	return cmd
}
