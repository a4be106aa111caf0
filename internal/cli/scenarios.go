package cli

import (
	"errors"

	"tareas-cli/internal/command"
	"tareas-cli/internal/model"

	"github.com/spf13/cobra"
)

type scenarioRow struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Projects    int    `json:"projects"`
	Current     bool   `json:"current"`
}

func newScenariosCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenarios",
		Aliases: []string{"scenario", "s"},
		Short:   "Scenario commands",
	}

	cmd.AddCommand(newScenariosListCmd(app))
	cmd.AddCommand(newScenariosCreateCmd(app))
	cmd.AddCommand(newScenariosUpdateCmd(app))
	cmd.AddCommand(newScenariosRmCmd(app))
	cmd.AddCommand(newScenariosUseCmd(app))
	cmd.AddCommand(newExportCmd(app, model.KindScenario))
	cmd.AddCommand(newImportCmd(app, model.KindScenario))

	return cmd
}

func newScenariosListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := loadDB(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			rows := make([]scenarioRow, 0, len(db.Scenarios))
			for _, sc := range db.Scenarios {
				rows = append(rows, scenarioRow{
					ID:          sc.ID,
					Name:        sc.Name,
					Icon:        sc.Icon,
					Description: sc.Description,
					Projects:    len(sc.Projects),
					Current:     sc.ID == db.CurrentScenarioID,
				})
			}
			return writeOut(cmd, app, rows)
		},
	}
}

func newScenariosCreateCmd(app *App) *cobra.Command {
	var rf registryFlags

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a scenario (it starts with a default project)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, command.CreateScenario{Input: rf.input(args)})
		},
	}
	rf.bind(cmd, false)
	return cmd
}

func newScenariosUpdateCmd(app *App) *cobra.Command {
	var rf registryFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a scenario's name, icon or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("scenario id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			patch, ok := rf.patch(cmd)
			if !ok {
				return writeErr(cmd, errors.New("nothing to update"))
			}
			return run(cmd, app, command.UpdateScenario{ID: id, Patch: patch})
		},
	}
	rf.bind(cmd, false)
	return cmd
}

func newScenariosRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a scenario with its projects (the default scenario is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("scenario id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.DeleteScenario{ID: id})
		},
	}
}

func newScenariosUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a scenario current (selects its first project)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("scenario id", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return run(cmd, app, command.Select{ScenarioID: id})
		},
	}
}
