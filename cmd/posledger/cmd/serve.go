package cmd

import (
	"github.com/smallbiznis/posledger/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, expose /metrics and book recurring entries on schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			coreModules(false),
			scheduler.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}
