package cmd

import (
	"context"
	"fmt"

	"github.com/smallbiznis/posledger/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run every enabled scheduler job once and exit",
	Long: `Run every enabled scheduler job once and exit. Useful from cron when no
long running "serve" process is deployed. Running it several times a day
books each recurring occurrence only once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sched *scheduler.Scheduler
		return runOneShot(cmd.Context(), func(ctx context.Context) error {
			if err := sched.RunOnce(ctx); err != nil {
				return fmt.Errorf("tick: %w", err)
			}
			return nil
		},
			fx.Provide(scheduler.ProvideConfig, scheduler.ProvideLocker, scheduler.New),
			fx.Populate(&sched),
		)
	},
}
