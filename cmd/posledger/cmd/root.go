// Package cmd provides the posledger command line.
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/account"
	"github.com/smallbiznis/posledger/internal/audit"
	"github.com/smallbiznis/posledger/internal/autoentry"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	"github.com/smallbiznis/posledger/internal/fiscalyear"
	"github.com/smallbiznis/posledger/internal/journal"
	"github.com/smallbiznis/posledger/internal/logger"
	"github.com/smallbiznis/posledger/internal/migration"
	"github.com/smallbiznis/posledger/internal/observability"
	"github.com/smallbiznis/posledger/internal/recurring"
	"github.com/smallbiznis/posledger/pkg/db"
	"github.com/smallbiznis/posledger/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	debug  bool
	nodeID int64
)

var rootCmd = &cobra.Command{
	Use:   "posledger",
	Short: "Double-entry accounting engine for point-of-sale businesses",
	Long: `posledger keeps the general ledger of a point-of-sale business.

It migrates and seeds the accounting schema, books recurring entries on
schedule and prints ledger reports. Sales, expenses, purchases and refunds
are booked by the host application through the autoentry service.

Example:
  posledger serve
  posledger tick
  posledger trial-balance --as-of 2026-03-31`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node-id", 1, "snowflake node id, unique per running process")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(trialBalanceCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}

// coreModules wires infrastructure and every accounting domain. Migrations run
// before anything else is invoked.
func coreModules(oneShot bool) fx.Option {
	return fx.Options(
		// Core Infrastructure
		fx.Provide(func() config.Config { return loadConfig(oneShot) }),
		config.Module,
		logger.Module,
		observability.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		audit.Module,
		account.Module,
		fiscalyear.Module,
		journal.Module,
		autoentry.Module,
		recurring.Module,
	)
}

func loadConfig(oneShot bool) config.Config {
	cfg := config.Load()
	if debug {
		cfg.LogLevel = "debug"
	}
	if oneShot {
		cfg.MetricsEnabled = false
		cfg.Scheduler.Enabled = false
	}
	return cfg
}

// runOneShot starts an app without the metrics listener or scheduler loop,
// calls run once the lifecycle hooks are up and stops it again. Use
// fx.Populate in opts to reach the services run needs.
func runOneShot(ctx context.Context, run func(context.Context) error, opts ...fx.Option) error {
	app := fx.New(
		coreModules(true),
		fx.NopLogger,
		fx.Options(opts...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := run(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	return errors.Join(runErr, app.Stop(stopCtx))
}
