package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and seed the default chart of accounts",
	Long: `Apply schema migrations and, unless ACCOUNTING_SEED_DEFAULTS=false,
install the default chart of accounts. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// migration.Module does the work while the app is built.
		return runOneShot(cmd.Context(), func(context.Context) error { return nil })
	},
}
