package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	auditdomain "github.com/smallbiznis/posledger/internal/audit/domain"
	fiscalyeardomain "github.com/smallbiznis/posledger/internal/fiscalyear/domain"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
	recurringdomain "github.com/smallbiznis/posledger/internal/recurring/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every persisted accounting table in dependency order.
func Models() []any {
	return []any{
		&accountdomain.Account{},
		&fiscalyeardomain.FiscalYear{},
		&journaldomain.JournalEntry{},
		&journaldomain.JournalLine{},
		&journaldomain.JournalEntrySequence{},
		&recurringdomain.RecurringTemplate{},
		&recurringdomain.RecurringTemplateLine{},
		&recurringdomain.RecurringRun{},
		&auditdomain.AuditLog{},
	}
}

// Migrate brings the schema up to date. Postgres uses the versioned SQL
// migrations; other dialects fall back to AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// MySQL has no partial indexes; the account service keeps defaults unique there.
	if conn.Dialector.Name() == "sqlite" {
		if err := conn.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_default_subtype ON accounts (subtype) WHERE is_default`).Error; err != nil {
			return fmt.Errorf("create default account index: %w", err)
		}
	}
	return nil
}
