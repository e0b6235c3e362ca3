package migration

import (
	"context"

	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	"github.com/smallbiznis/posledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, accounts accountdomain.Service, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}

		if !cfg.Accounting.SeedDefaults {
			return nil
		}
		created, err := accounts.SeedDefaultAccounts(context.Background())
		if err != nil {
			return err
		}
		if created > 0 {
			log.Info("seeded default chart of accounts", zap.Int("created", created))
		}
		return nil
	}),
)
