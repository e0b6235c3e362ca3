package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the hot-reloadable accounting config. The binary supplies
// Config itself, usually from Load.
var Module = fx.Module("config",
	fx.Provide(ProvideAccountingConfigHolder),
)

func ProvideAccountingConfigHolder(cfg Config, log *zap.Logger) (*AccountingConfigHolder, error) {
	return NewAccountingConfigHolder(cfg.Accounting.ConfigPath, log)
}
