package autoentry

import (
	"github.com/smallbiznis/posledger/internal/autoentry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("autoentry.service",
	fx.Provide(service.New),
)
