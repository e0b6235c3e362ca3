package fiscalyear

import (
	"github.com/smallbiznis/posledger/internal/fiscalyear/repository"
	"github.com/smallbiznis/posledger/internal/fiscalyear/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fiscalyear.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
