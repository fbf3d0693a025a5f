package releaseplan

import (
	"github.com/smallbiznis/flagship/internal/releaseplan/repository"
	"github.com/smallbiznis/flagship/internal/releaseplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("releaseplan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
