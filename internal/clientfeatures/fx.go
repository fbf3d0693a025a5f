package clientfeatures

import (
	"github.com/smallbiznis/flagship/internal/clientfeatures/repository"
	"github.com/smallbiznis/flagship/internal/clientfeatures/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clientfeatures.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
