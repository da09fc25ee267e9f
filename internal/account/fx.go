package account

import (
	"github.com/vouchnet/vouchnet/internal/account/repository"
	"github.com/vouchnet/vouchnet/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
