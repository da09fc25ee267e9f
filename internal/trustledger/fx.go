package trustledger

import (
	"github.com/vouchnet/vouchnet/internal/trustledger/repository"
	"github.com/vouchnet/vouchnet/internal/trustledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trustledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
