package trustrank

import (
	"github.com/vouchnet/vouchnet/internal/trustrank/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trustrank.service",
	fx.Provide(service.NewService),
)
