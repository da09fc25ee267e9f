package relationship

import (
	"github.com/vouchnet/vouchnet/internal/relationship/repository"
	"github.com/vouchnet/vouchnet/internal/relationship/service"
	"go.uber.org/fx"
)

var Module = fx.Module("relationship.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
