package invitation

import (
	"github.com/vouchnet/vouchnet/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(service.NewService),
)
