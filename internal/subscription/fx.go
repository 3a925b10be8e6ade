package subscription

import (
	"github.com/lettercast/lettercast/internal/subscription/repository"
	"github.com/lettercast/lettercast/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
