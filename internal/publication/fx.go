package publication

import (
	"github.com/lettercast/lettercast/internal/publication/repository"
	"github.com/lettercast/lettercast/internal/publication/service"
	"go.uber.org/fx"
)

var Module = fx.Module("publication",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
