package post

import (
	"github.com/lettercast/lettercast/internal/post/notify"
	"github.com/lettercast/lettercast/internal/post/repository"
	"github.com/lettercast/lettercast/internal/post/service"
	"go.uber.org/fx"
)

var Module = fx.Module("post",
	fx.Provide(repository.Provide),
	fx.Provide(notify.NewPublisher),
	fx.Provide(service.NewService),
)
