package content

import (
	"github.com/tidewater/pulse/internal/content/repository"
	"github.com/tidewater/pulse/internal/content/service"
	"go.uber.org/fx"
)

var Module = fx.Module("content.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
