package scheduler

import (
	"context"

	"github.com/tidewater/pulse/internal/config"
	"github.com/tidewater/pulse/internal/refresh"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(func(o *refresh.Orchestrator) Refresher { return o }),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Refresh.Interval,
	}
}

func NewScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
