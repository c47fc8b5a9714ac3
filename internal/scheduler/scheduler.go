// Package scheduler drives the periodic content refresh loop.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/tidewater/pulse/internal/clock"
	"github.com/tidewater/pulse/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

// Refresher is the slice of the orchestrator the scheduler needs.
type Refresher interface {
	RefreshAll(ctx context.Context, force bool) error
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Orch   Refresher
	Config Config `optional:"true"`
}

type Scheduler struct {
	log   *zap.Logger
	cfg   Config
	clock clock.Clock
	orch  Refresher
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Orch == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:   p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:   p.Config.withDefaults(),
		clock: p.Clock,
		orch:  p.Orch,
	}, nil
}

// RunOnce executes a single non-forced refresh pass. Deadline expiry is a
// soft timeout: the run is logged and the next tick tries again.
func (s *Scheduler) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	err := s.orch.RefreshAll(ctx, false)
	elapsed := s.clock.Now().Sub(start)

	if err == nil {
		s.log.Debug("refresh pass complete", zap.Duration("elapsed", elapsed))
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("refresh pass timed out",
			zap.Duration("timeout", s.cfg.RunTimeout),
			zap.Error(err),
		)
		return nil
	}

	return err
}

// RunForever ticks until the context is canceled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	m := metrics.Refresh()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			m.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
