package service

import (
	"context"
	"errors"

	"github.com/tidewater/pulse/internal/clock"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  contentdomain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	repo  contentdomain.Repository
}

func New(p Params) contentdomain.Service {
	return &Service{
		log:   p.Log.Named("content.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) GetCategory(ctx context.Context, category contentdomain.Category) (contentdomain.View, error) {
	now := s.clock.Now()

	record, err := s.repo.FindActive(ctx, category, now)
	stale := false
	if errors.Is(err, contentdomain.ErrNotFound) {
		// Fall back to the newest record even when expired. Serving old
		// content beats serving nothing.
		record, err = s.repo.FindLatest(ctx, category)
		stale = true
	}
	if errors.Is(err, contentdomain.ErrNotFound) {
		return emptyView(category), nil
	}
	if err != nil {
		return contentdomain.View{}, err
	}

	payload, err := record.DecodePayload()
	if err != nil {
		s.log.Error("stored payload does not decode",
			zap.String("category", category.String()),
			zap.Int64("record_id", record.ID.Int64()),
			zap.Error(err),
		)
		return emptyView(category), nil
	}

	if stale {
		metrics.Refresh().IncStaleServed(category.String())
	}

	generatedAt := record.GeneratedAt
	expiresAt := record.ExpiresAt
	return contentdomain.View{
		Category:    category,
		Items:       payload.Items,
		GeneratedAt: &generatedAt,
		ExpiresAt:   &expiresAt,
		IsStale:     stale,
		Model:       record.Model,
	}, nil
}

func (s *Service) GetAll(ctx context.Context) ([]contentdomain.View, error) {
	categories := contentdomain.Categories()
	views := make([]contentdomain.View, 0, len(categories))
	for _, category := range categories {
		view, err := s.GetCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func emptyView(category contentdomain.Category) contentdomain.View {
	return contentdomain.View{
		Category: category,
		Items:    []contentdomain.Item{},
	}
}
