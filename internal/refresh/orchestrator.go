// Package refresh coordinates the fetch-price-store cycle per category.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tidewater/pulse/internal/clock"
	"github.com/tidewater/pulse/internal/config"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	obslogger "github.com/tidewater/pulse/internal/observability/logger"
	"github.com/tidewater/pulse/internal/observability/metrics"
	"github.com/tidewater/pulse/internal/pricing"
	"github.com/tidewater/pulse/internal/source"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// ErrNoAdapters means the orchestrator was built with nothing to run.
	ErrNoAdapters = errors.New("refresh: no source adapters configured")

	// ErrNoCategoriesConfigured means the enabled-category set is empty.
	ErrNoCategoriesConfigured = errors.New("refresh: no categories configured")
)

// Outcome classifies one category's refresh cycle.
type Outcome string

const (
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeFresh     Outcome = "fresh"
	OutcomeFailed    Outcome = "failed"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Repo     contentdomain.Repository
	Pricing  *pricing.Table
	GenID    *snowflake.Node
	Adapters []source.Adapter `group:"adapters"`
}

// Orchestrator runs the refresh cycle. It never retries within a cycle; a
// failed category waits for the next scheduled run.
type Orchestrator struct {
	log      *zap.Logger
	clock    clock.Clock
	repo     contentdomain.Repository
	pricing  *pricing.Table
	genID    *snowflake.Node
	adapters map[contentdomain.Category]source.Adapter
	models   map[contentdomain.Category]string
	ttls     map[contentdomain.Category]time.Duration
	timeout  time.Duration
	enabled  []contentdomain.Category
}

func New(p Params) (*Orchestrator, error) {
	if len(p.Adapters) == 0 {
		return nil, ErrNoAdapters
	}

	adapters := make(map[contentdomain.Category]source.Adapter, len(p.Adapters))
	for _, adapter := range p.Adapters {
		adapters[adapter.Category()] = adapter
	}

	models := map[contentdomain.Category]string{
		contentdomain.CategoryTrends:    p.Config.Trends.Model,
		contentdomain.CategoryHeadlines: p.Config.Headlines.Model,
	}

	ttls := map[contentdomain.Category]time.Duration{
		contentdomain.CategoryTrends:    p.Config.Trends.TTL,
		contentdomain.CategoryHeadlines: p.Config.Headlines.TTL,
	}
	for category, ttl := range ttls {
		if ttl <= 0 {
			ttls[category] = category.DefaultTTL()
		}
	}

	timeout := p.Config.Refresh.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	log := p.Log.Named("refresh")
	var enabled []contentdomain.Category
	if len(p.Config.Refresh.Categories) == 0 {
		for _, category := range contentdomain.Categories() {
			if _, ok := adapters[category]; ok {
				enabled = append(enabled, category)
			}
		}
	} else {
		for _, raw := range p.Config.Refresh.Categories {
			category, err := contentdomain.ParseCategory(raw)
			if err != nil {
				log.Warn("ignoring unknown category in PULSE_CATEGORIES", zap.String("category", raw))
				continue
			}
			if _, ok := adapters[category]; !ok {
				log.Warn("ignoring category without adapter", zap.String("category", category.String()))
				continue
			}
			enabled = append(enabled, category)
		}
	}

	return &Orchestrator{
		log:      log,
		clock:    p.Clock,
		repo:     p.Repo,
		pricing:  p.Pricing,
		genID:    p.GenID,
		adapters: adapters,
		models:   models,
		ttls:     ttls,
		timeout:  timeout,
		enabled:  enabled,
	}, nil
}

// EnabledCategories returns the categories this orchestrator refreshes.
func (o *Orchestrator) EnabledCategories() []contentdomain.Category {
	out := make([]contentdomain.Category, len(o.enabled))
	copy(out, o.enabled)
	return out
}

// Refresh runs one category, skipping when a fresh active record exists.
func (o *Orchestrator) Refresh(ctx context.Context, category contentdomain.Category) (Outcome, error) {
	return o.refresh(ctx, category, false)
}

// ForceRefresh runs one category unconditionally.
func (o *Orchestrator) ForceRefresh(ctx context.Context, category contentdomain.Category) (Outcome, error) {
	return o.refresh(ctx, category, true)
}

// RefreshAll runs every enabled category independently. One category's
// failure never aborts another; failures come back joined.
func (o *Orchestrator) RefreshAll(ctx context.Context, force bool) error {
	if len(o.enabled) == 0 {
		return ErrNoCategoriesConfigured
	}

	var errs []error
	for _, category := range o.enabled {
		if _, err := o.refresh(ctx, category, force); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", category, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) refresh(ctx context.Context, category contentdomain.Category, force bool) (Outcome, error) {
	adapter, ok := o.adapters[category]
	if !ok {
		return OutcomeFailed, fmt.Errorf("%w: %q", contentdomain.ErrUnknownCategory, category)
	}

	m := metrics.Refresh()
	log := obslogger.WithCategory(o.log, category.String())
	now := o.clock.Now()

	if !force {
		_, err := o.repo.FindActive(ctx, category, now)
		if err == nil {
			log.Debug("active record still fresh, skipping")
			m.IncRefreshRun(category.String(), metrics.OutcomeFresh)
			return OutcomeFresh, nil
		}
		if !errors.Is(err, contentdomain.ErrNotFound) {
			m.IncRefreshRun(category.String(), metrics.OutcomeFailed)
			m.IncRefreshFailure(category.String(), metrics.ReasonStore)
			return OutcomeFailed, fmt.Errorf("freshness check: %w", err)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	result, fetchErr := adapter.Fetch(fetchCtx)
	duration := time.Since(started)
	m.ObserveRefreshDuration(category.String(), duration)

	if fetchErr != nil {
		reason := source.Reason(fetchErr)
		log.Warn("fetch failed, cache left untouched",
			zap.String("reason", reason),
			zap.Duration("duration", duration),
			zap.Error(fetchErr),
		)
		if errors.Is(fetchErr, source.ErrAuthenticationFailed) {
			log.Error("provider credentials rejected", zap.String("provider", adapter.Provider()))
		}
		m.IncRefreshRun(category.String(), metrics.OutcomeFailed)
		m.IncRefreshFailure(category.String(), reason)
		o.writeUsageLog(ctx, &contentdomain.UsageLog{
			ID:            o.genID.Generate(),
			Category:      category.String(),
			Provider:      adapter.Provider(),
			Model:         o.configuredModel(category),
			Success:       false,
			FailureReason: reason,
			DurationMS:    duration.Milliseconds(),
			CreatedAt:     now,
		})
		return OutcomeFailed, fetchErr
	}

	cost := o.pricing.Cost(result.Usage.Model, result.Usage.TokensInput, result.Usage.TokensOutput)

	o.writeUsageLog(ctx, &contentdomain.UsageLog{
		ID:           o.genID.Generate(),
		Category:     category.String(),
		Provider:     result.Usage.Provider,
		Model:        result.Usage.Model,
		TokensInput:  result.Usage.TokensInput,
		TokensOutput: result.Usage.TokensOutput,
		CostUSD:      cost,
		Success:      true,
		DurationMS:   duration.Milliseconds(),
		CreatedAt:    now,
	})

	raw, err := json.Marshal(result.Payload)
	if err != nil {
		m.IncRefreshRun(category.String(), metrics.OutcomeFailed)
		m.IncRefreshFailure(category.String(), metrics.ReasonUnknown)
		return OutcomeFailed, fmt.Errorf("encode payload: %w", err)
	}

	record := &contentdomain.ContentRecord{
		ID:           o.genID.Generate(),
		Category:     category.String(),
		Payload:      raw,
		GeneratedAt:  now,
		ExpiresAt:    now.Add(o.ttls[category]),
		Provider:     result.Usage.Provider,
		Model:        result.Usage.Model,
		TokensInput:  result.Usage.TokensInput,
		TokensOutput: result.Usage.TokensOutput,
		CostUSD:      cost,
	}
	if err := o.repo.ReplaceActive(ctx, record); err != nil {
		if errors.Is(err, contentdomain.ErrStaleReplace) {
			// A racing refresh already stored something newer. The provider
			// call still happened and is logged; the cache stays as is.
			log.Warn("discarding fetch older than stored record")
			m.IncRefreshRun(category.String(), metrics.OutcomeFresh)
			return OutcomeFresh, nil
		}
		m.IncRefreshRun(category.String(), metrics.OutcomeFailed)
		m.IncRefreshFailure(category.String(), metrics.ReasonStore)
		return OutcomeFailed, fmt.Errorf("replace active: %w", err)
	}

	m.IncRefreshRun(category.String(), metrics.OutcomeRefreshed)
	m.AddTokens(category.String(), result.Usage.TokensInput, result.Usage.TokensOutput)
	m.AddCostUSD(category.String(), cost)

	log.Info("content refreshed",
		zap.Int64("record_id", record.ID.Int64()),
		zap.Int("items", len(result.Payload.Items)),
		zap.String("model", result.Usage.Model),
		zap.Float64("cost_usd", cost),
		zap.Duration("duration", duration),
		zap.Time("expires_at", record.ExpiresAt),
	)
	return OutcomeRefreshed, nil
}

// writeUsageLog records the attempt; accounting failures never fail a cycle.
func (o *Orchestrator) writeUsageLog(ctx context.Context, entry *contentdomain.UsageLog) {
	if err := o.repo.InsertUsageLog(ctx, entry); err != nil {
		o.log.Error("usage log write failed",
			zap.String("category", entry.Category),
			zap.Error(err),
		)
	}
}

// configuredModel names the model a failed attempt would have used.
func (o *Orchestrator) configuredModel(category contentdomain.Category) string {
	return o.models[category]
}

var Module = fx.Module("refresh",
	fx.Provide(New),
)
