package refresh

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/tidewater/pulse/internal/clock"
	"github.com/tidewater/pulse/internal/config"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/content/repository"
	"github.com/tidewater/pulse/internal/pricing"
	"github.com/tidewater/pulse/internal/source"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubAdapter struct {
	category contentdomain.Category
	provider string
	result   *source.FetchResult
	err      error
	calls    int
}

func (s *stubAdapter) Category() contentdomain.Category { return s.category }
func (s *stubAdapter) Provider() string                 { return s.provider }
func (s *stubAdapter) Fetch(ctx context.Context) (*source.FetchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func trendsResult() *source.FetchResult {
	return &source.FetchResult{
		Payload: contentdomain.Payload{Items: []contentdomain.Item{
			{Topic: "HRBT delays", Summary: "Backups again", Sentiment: "negative"},
		}},
		Usage: source.Usage{
			Provider:     "xai",
			Model:        "grok-3-fast",
			TokensInput:  1_000_000,
			TokensOutput: 100_000,
		},
	}
}

func headlinesResult() *source.FetchResult {
	return &source.FetchResult{
		Payload: contentdomain.Payload{Items: []contentdomain.Item{
			{Headline: "Bridge reopens", Summary: "Ahead of schedule", Source: "Pilot", Tag: "development"},
		}},
		Usage: source.Usage{
			Provider:     "anthropic",
			Model:        "claude-haiku-4-5-20251001",
			TokensInput:  500_000,
			TokensOutput: 50_000,
		},
	}
}

type fixture struct {
	orch  *Orchestrator
	repo  contentdomain.Repository
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T, cfg config.Config, adapters ...source.Adapter) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pulse_test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&contentdomain.ContentRecord{}, &contentdomain.UsageLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	table, err := pricing.New(pricing.Params{Config: cfg, Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide(db)
	orch, err := New(Params{
		Log:      zap.NewNop(),
		Clock:    fake,
		Config:   cfg,
		Repo:     repo,
		Pricing:  table,
		GenID:    node,
		Adapters: adapters,
	})
	if err != nil {
		t.Fatalf("build orchestrator: %v", err)
	}
	return fixture{orch: orch, repo: repo, clock: fake, node: node}
}

func baseConfig() config.Config {
	return config.Config{
		Trends:    config.TrendsConfig{Model: "grok-3-fast", TTL: 4 * time.Hour},
		Headlines: config.HeadlinesConfig{Model: "claude-haiku-4-5-20251001", TTL: 6 * time.Hour},
		Refresh:   config.RefreshConfig{FetchTimeout: 5 * time.Second},
	}
}

func TestNewRequiresAdapters(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop(), Clock: clock.NewSystem(), Config: baseConfig()})
	if !errors.Is(err, ErrNoAdapters) {
		t.Fatalf("expected ErrNoAdapters, got %v", err)
	}
}

func TestRefreshStoresRecordAndUsage(t *testing.T) {
	adapter := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	f := newFixture(t, baseConfig(), adapter)
	ctx := context.Background()

	outcome, err := f.orch.Refresh(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if outcome != OutcomeRefreshed {
		t.Fatalf("outcome = %s, want refreshed", outcome)
	}

	record, err := f.repo.FindActive(ctx, contentdomain.CategoryTrends, f.clock.Now())
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if !record.ExpiresAt.Equal(f.clock.Now().Add(4 * time.Hour)) {
		t.Fatalf("expires_at wrong: %v", record.ExpiresAt)
	}
	// 1M input at $5/MTok + 100k output at $25/MTok.
	if record.CostUSD < 7.49 || record.CostUSD > 7.51 {
		t.Fatalf("cost wrong: %f", record.CostUSD)
	}

	logs, err := f.repo.RecentUsage(ctx, 10)
	if err != nil {
		t.Fatalf("recent usage: %v", err)
	}
	if len(logs) != 1 || !logs[0].Success {
		t.Fatalf("expected one success usage row, got %+v", logs)
	}
	if logs[0].TokensTotal != 1_100_000 {
		t.Fatalf("tokens_total = %d", logs[0].TokensTotal)
	}
}

func TestRefreshSkipsWhenFresh(t *testing.T) {
	adapter := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	f := newFixture(t, baseConfig(), adapter)
	ctx := context.Background()

	if _, err := f.orch.Refresh(ctx, contentdomain.CategoryTrends); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	outcome, err := f.orch.Refresh(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if outcome != OutcomeFresh {
		t.Fatalf("outcome = %s, want fresh", outcome)
	}
	if adapter.calls != 1 {
		t.Fatalf("adapter called %d times, want 1", adapter.calls)
	}

	// Past the window the adapter runs again.
	f.clock.Advance(5 * time.Hour)
	outcome, err = f.orch.Refresh(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("third refresh: %v", err)
	}
	if outcome != OutcomeRefreshed || adapter.calls != 2 {
		t.Fatalf("expired record should trigger a fetch: %s / %d calls", outcome, adapter.calls)
	}
}

func TestForceRefreshBypassesFreshness(t *testing.T) {
	adapter := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	f := newFixture(t, baseConfig(), adapter)
	ctx := context.Background()

	if _, err := f.orch.Refresh(ctx, contentdomain.CategoryTrends); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	f.clock.Advance(time.Minute)
	outcome, err := f.orch.ForceRefresh(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("force refresh: %v", err)
	}
	if outcome != OutcomeRefreshed || adapter.calls != 2 {
		t.Fatalf("force should always fetch: %s / %d calls", outcome, adapter.calls)
	}
}

func TestFailurePreservesCacheAndLogsUsage(t *testing.T) {
	adapter := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	f := newFixture(t, baseConfig(), adapter)
	ctx := context.Background()

	if _, err := f.orch.Refresh(ctx, contentdomain.CategoryTrends); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}
	seeded, err := f.repo.FindLatest(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}

	f.clock.Advance(5 * time.Hour)
	adapter.err = source.ErrProviderUnavailable

	outcome, err := f.orch.Refresh(ctx, contentdomain.CategoryTrends)
	if !errors.Is(err, source.ErrProviderUnavailable) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}

	latest, err := f.repo.FindLatest(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("find latest after failure: %v", err)
	}
	if latest.ID != seeded.ID {
		t.Fatalf("failure must not touch the cache")
	}

	logs, err := f.repo.RecentUsage(ctx, 10)
	if err != nil {
		t.Fatalf("recent usage: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 usage rows, got %d", len(logs))
	}
	failure := logs[0]
	if failure.Success || failure.FailureReason != source.ReasonProviderUnavailable {
		t.Fatalf("failure row wrong: %+v", failure)
	}
	if failure.Model != "grok-3-fast" {
		t.Fatalf("failure row should carry the configured model, got %q", failure.Model)
	}
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	good := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	bad := &stubAdapter{category: contentdomain.CategoryHeadlines, provider: "anthropic", err: source.ErrInvalidResponseShape}
	f := newFixture(t, baseConfig(), good, bad)
	ctx := context.Background()

	err := f.orch.RefreshAll(ctx, false)
	if err == nil {
		t.Fatalf("expected joined error from failing category")
	}
	if !errors.Is(err, source.ErrInvalidResponseShape) {
		t.Fatalf("joined error should carry the cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "headlines") {
		t.Fatalf("joined error should name the category: %v", err)
	}

	// The good category must have been stored despite the failure.
	if _, err := f.repo.FindActive(ctx, contentdomain.CategoryTrends, f.clock.Now()); err != nil {
		t.Fatalf("trends should be stored: %v", err)
	}
	if good.calls != 1 || bad.calls != 1 {
		t.Fatalf("both adapters should run once: %d / %d", good.calls, bad.calls)
	}
}

func TestRefreshAllNoCategories(t *testing.T) {
	cfg := baseConfig()
	cfg.Refresh.Categories = []string{"nonsense"}
	adapter := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	f := newFixture(t, cfg, adapter)

	err := f.orch.RefreshAll(context.Background(), false)
	if !errors.Is(err, ErrNoCategoriesConfigured) {
		t.Fatalf("expected ErrNoCategoriesConfigured, got %v", err)
	}
}

func TestRefreshDiscardsOlderFetch(t *testing.T) {
	adapter := &stubAdapter{category: contentdomain.CategoryTrends, provider: "xai", result: trendsResult()}
	f := newFixture(t, baseConfig(), adapter)
	ctx := context.Background()

	// Another instance already stored a record generated after our clock.
	newer := &contentdomain.ContentRecord{
		ID:          f.node.Generate(),
		Category:    contentdomain.CategoryTrends.String(),
		Payload:     []byte(`{"items":[{"topic":"t","summary":"s"}]}`),
		GeneratedAt: f.clock.Now().Add(time.Hour),
		ExpiresAt:   f.clock.Now().Add(5 * time.Hour),
		Provider:    "xai",
		Model:       "grok-3-fast",
	}
	if err := f.repo.ReplaceActive(ctx, newer); err != nil {
		t.Fatalf("seed newer record: %v", err)
	}

	outcome, err := f.orch.ForceRefresh(ctx, contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("racing refresh should not error: %v", err)
	}
	if outcome != OutcomeFresh {
		t.Fatalf("outcome = %s, want fresh", outcome)
	}

	active, err := f.repo.FindActive(ctx, contentdomain.CategoryTrends, f.clock.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if active.ID != newer.ID {
		t.Fatalf("newer record must survive the race")
	}

	// The provider call still cost money and is accounted for.
	logs, err := f.repo.RecentUsage(ctx, 10)
	if err != nil {
		t.Fatalf("recent usage: %v", err)
	}
	if len(logs) != 1 || !logs[0].Success {
		t.Fatalf("expected one success usage row, got %+v", logs)
	}
}
