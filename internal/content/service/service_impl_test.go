package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/tidewater/pulse/internal/clock"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/content/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T, fake *clock.FakeClock) (contentdomain.Service, contentdomain.Repository, *snowflake.Node) {
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
	repo := repository.Provide(db)
	svc := New(Params{
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  repo,
	})
	return svc, repo, node
}

func insertRecord(t *testing.T, repo contentdomain.Repository, node *snowflake.Node, category contentdomain.Category, generatedAt time.Time, ttl time.Duration) *contentdomain.ContentRecord {
	t.Helper()
	payload := contentdomain.Payload{Items: []contentdomain.Item{{Headline: "bridge reopens", Summary: "ahead of schedule", Source: "Daily Press", Tag: "development"}}}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	record := &contentdomain.ContentRecord{
		ID:          node.Generate(),
		Category:    category.String(),
		Payload:     raw,
		GeneratedAt: generatedAt,
		ExpiresAt:   generatedAt.Add(ttl),
		Provider:    "anthropic",
		Model:       "claude-haiku-4-5-20251001",
	}
	if err := repo.ReplaceActive(context.Background(), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func TestGetCategoryFresh(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(base)
	svc, repo, node := newTestService(t, fake)

	insertRecord(t, repo, node, contentdomain.CategoryHeadlines, base.Add(-time.Hour), 6*time.Hour)

	view, err := svc.GetCategory(context.Background(), contentdomain.CategoryHeadlines)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if view.IsStale {
		t.Fatalf("fresh record reported stale")
	}
	if len(view.Items) != 1 || view.Items[0].Headline != "bridge reopens" {
		t.Fatalf("unexpected items: %+v", view.Items)
	}
	if view.GeneratedAt == nil {
		t.Fatalf("generated_at missing")
	}
}

func TestGetCategoryStaleFallback(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(base)
	svc, repo, node := newTestService(t, fake)

	insertRecord(t, repo, node, contentdomain.CategoryHeadlines, base.Add(-time.Hour), 6*time.Hour)
	fake.Advance(10 * time.Hour)

	view, err := svc.GetCategory(context.Background(), contentdomain.CategoryHeadlines)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if !view.IsStale {
		t.Fatalf("expired record should be served stale")
	}
	if len(view.Items) != 1 {
		t.Fatalf("stale fallback lost the payload: %+v", view.Items)
	}
}

func TestGetCategoryNeverFetched(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _, _ := newTestService(t, fake)

	view, err := svc.GetCategory(context.Background(), contentdomain.CategoryTrends)
	if err != nil {
		t.Fatalf("never-fetched category should not error: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty items, got %+v", view.Items)
	}
	if view.GeneratedAt != nil {
		t.Fatalf("never-fetched category should have no generated_at")
	}
	if view.IsStale {
		t.Fatalf("never-fetched category should not be stale")
	}
}

func TestGetAllOrderAndIndependence(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(base)
	svc, repo, node := newTestService(t, fake)

	insertRecord(t, repo, node, contentdomain.CategoryHeadlines, base.Add(-time.Hour), 6*time.Hour)

	views, err := svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected a view per category, got %d", len(views))
	}
	if views[0].Category != contentdomain.CategoryTrends || views[1].Category != contentdomain.CategoryHeadlines {
		t.Fatalf("render order wrong: %s, %s", views[0].Category, views[1].Category)
	}
	if len(views[0].Items) != 0 {
		t.Fatalf("trends should be empty")
	}
	if len(views[1].Items) != 1 {
		t.Fatalf("headlines should have content")
	}
}
