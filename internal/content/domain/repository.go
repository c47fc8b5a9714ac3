package domain

import (
	"context"
	"time"
)

// Repository is the persistence boundary for cached content and usage logs.
type Repository interface {
	// FindActive returns the active unexpired record for the category, or
	// ErrNotFound.
	FindActive(ctx context.Context, category Category, now time.Time) (*ContentRecord, error)

	// FindLatest returns the most recently generated record for the category
	// regardless of active flag or expiry, or ErrNotFound.
	FindLatest(ctx context.Context, category Category) (*ContentRecord, error)

	// ReplaceActive deactivates the category's current active records and
	// inserts the given record as active, in one transaction. A record whose
	// GeneratedAt is older than the newest stored record is rejected with
	// ErrStaleReplace.
	ReplaceActive(ctx context.Context, record *ContentRecord) error

	// InsertUsageLog appends a fetch-attempt log row.
	InsertUsageLog(ctx context.Context, entry *UsageLog) error

	// RecentUsage returns the newest usage rows, most recent first.
	RecentUsage(ctx context.Context, limit int) ([]UsageLog, error)

	// MonthStats aggregates usage rows created at or after since.
	MonthStats(ctx context.Context, since time.Time) (MonthStats, error)
}
