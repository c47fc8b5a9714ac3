package repository

import (
	"context"
	"time"

	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) contentdomain.Repository {
	return &repo{db: db}
}

func (r *repo) FindActive(ctx context.Context, category contentdomain.Category, now time.Time) (*contentdomain.ContentRecord, error) {
	var record contentdomain.ContentRecord
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, category, payload, generated_at, expires_at, is_active,
		        provider, model, tokens_input, tokens_output, cost_usd,
		        created_at, updated_at
		 FROM content_records
		 WHERE category = ? AND is_active = ? AND expires_at > ?
		 ORDER BY generated_at DESC
		 LIMIT 1`,
		category.String(),
		true,
		now,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, contentdomain.ErrNotFound
	}
	return &record, nil
}

func (r *repo) FindLatest(ctx context.Context, category contentdomain.Category) (*contentdomain.ContentRecord, error) {
	var record contentdomain.ContentRecord
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, category, payload, generated_at, expires_at, is_active,
		        provider, model, tokens_input, tokens_output, cost_usd,
		        created_at, updated_at
		 FROM content_records
		 WHERE category = ?
		 ORDER BY generated_at DESC
		 LIMIT 1`,
		category.String(),
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, contentdomain.ErrNotFound
	}
	return &record, nil
}

func (r *repo) ReplaceActive(ctx context.Context, record *contentdomain.ContentRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Two binaries write to one postgres database. Locking the
		// category's rows serializes concurrent replaces so the guard
		// read below sees any swap committed while we waited. sqlite
		// has a single writer and rejects FOR UPDATE.
		if tx.Dialector.Name() == "postgres" {
			err := tx.Exec(
				`SELECT id FROM content_records WHERE category = ? FOR UPDATE`,
				record.Category,
			).Error
			if err != nil {
				return err
			}
		}

		var latest struct {
			GeneratedAt time.Time
		}
		err := tx.Raw(
			`SELECT generated_at
			 FROM content_records
			 WHERE category = ?
			 ORDER BY generated_at DESC
			 LIMIT 1`,
			record.Category,
		).Scan(&latest).Error
		if err != nil {
			return err
		}
		if !latest.GeneratedAt.IsZero() && record.GeneratedAt.Before(latest.GeneratedAt) {
			return contentdomain.ErrStaleReplace
		}

		err = tx.Exec(
			`UPDATE content_records
			 SET is_active = ?, updated_at = ?
			 WHERE category = ? AND is_active = ?`,
			false,
			record.UpdatedAt,
			record.Category,
			true,
		).Error
		if err != nil {
			return err
		}

		record.IsActive = true
		err = tx.Exec(
			`INSERT INTO content_records
			 (id, category, payload, generated_at, expires_at, is_active,
			  provider, model, tokens_input, tokens_output, cost_usd,
			  created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			record.Category,
			record.Payload,
			record.GeneratedAt,
			record.ExpiresAt,
			record.IsActive,
			record.Provider,
			record.Model,
			record.TokensInput,
			record.TokensOutput,
			record.CostUSD,
			record.CreatedAt,
			record.UpdatedAt,
		).Error
		if err != nil {
			// The unique active-per-category index caught a replace
			// that raced past the guard on an empty category. The
			// committed record stays, ours is discarded.
			if db.IsDuplicateKeyErr(err) {
				return contentdomain.ErrStaleReplace
			}
			return err
		}
		return nil
	})
}

func (r *repo) InsertUsageLog(ctx context.Context, entry *contentdomain.UsageLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.TokensTotal == 0 {
		entry.TokensTotal = entry.TokensInput + entry.TokensOutput
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO usage_logs
		 (id, category, provider, model, tokens_input, tokens_output, tokens_total,
		  cost_usd, success, failure_reason, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Category,
		entry.Provider,
		entry.Model,
		entry.TokensInput,
		entry.TokensOutput,
		entry.TokensTotal,
		entry.CostUSD,
		entry.Success,
		entry.FailureReason,
		entry.DurationMS,
		entry.CreatedAt,
	).Error
}

func (r *repo) RecentUsage(ctx context.Context, limit int) ([]contentdomain.UsageLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []contentdomain.UsageLog
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, category, provider, model, tokens_input, tokens_output, tokens_total,
		        cost_usd, success, failure_reason, duration_ms, created_at
		 FROM usage_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) MonthStats(ctx context.Context, since time.Time) (contentdomain.MonthStats, error) {
	var row struct {
		Calls        int64
		Successes    int64
		TokensInput  int64
		TokensOutput int64
		CostUSD      float64
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS calls,
		        COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successes,
		        COALESCE(SUM(tokens_input), 0) AS tokens_input,
		        COALESCE(SUM(tokens_output), 0) AS tokens_output,
		        COALESCE(SUM(cost_usd), 0) AS cost_usd
		 FROM usage_logs
		 WHERE created_at >= ?`,
		since,
	).Scan(&row).Error
	if err != nil {
		return contentdomain.MonthStats{}, err
	}
	return contentdomain.MonthStats{
		Since:        since,
		Calls:        row.Calls,
		Successes:    row.Successes,
		Failures:     row.Calls - row.Successes,
		TokensInput:  row.TokensInput,
		TokensOutput: row.TokensOutput,
		CostUSD:      row.CostUSD,
	}, nil
}
