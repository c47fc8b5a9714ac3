package migration

import (
	"github.com/tidewater/pulse/internal/config"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// sqlite deployments (and tests) have no migrate driver; the schema
		// is small enough for AutoMigrate to own it there.
		if cfg.DBType == "sqlite" {
			err := conn.AutoMigrate(
				&contentdomain.ContentRecord{},
				&contentdomain.UsageLog{},
			)
			if err != nil {
				return err
			}
			// AutoMigrate cannot express a partial index; at most one
			// active record per category holds on every dialect.
			return conn.Exec(
				`CREATE UNIQUE INDEX IF NOT EXISTS uniq_content_active_per_category
				 ON content_records (category) WHERE is_active`,
			).Error
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
