// Refresher runs the scheduled content refresh loop with no HTTP surface,
// for deployments where an external supervisor owns the web tier.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tidewater/pulse/internal/clock"
	"github.com/tidewater/pulse/internal/config"
	"github.com/tidewater/pulse/internal/content"
	"github.com/tidewater/pulse/internal/migration"
	"github.com/tidewater/pulse/internal/observability"
	"github.com/tidewater/pulse/internal/pricing"
	"github.com/tidewater/pulse/internal/refresh"
	"github.com/tidewater/pulse/internal/scheduler"
	"github.com/tidewater/pulse/internal/source/headlines"
	"github.com/tidewater/pulse/internal/source/trends"
	"github.com/tidewater/pulse/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		content.Module,
		pricing.Module,
		trends.Module,
		headlines.Module,
		refresh.Module,

		// No server module.
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
