// Package server exposes the read path and the admin refresh surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidewater/pulse/internal/clock"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/observability"
	obslogger "github.com/tidewater/pulse/internal/observability/logger"
	obsmetrics "github.com/tidewater/pulse/internal/observability/metrics"
	"github.com/tidewater/pulse/internal/refresh"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const recentUsageLimit = 10

// Refresher is the slice of the orchestrator the admin surface needs.
type Refresher interface {
	ForceRefresh(ctx context.Context, category contentdomain.Category) (refresh.Outcome, error)
	RefreshAll(ctx context.Context, force bool) error
}

func NewEngine(obsCfg observability.Config, metricsCfg obsmetrics.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{Debug: obsCfg.Debug()}))
	r.Use(obsmetrics.GinMiddleware(obsmetrics.RefreshWithConfig(metricsCfg)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine  *gin.Engine
	log     *zap.Logger
	clock   clock.Clock
	service contentdomain.Service
	repo    contentdomain.Repository
	orch    Refresher
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Log     *zap.Logger
	Clock   clock.Clock
	Service contentdomain.Service
	Repo    contentdomain.Repository
	Orch    Refresher
}

func NewServer(p ServerParams) *Server {
	srv := &Server{
		engine:  p.Gin,
		log:     p.Log.Named("server"),
		clock:   p.Clock,
		service: p.Service,
		repo:    p.Repo,
		orch:    p.Orch,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.engine.GET("/pulse", s.getPulse)
	s.engine.GET("/pulse/:category", s.getPulseCategory)

	admin := s.engine.Group("/admin/pulse")
	admin.POST("/refresh", s.forceRefreshAll)
	admin.POST("/refresh/:category", s.forceRefreshCategory)
	admin.GET("/status", s.getStatus)
}

// getPulse serves every category, stale content included. A category that
// has never been fetched renders with empty items, never a 5xx.
func (s *Server) getPulse(c *gin.Context) {
	views, err := s.service.GetAll(c.Request.Context())
	if err != nil {
		s.log.Error("read path failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": views})
}

func (s *Server) getPulseCategory(c *gin.Context) {
	category, err := contentdomain.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown category"})
		return
	}
	view, err := s.service.GetCategory(c.Request.Context(), category)
	if err != nil {
		s.log.Error("read path failed", zap.String("category", category.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) forceRefreshAll(c *gin.Context) {
	if err := s.orch.RefreshAll(c.Request.Context(), true); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "partial", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (s *Server) forceRefreshCategory(c *gin.Context) {
	category, err := contentdomain.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown category"})
		return
	}
	outcome, err := s.orch.ForceRefresh(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"category": category.String(),
			"outcome":  string(outcome),
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category": category.String(),
		"outcome":  string(outcome),
	})
}

// getStatus mirrors the operator's view: per-category freshness, the latest
// usage rows, and month-to-date spend.
func (s *Server) getStatus(c *gin.Context) {
	ctx := c.Request.Context()

	views, err := s.service.GetAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}

	recent, err := s.repo.RecentUsage(ctx, recentUsageLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}

	stats, err := s.repo.MonthStats(ctx, monthStart(s.clock.Now()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories":   views,
		"recent_usage": recent,
		"month_stats":  stats,
	})
}

func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
