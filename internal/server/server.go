package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/flagship/internal/cache"
	"github.com/smallbiznis/flagship/internal/clientfeatures"
	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	"github.com/smallbiznis/flagship/internal/config"
	"github.com/smallbiznis/flagship/internal/locker"
	"github.com/smallbiznis/flagship/internal/observability"
	obsmiddleware "github.com/smallbiznis/flagship/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/flagship/internal/observability/metrics"
	obstracing "github.com/smallbiznis/flagship/internal/observability/tracing"
	"github.com/smallbiznis/flagship/internal/releaseplan"
	releaseplandomain "github.com/smallbiznis/flagship/internal/releaseplan/domain"
)

var Module = fx.Module("http.server",
	cache.Module,
	locker.Module,
	clientfeatures.Module,
	releaseplan.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	featureSvc     clientfeaturesdomain.Service
	releasePlanSvc releaseplandomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	FeatureSvc     clientfeaturesdomain.Service
	ReleasePlanSvc releaseplandomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		featureSvc:     p.FeatureSvc,
		releasePlanSvc: p.ReleasePlanSvc,
	}

	svc.registerDeliveryRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerDeliveryRoutes exposes the read model to SDK consumers. Each route
// fixes the consumer kind; clients never choose their own redaction level.
func (s *Server) registerDeliveryRoutes() {
	api := s.engine.Group("/api")

	client := api.Group("/client")
	{
		client.GET("/features", s.GetClientFeatures(clientfeaturesdomain.ConsumerClient))
		client.GET("/features/:name", s.GetClientFeature(clientfeaturesdomain.ConsumerClient))
	}

	frontend := api.Group("/frontend")
	{
		frontend.GET("/features", s.GetClientFeatures(clientfeaturesdomain.ConsumerFrontend))
		frontend.GET("/features/:name", s.GetClientFeature(clientfeaturesdomain.ConsumerFrontend))
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/features", s.GetAdminFeatures)
	admin.GET("/features/:name", s.GetAdminFeature)
	admin.GET("/playground/features", s.GetClientFeatures(clientfeaturesdomain.ConsumerPlayground))

	plans := admin.Group("/release-plans")
	{
		plans.GET("", s.ListReleasePlans)
		plans.GET("/:planId", s.GetReleasePlan)
		plans.GET("/:planId/strategies", s.GetActivePlanStrategies)
		plans.POST("/:planId/activate", s.ActivatePlan)
		plans.POST("/:planId/deactivate", s.DeactivatePlan)
		plans.POST("/:planId/segments", s.AttachPlanSegments)
		plans.POST("/:planId/milestones/:milestoneId/start", s.StartMilestone)
		plans.POST("/:planId/milestones/:milestoneId/segments", s.AttachMilestoneSegments)
	}
}
