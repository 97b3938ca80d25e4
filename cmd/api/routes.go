package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/handler"
	"github.com/noah-isme/kumon-analytics/internal/middleware"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/service"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	"github.com/noah-isme/kumon-analytics/pkg/logger"
	corsmiddleware "github.com/noah-isme/kumon-analytics/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/kumon-analytics/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics  *service.MetricsService
	auth     *service.AuthService
	catalog  *handler.CatalogHandler
	students *handler.StudentHandler
	reports  *handler.ReportHandler
	pipeline *handler.PipelineHandler
	exports  *handler.ExportHandler
	observe  *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.observe.Health)
	r.GET("/ready", deps.observe.Ready)
	r.GET("/metrics", deps.observe.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleOperator)
	admins := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/catalog", deps.catalog.Get)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	secured.GET("/students", editors, deps.students.List)
	secured.POST("/students", editors, middleware.Audit(logr, "students.register"), deps.students.Register)

	secured.GET("/reports/editable", editors, deps.reports.Editable)
	secured.POST("/reports/commit", editors, middleware.Audit(logr, "reports.commit"), deps.reports.Commit)

	secured.POST("/pipeline/runs", admins, middleware.Audit(logr, "pipeline.submit"), deps.pipeline.Submit)
	secured.GET("/pipeline/runs/:id", editors, deps.pipeline.Get)

	secured.GET("/exports/roster", editors, deps.exports.Roster)
	secured.GET("/exports/reports", editors, deps.exports.Report)

	secured.GET("/metrics/summary", admins, deps.observe.Summary)

	return r
}
