package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/kumon-analytics/api/swagger"
	"github.com/noah-isme/kumon-analytics/internal/handler"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/repository"
	"github.com/noah-isme/kumon-analytics/internal/service"
	"github.com/noah-isme/kumon-analytics/pkg/cache"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	"github.com/noah-isme/kumon-analytics/pkg/database"
	"github.com/noah-isme/kumon-analytics/pkg/jobs"
	"github.com/noah-isme/kumon-analytics/pkg/logger"
)

// @title Kumon Analytics API
// @version 1.0.0
// @description Student roster normalization and monthly progress reporting
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type runStore interface {
	Create(ctx context.Context, run *models.PipelineRun) error
	GetByID(ctx context.Context, id string) (*models.PipelineRun, error)
	Update(ctx context.Context, id string, params repository.UpdatePipelineRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// backend holds the storage selected by STORE_DRIVER.
type backend struct {
	store  service.TabularStore
	runs   runStore
	checks map[string]handler.Pinger
	close  []func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	be, err := openBackend(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range be.close {
			_ = closeFn()
		}
	}()

	r, shutdown, err := newApp(ctx, cfg, logr, be)
	if err != nil {
		return err
	}
	defer shutdown()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newApp wires services, the normalization queue and the router on top of
// be. The returned func stops the queue.
func newApp(ctx context.Context, cfg *config.Config, logr *zap.Logger, be *backend) (*gin.Engine, func(), error) {
	metrics := service.NewMetricsService()

	var store service.TabularStore = service.NewInstrumentedStore(be.store, metrics, logr)
	if cfg.Snapshot.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cacheRepo := repository.NewCacheRepository(client, logr)
		be.close = append(be.close, cacheRepo.Close)
		be.checks["redis"] = pingerFunc(cacheRepo.Ping)
		cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Snapshot.TTL, logr, true)
		store = service.NewCachedStore(store, cacheSvc, cfg.Snapshot.TTL)
	}

	operators, err := service.ParseOperators(cfg.Auth.Operators)
	if err != nil {
		return nil, nil, fmt.Errorf("parse AUTH_OPERATORS: %w", err)
	}
	if len(operators) == 0 {
		logr.Warn("no operators configured; login will always fail")
	}

	validate := validator.New()
	assigner := service.UUIDAssigner{}

	authSvc := service.NewAuthService(operators, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	rosterSvc := service.NewRosterService(store, cfg.Sheets, cfg.Pipeline, assigner, validate, logr)
	reportSvc := service.NewReportService(store, cfg.Sheets, cfg.Pipeline, assigner, validate, metrics, logr)
	exportSvc := service.NewExportService(store, cfg.Sheets, cfg.Pipeline, logr)
	pipelineSvc := service.NewPipelineService(store, cfg.Sheets, cfg.Pipeline, assigner, metrics, logr)

	worker := service.NewPipelineWorker(be.runs, pipelineSvc, logr)
	queue := jobs.NewQueue("normalization", worker.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Pipeline.QueueBuffer,
		Logger:     logr,
	})
	queue.Start(ctx)

	runSvc := service.NewPipelineRunService(be.runs, queue, logr)
	runSvc.RecoverQueued(ctx)

	r := newRouter(cfg, logr, routerDeps{
		metrics:  metrics,
		auth:     authSvc,
		catalog:  handler.NewCatalogHandler(models.DefaultCatalog()),
		students: handler.NewStudentHandler(rosterSvc),
		reports:  handler.NewReportHandler(reportSvc),
		pipeline: handler.NewPipelineHandler(runSvc),
		exports:  handler.NewExportHandler(exportSvc, cfg.Pipeline.Location()),
		observe:  handler.NewMetricsHandler(metrics, be.checks),
	})
	return r, queue.Stop, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverCSV:
		repo, err := repository.NewCSVDirRepository(cfg.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("open csv store: %w", err)
		}
		return &backend{
			store:  repo,
			runs:   repository.NewMemoryPipelineRunRepository(),
			checks: map[string]handler.Pinger{},
		}, nil
	case config.StoreDriverMemory:
		logr.Warn("using in-memory store; data is lost on restart")
		return &backend{
			store:  repository.NewMemorySheetRepository(),
			runs:   repository.NewMemoryPipelineRunRepository(),
			checks: map[string]handler.Pinger{},
		}, nil
	default:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return &backend{
			store:  repository.NewSheetRepository(db),
			runs:   repository.NewPipelineRunRepository(db),
			checks: map[string]handler.Pinger{"postgres": db},
			close:  []func() error{db.Close},
		}, nil
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }
