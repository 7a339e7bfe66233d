package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/haneul-lab/essay-feedback-api/api/swagger"
	"github.com/haneul-lab/essay-feedback-api/internal/feedback"
	"github.com/haneul-lab/essay-feedback-api/internal/handler"
	"github.com/haneul-lab/essay-feedback-api/internal/middleware"
	"github.com/haneul-lab/essay-feedback-api/internal/report"
	"github.com/haneul-lab/essay-feedback-api/internal/repository"
	"github.com/haneul-lab/essay-feedback-api/internal/service"
	"github.com/haneul-lab/essay-feedback-api/pkg/cache"
	"github.com/haneul-lab/essay-feedback-api/pkg/config"
	"github.com/haneul-lab/essay-feedback-api/pkg/database"
	"github.com/haneul-lab/essay-feedback-api/pkg/jobs"
	"github.com/haneul-lab/essay-feedback-api/pkg/logger"
	corsmiddleware "github.com/haneul-lab/essay-feedback-api/pkg/middleware/cors"
	reqidmiddleware "github.com/haneul-lab/essay-feedback-api/pkg/middleware/requestid"
	"github.com/haneul-lab/essay-feedback-api/pkg/storage"
)

// @title Essay Feedback API
// @version 1.0.0
// @description Student essay intake, AI draft feedback, teacher approval, and report delivery
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, listing cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		}
	}

	lesson, err := feedback.LoadLessonContext(cfg.Lesson)
	if err != nil {
		logr.Sugar().Warnw("achievement standard dataset unavailable, prompts run without it", "error", err)
	}

	generator, err := feedback.NewOpenAIGenerator(cfg.OpenAI)
	if err != nil {
		logr.Sugar().Fatalw("failed to configure feedback generator", "error", err)
	}

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	renderer := report.NewPDFRenderer(cfg.Reports.FontPath)

	essayRepo := repository.NewEssayRepository(db)
	worker := service.NewDraftWorker(essayRepo, generator, metricsSvc, cacheSvc, logr)

	queue := jobs.NewQueue("drafts", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Drafts.WorkerConcurrency,
		BufferSize: cfg.Drafts.QueueBuffer,
		MaxRetries: cfg.Drafts.MaxRetries,
		RetryDelay: cfg.Drafts.RetryDelay,
		Logger:     logr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Reports.RetentionTTL > 0 {
		go runReportRetention(ctx, files, cfg.Reports.RetentionTTL, logr)
	}

	essaySvc := service.NewEssayService(service.EssayServiceDeps{
		Store:         essayRepo,
		Drafts:        queue,
		Cache:         cacheSvc,
		Renderer:      renderer,
		Files:         files,
		Signer:        signer,
		Lesson:        lesson,
		Logger:        logr,
		RecoveryLimit: cfg.Drafts.RecoveryLimit,
		ReportRoute:   cfg.APIPrefix + "/essays/report",
	})

	if recovered, err := essaySvc.RecoverPendingDrafts(ctx); err != nil {
		logr.Sugar().Warnw("draft recovery failed", "error", err)
	} else if recovered > 0 {
		logr.Sugar().Infow("re-enqueued interrupted drafts", "count", recovered)
	}

	essayHandler := handler.NewEssayHandler(essaySvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	essayHandler.RegisterSubmissionRoutes(r)
	api := r.Group(cfg.APIPrefix)
	essayHandler.RegisterRoutes(api)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// runReportRetention periodically removes rendered report files past their
// retention TTL. Signed links expire long before the files do, so removal is
// invisible to clients.
func runReportRetention(ctx context.Context, files *storage.LocalStorage, ttl time.Duration, logr *zap.Logger) {
	sweep := func() {
		deleted, err := files.CleanupOlderThan(ttl)
		if err != nil {
			logr.Sugar().Warnw("report retention sweep failed", "error", err)
			return
		}
		if len(deleted) > 0 {
			logr.Sugar().Infow("expired report files removed", "count", len(deleted))
		}
	}

	sweep()
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
