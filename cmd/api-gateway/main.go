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

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/workeasy-api/api/swagger"
	"github.com/noah-isme/workeasy-api/internal/handler"
	"github.com/noah-isme/workeasy-api/internal/repository"
	"github.com/noah-isme/workeasy-api/internal/router"
	"github.com/noah-isme/workeasy-api/internal/service"
	"github.com/noah-isme/workeasy-api/pkg/cache"
	"github.com/noah-isme/workeasy-api/pkg/config"
	"github.com/noah-isme/workeasy-api/pkg/database"
	"github.com/noah-isme/workeasy-api/pkg/jobs"
	"github.com/noah-isme/workeasy-api/pkg/logger"
	"github.com/noah-isme/workeasy-api/pkg/querycache"
	"github.com/noah-isme/workeasy-api/pkg/retry"
)

// @title WorkEasy API
// @version 1.0.0
// @description Shift scheduling and shift exchange engine for small stores.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}

	var backend querycache.Backend
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis connection failed", "error", err)
		}
		defer client.Close()
		backend = repository.NewCacheRepository(client, "workeasy:qc", cfg.Cache.GCTime, logr)
		checks["redis"] = redisCheck(client)
	default:
		memory := querycache.NewMemoryBackend(cfg.Cache.GCTime)
		go sweep(ctx, memory, cfg.Cache.GCTime, logr)
		backend = memory
	}

	queryCache := querycache.New(backend,
		querycache.WithRetryPolicy(retry.Policy{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Logger:          logr,
		}),
		querycache.WithObserver(metrics),
		querycache.WithLogger(logr),
	)

	validate := validator.New()

	storeRepo := repository.NewStoreRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	exchangeRepo := repository.NewExchangeRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	mux := jobs.NewMux()
	queue := jobs.NewQueue("notifications", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Notification.Workers,
		MaxRetries: cfg.Notification.MaxRetries,
		RetryDelay: cfg.Notification.RetryDelay,
		OnSettle:   func(job jobs.Job, err error) { metrics.RecordJob(job.Type, err) },
		Logger:     logr.Named("jobs"),
	})

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.Auth.JWTSecret,
		Issuer:            cfg.Auth.Issuer,
		Audience:          cfg.Auth.Audience,
	})
	storeSvc := service.NewStoreService(storeRepo, queryCache, validate, logr)
	shiftSvc := service.NewShiftService(shiftRepo, storeSvc, queryCache, validate, logr)
	notifier := service.NewNotifierService(queue, storeSvc, notificationRepo, logr)
	exchangeSvc := service.NewExchangeService(exchangeRepo, shiftRepo, storeSvc, queryCache, validate, logr,
		service.WithExchangePublisher(notifier),
		service.WithExchangeMetrics(metrics),
		service.WithReassignOnApproval(cfg.Exchange.ReassignOnApproval),
	)
	pendingSvc := service.NewPendingCountService(exchangeRepo, storeSvc, queryCache, logr)
	invitationSvc := service.NewInvitationService(invitationRepo, storeSvc, queue, service.NewLogMailer(logr), validate, logr, service.InvitationConfig{
		DefaultTTL: cfg.Invitation.DefaultTTL,
		CodeLength: cfg.Invitation.CodeLength,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	exportSvc := service.NewExportService(shiftRepo, storeSvc, service.ExportConfig{Location: cfg.Location()}, logr)

	mux.Handle(service.JobTypeExchangeEvent, notifier.HandleExchangeEvent)
	mux.Handle(service.JobTypeInvitationMail, invitationSvc.HandleMail)
	queue.Start(ctx)
	defer queue.Stop()

	engine := router.Setup(cfg, router.Handlers{
		Store:        handler.NewStoreHandler(storeSvc),
		Shift:        handler.NewShiftHandler(shiftSvc, exportSvc, cfg.Location()),
		Exchange:     handler.NewExchangeHandler(exchangeSvc, pendingSvc),
		Invitation:   handler.NewInvitationHandler(invitationSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
	}, router.Dependencies{
		Tokens:  authSvc,
		Stores:  storeSvc,
		Metrics: metrics,
		Logger:  logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

func redisCheck(client redis.UniversalClient) handler.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func sweep(ctx context.Context, backend *querycache.MemoryBackend, gcTime time.Duration, logr *zap.Logger) {
	if gcTime <= 0 {
		return
	}
	ticker := time.NewTicker(gcTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := backend.Sweep(); n > 0 {
				logr.Debug("query cache swept", zap.Int("entries", n))
			}
		}
	}
}
