package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/health"
	httpapi "opsdesk/internal/http"
	"opsdesk/internal/logger"
	"opsdesk/internal/projector"
	"opsdesk/internal/repository"
	"opsdesk/internal/search"
	"opsdesk/internal/service"
	"opsdesk/internal/store"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "opsdesk")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zlog.Fatal("Postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	esClient := search.NewClient(cfg.Elastic.Addr, cfg.Elastic.Index, zlog)

	monitor := health.NewMonitor(
		health.PingerFunc(func(ctx context.Context) error { return db.PingContext(ctx) }),
		health.PingerFunc(esClient.Ping),
		health.PingerFunc(kv.Ping),
		cfg.Health.ProbeInterval,
		cfg.Health.ProbeTimeout,
		zlog,
	)

	leadsRepo := repository.NewPostgresLeadsRepository(db)
	offersRepo := repository.NewPostgresOffersRepository(db)
	installationsRepo := repository.NewPostgresInstallationsRepository(db)
	notificationsRepo := repository.NewPostgresNotificationsRepository(db)
	activitiesRepo := repository.NewPostgresActivitiesRepository(db)
	techniciansRepo := repository.NewPostgresTechniciansRepository(db)
	docsRepo := repository.NewPostgresDocsRepository(db)
	fallbackRepo := repository.NewPostgresSearchFallback(db)

	projSource := repository.NewProjectionSource(leadsRepo, offersRepo, installationsRepo, docsRepo)
	proj := projector.New(projSource, esClient, monitor, projector.Options{
		Workers:    cfg.Projector.Workers,
		MaxBackoff: cfg.Projector.MaxBackoff,
	}, zlog)

	hub := httpapi.NewLiveHub(zlog)
	notifier := service.NewNotificationService(notificationsRepo, hub, zlog)

	var calendar service.CalendarUpserter
	if cfg.Calendar.Addr != "" {
		calendar = service.NewCalendarClient(cfg.Calendar.Addr, cfg.Calendar.CalendarID, cfg.Calendar.Token, zlog)
	}

	lifecycle := service.NewLifecycleService(
		leadsRepo, offersRepo, installationsRepo, techniciansRepo, activitiesRepo,
		proj, notifier, calendar, zlog,
	)
	sweep := service.NewSweepService(leadsRepo, offersRepo, installationsRepo, lifecycle, notifier, kv, cfg.Sweep.Interval, zlog)
	searchSvc := service.NewSearchService(esClient, fallbackRepo, monitor, kv, zlog)
	kpi := service.NewKPIService(leadsRepo, installationsRepo, notificationsRepo, zlog)

	authMW := httpapi.NewAuthMiddleware(cfg.Auth.Secret, zlog)
	router := httpapi.NewRouter(zlog)
	router.RegisterRoutes(
		authMW,
		httpapi.NewSystemHandler(monitor, proj, kpi, zlog),
		httpapi.NewSalesHandler(lifecycle, sweep, monitor, zlog),
		httpapi.NewInstallationsHandler(lifecycle, techniciansRepo, monitor, zlog),
		httpapi.NewSearchHandler(searchSvc, monitor, zlog),
		httpapi.NewNotificationsHandler(notifier, monitor, zlog),
		httpapi.NewDocsHandler(docsRepo, proj, monitor, zlog),
		hub,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go monitor.Run(ctx)
	go proj.Run(ctx)
	go sweep.Run(ctx)

	srv := service.NewServer(cfg.HTTP.Addr, router, zlog)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		zlog.Error("HTTP server stopped", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	// Give in-flight projections a short window to land.
	_ = proj.Drain(shutdownCtx)
}
