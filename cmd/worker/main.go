package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ngo-fms/fms/internal/app"
	"github.com/ngo-fms/fms/internal/auth"
	jobmetrics "github.com/ngo-fms/fms/internal/jobs"
	"github.com/ngo-fms/fms/internal/platform/cache"
	"github.com/ngo-fms/fms/internal/platform/db"
	"github.com/ngo-fms/fms/internal/users"
	"github.com/ngo-fms/fms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var registry users.RepositoryPort = users.NewRedisRepository(redisClient)
	if cfg.RegistryBackend == app.RegistryPostgres {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		registry = users.NewPGRepository(pool)
	}
	matcher, err := auth.NewMatcher(cfg.CredentialScheme)
	if err != nil {
		return err
	}
	userService := users.NewService(registry, matcher, logger)

	promRegistry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(promRegistry)

	sessionEvents := jobs.NewSessionEventJob(logger, metrics)
	pendingDigest := jobs.NewPendingDigestJob(userService, logger, metrics)
	digestTask, err := jobs.NewPendingDigestTask(20)
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedis(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionLogin, Handler: sessionEvents.Handle},
			{Type: jobs.TaskSessionLogout, Handler: sessionEvents.Handle},
			{Type: jobs.TaskRegistryPendingDigest, Handler: pendingDigest.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PendingDigestCron, Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("worker metrics listening", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
