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
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/ngo-fms/fms/internal/app"
	"github.com/ngo-fms/fms/internal/auth"
	"github.com/ngo-fms/fms/internal/observability"
	"github.com/ngo-fms/fms/internal/platform/cache"
	"github.com/ngo-fms/fms/internal/platform/db"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
	"github.com/ngo-fms/fms/internal/users"
	"github.com/ngo-fms/fms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fms exited", slog.Any("error", err))
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

	var (
		registry users.RepositoryPort
		pool     *pgxpool.Pool
	)
	switch cfg.RegistryBackend {
	case app.RegistryPostgres:
		pool, err = db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		pgRepo := users.NewPGRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		registry = pgRepo
	default:
		registry = users.NewRedisRepository(redisClient)
	}

	matcher, err := auth.NewMatcher(cfg.CredentialScheme)
	if err != nil {
		return err
	}
	userService := users.NewService(registry, matcher, logger)
	if err := userService.Bootstrap(ctx, users.SeedAccounts()); err != nil {
		logger.Warn("bootstrap registry", slog.Any("error", err))
	}

	redisOpts := cfg.AsynqRedis()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	notifier := session.Notifiers{
		session.LogNotifier{Logger: logger},
		jobs.NewSessionEventNotifier(jobClient, logger),
	}
	sessionManager := session.NewManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), notifier, logger)

	policy := auth.RequireApproved
	if !cfg.LoginRequireApproval {
		policy = auth.AdmitAnyStatus
	}
	verifier := auth.NewVerifier(users.SeedAccounts(), userService, matcher, policy)

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{
		Principal: session.PrincipalFromRequest,
		Logger:    logger,
		Recorder:  metrics,
	}

	router, err := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, verifier, userService, metrics, cfg.RateLimitLogin),
		UsersHandler:       users.NewHandler(logger, userService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("registry", cfg.RegistryBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
