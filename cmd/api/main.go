package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/fluxo-erp/gateway/internal/api/http"
	"github.com/fluxo-erp/gateway/internal/api/http/handlers"
	"github.com/fluxo-erp/gateway/internal/config"
	"github.com/fluxo-erp/gateway/internal/frontend"
	"github.com/fluxo-erp/gateway/internal/guard"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/observability"
	"github.com/fluxo-erp/gateway/internal/persistence"
	"github.com/fluxo-erp/gateway/internal/repository"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	backend := sessionstore.NewBackend(*cfg, sessionstore.Dependencies{
		IdentityRepo:      repository.NewIdentityRepository(pool),
		AccountRepo:       repository.NewAccountRepository(pool),
		ProfileRepo:       repository.NewProfileRepository(pool),
		PermissionRepo:    repository.NewPermissionRepository(pool),
		PasswordResetRepo: repository.NewPasswordResetRepository(pool),
	}, redis.Client, notify.NewLogMailer(logger.Named("mailer"), cfg.Notify), logger.Named("sessionstore"))

	registry := frontend.NewRegistry(frontend.RegistryOptions{
		NewStore: func() sessionstore.Store { return backend.NewClient() },
		Redis:    redis.Client,
		IdleTTL:  cfg.Session.IdleTTL(),
		Logger:   logger.Named("frontend"),
		Metrics:  metrics,
	})
	defer registry.Close()

	limiter := httptransport.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	views := handlers.NewViewsHandler(guard.New(logger.Named("guard"), metrics), guard.DefaultTable(), logger)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:        handlers.NewAuthHandler(backend, logger.Named("auth")),
		Profile:     handlers.NewProfileHandler(),
		Views:       views,
		Binder:      handlers.NewAppBinder(registry, cfg.Session, logger),
		AuthLimiter: limiter,
		Metrics:     metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
	}
}
