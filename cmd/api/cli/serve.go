package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/feedback-service/internal/api/http"
	"github.com/spec-kit/feedback-service/internal/api/http/handlers"
	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/cache"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/observability"
	"github.com/spec-kit/feedback-service/internal/persistence"
	"github.com/spec-kit/feedback-service/internal/realtime"
	"github.com/spec-kit/feedback-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the realtime notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewDispatcher(logger)

	hub := realtime.NewHub(logger)
	rtRouter := realtime.NewRouter(hub, logger, realtime.RouterOptions{
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		SendBuffer:     cfg.Realtime.SendBuffer,
		PingInterval:   cfg.Realtime.PingInterval(),
	})
	rtServer := realtime.NewServer(realtime.ServerConfig{
		Addr: cfg.Realtime.Addr(),
		Path: cfg.Realtime.Path,
	}, rtRouter, hub, logger)

	notifications := service.NewNotificationService(dispatcher, hub, logger)
	if err := notifications.RegisterHandlers(); err != nil {
		return fmt.Errorf("register notification handlers: %w", err)
	}

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AdminRepo:  st.admins,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err := ensureAdmin(ctx, authService, cfg.Auth.InitialPIN, logger); err != nil {
		return err
	}

	reviewService := service.NewReviewService(service.ReviewDependencies{
		ReviewRepo:       st.reviews,
		Featured:         cache.NewFeaturedCache(redis.Handle(), cfg.Redis.FeaturedTTL()),
		Dispatcher:       dispatcher,
		AdminDisplayName: cfg.Auth.AdminDisplayName,
		Logger:           logger,
	})

	metrics := observability.NewMetrics()
	health := handlers.HealthDependencies{
		Store:    reviewService,
		Metrics:  metrics,
		Realtime: rtServer.Count,
	}
	if redis != nil {
		health.Redis = redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          httptransport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, appVersion, health),
		Auth:           handlers.NewAuthHandler(authService, cfg.Cookie),
		Reviews:        handlers.NewReviewsHandler(reviewService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st.admins, cfg.Cookie.Name, logger),
	})

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down http server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	group.Go(func() error {
		if err := rtServer.Start(groupCtx); err != nil {
			return fmt.Errorf("realtime server: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// ensureAdmin provisions the credential from ADMIN_INITIAL_PIN on first boot.
// Without it the service still starts, but logins fail until `seed` runs.
func ensureAdmin(ctx context.Context, authService *service.AuthService, pin string, logger *zap.Logger) error {
	if pin == "" {
		logger.Warn("ADMIN_INITIAL_PIN not set; run `feedbackd seed` if no admin PIN exists yet")
		return nil
	}
	if _, err := authService.EnsureAdmin(ctx, pin); err != nil {
		return fmt.Errorf("provision admin: %w", err)
	}
	return nil
}
