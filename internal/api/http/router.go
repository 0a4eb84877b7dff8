package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/fluxo-erp/gateway/internal/api/http/handlers"
	"github.com/fluxo-erp/gateway/internal/guard"
	"github.com/fluxo-erp/gateway/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Profile     *handlers.ProfileHandler
	Views       *handlers.ViewsHandler
	Binder      *handlers.AppBinder
	AuthLimiter *RateLimiter
	Metrics     *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth", cfg.Binder.Handle)
	authGroup.Get("/session", cfg.Auth.Session)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	limit := cfg.AuthLimiter.Handle
	authGroup.Post("/login", limit, cfg.Auth.Login)
	authGroup.Post("/register", limit, cfg.Auth.Register)
	authGroup.Post("/recover-password", limit, cfg.Auth.RecoverPassword)
	authGroup.Post("/reset-password", limit, cfg.Auth.ConfirmPasswordReset)

	app.Patch("/profile", cfg.Binder.Handle, cfg.Views.Guarded(guard.Route{Path: "/profile"}), cfg.Profile.Update)
	app.Get("/permissions/:permission", cfg.Binder.Handle, cfg.Views.Guarded(guard.Route{Path: "/permissions"}), cfg.Profile.Permission)

	app.Get("/views/*", cfg.Binder.Handle, cfg.Views.Show)
}
