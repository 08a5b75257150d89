package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/http/handlers"
	"github.com/spec-kit/feedback-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Reviews        *handlers.ReviewsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Admin routes share the /api/reviews
// prefix with public ones, so the guard is attached per route rather than
// through a group.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/admin/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/verify-token", cfg.Auth.VerifyToken)
	authGroup.Put("/reset-pin", cfg.Auth.ResetPin)

	guard := cfg.AuthMiddleware.Guard()
	admin := func(h ...fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, guard...), h...)
	}

	reviews := api.Group("/reviews")
	reviews.Get("/", cfg.Reviews.List)
	reviews.Get("/featured", cfg.Reviews.Featured)
	reviews.Post("/", cfg.Reviews.Create)
	reviews.Put("/:id/like", handlers.CheckID, cfg.Reviews.Like)
	reviews.Put("/:id/unlike", handlers.CheckID, cfg.Reviews.Unlike)
	reviews.Put("/:id/acknowledge", admin(handlers.CheckID, cfg.Reviews.Acknowledge)...)
	reviews.Post("/:id/reply", admin(handlers.CheckID, cfg.Reviews.Reply)...)
	reviews.Delete("/:id", admin(handlers.CheckID, cfg.Reviews.Delete)...)
}
