package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/ratelimit"
)

// RateLimiters holds the per-endpoint limiters. Nil limiters disable the check.
type RateLimiters struct {
	Login    ratelimit.Limiter
	Register ratelimit.Limiter
	Chat     ratelimit.Limiter
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	RateLimits     RateLimiters
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	requireAuth := cfg.AuthMiddleware.Handle

	authGroup := app.Group("/auth")
	authGroup.Post("/register", ratelimit.Middleware(cfg.RateLimits.Register), cfg.Auth.Register)
	authGroup.Post("/login", ratelimit.Middleware(cfg.RateLimits.Login), cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", requireAuth, cfg.Auth.Me)

	tickets := app.Group("/tickets", requireAuth, auth.RequireAnyRole())
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/my-tickets", cfg.Tickets.ListMine)
	tickets.Get("/all", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.ListAll)
	tickets.Get("/department", auth.RequireRole(domain.RoleAgent), cfg.Tickets.ListDepartment)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Post("/categorize", cfg.Tickets.Categorize)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/assign", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.Assign)

	users := app.Group("/users", requireAuth, auth.RequireRole(domain.RoleAdmin))
	users.Get("/", cfg.Users.List)
	users.Get("/stats", cfg.Users.Stats)
	users.Post("/", cfg.Users.Create)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)

	app.Post("/chat", requireAuth, ratelimit.Middleware(cfg.RateLimits.Chat), cfg.Chat.Reply)
}
