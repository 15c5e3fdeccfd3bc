package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/announce-service/internal/api/http/handlers"
	"github.com/spec-kit/announce-service/internal/auth"
	"github.com/spec-kit/announce-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Chats          *handlers.ChatsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.IssueToken)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("/metrics", cfg.Health.Metrics)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/approve", cfg.Tickets.ApproveTicket)
	tickets.Post("/:id/reject", cfg.Tickets.RejectTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	chats := protected.Group("/chats")
	chats.Get("/", cfg.Chats.ListChats)
	chats.Post("/", cfg.Chats.CreateChat)
	chats.Post("/resolve", cfg.Chats.ResolveSelector)
	chats.Get("/:id", cfg.Chats.GetChat)
	chats.Patch("/:id", cfg.Chats.UpdateChat)
	chats.Delete("/:id", cfg.Chats.DeleteChat)

	admin := protected.Group("", auth.RequireRole(domain.APIKeyRoleAdmin))

	users := admin.Group("/users")
	users.Get("/", cfg.Users.ListUsers)
	users.Post("/", cfg.Users.CreateUser)
	users.Get("/:id", cfg.Users.GetUser)
	users.Patch("/:id", cfg.Users.UpdateUser)
	users.Delete("/:id", cfg.Users.DeleteUser)

	keys := admin.Group("/api-keys")
	keys.Get("/", cfg.Auth.ListAPIKeys)
	keys.Post("/", cfg.Auth.CreateAPIKey)
	keys.Delete("/:key", cfg.Auth.DeleteAPIKey)
}
