package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/listing-service/internal/api/http/handlers"
	"github.com/spec-kit/listing-service/internal/auth"
	"github.com/spec-kit/listing-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Listings       *handlers.ListingsHandler
	Moderation     *handlers.ModerationHandler
	Comments       *handlers.CommentsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	authed.Get("/users/me", cfg.Users.Me)
	authed.Get("/users/me/trust", cfg.Users.TrustHistory)

	authed.Post("/listings", cfg.Listings.Create)
	authed.Get("/listings", cfg.Listings.List)
	authed.Get("/listings/:id", cfg.Listings.Get)
	authed.Post("/listings/vote", cfg.Listings.Vote)
	authed.Get("/listings/:id/comments", cfg.Comments.ListByListing)

	authed.Post("/comments", cfg.Comments.Create)
	authed.Patch("/comments", cfg.Comments.Update)
	authed.Delete("/comments", cfg.Comments.Delete)

	authed.Get("/notifications", cfg.Notifications.List)
	authed.Post("/notifications/read", cfg.Notifications.MarkRead)
	authed.Put("/notifications/preferences", cfg.Notifications.SetPreference)

	admin := authed.Group("/moderation", auth.RequireRole(domain.RoleAdmin))
	admin.Post("/listings/approve", cfg.Moderation.Approve)
	admin.Post("/listings/reject", cfg.Moderation.Reject)
	admin.Post("/trust/adjust", cfg.Moderation.AdjustTrust)
	admin.Post("/notifications/:id/retry", cfg.Notifications.Retry)

	superAdmin := authed.Group("/admin", auth.RequireRole(domain.RoleSuperAdmin))
	superAdmin.Post("/users/role", cfg.Users.ChangeRole)
}
