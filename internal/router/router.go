package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/brovoice-api/internal/config"
	"github.com/noah-isme/brovoice-api/internal/handler"
	"github.com/noah-isme/brovoice-api/internal/middleware"
	"github.com/noah-isme/brovoice-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	ComplaintHandler    *handler.ComplaintHandler
	AnalyticsHandler    *handler.AnalyticsHandler
	UserHandler         *handler.UserHandler
	ActivityHandler     *handler.ActivityHandler
	NotificationHandler *handler.NotificationHandler
	SeedHandler         *handler.SeedHandler
	JWTMiddleware       fiber.Handler
	HealthProbes        []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), jwtMiddleware)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications")
		deps.NotificationHandler.RegisterMail(notifications, jwtMiddleware, middleware.RequireStaff())
		deps.NotificationHandler.RegisterWebsocket(notifications, jwtMiddleware)
	}

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	// Student area
	student := app.Group("/api/v2/student", jwtMiddleware, middleware.RequireStudent())
	if deps.ComplaintHandler != nil {
		deps.ComplaintHandler.RegisterStudent(student)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.RegisterFeed(student)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterProfile(student)
	}

	// Staff and admin area
	admin := app.Group("/api/v2/admin", jwtMiddleware, middleware.RequireStaff())
	if deps.ComplaintHandler != nil {
		deps.ComplaintHandler.RegisterAdmin(admin)
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.Register(admin)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.RegisterFeed(admin)
		deps.NotificationHandler.RegisterDeliveries(admin)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(admin)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterProfile(admin)
		deps.UserHandler.RegisterAdmin(admin.Group("/users", middleware.RequireAdmin()))
	}
}
