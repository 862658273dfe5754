package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/mindcare-api/internal/config"
	"github.com/noah-isme/mindcare-api/internal/handler"
	"github.com/noah-isme/mindcare-api/internal/middleware"
	"github.com/noah-isme/mindcare-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	RiskHandler         *handler.RiskHandler
	ApprovalHandler     *handler.ApprovalHandler
	RemovalHandler      *handler.RemovalHandler
	CrisisHandler       *handler.CrisisHandler
	ChatbotHandler      *handler.ChatbotHandler
	GamificationHandler *handler.GamificationHandler
	LeaderboardHandler  *handler.LeaderboardHandler
	ConsultationHandler *handler.ConsultationHandler
	NotificationHandler *handler.NotificationHandler
	SeedHandler         *handler.SeedHandler
	JWTMiddleware       fiber.Handler
	HealthProbes        []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	moderator := middleware.RequireRole(middleware.AuthRoleModerator)
	reviewers := middleware.RequireRole(middleware.AuthRoleModerator, middleware.AuthRoleInstituteManager)
	learner := middleware.RequireRole(middleware.AuthRoleLearner)
	clinician := middleware.RequireRole(middleware.AuthRoleClinician)
	staff := func(h fiber.Handler) fiber.Handler {
		return middleware.WithAuth(h, middleware.AuthOptions{Role: middleware.AuthRoleStaff})
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.AuthHandler.Register(auth, middleware.RateLimit("login", loginAttempts(cfg.RateLimitMax), cfg.RateLimitWindow))
	}

	if deps.SeedHandler != nil && cfg.SeedEnabled {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	if deps.RiskHandler != nil {
		api.Post("/risk/score", jwtMiddleware, moderator, deps.RiskHandler.Score)
		api.Post("/moderation/risk-model/reload", jwtMiddleware, moderator, deps.RiskHandler.Reload)
	}

	if deps.ApprovalHandler != nil {
		approvals := api.Group("/approvals", jwtMiddleware)
		approvals.Get("/pending", reviewers, deps.ApprovalHandler.Pending)
		approvals.Post("/", moderator, deps.ApprovalHandler.Submit)
		approvals.Post("/:id/decision", reviewers, deps.ApprovalHandler.Decide)
	}

	if deps.RemovalHandler != nil {
		removals := api.Group("/removals", jwtMiddleware)
		removals.Post("/", reviewers, deps.RemovalHandler.Create)
		removals.Get("/", moderator, deps.RemovalHandler.List)
		removals.Post("/:id/decision", moderator, deps.RemovalHandler.Process)
	}

	if deps.CrisisHandler != nil {
		crisis := api.Group("/crisis", jwtMiddleware)
		crisis.Post("/evaluate", middleware.WithAuth(deps.CrisisHandler.Evaluate, middleware.AuthOptions{RequireUser: true}))
		crisis.Get("/alerts", staff(deps.CrisisHandler.Alerts))
	}

	if deps.ChatbotHandler != nil {
		chatbot := api.Group("/chatbot", jwtMiddleware, learner, middleware.RateLimit("chatbot", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.ChatbotHandler.Register(chatbot)
	}

	if deps.GamificationHandler != nil {
		deps.GamificationHandler.Register(api.Group("/gamification", jwtMiddleware, learner))
	}

	if deps.LeaderboardHandler != nil {
		api.Get("/leaderboard", jwtMiddleware, middleware.WithAuth(deps.LeaderboardHandler.Top, middleware.AuthOptions{RequireUser: true}))
	}

	if deps.ConsultationHandler != nil {
		consultations := api.Group("/consultations", jwtMiddleware)
		consultations.Post("/", learner, deps.ConsultationHandler.Request)
		consultations.Get("/", middleware.WithAuth(deps.ConsultationHandler.List, middleware.AuthOptions{RequireUser: true}))
		consultations.Post("/:id/accept", clinician, deps.ConsultationHandler.Accept)
		consultations.Post("/:id/decline", clinician, deps.ConsultationHandler.Decline)
		consultations.Post("/:id/complete", clinician, deps.ConsultationHandler.Complete)
		participant := middleware.RequireRole(middleware.AuthRoleLearner, middleware.AuthRoleClinician)
		consultations.Get("/:id/messages", participant, deps.ConsultationHandler.Messages)
		consultations.Post("/:id/messages", participant, deps.ConsultationHandler.SendMessage)
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}
}

// loginAttempts tightens the login limiter relative to the general budget.
func loginAttempts(max int) int {
	if max <= 0 {
		return 10
	}
	if limited := max / 12; limited >= 5 {
		return limited
	}
	return 5
}
