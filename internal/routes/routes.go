package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/bozor/internal/clock"
	"github.com/example/bozor/internal/config"
	"github.com/example/bozor/internal/handlers"
	"github.com/example/bozor/internal/middleware"
	"github.com/example/bozor/internal/realtime"
	"github.com/example/bozor/internal/services"
)

// Deps bundles the explicitly constructed dependencies the routes need.
type Deps struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Hub      *realtime.Hub
	Clock    clock.Clock
	Payments *services.PaymentService
	Gateway  *services.GatewayClient
	Sweeper  *services.SweeperService
	Telegram *services.TelegramService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	authHandler := handlers.NewAuthHandler(d.DB, d.Cfg)
	adHandler := handlers.NewAdHandler(d.DB, d.Hub, d.Clock, d.Telegram)
	paymentHandler := handlers.NewPaymentHandler(d.DB, d.Payments, d.Gateway, d.Hub, d.Clock, d.Cfg.CheckoutWindow)
	messageHandler := handlers.NewMessageHandler(d.DB, d.Hub, d.Clock)
	feedbackHandler := handlers.NewFeedbackHandler(d.DB, d.Telegram)
	referralHandler := handlers.NewReferralHandler(d.DB)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Hub, d.Sweeper)
	realtimeHandler := handlers.NewRealtimeHandler(d.Hub)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public listing routes
	api.Get("/ads", adHandler.ListAds)
	api.Get("/tiers", paymentHandler.ListTiers)
	api.Get("/users/:id/ratings", feedbackHandler.ListUserRatings)

	// Gateway callback, authenticated with the shared webhook key
	api.Post("/payments/webhook",
		middleware.WebhookAuthMiddleware(d.Cfg.GatewayWebhookKey),
		paymentHandler.Webhook)

	// Realtime change feed
	api.Get("/realtime/:table", realtimeHandler.Stream)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(d.Cfg))

	protected.Post("/ads", adHandler.CreateAd)
	protected.Get("/ads/mine", adHandler.MyAds)
	protected.Put("/ads/:id", adHandler.UpdateAd)
	protected.Delete("/ads/:id", adHandler.DeleteAd)

	protected.Post("/payments/checkout", paymentHandler.Checkout)
	protected.Get("/payments/:id", paymentHandler.GetTransaction)
	protected.Post("/payments/:id/verify", paymentHandler.VerifyTransaction)

	protected.Post("/conversations", messageHandler.StartConversation)
	protected.Get("/conversations", messageHandler.ListConversations)
	protected.Get("/conversations/:id/messages", messageHandler.ListMessages)
	protected.Post("/conversations/:id/messages", messageHandler.SendMessage)
	protected.Post("/conversations/:id/read", messageHandler.MarkRead)

	protected.Post("/ratings", feedbackHandler.CreateRating)
	protected.Post("/reports", feedbackHandler.CreateReport)

	protected.Get("/referrals", referralHandler.GetReferrals)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(d.Cfg), middleware.RequireAdmin(d.DB))
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/moderation", adminHandler.ModerationQueue)
	admin.Post("/moderation/:id/approve", adminHandler.ApproveAd)
	admin.Post("/moderation/:id/reject", adminHandler.RejectAd)
	admin.Get("/reports", adminHandler.ListReports)
	admin.Post("/reports/:id/resolve", adminHandler.ResolveReport)
	admin.Get("/payments", paymentHandler.ListTransactions)
	admin.Post("/sweep", adminHandler.TriggerSweep)

	// Public ad detail registered after /ads/mine so the literal segment wins
	api.Get("/ads/:id", adHandler.GetAd)
}
