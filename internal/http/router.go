package http

import (
	"time"

	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/http/handlers"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	listingHandler *handlers.ListingHandler,
	parcelHandler *handlers.ParcelHandler,
	offerHandler *handlers.OfferHandler,
	requestHandler *handlers.RequestHandler,
	paymentHandler *handlers.PaymentHandler,
	disputeHandler *handlers.DisputeHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Processor webhook: authenticated by signature, not JWT
	app.Post("/webhooks/processor", paymentHandler.ProcessorWebhook)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Per-actor throttle for operations that probe codes or move money
	sensitive := func(action string) fiber.Handler {
		return middleware.ActorRateLimitMiddleware(rdb, action, cfg.SensitiveOpLimit, cfg.SensitiveOpWindow)
	}

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Post("/me/payout-onboarding", paymentHandler.PayoutOnboarding)

	// Listings
	protected.Post("/listings", listingHandler.CreateListing)
	protected.Get("/listings/my", listingHandler.MyListings)
	protected.Get("/listings", listingHandler.SearchListings)
	protected.Get("/listings/:id", listingHandler.GetListing)
	protected.Post("/listings/:id/cancel", listingHandler.CancelListing)
	protected.Get("/listings/:id/offers", offerHandler.ListForListing)

	// Parcels
	protected.Post("/parcels", parcelHandler.CreateParcel)
	protected.Get("/parcels/my", parcelHandler.MyParcels)
	protected.Get("/parcels/:id", parcelHandler.GetParcel)
	protected.Post("/parcels/:id/cancel", parcelHandler.CancelParcel)

	// Offers
	protected.Post("/offers", offerHandler.CreateOffer)
	protected.Get("/offers/:id", offerHandler.GetOffer)
	protected.Post("/offers/:id/accept", offerHandler.AcceptOffer)
	protected.Post("/offers/:id/reject", offerHandler.RejectOffer)
	protected.Post("/offers/:id/cancel", offerHandler.CancelOffer)

	// Requests
	protected.Get("/requests", requestHandler.ListRequests)
	protected.Get("/requests/:id", requestHandler.GetRequest)
	protected.Get("/requests/:id/events", requestHandler.ListEvents)
	protected.Post("/requests/:id/checkout", paymentHandler.CreateCheckout)
	protected.Get("/requests/:id/payment", paymentHandler.GetTransaction)
	protected.Post("/requests/:id/pickup", requestHandler.MarkPickedUp)
	protected.Post("/requests/:id/delivered", requestHandler.MarkDelivered)
	protected.Post("/requests/:id/confirm", sensitive("confirm"), requestHandler.ConfirmDelivery)
	protected.Post("/requests/:id/cancel", requestHandler.CancelRequest)
	protected.Post("/requests/:id/dispute", sensitive("dispute"), disputeHandler.OpenDispute)

	// Disputes
	protected.Get("/disputes/:id", disputeHandler.GetDispute)

	// Admin
	admin := protected.Group("/admin", middleware.RequirePermission(rbac.PermResolveDispute))
	admin.Get("/disputes", disputeHandler.ListOpen)
	admin.Post("/disputes/:id/resolve", sensitive("resolve"), disputeHandler.Resolve)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
