package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/db"
	"github.com/carrymarket/backend/internal/events"
	apphttp "github.com/carrymarket/backend/internal/http"
	"github.com/carrymarket/backend/internal/http/handlers"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	listingRepo := repositories.NewListingRepo(pool)
	parcelRepo := repositories.NewParcelRepo(pool)
	offerRepo := repositories.NewOfferRepo(pool)
	requestRepo := repositories.NewRequestRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	processor := services.NewProcessorClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, log)
	paymentService := services.NewPaymentService(requestRepo, txRepo, userRepo, auditRepo, processor, publisher, cfg, log)
	offerService := services.NewOfferService(offerRepo, listingRepo, parcelRepo, requestRepo, auditRepo, publisher, cfg, log)
	requestService := services.NewRequestService(requestRepo, parcelRepo, listingRepo, auditRepo, paymentService, publisher, cfg, log)
	disputeService := services.NewDisputeService(disputeRepo, requestRepo, parcelRepo, auditRepo, paymentService, publisher, log)
	listingService := services.NewListingService(listingRepo, offerRepo, parcelRepo, auditRepo, log)
	parcelService := services.NewParcelService(parcelRepo, offerRepo, listingRepo, auditRepo, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	listingHandler := handlers.NewListingHandler(listingService, log)
	parcelHandler := handlers.NewParcelHandler(parcelService, log)
	offerHandler := handlers.NewOfferHandler(offerService, log)
	requestHandler := handlers.NewRequestHandler(requestService, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb,
		authHandler, userHandler, listingHandler, parcelHandler,
		offerHandler, requestHandler, paymentHandler, disputeHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
