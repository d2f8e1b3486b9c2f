package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/db"
	"github.com/carrymarket/backend/internal/events"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/carrymarket/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	listingRepo := repositories.NewListingRepo(pool)
	parcelRepo := repositories.NewParcelRepo(pool)
	offerRepo := repositories.NewOfferRepo(pool)
	requestRepo := repositories.NewRequestRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	processor := services.NewProcessorClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, log)
	paymentService := services.NewPaymentService(requestRepo, txRepo, userRepo, auditRepo, processor, publisher, cfg, log)
	offerService := services.NewOfferService(offerRepo, listingRepo, parcelRepo, requestRepo, auditRepo, publisher, cfg, log)
	requestService := services.NewRequestService(requestRepo, parcelRepo, listingRepo, auditRepo, paymentService, publisher, cfg, log)
	listingService := services.NewListingService(listingRepo, offerRepo, parcelRepo, auditRepo, log)

	log.Info("worker started")

	// Run jobs on tickers
	offerTicker := time.NewTicker(2 * time.Minute)
	checkoutTicker := time.NewTicker(1 * time.Minute)
	listingTicker := time.NewTicker(10 * time.Minute)
	settlementTicker := time.NewTicker(5 * time.Minute)
	defer offerTicker.Stop()
	defer checkoutTicker.Stop()
	defer listingTicker.Stop()
	defer settlementTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-offerTicker.C:
			runOfferExpiry(ctx, offerService, log)
		case <-checkoutTicker.C:
			runCheckoutTimeouts(ctx, requestService, log)
		case <-listingTicker.C:
			runListingExpiry(ctx, listingService, log)
		case <-settlementTicker.C:
			runSettlementRetries(ctx, requestRepo, paymentService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runOfferExpiry(ctx context.Context, offerService *services.OfferService, log *zap.Logger) {
	n, err := offerService.ExpirePendingOffers(ctx)
	if err != nil {
		log.Error("offer expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired pending offers", zap.Int("count", n))
	}
}

func runCheckoutTimeouts(ctx context.Context, requestService *services.RequestService, log *zap.Logger) {
	n, err := requestService.CancelTimedOutRequests(ctx)
	if err != nil {
		log.Error("checkout timeout sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("cancelled timed out requests", zap.Int("count", n))
	}
}

func runListingExpiry(ctx context.Context, listingService *services.ListingService, log *zap.Logger) {
	n, err := listingService.ExpirePastListings(ctx)
	if err != nil {
		log.Error("listing expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired past listings", zap.Int("count", n))
	}
}

// runSettlementRetries releases funds for requests that completed while the
// processor capture failed. Travelers still mid-onboarding are skipped and
// retried next tick.
func runSettlementRetries(ctx context.Context, requestRepo *repositories.RequestRepo, paymentService *services.PaymentService, log *zap.Logger) {
	stuck, err := requestRepo.ListCompletedWithHeldFunds(ctx)
	if err != nil {
		log.Error("settlement sweep failed", zap.Error(err))
		return
	}

	for i := range stuck {
		req := &stuck[i]
		if err := paymentService.Release(ctx, req); err != nil {
			if errors.Is(err, apperr.ErrPayoutAccountNotReady) {
				log.Info("release deferred, traveler payout account not ready",
					zap.String("request_id", req.ID.String()),
				)
				continue
			}
			log.Error("release retry failed",
				zap.String("request_id", req.ID.String()),
				zap.Error(err),
			)
			continue
		}
		log.Info("released held funds", zap.String("request_id", req.ID.String()))
	}
}
