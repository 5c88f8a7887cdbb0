package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/veridia/plot-reservation/internal/booking"
	"github.com/veridia/plot-reservation/internal/cache"
	"github.com/veridia/plot-reservation/internal/clock"
	"github.com/veridia/plot-reservation/internal/config"
	"github.com/veridia/plot-reservation/internal/database"
	"github.com/veridia/plot-reservation/internal/handler"
	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/ledger"
	"github.com/veridia/plot-reservation/internal/logging"
	"github.com/veridia/plot-reservation/internal/notify"
	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/queue"
	"github.com/veridia/plot-reservation/internal/repository"
	"github.com/veridia/plot-reservation/internal/router"
	"github.com/veridia/plot-reservation/migrations"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()
	logger := logging.New()
	clk := clock.NewSystem()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(context.Background(), db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	cacheCfg := config.LoadCacheConfig()
	var plotCache *cache.PlotCache
	if cacheCfg.Enabled {
		plotCache = cache.New(config.NewRedisClient(), cacheCfg.TTL, cacheCfg.Prefix)
	} else {
		plotCache = cache.New(nil, cacheCfg.TTL, cacheCfg.Prefix)
	}

	plotRepo := repository.NewPlotRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	outboxRepo := repository.NewOutboxRepo(db)

	inventorySvc := inventory.NewService(plotRepo, plotCache, clk, logger, cfg.HoldTTL)

	// The orchestrator usually drives the inventory store in process.
	// Setting INVENTORY_URL swaps in the HTTP client so the store can
	// be split out into its own deployment.
	var updater inventory.StatusUpdater = inventorySvc
	if cfg.InventoryURL != "" {
		updater = inventory.NewClient(cfg.InventoryURL)
	}

	ledgerSvc := ledger.NewService(txRepo, outboxRepo, clk, logger, cfg.MinDepositPercent)
	bookingSvc := booking.NewService(inventorySvc, updater, ledgerSvc, logger, cfg.MinDepositPercent, cfg.BankAccounts)

	publisher := notify.NewPublisher(cfg.RabbitURL, logger)
	dispatcher := booking.NewDispatcher(logger, publisher, updater)

	relayID, _ := os.Hostname()
	if relayID == "" {
		relayID = fmt.Sprintf("relay-%d", os.Getpid())
	}
	relay := outbox.NewRelay(logger, outboxRepo, dispatcher, relayID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)
	go func() {
		if err := queue.StartNotificationConsumer(ctx); err != nil {
			logger.Error("notification consumer stopped", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Plots:        handler.NewPlotHandler(inventorySvc),
		Booking:      handler.NewBookingHandler(bookingSvc),
		Transactions: handler.NewTransactionHandler(ledgerSvc),
		Health:       handler.NewHealthHandler(db),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
