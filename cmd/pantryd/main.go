package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/micropantry/pantrymap/internal/api"
	"github.com/micropantry/pantrymap/internal/config"
	"github.com/micropantry/pantrymap/internal/metrics"
	"github.com/micropantry/pantrymap/internal/recency"
	"github.com/micropantry/pantrymap/internal/repository"
	"github.com/micropantry/pantrymap/internal/repository/memory"
	"github.com/micropantry/pantrymap/internal/repository/postgres"
	"github.com/micropantry/pantrymap/internal/stock"
	"github.com/micropantry/pantrymap/internal/stock/fallbackdata"
	"github.com/micropantry/pantrymap/internal/wishlist"
	"github.com/micropantry/pantrymap/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting pantryd...")

	// Storage backend, selected by explicit configuration.
	var (
		events      repository.WishlistEventRepository
		aggs        repository.WishlistAggregateStore
		donations   repository.DonationRepository
		telemetry   repository.TelemetryRepository
		messages    repository.MessageRepository
		pantries    repository.PantryRepository
		healthCheck func(ctx context.Context) error
	)
	switch cfg.Store {
	case config.StorePostgres:
		db, err := config.NewDatabase(cfg.DatabaseURL, l)
		if err != nil {
			l.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate("migrations"); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}

		events = postgres.NewWishlistEventRepository(db.DB)
		aggs = postgres.NewWishlistAggregateStore(db.DB)
		donations = postgres.NewDonationRepository(db.DB)
		telemetry = postgres.NewTelemetryRepository(db.DB)
		messages = postgres.NewMessageRepository(db.DB)
		pantries = postgres.NewPantryRepository(db.DB)
		healthCheck = func(ctx context.Context) error { return db.PingContext(ctx) }

	case config.StoreMemory:
		l.Warn("Using in-memory store; data will not survive a restart")
		store := memory.NewStore()
		events, aggs, donations, telemetry = store, store, store, store
		messages, pantries = store.Messages(), store.Pantries()
	}

	// Local fallback dataset (optional).
	var fallback *fallbackdata.Dataset
	if cfg.DeviceMapPath != "" {
		fallback, err = fallbackdata.Load(cfg.DeviceMapPath, cfg.DeviceDataPath)
		if err != nil {
			l.Fatalf("Failed to load fallback dataset: %v", err)
		}
		l.Infof("Loaded local fallback dataset from %s", cfg.DeviceDataPath)
	}

	policy := stock.DefaultPolicy()
	if cfg.StockPlausibleMaxKg > 0 {
		policy.PlausibleMaxKg = cfg.StockPlausibleMaxKg
	}
	if cfg.StockLowMaxKg > 0 {
		policy.LowMaxKg = cfg.StockLowMaxKg
	}
	if cfg.StockHighMinKg > 0 {
		policy.HighMinKg = cfg.StockHighMinKg
	}
	if cfg.DonationWindow > 0 {
		policy.DonationWindow = recency.Window{Age: cfg.DonationWindow}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	wishlistSvc := wishlist.NewService(events, aggs, l, m)
	stockEngine := stock.NewEngine(telemetry, donations, fallback, policy, l, m)

	server := api.NewServer(wishlistSvc, stockEngine, donations, telemetry,
		messages, pantries, healthCheck, promhttp.Handler(), l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	l.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(context.Background()); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}

	l.Info("pantryd stopped")
}
