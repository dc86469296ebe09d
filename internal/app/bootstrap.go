package app

import (
	"context"
	"log/slog"

	"swap_rfq/internal/infra"
	"swap_rfq/internal/infra/exchange"
	"swap_rfq/internal/infra/storage"
	"swap_rfq/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config      *infra.Config
	Store       *storage.Store
	Aggregator  *service.Aggregator
	Scheduler   *service.Scheduler
	Coordinator *service.RFQCoordinator
	Cache       *service.LivePriceCache
	Binance     *exchange.Binance
	Coinbase    *exchange.Coinbase
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB, services).
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Swap RFQ...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Exchange adapters
	b.Binance = exchange.NewBinance(cfg.API.Binance)
	b.Coinbase = exchange.NewCoinbase(cfg.API.Coinbase)

	// 5. Services
	b.Cache = service.NewLivePriceCache()
	b.Aggregator = service.NewAggregator(store, []exchange.Adapter{b.Binance, b.Coinbase}, cfg.Pairs)
	b.Scheduler = service.NewScheduler(store, b.Aggregator, cfg.AggregationInterval())
	b.Coordinator = service.NewRFQCoordinator(store, b.Cache, cfg.TimelockDuration())
	slog.Info("✅ Services ready", slog.Int("pairs", len(cfg.Pairs)))

	return nil
}
