package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"swap_rfq/internal/app"
	"swap_rfq/internal/infra/stream"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 4. Price Scheduler
	if err := bootstrap.Scheduler.Start(ctx); err != nil {
		slog.Error("❌ Scheduler failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Scheduler.Stop()
	slog.InfoContext(ctx, "✅ Aggregation scheduler started")

	// Prime the stores before the first timer tick.
	if err := bootstrap.Scheduler.UpdatePricesNow(ctx); err != nil {
		slog.Warn("Initial aggregation cycle failed", slog.Any("error", err))
	}

	// 5. Live Ticker Stream feeding the in-memory cache
	worker := stream.NewBinanceWorker(
		bootstrap.Config.API.Binance,
		bootstrap.Binance,
		bootstrap.Config.Pairs,
		bootstrap.Cache.Update,
	)
	if err := worker.Connect(ctx); err != nil {
		slog.Error("Failed to connect Binance stream", slog.Any("error", err))
	}
	defer worker.Disconnect()
	slog.InfoContext(ctx, "✅ Binance stream worker started", slog.Int("pairs", len(bootstrap.Config.Pairs)))

	slog.InfoContext(ctx, "✨ Swap RFQ backend fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
