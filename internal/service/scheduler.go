package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swap_rfq/internal/infra/storage"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the aggregation cycle on a fixed cadence. Overlapping
// cycles are permitted when one overruns the interval; raw writes are
// append-only so overlap is harmless.
type Scheduler struct {
	cron       *cron.Cron
	aggregator *Aggregator
	store      *storage.Store
	interval   time.Duration
	logger     *slog.Logger
}

// NewScheduler builds a stopped scheduler over the aggregator.
func NewScheduler(store *storage.Store, aggregator *Aggregator, interval time.Duration) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		aggregator: aggregator,
		store:      store,
		interval:   interval,
		logger:     slog.Default().With("module", "scheduler"),
	}
}

// Start probes the store and registers the recurring cycle. A failed probe
// is fatal; a failed cycle is only logged.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if err := s.aggregator.FetchAndStorePrices(ctx); err != nil {
			s.logger.Error("Aggregation cycle failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule aggregation job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", slog.Duration("interval", s.interval))
	return nil
}

// Stop cancels the timer. Safe to call repeatedly or before Start.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

// UpdatePricesNow runs one cycle out of band and returns its error, unlike
// the timer path which only logs.
func (s *Scheduler) UpdatePricesNow(ctx context.Context) error {
	return s.aggregator.FetchAndStorePrices(ctx)
}
