package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"swap_rfq/internal/domain"
	"swap_rfq/internal/infra"
	"swap_rfq/internal/infra/exchange"
	"swap_rfq/internal/infra/storage"

	"github.com/shopspring/decimal"
)

const (
	minutesPerYear = 525600
	volPrecision   = 20
)

var decimalHalf = decimal.RequireFromString("0.5")

// Aggregator runs the price collection cycle: fan out to every venue,
// persist raw ticks, consolidate a VWAP per pair, derive volatility.
type Aggregator struct {
	store    *storage.Store
	adapters []exchange.Adapter
	pairs    []domain.AssetPair
	logger   *slog.Logger
}

// NewAggregator wires the aggregator over the configured venues and pairs.
func NewAggregator(store *storage.Store, adapters []exchange.Adapter, pairs []domain.AssetPair) *Aggregator {
	return &Aggregator{
		store:    store,
		adapters: adapters,
		pairs:    pairs,
		logger:   slog.Default().With("module", "aggregator"),
	}
}

// FetchAndStorePrices runs one aggregation cycle. Venue failures are
// tolerated individually; only zero data across all venues fails the cycle.
func (a *Aggregator) FetchAndStorePrices(ctx context.Context) error {
	start := time.Now()
	cycle := start.UTC().Truncate(time.Second)

	results := make([]map[string]domain.PriceTick, len(a.adapters))
	errs := make([]error, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter exchange.Adapter) {
			defer wg.Done()
			results[i], errs[i] = adapter.FetchBatchPrices(ctx, a.pairs)
		}(i, adapter)
	}
	wg.Wait()

	var rows []domain.ExchangePrice
	for i, adapter := range a.adapters {
		if errs[i] != nil {
			a.logger.Warn("Exchange fetch failed",
				slog.String("exchange", adapter.Name()),
				slog.Any("error", errs[i]),
			)
			continue
		}
		for symbol, tick := range results[i] {
			pair, err := adapter.ParseSymbol(symbol)
			if err != nil {
				a.logger.Warn("Unparseable venue symbol",
					slog.String("exchange", adapter.Name()),
					slog.String("symbol", symbol),
				)
				continue
			}
			rows = append(rows, domain.ExchangePrice{
				Timestamp:   cycle,
				Exchange:    adapter.Name(),
				BaseAsset:   pair.BaseAsset,
				QuoteAsset:  pair.QuoteAsset,
				Price:       tick.Price,
				VolumeBase:  tick.Volume24h,
				VolumeQuote: tick.Volume24h.Mul(tick.Price),
			})
		}
	}

	if len(rows) == 0 {
		infra.GlobalMetrics.RecordCycleFailure()
		return domain.ErrNoMarketData
	}

	if err := a.store.SaveExchangePrices(rows); err != nil {
		infra.GlobalMetrics.RecordCycleFailure()
		return err
	}

	for _, pair := range a.pairs {
		if err := a.consolidate(cycle, pair, rows); err != nil {
			a.logger.Warn("Consolidation failed",
				slog.String("pair", pair.String()),
				slog.Any("error", err),
			)
		}
	}

	infra.GlobalMetrics.RecordCycle(time.Since(start), len(rows))
	a.logger.Info("Aggregation cycle complete",
		slog.Int("ticks", len(rows)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// consolidate computes the pair's VWAP from this cycle's raw rows and then
// refreshes its volatility metric. Pairs with no rows this cycle are skipped.
func (a *Aggregator) consolidate(cycle time.Time, pair domain.AssetPair, rows []domain.ExchangePrice) error {
	var (
		weighted   decimal.Decimal
		totalBase  decimal.Decimal
		totalQuote decimal.Decimal
		priceSum   decimal.Decimal
		count      int
	)
	for _, row := range rows {
		if row.BaseAsset != pair.BaseAsset || row.QuoteAsset != pair.QuoteAsset {
			continue
		}
		weighted = weighted.Add(row.Price.Mul(row.VolumeBase))
		totalBase = totalBase.Add(row.VolumeBase)
		totalQuote = totalQuote.Add(row.VolumeQuote)
		priceSum = priceSum.Add(row.Price)
		count++
	}
	if count == 0 {
		return nil
	}

	vwap := priceSum.Div(decimal.NewFromInt(int64(count)))
	if totalBase.IsPositive() {
		vwap = weighted.Div(totalBase)
	}

	err := a.store.SaveConsolidatedPrice(&domain.ConsolidatedPrice{
		Timestamp:        cycle,
		BaseAsset:        pair.BaseAsset,
		QuoteAsset:       pair.QuoteAsset,
		VWAP:             vwap,
		TotalVolumeBase:  totalBase,
		TotalVolumeQuote: totalQuote,
		NumExchanges:     count,
	})
	if err != nil {
		return err
	}

	a.updateVolatility(cycle, pair)
	return nil
}

// updateVolatility recomputes all three windows for the pair. A window
// without enough history skips the pair's metric row for this cycle.
func (a *Aggregator) updateVolatility(cycle time.Time, pair domain.AssetPair) {
	windows := []struct {
		hours int
	}{{1}, {24}, {168}}

	vols := make([]decimal.Decimal, len(windows))
	counts := make([]int, len(windows))
	for i, w := range windows {
		vol, n, err := a.CalculateVolatility(pair, w.hours)
		if err != nil {
			a.logger.Warn("Volatility window unavailable",
				slog.String("pair", pair.String()),
				slog.Int("lookback_hours", w.hours),
				slog.Any("error", err),
			)
			return
		}
		vols[i] = vol
		counts[i] = n
	}

	err := a.store.SaveVolatilityMetric(&domain.VolatilityMetric{
		Timestamp:     cycle,
		BaseAsset:     pair.BaseAsset,
		QuoteAsset:    pair.QuoteAsset,
		Volatility1h:  vols[0],
		Volatility24h: vols[1],
		Volatility7d:  vols[2],
		SampleCounts: domain.SampleCounts{
			Window1h:  counts[0],
			Window24h: counts[1],
			Window7d:  counts[2],
		},
		LastUpdated: time.Now().UTC(),
	})
	if err != nil {
		a.logger.Warn("Failed to save volatility metric",
			slog.String("pair", pair.String()),
			slog.Any("error", err),
		)
	}
}

// CalculateVolatility returns the pair's annualized volatility over the
// lookback window plus the number of consolidated points observed.
//
// Annualization divides the nominal yearly minute count by the window's
// nominal minute count; it deliberately ignores the observed sample count
// and assumes one sample per minute.
func (a *Aggregator) CalculateVolatility(pair domain.AssetPair, lookbackHours int) (decimal.Decimal, int, error) {
	now := time.Now().UTC()
	rows, err := a.store.ConsolidatedPricesBetween(pair, now.Add(-time.Duration(lookbackHours)*time.Hour), now)
	if err != nil {
		return decimal.Zero, 0, err
	}
	if len(rows) < 2 {
		return decimal.Zero, len(rows), &domain.InsufficientDataError{
			Pair:          pair,
			LookbackHours: lookbackHours,
			Points:        len(rows),
		}
	}

	returns := make([]decimal.Decimal, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		r, err := rows[i].VWAP.Div(rows[i-1].VWAP).Ln(volPrecision)
		if err != nil {
			return decimal.Zero, len(rows), err
		}
		returns = append(returns, r)
	}

	n := decimal.NewFromInt(int64(len(returns)))
	var sum decimal.Decimal
	for _, r := range returns {
		sum = sum.Add(r)
	}
	mean := sum.Div(n)

	var sq decimal.Decimal
	for _, r := range returns {
		diff := r.Sub(mean)
		sq = sq.Add(diff.Mul(diff))
	}
	if len(returns) < 2 {
		return decimal.Zero, len(rows), nil
	}
	variance := sq.Div(n.Sub(decimal.NewFromInt(1)))
	if variance.IsZero() {
		return decimal.Zero, len(rows), nil
	}

	stdDev, err := variance.PowWithPrecision(decimalHalf, volPrecision)
	if err != nil {
		return decimal.Zero, len(rows), err
	}
	factor, err := decimal.NewFromInt(minutesPerYear).
		Div(decimal.NewFromInt(int64(lookbackHours * 60))).
		PowWithPrecision(decimalHalf, volPrecision)
	if err != nil {
		return decimal.Zero, len(rows), err
	}
	return stdDev.Mul(factor), len(rows), nil
}
