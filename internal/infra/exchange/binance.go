package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"swap_rfq/internal/domain"
	"swap_rfq/internal/infra"

	"github.com/shopspring/decimal"
)

const binanceDefaultURL = "https://api.binance.com/api/v3"

// binanceQuotes is Binance's quote-asset precedence: USDT is always the
// quote unless the base itself ranks higher, BTC except against USDT,
// ETH except against BTC/USDT, and so on down the list.
var binanceQuotes = quotePrecedence{"USDT", "BTC", "ETH", "BNB", "BUSD"}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type binanceStats struct {
	Symbol string `json:"symbol"`
	Volume string `json:"volume"`
}

// Binance is the Binance spot REST adapter.
type Binance struct {
	baseURL string
	rm      *infra.RequestManager
	logger  *slog.Logger
}

// NewBinance creates the adapter from venue config; zero-value retry
// fields fall back to the client defaults.
func NewBinance(cfg infra.ExchangeConfig) *Binance {
	baseURL := cfg.RestURL
	if baseURL == "" {
		baseURL = binanceDefaultURL
	}
	return &Binance{
		baseURL: baseURL,
		rm: infra.NewRequestManager(infra.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay(),
			MaxDelay:   cfg.MaxDelay(),
		}),
		logger: slog.Default().With("module", "binance"),
	}
}

func (b *Binance) Name() string { return "binance" }

// FormatSymbol canonicalizes the pair under Binance's quote ordering and
// joins base+quote with no separator.
func (b *Binance) FormatSymbol(pair domain.AssetPair) string {
	canonical, _ := binanceQuotes.canonicalize(pair)
	return strings.ToUpper(canonical.BaseAsset + canonical.QuoteAsset)
}

// ParseSymbol splits on the first matching quote suffix from the
// precedence list.
func (b *Binance) ParseSymbol(symbol string) (domain.AssetPair, error) {
	return binanceQuotes.splitBySuffix(strings.ToUpper(symbol))
}

// FetchPrice fetches last price and 24h base volume for one pair,
// inverting the venue result when the canonical orientation differs from
// the requested one.
func (b *Binance) FetchPrice(ctx context.Context, pair domain.AssetPair) (domain.PriceTick, error) {
	canonical, inverted := binanceQuotes.canonicalize(pair)
	symbol := strings.ToUpper(canonical.BaseAsset + canonical.QuoteAsset)

	body, err := b.rm.Get(ctx, fmt.Sprintf("%s/ticker/price?symbol=%s", b.baseURL, symbol))
	if err != nil {
		return domain.PriceTick{}, err
	}
	var ticker binanceTicker
	if err := json.Unmarshal(body, &ticker); err != nil {
		return domain.PriceTick{}, fmt.Errorf("binance ticker parse failed: %w", err)
	}

	body, err = b.rm.Get(ctx, fmt.Sprintf("%s/ticker/24hr?symbol=%s", b.baseURL, symbol))
	if err != nil {
		return domain.PriceTick{}, err
	}
	var stats binanceStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return domain.PriceTick{}, fmt.Errorf("binance 24hr parse failed: %w", err)
	}

	tick, err := buildTick(ticker.Price, stats.Volume)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("binance %s: %w", symbol, err)
	}
	if inverted {
		tick = invertTick(tick)
	}
	return tick, nil
}

// FetchBatchPrices pulls the full ticker and 24hr books in two calls and
// filters down to the wanted symbols. Pairs missing from either book are
// logged and omitted; an empty result is a NoDataError.
func (b *Binance) FetchBatchPrices(ctx context.Context, pairs []domain.AssetPair) (map[string]domain.PriceTick, error) {
	wanted := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		wanted[b.FormatSymbol(pair)] = true
	}

	body, err := b.rm.Get(ctx, b.baseURL+"/ticker/price")
	if err != nil {
		return nil, err
	}
	var tickers []binanceTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("binance ticker parse failed: %w", err)
	}

	body, err = b.rm.Get(ctx, b.baseURL+"/ticker/24hr")
	if err != nil {
		return nil, err
	}
	var stats []binanceStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("binance 24hr parse failed: %w", err)
	}

	prices := make(map[string]string, len(pairs))
	volumes := make(map[string]string, len(pairs))
	for _, t := range tickers {
		if wanted[t.Symbol] {
			prices[t.Symbol] = t.Price
		}
	}
	for _, s := range stats {
		if wanted[s.Symbol] {
			volumes[s.Symbol] = s.Volume
		}
	}

	result := make(map[string]domain.PriceTick, len(pairs))
	now := time.Now().UTC()
	for symbol := range wanted {
		price, okP := prices[symbol]
		volume, okV := volumes[symbol]
		if !okP || !okV {
			b.logger.Warn("Missing data for symbol", slog.String("symbol", symbol))
			continue
		}
		tick, err := buildTick(price, volume)
		if err != nil {
			b.logger.Warn("Bad tick for symbol", slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		tick.Timestamp = now
		result[symbol] = tick
	}

	if len(result) == 0 {
		return nil, &domain.NoDataError{Exchange: b.Name()}
	}
	return result, nil
}

// buildTick parses venue decimal strings into a tick stamped now.
func buildTick(price, volume string) (domain.PriceTick, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("bad price %q: %w", price, err)
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("bad volume %q: %w", volume, err)
	}
	return domain.PriceTick{Price: p, Volume24h: v, Timestamp: time.Now().UTC()}, nil
}
