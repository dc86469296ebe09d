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
)

const coinbaseDefaultURL = "https://api.exchange.coinbase.com"

// Coinbase quote precedence. USD products dominate there, USDT first keeps
// stable pairs oriented the same way as on Binance.
var coinbaseQuotes = quotePrecedence{"USDT", "USD", "BTC", "ETH"}

type coinbaseTicker struct {
	Price string `json:"price"`
	Time  string `json:"time"`
}

type coinbaseStats struct {
	Volume string `json:"volume"`
}

// Coinbase is the Coinbase Exchange REST adapter. The venue has no
// reliable multi-symbol endpoint, so batches degrade to one call per pair.
type Coinbase struct {
	baseURL string
	rm      *infra.RequestManager
	logger  *slog.Logger
}

// NewCoinbase creates the adapter from venue config.
func NewCoinbase(cfg infra.ExchangeConfig) *Coinbase {
	baseURL := cfg.RestURL
	if baseURL == "" {
		baseURL = coinbaseDefaultURL
	}
	return &Coinbase{
		baseURL: baseURL,
		rm: infra.NewRequestManager(infra.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay(),
			MaxDelay:   cfg.MaxDelay(),
		}),
		logger: slog.Default().With("module", "coinbase"),
	}
}

func (c *Coinbase) Name() string { return "coinbase" }

// FormatSymbol canonicalizes the pair and joins base-quote with a dash.
func (c *Coinbase) FormatSymbol(pair domain.AssetPair) string {
	canonical, _ := coinbaseQuotes.canonicalize(pair)
	return strings.ToUpper(canonical.BaseAsset + "-" + canonical.QuoteAsset)
}

// ParseSymbol splits on the dash, falling back to suffix matching for
// dashless input, and rejects symbols whose quote side is unknown.
func (c *Coinbase) ParseSymbol(symbol string) (domain.AssetPair, error) {
	symbol = strings.ToUpper(symbol)
	base, quote, found := strings.Cut(symbol, "-")
	if !found {
		return coinbaseQuotes.splitBySuffix(symbol)
	}
	if base == "" || quote == "" {
		return domain.AssetPair{}, domain.ErrInvalidSymbol
	}
	return domain.AssetPair{BaseAsset: base, QuoteAsset: quote}, nil
}

// FetchPrice fetches ticker + stats for one pair, inverting the result
// when the canonical orientation differs from the requested one.
func (c *Coinbase) FetchPrice(ctx context.Context, pair domain.AssetPair) (domain.PriceTick, error) {
	canonical, inverted := coinbaseQuotes.canonicalize(pair)
	symbol := strings.ToUpper(canonical.BaseAsset + "-" + canonical.QuoteAsset)

	tick, err := c.fetchSymbol(ctx, symbol)
	if err != nil {
		return domain.PriceTick{}, err
	}
	if inverted {
		tick = invertTick(tick)
	}
	return tick, nil
}

func (c *Coinbase) fetchSymbol(ctx context.Context, symbol string) (domain.PriceTick, error) {
	body, err := c.rm.Get(ctx, fmt.Sprintf("%s/products/%s/ticker", c.baseURL, symbol))
	if err != nil {
		return domain.PriceTick{}, err
	}
	var ticker coinbaseTicker
	if err := json.Unmarshal(body, &ticker); err != nil {
		return domain.PriceTick{}, fmt.Errorf("coinbase ticker parse failed: %w", err)
	}

	body, err = c.rm.Get(ctx, fmt.Sprintf("%s/products/%s/stats", c.baseURL, symbol))
	if err != nil {
		return domain.PriceTick{}, err
	}
	var stats coinbaseStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return domain.PriceTick{}, fmt.Errorf("coinbase stats parse failed: %w", err)
	}

	tick, err := buildTick(ticker.Price, stats.Volume)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("coinbase %s: %w", symbol, err)
	}
	if ts, err := time.Parse(time.RFC3339, ticker.Time); err == nil {
		tick.Timestamp = ts
	}
	return tick, nil
}

// FetchBatchPrices fetches each pair individually. Per-pair failures are
// logged and omitted; zero valid results fail with NoDataError.
func (c *Coinbase) FetchBatchPrices(ctx context.Context, pairs []domain.AssetPair) (map[string]domain.PriceTick, error) {
	result := make(map[string]domain.PriceTick, len(pairs))
	for _, pair := range pairs {
		symbol := c.FormatSymbol(pair)
		tick, err := c.fetchSymbol(ctx, symbol)
		if err != nil {
			c.logger.Warn("Failed to fetch symbol",
				slog.String("symbol", symbol),
				slog.Any("error", err),
			)
			continue
		}
		result[symbol] = tick
	}

	if len(result) == 0 {
		return nil, &domain.NoDataError{Exchange: c.Name()}
	}
	return result, nil
}
