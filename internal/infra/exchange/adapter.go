// Package exchange contains the read-only venue adapters used by the price
// aggregator. Each venue has its own symbol format and its own convention
// for which asset of a pair sits in the quote position; adapters hide both
// behind a common interface.
package exchange

import (
	"context"

	"swap_rfq/internal/domain"

	"github.com/shopspring/decimal"
)

// Adapter translates canonical asset pairs to venue symbols and fetches
// price/volume observations. Implementations are stateless beyond their
// HTTP client and safe for concurrent use.
type Adapter interface {
	Name() string

	// FormatSymbol returns the venue symbol for the pair, applying the
	// venue's canonical quote-asset ordering (which may invert the pair).
	FormatSymbol(pair domain.AssetPair) string

	// ParseSymbol is the exact inverse of FormatSymbol: it splits a venue
	// symbol on the first matching quote-asset suffix from the venue's
	// precedence list and returns the canonical pair.
	ParseSymbol(symbol string) (domain.AssetPair, error)

	// FetchPrice returns the tick for the pair as requested: when the
	// venue's convention inverts the pair, the result is converted back
	// (price' = 1/price, volume' = volume*price).
	FetchPrice(ctx context.Context, pair domain.AssetPair) (domain.PriceTick, error)

	// FetchBatchPrices fetches all pairs, keyed by venue symbol with ticks
	// in the venue's canonical orientation (ParseSymbol on the key yields
	// the matching pair). Individual pair failures are logged and omitted;
	// zero valid results fail with *domain.NoDataError.
	FetchBatchPrices(ctx context.Context, pairs []domain.AssetPair) (map[string]domain.PriceTick, error)
}

// quotePrecedence canonicalizes a pair under a venue's quote-asset
// precedence list (strongest quote preference first). Assets absent from
// the list never win the quote position against a listed asset.
type quotePrecedence []string

func (q quotePrecedence) rank(asset string) int {
	for i, a := range q {
		if a == asset {
			return i
		}
	}
	return len(q)
}

// canonicalize returns the pair in venue orientation and whether the
// requested pair had to be inverted to get there.
func (q quotePrecedence) canonicalize(pair domain.AssetPair) (domain.AssetPair, bool) {
	if q.rank(pair.BaseAsset) < q.rank(pair.QuoteAsset) {
		return pair.Invert(), true
	}
	return pair, false
}

// splitBySuffix finds the first precedence-list asset the symbol ends
// with and splits base from quote.
func (q quotePrecedence) splitBySuffix(symbol string) (domain.AssetPair, error) {
	for _, quote := range q {
		if len(symbol) > len(quote) && symbol[len(symbol)-len(quote):] == quote {
			return domain.AssetPair{
				BaseAsset:  symbol[:len(symbol)-len(quote)],
				QuoteAsset: quote,
			}, nil
		}
	}
	return domain.AssetPair{}, domain.ErrInvalidSymbol
}

// invertTick converts a venue-oriented tick back into the originally
// requested pair: reciprocal price, volume restated in the requested base.
func invertTick(tick domain.PriceTick) domain.PriceTick {
	if tick.Price.IsZero() {
		return tick
	}
	return domain.PriceTick{
		Price:     decimal.NewFromInt(1).Div(tick.Price),
		Volume24h: tick.Volume24h.Mul(tick.Price),
		Timestamp: tick.Timestamp,
	}
}
