package domain

import (
	"fmt"
	"strings"
)

// AssetPair identifies a market as base/quote, both uppercase tickers.
// Pure value type: two pairs are the same market iff both fields match.
type AssetPair struct {
	BaseAsset  string `json:"base_asset" yaml:"base"`
	QuoteAsset string `json:"quote_asset" yaml:"quote"`
}

// NewAssetPair normalizes both tickers to uppercase.
func NewAssetPair(base, quote string) AssetPair {
	return AssetPair{
		BaseAsset:  strings.ToUpper(base),
		QuoteAsset: strings.ToUpper(quote),
	}
}

// Invert swaps base and quote.
func (p AssetPair) Invert() AssetPair {
	return AssetPair{BaseAsset: p.QuoteAsset, QuoteAsset: p.BaseAsset}
}

func (p AssetPair) String() string {
	return fmt.Sprintf("%s/%s", p.BaseAsset, p.QuoteAsset)
}
