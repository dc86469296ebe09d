package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimal columns are declared TEXT: SQLite's NUMERIC affinity would
// coerce them to float64 and lose digits on read-back.

// ExchangePrice is one raw tick persisted per exchange per pair per
// aggregation cycle. Append-only: rows sharing a Timestamp belong to the
// same cycle.
type ExchangePrice struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Timestamp   time.Time       `gorm:"index:idx_exchange_prices_cycle" json:"timestamp"`
	Exchange    string          `json:"exchange"`
	BaseAsset   string          `gorm:"index:idx_exchange_prices_cycle" json:"base_asset"`
	QuoteAsset  string          `gorm:"index:idx_exchange_prices_cycle" json:"quote_asset"`
	Price       decimal.Decimal `gorm:"type:text" json:"price"`
	VolumeBase  decimal.Decimal `gorm:"type:text" json:"volume_base"`
	VolumeQuote decimal.Decimal `gorm:"type:text" json:"volume_quote"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ConsolidatedPrice is the volume-weighted consolidation of one cycle's
// ExchangePrice rows for a pair. Created once per cycle per pair and
// immutable afterwards.
//
// Invariant: VWAP = sum(price_i * volumeBase_i) / sum(volumeBase_i) over
// the contributing rows, and NumExchanges is their count.
type ConsolidatedPrice struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Timestamp        time.Time       `gorm:"index:idx_consolidated_prices_pair" json:"timestamp"`
	BaseAsset        string          `gorm:"index:idx_consolidated_prices_pair" json:"base_asset"`
	QuoteAsset       string          `gorm:"index:idx_consolidated_prices_pair" json:"quote_asset"`
	VWAP             decimal.Decimal `gorm:"type:text" json:"vwap"`
	TotalVolumeBase  decimal.Decimal `gorm:"type:text" json:"total_volume_base"`
	TotalVolumeQuote decimal.Decimal `gorm:"type:text" json:"total_volume_quote"`
	NumExchanges     int             `json:"num_exchanges"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SampleCounts records how many consolidated points each volatility window
// actually observed. Informational only: annualization uses the nominal
// per-minute sample model, not these counts.
type SampleCounts struct {
	Window1h  int `json:"1h"`
	Window24h int `json:"24h"`
	Window7d  int `json:"7d"`
}

// VolatilityMetric is the rolling annualized volatility of a pair over
// three lookback windows, derived from ConsolidatedPrice history.
// Recomputed each cycle; history is never rewritten.
type VolatilityMetric struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time       `gorm:"index:idx_volatility_metrics_pair" json:"timestamp"`
	BaseAsset     string          `gorm:"index:idx_volatility_metrics_pair" json:"base_asset"`
	QuoteAsset    string          `gorm:"index:idx_volatility_metrics_pair" json:"quote_asset"`
	Volatility1h  decimal.Decimal `gorm:"type:text" json:"volatility_1h"`
	Volatility24h decimal.Decimal `gorm:"type:text" json:"volatility_24h"`
	Volatility7d  decimal.Decimal `gorm:"type:text" json:"volatility_7d"`
	SampleCounts  SampleCounts    `gorm:"serializer:json" json:"sample_counts"`
	LastUpdated   time.Time       `json:"last_updated"`
	CreatedAt     time.Time       `json:"created_at"`
}
