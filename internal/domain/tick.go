package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one venue's observation of a market: last price plus 24h
// volume denominated in the base asset. Produced by an exchange adapter,
// never mutated afterwards.
type PriceTick struct {
	Price     decimal.Decimal `json:"price"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	Timestamp time.Time       `json:"timestamp"`
}
