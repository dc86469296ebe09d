package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request lifecycle: pending -> quoted -> filled, with expired/cancelled
// as terminal side exits. Expiry enforcement is the caller's job;
// TimeToLive is advisory metadata.
const (
	RequestStatusPending   = "pending"
	RequestStatusQuoted    = "quoted"
	RequestStatusFilled    = "filled"
	RequestStatusExpired   = "expired"
	RequestStatusCancelled = "cancelled"

	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"

	OrderStatusPending          = "pending"
	OrderStatusBaseAssetLocked  = "baseAssetLocked"
	OrderStatusQuoteAssetLocked = "quoteAssetLocked"
	OrderStatusCompleted        = "completed"
	OrderStatusFailed           = "failed"
	OrderStatusRefunded         = "refunded"

	DirectionBuy  = "buy"
	DirectionSell = "sell"
)

// SupportedPair is one market a solver is willing to quote, on a given chain.
type SupportedPair struct {
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	Chain      string `json:"chain"`
}

// Solver is a registered liquidity provider. Active=false blocks quoting.
type Solver struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	Name           string          `json:"name"`
	Address        string          `gorm:"index" json:"address"`
	SupportedPairs []SupportedPair `gorm:"serializer:json" json:"supported_pairs"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RFQRequest is a taker's ask for prices on a cross-chain swap.
type RFQRequest struct {
	ID               string          `gorm:"primaryKey" json:"id"`
	BaseAsset        string          `json:"base_asset"`
	QuoteAsset       string          `json:"quote_asset"`
	BaseChain        string          `json:"base_chain"`
	QuoteChain       string          `json:"quote_chain"`
	Amount           decimal.Decimal `gorm:"type:text" json:"amount"`
	Direction        string          `json:"direction"` // "buy", "sell"
	TimeToLive       int64           `json:"time_to_live"` // seconds
	RequesterAddress string          `gorm:"index" json:"requester_address"`
	Status           string          `gorm:"index" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// RFQQuote is one solver's priced answer to a request.
type RFQQuote struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	RequestID   string          `gorm:"index" json:"request_id"`
	SolverID    string          `gorm:"index" json:"solver_id"`
	BaseAmount  decimal.Decimal `gorm:"type:text" json:"base_amount"`
	QuoteAmount decimal.Decimal `gorm:"type:text" json:"quote_amount"`
	Premium     decimal.Decimal `gorm:"type:text" json:"premium"`
	ExpiryTime  int64           `json:"expiry_time"` // unix seconds
	Signature   string          `json:"signature,omitempty"`
	Status      string          `gorm:"index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RFQOrder is created exactly once, when a quote is accepted. Amounts,
// assets and chains are copied from the quote/request at acceptance time;
// afterwards only Status and the tx-hash fields mutate.
//
// Hashlock is the shared secret commitment both on-chain escrows verify;
// Timelock is the unix second after which the escrows permit refund. The
// coordinator records both, it never enforces them.
type RFQOrder struct {
	ID               string          `gorm:"primaryKey" json:"id"`
	RequestID        string          `gorm:"index" json:"request_id"`
	QuoteID          string          `gorm:"uniqueIndex" json:"quote_id"`
	SolverID         string          `json:"solver_id"`
	RequesterAddress string          `gorm:"index" json:"requester_address"`
	SolverAddress    string          `json:"solver_address"`
	BaseAsset        string          `json:"base_asset"`
	QuoteAsset       string          `json:"quote_asset"`
	BaseChain        string          `json:"base_chain"`
	QuoteChain       string          `json:"quote_chain"`
	BaseAmount       decimal.Decimal `gorm:"type:text" json:"base_amount"`
	QuoteAmount      decimal.Decimal `gorm:"type:text" json:"quote_amount"`
	Premium          decimal.Decimal `gorm:"type:text" json:"premium"`
	Timelock         int64           `json:"timelock"` // unix seconds
	Hashlock         string          `json:"hashlock"`
	BaseTxHash       string          `json:"base_tx_hash,omitempty"`
	QuoteTxHash      string          `json:"quote_tx_hash,omitempty"`
	Status           string          `gorm:"index" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsOpen reports whether the order can still move forward.
func (o *RFQOrder) IsOpen() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusBaseAssetLocked, OrderStatusQuoteAssetLocked:
		return true
	}
	return false
}
