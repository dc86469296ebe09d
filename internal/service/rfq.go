package service

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"swap_rfq/internal/domain"
	"swap_rfq/internal/infra"
	"swap_rfq/internal/infra/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	secondsPerYear = 31536000

	// Premium estimation falls back to this annualized volatility when no
	// metric has been computed yet.
	fallbackVolatility = "0.5"
	defaultRiskFree    = "0.05"

	userRequestsCap = 50
)

// RFQCoordinator owns the request -> quote -> order lifecycle. It records
// hashlocks and timelocks for the on-chain escrows but never enforces them.
type RFQCoordinator struct {
	store    *storage.Store
	cache    *LivePriceCache
	timelock time.Duration
	logger   *slog.Logger
}

// NewRFQCoordinator wires the coordinator. timelock is the refund window
// stamped on new orders.
func NewRFQCoordinator(store *storage.Store, cache *LivePriceCache, timelock time.Duration) *RFQCoordinator {
	return &RFQCoordinator{
		store:    store,
		cache:    cache,
		timelock: timelock,
		logger:   slog.Default().With("module", "rfq"),
	}
}

// RegisterSolver creates an active solver. The address must be a valid
// hex chain address.
func (c *RFQCoordinator) RegisterSolver(name, address string, pairs []domain.SupportedPair) (*domain.Solver, error) {
	if !common.IsHexAddress(address) {
		return nil, domain.ErrInvalidAddress
	}

	solver := &domain.Solver{
		ID:             uuid.NewString(),
		Name:           name,
		Address:        address,
		SupportedPairs: pairs,
		Active:         true,
	}
	if err := c.store.CreateSolver(solver); err != nil {
		return nil, err
	}

	c.logger.Info("Solver registered",
		slog.String("solver_id", solver.ID),
		slog.String("address", address),
	)
	return solver, nil
}

// CreateRequest opens a new RFQ request in pending state.
func (c *RFQCoordinator) CreateRequest(request *domain.RFQRequest) (*domain.RFQRequest, error) {
	request.ID = uuid.NewString()
	request.Status = domain.RequestStatusPending

	if err := c.store.CreateRequest(request); err != nil {
		return nil, err
	}

	c.logger.Info("RFQ request created",
		slog.String("request_id", request.ID),
		slog.String("pair", request.BaseAsset+"/"+request.QuoteAsset),
		slog.String("direction", request.Direction),
	)
	return request, nil
}

// SubmitQuote records a solver's answer to a pending request and flips the
// request to quoted. A request therefore takes exactly one quote.
func (c *RFQCoordinator) SubmitQuote(quote *domain.RFQQuote) (*domain.RFQQuote, error) {
	solver, err := c.store.GetSolver(quote.SolverID)
	if err != nil {
		return nil, err
	}
	if solver == nil || !solver.Active {
		return nil, domain.ErrInvalidSolver
	}

	request, err := c.store.GetRequest(quote.RequestID)
	if err != nil {
		return nil, err
	}
	if request == nil || request.Status != domain.RequestStatusPending {
		return nil, domain.ErrInvalidRequest
	}

	quote.ID = uuid.NewString()
	quote.Status = domain.QuoteStatusPending
	if err := c.store.CreateQuote(quote); err != nil {
		return nil, err
	}
	if err := c.store.UpdateRequestStatus(request.ID, domain.RequestStatusQuoted); err != nil {
		return nil, err
	}

	infra.GlobalMetrics.RecordQuoteSubmitted()
	c.logger.Info("Quote submitted",
		slog.String("quote_id", quote.ID),
		slog.String("request_id", request.ID),
		slog.String("solver_id", solver.ID),
	)
	return quote, nil
}

// GetBestQuote returns the lowest-premium pending quote for the request,
// or nil when none exist.
func (c *RFQCoordinator) GetBestQuote(requestID string) (*domain.RFQQuote, error) {
	return c.store.BestPendingQuote(requestID)
}

// AcceptQuote converts a pending quote into an order. The conversion runs
// in one store transaction; when two acceptors race on the same quote the
// conditional status flip lets exactly one through.
//
// A quote past its expiry is flipped to expired and rejected. The flip
// happens before the order transaction so it commits even though the
// acceptance fails.
//
// hashlock may be empty, in which case a fresh random 32-byte value is
// committed. The caller supplies it when the secret preimage lives with
// the requester's wallet.
func (c *RFQCoordinator) AcceptQuote(quoteID, requesterAddress, hashlock string) (*domain.RFQOrder, error) {
	quote, err := c.store.GetQuote(quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil || quote.Status != domain.QuoteStatusPending {
		return nil, domain.ErrInvalidQuote
	}
	if quote.ExpiryTime > 0 && time.Now().Unix() > quote.ExpiryTime {
		if err := c.store.UpdateQuoteStatus(quote.ID, domain.QuoteStatusExpired); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidQuote
	}

	var order *domain.RFQOrder
	err = c.store.Transaction(func(tx *storage.Store) error {
		quote, err := tx.GetQuote(quoteID)
		if err != nil {
			return err
		}
		if quote == nil || quote.Status != domain.QuoteStatusPending {
			return domain.ErrInvalidQuote
		}

		request, err := tx.GetRequest(quote.RequestID)
		if err != nil {
			return err
		}
		if request == nil {
			return domain.ErrInvalidRequest
		}
		if request.RequesterAddress != requesterAddress {
			return domain.ErrUnauthorized
		}

		solver, err := tx.GetSolver(quote.SolverID)
		if err != nil {
			return err
		}
		if solver == nil {
			return domain.ErrInvalidSolver
		}

		won, err := tx.MarkQuoteAccepted(quote.ID)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrInvalidQuote
		}

		if hashlock == "" {
			hashlock, err = generateHashlock()
			if err != nil {
				return err
			}
		}

		order = &domain.RFQOrder{
			ID:               uuid.NewString(),
			RequestID:        request.ID,
			QuoteID:          quote.ID,
			SolverID:         solver.ID,
			RequesterAddress: request.RequesterAddress,
			SolverAddress:    solver.Address,
			BaseAsset:        request.BaseAsset,
			QuoteAsset:       request.QuoteAsset,
			BaseChain:        request.BaseChain,
			QuoteChain:       request.QuoteChain,
			BaseAmount:       quote.BaseAmount,
			QuoteAmount:      quote.QuoteAmount,
			Premium:          quote.Premium,
			Timelock:         time.Now().Add(c.timelock).Unix(),
			Hashlock:         hashlock,
			Status:           domain.OrderStatusPending,
		}
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		return tx.UpdateRequestStatus(request.ID, domain.RequestStatusFilled)
	})
	if err != nil {
		return nil, err
	}

	infra.GlobalMetrics.RecordOrderCreated()
	c.logger.Info("Quote accepted",
		slog.String("order_id", order.ID),
		slog.String("quote_id", quoteID),
		slog.Int64("timelock", order.Timelock),
	)
	return order, nil
}

// UpdateOrderStatus applies an arbitrary status transition. The tx hash is
// routed to the side matching the new status.
func (c *RFQCoordinator) UpdateOrderStatus(orderID, status, txHash string) (*domain.RFQOrder, error) {
	order, err := c.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	fields := map[string]interface{}{"status": status}
	if txHash != "" {
		switch status {
		case domain.OrderStatusBaseAssetLocked:
			fields["base_tx_hash"] = txHash
		case domain.OrderStatusQuoteAssetLocked:
			fields["quote_tx_hash"] = txHash
		}
	}
	if err := c.store.UpdateOrderFields(orderID, fields); err != nil {
		return nil, err
	}
	return c.store.GetOrder(orderID)
}

// RecordBaseLock marks the requester's escrow deposit.
func (c *RFQCoordinator) RecordBaseLock(orderID, txHash string) (*domain.RFQOrder, error) {
	order, err := c.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	fields := map[string]interface{}{
		"status":       domain.OrderStatusBaseAssetLocked,
		"base_tx_hash": txHash,
	}
	if err := c.store.UpdateOrderFields(orderID, fields); err != nil {
		return nil, err
	}
	return c.store.GetOrder(orderID)
}

// RecordClaim marks the swap completed; txHash, when given, is the
// solver-side claim transaction.
func (c *RFQCoordinator) RecordClaim(orderID, txHash string) (*domain.RFQOrder, error) {
	order, err := c.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	fields := map[string]interface{}{"status": domain.OrderStatusCompleted}
	if txHash != "" {
		fields["quote_tx_hash"] = txHash
	}
	if err := c.store.UpdateOrderFields(orderID, fields); err != nil {
		return nil, err
	}
	return c.store.GetOrder(orderID)
}

// GetOrder returns the order or ErrOrderNotFound.
func (c *RFQCoordinator) GetOrder(orderID string) (*domain.RFQOrder, error) {
	order, err := c.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetActiveRequests returns all pending requests, newest first.
func (c *RFQCoordinator) GetActiveRequests() ([]domain.RFQRequest, error) {
	return c.store.ActiveRequests()
}

// GetUserRequests returns the requester's recent requests, newest first.
func (c *RFQCoordinator) GetUserRequests(address string) ([]domain.RFQRequest, error) {
	return c.store.RequestsByAddress(address, userRequestsCap)
}

// LatestVolatility returns the pair's most recent volatility metric, or
// nil when none has been computed.
func (c *RFQCoordinator) LatestVolatility(pair domain.AssetPair) (*domain.VolatilityMetric, error) {
	return c.store.LatestVolatilityMetric(pair)
}

// VolatilityHistory returns the pair's volatility rows over the last N hours.
func (c *RFQCoordinator) VolatilityHistory(pair domain.AssetPair, hours int) ([]domain.VolatilityMetric, error) {
	return c.store.VolatilityHistory(pair, hours)
}

// EstimatePremium prices an at-the-money option on the pair over live
// market data: spot from the stream cache when fresh, otherwise the latest
// VWAP; volatility from the latest 24h metric with a fallback.
func (c *RFQCoordinator) EstimatePremium(pair domain.AssetPair, timeToExpirySecs int64) (decimal.Decimal, error) {
	if timeToExpirySecs <= 0 {
		return decimal.Zero, fmt.Errorf("time to expiry must be positive, got %d", timeToExpirySecs)
	}

	var spot decimal.Decimal
	if tick, ok := c.cache.Latest(pair); ok {
		spot = tick.Price
	} else {
		latest, err := c.store.LatestConsolidatedPrice(pair)
		if err != nil {
			return decimal.Zero, err
		}
		if latest == nil {
			return decimal.Zero, domain.ErrNoMarketData
		}
		spot = latest.VWAP
	}

	volatility := decimal.RequireFromString(fallbackVolatility)
	if metric, err := c.store.LatestVolatilityMetric(pair); err != nil {
		return decimal.Zero, err
	} else if metric != nil && metric.Volatility24h.IsPositive() {
		volatility = metric.Volatility24h
	}

	return CalculatePremium(PricingParams{
		SpotPrice:    spot,
		StrikePrice:  spot,
		TimeToExpiry: decimal.NewFromInt(timeToExpirySecs).DivRound(decimal.NewFromInt(secondsPerYear), pricingPrecision),
		Volatility:   volatility,
		RiskFreeRate: decimal.RequireFromString(defaultRiskFree),
	})
}

// generateHashlock draws a random 32-byte commitment, hex-encoded.
func generateHashlock() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate hashlock: %w", err)
	}
	return hexutil.Encode(b), nil
}
