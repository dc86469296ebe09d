package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swap_rfq/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the relational database. All coordinator and aggregator
// persistence goes through it; Transaction exposes the store-level
// atomicity AcceptQuote depends on.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the SQLite database at path and runs
// migrations.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Immediate transactions plus a busy timeout make concurrent writers
	// queue instead of surfacing SQLITE_BUSY to the caller.
	dsn := path + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&domain.ExchangePrice{},
		&domain.ConsolidatedPrice{},
		&domain.VolatilityMetric{},
		&domain.Solver{},
		&domain.RFQRequest{},
		&domain.RFQQuote{},
		&domain.RFQOrder{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping is the trivial connectivity probe used at startup.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

// Transaction runs fn inside one database transaction; any error rolls
// everything back.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// ======================================================================================
// Price data
// ======================================================================================

// SaveExchangePrices appends one cycle's raw ticks in a single batch.
func (s *Store) SaveExchangePrices(records []domain.ExchangePrice) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Create(&records).Error
}

// ExchangePricesAt returns the raw rows of one cycle for a pair.
func (s *Store) ExchangePricesAt(ts time.Time, pair domain.AssetPair) ([]domain.ExchangePrice, error) {
	var rows []domain.ExchangePrice
	err := s.db.
		Where("timestamp = ? AND base_asset = ? AND quote_asset = ?", ts, pair.BaseAsset, pair.QuoteAsset).
		Find(&rows).Error
	return rows, err
}

// SaveConsolidatedPrice persists one cycle's VWAP row for a pair.
func (s *Store) SaveConsolidatedPrice(price *domain.ConsolidatedPrice) error {
	return s.db.Create(price).Error
}

// ConsolidatedPricesBetween returns consolidated rows for the pair in
// [from, to], oldest first.
func (s *Store) ConsolidatedPricesBetween(pair domain.AssetPair, from, to time.Time) ([]domain.ConsolidatedPrice, error) {
	var rows []domain.ConsolidatedPrice
	err := s.db.
		Where("base_asset = ? AND quote_asset = ? AND timestamp >= ? AND timestamp <= ?",
			pair.BaseAsset, pair.QuoteAsset, from, to).
		Order("timestamp ASC").
		Find(&rows).Error
	return rows, err
}

// LatestConsolidatedPrice returns the newest VWAP row for the pair, or
// nil when none exists.
func (s *Store) LatestConsolidatedPrice(pair domain.AssetPair) (*domain.ConsolidatedPrice, error) {
	var row domain.ConsolidatedPrice
	err := s.db.
		Where("base_asset = ? AND quote_asset = ?", pair.BaseAsset, pair.QuoteAsset).
		Order("timestamp DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveVolatilityMetric persists one cycle's volatility row for a pair.
func (s *Store) SaveVolatilityMetric(metric *domain.VolatilityMetric) error {
	return s.db.Create(metric).Error
}

// LatestVolatilityMetric returns the newest volatility row for the pair,
// or nil when none exists.
func (s *Store) LatestVolatilityMetric(pair domain.AssetPair) (*domain.VolatilityMetric, error) {
	var row domain.VolatilityMetric
	err := s.db.
		Where("base_asset = ? AND quote_asset = ?", pair.BaseAsset, pair.QuoteAsset).
		Order("timestamp DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// VolatilityHistory returns the pair's volatility rows over the last N
// hours, newest first.
func (s *Store) VolatilityHistory(pair domain.AssetPair, hours int) ([]domain.VolatilityMetric, error) {
	var rows []domain.VolatilityMetric
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	err := s.db.
		Where("base_asset = ? AND quote_asset = ? AND timestamp >= ?", pair.BaseAsset, pair.QuoteAsset, since).
		Order("timestamp DESC").
		Find(&rows).Error
	return rows, err
}

// ======================================================================================
// RFQ entities
// ======================================================================================

// CreateSolver persists a new solver.
func (s *Store) CreateSolver(solver *domain.Solver) error {
	return s.db.Create(solver).Error
}

// GetSolver returns the solver or nil when not found.
func (s *Store) GetSolver(id string) (*domain.Solver, error) {
	var solver domain.Solver
	err := s.db.First(&solver, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &solver, nil
}

// CreateRequest persists a new RFQ request.
func (s *Store) CreateRequest(request *domain.RFQRequest) error {
	return s.db.Create(request).Error
}

// GetRequest returns the request or nil when not found.
func (s *Store) GetRequest(id string) (*domain.RFQRequest, error) {
	var request domain.RFQRequest
	err := s.db.First(&request, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateRequestStatus sets the request status unconditionally.
func (s *Store) UpdateRequestStatus(id, status string) error {
	return s.db.Model(&domain.RFQRequest{}).Where("id = ?", id).Update("status", status).Error
}

// ActiveRequests returns pending requests, newest first.
func (s *Store) ActiveRequests() ([]domain.RFQRequest, error) {
	var requests []domain.RFQRequest
	err := s.db.
		Where("status = ?", domain.RequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// RequestsByAddress returns a requester's requests, newest first, capped.
func (s *Store) RequestsByAddress(address string, limit int) ([]domain.RFQRequest, error) {
	var requests []domain.RFQRequest
	err := s.db.
		Where("requester_address = ?", address).
		Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

// CreateQuote persists a new quote.
func (s *Store) CreateQuote(quote *domain.RFQQuote) error {
	return s.db.Create(quote).Error
}

// GetQuote returns the quote or nil when not found.
func (s *Store) GetQuote(id string) (*domain.RFQQuote, error) {
	var quote domain.RFQQuote
	err := s.db.First(&quote, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// UpdateQuoteStatus sets the quote status unconditionally.
func (s *Store) UpdateQuoteStatus(id, status string) error {
	return s.db.Model(&domain.RFQQuote{}).Where("id = ?", id).Update("status", status).Error
}

// MarkQuoteAccepted flips the quote from pending to accepted. The
// conditional update is what guarantees at-most-once acceptance: a
// concurrent acceptor that lost the race sees false.
func (s *Store) MarkQuoteAccepted(id string) (bool, error) {
	res := s.db.Model(&domain.RFQQuote{}).
		Where("id = ? AND status = ?", id, domain.QuoteStatusPending).
		Update("status", domain.QuoteStatusAccepted)
	return res.RowsAffected > 0, res.Error
}

// BestPendingQuote returns the pending quote with the lowest premium for
// the request, or nil when none exist.
func (s *Store) BestPendingQuote(requestID string) (*domain.RFQQuote, error) {
	var quote domain.RFQQuote
	err := s.db.
		Where("request_id = ? AND status = ?", requestID, domain.QuoteStatusPending).
		Order("premium ASC").
		First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// CreateOrder persists a new order.
func (s *Store) CreateOrder(order *domain.RFQOrder) error {
	return s.db.Create(order).Error
}

// GetOrder returns the order or nil when not found.
func (s *Store) GetOrder(id string) (*domain.RFQOrder, error) {
	var order domain.RFQOrder
	err := s.db.First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderFields applies a partial update to the order row.
func (s *Store) UpdateOrderFields(id string, fields map[string]interface{}) error {
	return s.db.Model(&domain.RFQOrder{}).Where("id = ?", id).Updates(fields).Error
}
