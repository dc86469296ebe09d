package service

import (
	"testing"
	"time"

	"swap_rfq/internal/domain"

	"github.com/shopspring/decimal"
)

func TestLivePriceCache_FreshTick(t *testing.T) {
	cache := NewLivePriceCache()
	pair := domain.NewAssetPair("ETH", "USDT")

	if _, ok := cache.Latest(pair); ok {
		t.Fatal("empty cache must miss")
	}

	cache.Update(pair, domain.PriceTick{
		Price:     decimal.NewFromInt(2000),
		Timestamp: time.Now(),
	})

	tick, ok := cache.Latest(pair)
	if !ok {
		t.Fatal("fresh tick must hit")
	}
	if !tick.Price.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Price = %v, want 2000", tick.Price)
	}
}

func TestLivePriceCache_StaleTickMisses(t *testing.T) {
	cache := NewLivePriceCache()
	cache.staleAfter = 10 * time.Millisecond
	pair := domain.NewAssetPair("ETH", "USDT")

	cache.Update(pair, domain.PriceTick{
		Price:     decimal.NewFromInt(2000),
		Timestamp: time.Now().Add(-time.Second),
	})

	if _, ok := cache.Latest(pair); ok {
		t.Error("stale tick must miss")
	}
	if cache.Len() != 1 {
		t.Errorf("stale tick should still count toward Len, got %d", cache.Len())
	}
}
