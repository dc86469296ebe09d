package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"swap_rfq/internal/domain"
	"swap_rfq/internal/infra"
	"swap_rfq/internal/infra/exchange"
	"swap_rfq/internal/infra/storage"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return store
}

func fastConfig(url string) infra.ExchangeConfig {
	return infra.ExchangeConfig{
		RestURL:     url,
		MaxRetries:  1,
		BaseDelayMS: 1,
		MaxDelayMS:  2,
	}
}

func binanceTestServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ticker/price":
			w.Write([]byte(`[{"symbol":"ETHUSDT","price":"2000"}]`))
		case "/ticker/24hr":
			w.Write([]byte(`[{"symbol":"ETHUSDT","volume":"100"}]`))
		}
	}))
}

func coinbaseTestServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/ETH-USDT/ticker":
			w.Write([]byte(`{"price":"2010","time":"2026-09-01T12:00:00Z"}`))
		case "/products/ETH-USDT/stats":
			w.Write([]byte(`{"volume":"50"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestAggregator_CycleComputesVWAP(t *testing.T) {
	binanceSrv := binanceTestServer()
	defer binanceSrv.Close()
	coinbaseSrv := coinbaseTestServer()
	defer coinbaseSrv.Close()

	store := newTestStore(t)
	pair := domain.NewAssetPair("ETH", "USDT")
	agg := NewAggregator(store, []exchange.Adapter{
		exchange.NewBinance(fastConfig(binanceSrv.URL)),
		exchange.NewCoinbase(fastConfig(coinbaseSrv.URL)),
	}, []domain.AssetPair{pair})

	if err := agg.FetchAndStorePrices(context.Background()); err != nil {
		t.Fatalf("FetchAndStorePrices failed: %v", err)
	}

	latest, err := store.LatestConsolidatedPrice(pair)
	if err != nil || latest == nil {
		t.Fatalf("no consolidated price: %v, %v", latest, err)
	}
	if latest.NumExchanges != 2 {
		t.Errorf("NumExchanges = %d, want 2", latest.NumExchanges)
	}

	// VWAP = (2000*100 + 2010*50) / 150
	expected := decimal.NewFromInt(2000).Mul(decimal.NewFromInt(100)).
		Add(decimal.NewFromInt(2010).Mul(decimal.NewFromInt(50))).
		Div(decimal.NewFromInt(150))
	if !latest.VWAP.Equal(expected) {
		t.Errorf("VWAP = %v, want %v", latest.VWAP, expected)
	}

	raw, err := store.ExchangePricesAt(latest.Timestamp, pair)
	if err != nil {
		t.Fatalf("ExchangePricesAt failed: %v", err)
	}
	if len(raw) != 2 {
		t.Errorf("expected 2 raw rows, got %d", len(raw))
	}
}

func TestAggregator_ToleratesDeadVenue(t *testing.T) {
	binanceSrv := binanceTestServer()
	defer binanceSrv.Close()
	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer deadSrv.Close()

	store := newTestStore(t)
	pair := domain.NewAssetPair("ETH", "USDT")
	agg := NewAggregator(store, []exchange.Adapter{
		exchange.NewBinance(fastConfig(binanceSrv.URL)),
		exchange.NewCoinbase(fastConfig(deadSrv.URL)),
	}, []domain.AssetPair{pair})

	if err := agg.FetchAndStorePrices(context.Background()); err != nil {
		t.Fatalf("one live venue should carry the cycle: %v", err)
	}

	latest, _ := store.LatestConsolidatedPrice(pair)
	if latest == nil || latest.NumExchanges != 1 {
		t.Fatalf("expected a single-venue consolidation, got %+v", latest)
	}
	if !latest.VWAP.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("VWAP = %v, want 2000", latest.VWAP)
	}
}

func TestAggregator_AllVenuesDead(t *testing.T) {
	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer deadSrv.Close()

	store := newTestStore(t)
	agg := NewAggregator(store, []exchange.Adapter{
		exchange.NewBinance(fastConfig(deadSrv.URL)),
	}, []domain.AssetPair{domain.NewAssetPair("ETH", "USDT")})

	err := agg.FetchAndStorePrices(context.Background())
	if !errors.Is(err, domain.ErrNoMarketData) {
		t.Fatalf("expected ErrNoMarketData, got %v", err)
	}
}

func seedConsolidated(t *testing.T, store *storage.Store, pair domain.AssetPair, prices []string) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Duration(len(prices)) * time.Minute)
	for i, p := range prices {
		err := store.SaveConsolidatedPrice(&domain.ConsolidatedPrice{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			BaseAsset:  pair.BaseAsset,
			QuoteAsset: pair.QuoteAsset,
			VWAP:       decimal.RequireFromString(p),
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestAggregator_CalculateVolatility(t *testing.T) {
	store := newTestStore(t)
	pair := domain.NewAssetPair("ETH", "USDT")
	agg := NewAggregator(store, nil, []domain.AssetPair{pair})

	t.Run("insufficient data", func(t *testing.T) {
		_, points, err := agg.CalculateVolatility(pair, 1)
		var insufficient *domain.InsufficientDataError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientDataError, got %v", err)
		}
		if points != 0 {
			t.Errorf("points = %d, want 0", points)
		}
	})

	t.Run("constant prices", func(t *testing.T) {
		seedConsolidated(t, store, pair, []string{"2000", "2000", "2000", "2000"})
		vol, points, err := agg.CalculateVolatility(pair, 1)
		if err != nil {
			t.Fatalf("CalculateVolatility failed: %v", err)
		}
		if !vol.IsZero() {
			t.Errorf("constant series should have zero volatility, got %v", vol)
		}
		if points != 4 {
			t.Errorf("points = %d, want 4", points)
		}
	})

	t.Run("varying prices", func(t *testing.T) {
		other := domain.NewAssetPair("BTC", "USDT")
		seedConsolidated(t, store, other, []string{"40000", "40400", "39800", "40200"})
		vol, _, err := agg.CalculateVolatility(other, 1)
		if err != nil {
			t.Fatalf("CalculateVolatility failed: %v", err)
		}
		if !vol.IsPositive() {
			t.Errorf("varying series should have positive volatility, got %v", vol)
		}
		// Annualization inflates a per-minute stddev by sqrt(525600/60) ~ 93.6,
		// so even a ~1% move series lands well above 0.5 annualized.
		if vol.LessThan(decimal.RequireFromString("0.5")) {
			t.Errorf("annualized volatility suspiciously low: %v", vol)
		}
	})
}
