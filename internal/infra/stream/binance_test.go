package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"swap_rfq/internal/domain"
	"swap_rfq/internal/infra"
	"swap_rfq/internal/infra/exchange"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

func TestBinanceWorker_StreamURL(t *testing.T) {
	adapter := exchange.NewBinance(infra.ExchangeConfig{})
	w := NewBinanceWorker(infra.ExchangeConfig{}, adapter, []domain.AssetPair{
		domain.NewAssetPair("ETH", "USDT"),
		domain.NewAssetPair("BTC", "USDT"),
	}, nil)

	got := w.streamURL()
	if !strings.Contains(got, "ethusdt%40miniTicker") || !strings.Contains(got, "btcusdt%40miniTicker") {
		t.Errorf("streamURL missing expected streams: %s", got)
	}
}

func TestBinanceWorker_DeliversTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"stream":"ethusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1756728000000,"s":"ETHUSDT","c":"2000.5","v":"150"}}`,
		))
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ticks := make(chan domain.PriceTick, 1)
	pairs := make(chan domain.AssetPair, 1)
	adapter := exchange.NewBinance(infra.ExchangeConfig{})
	worker := NewBinanceWorker(
		infra.ExchangeConfig{WSURL: "ws" + strings.TrimPrefix(server.URL, "http")},
		adapter,
		[]domain.AssetPair{domain.NewAssetPair("ETH", "USDT")},
		func(pair domain.AssetPair, tick domain.PriceTick) {
			select {
			case pairs <- pair:
				ticks <- tick
			default:
			}
		},
	)

	if err := worker.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer worker.Disconnect()

	select {
	case tick := <-ticks:
		if !tick.Price.Equal(decimal.RequireFromString("2000.5")) {
			t.Errorf("Price = %v, want 2000.5", tick.Price)
		}
		if pair := <-pairs; pair != domain.NewAssetPair("ETH", "USDT") {
			t.Errorf("pair = %v, want ETH/USDT", pair)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no tick delivered within 3s")
	}
}

func TestBinanceWorker_IgnoresMalformedMessages(t *testing.T) {
	adapter := exchange.NewBinance(infra.ExchangeConfig{})
	called := false
	worker := NewBinanceWorker(infra.ExchangeConfig{}, adapter,
		[]domain.AssetPair{domain.NewAssetPair("ETH", "USDT")},
		func(domain.AssetPair, domain.PriceTick) { called = true },
	)

	worker.handleMessage([]byte(`not json`))
	worker.handleMessage([]byte(`{"stream":"x","data":{"e":"other"}}`))
	worker.handleMessage([]byte(`{"stream":"x","data":{"e":"24hrMiniTicker","s":"ETHUSDT","c":"abc","v":"1"}}`))

	if called {
		t.Error("malformed messages must not reach the handler")
	}
}
