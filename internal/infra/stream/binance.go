// Package stream maintains the live Binance miniTicker WebSocket feed.
// The feed is a freshness optimization on top of the polled aggregation
// cycle; losing it degrades reads to the latest persisted VWAP.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"swap_rfq/internal/domain"
	"swap_rfq/internal/infra"
	"swap_rfq/internal/infra/exchange"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	binanceStreamURL = "wss://stream.binance.com:9443/stream"
	readTimeout      = 90 * time.Second
	maxRetries       = 10
)

// TickHandler receives every live tick with its canonical pair.
type TickHandler func(pair domain.AssetPair, tick domain.PriceTick)

type miniTickerEnvelope struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

type miniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // milliseconds
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
}

// BinanceWorker holds one combined-stream WebSocket connection and
// reconnects with backoff until Disconnect.
type BinanceWorker struct {
	wsURL   string
	pairs   []domain.AssetPair
	handler TickHandler
	adapter *exchange.Binance
	logger  *slog.Logger

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewBinanceWorker builds a worker for the given pairs. handler is called
// from the read loop and must not block.
func NewBinanceWorker(cfg infra.ExchangeConfig, adapter *exchange.Binance, pairs []domain.AssetPair, handler TickHandler) *BinanceWorker {
	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = binanceStreamURL
	}
	return &BinanceWorker{
		wsURL:   wsURL,
		pairs:   pairs,
		handler: handler,
		adapter: adapter,
		logger:  slog.Default().With("module", "binance_stream"),
	}
}

// streamURL builds the combined-stream URL: one miniTicker stream per pair.
func (w *BinanceWorker) streamURL() string {
	streams := make([]string, 0, len(w.pairs))
	for _, pair := range w.pairs {
		symbol := strings.ToLower(w.adapter.FormatSymbol(pair))
		streams = append(streams, symbol+"@miniTicker")
	}
	return w.wsURL + "?streams=" + url.QueryEscape(strings.Join(streams, "/"))
}

func (w *BinanceWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *BinanceWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			infra.GlobalMetrics.SetStreamConnected(false)
			w.logger.Warn("Binance stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0 // Infinite retry loop for monitoring
			}
			time.Sleep(infra.CalculateBackoff(retryCount))
		} else {
			retryCount = 0
			w.readLoop(ctx)
			infra.GlobalMetrics.SetStreamConnected(false)
		}
	}
}

func (w *BinanceWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.streamURL(), nil)
	if err != nil {
		return err
	}

	// Binance pings from the server side; answering keeps the read
	// deadline moving.
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return w.threadSafeWrite(websocket.PongMessage, []byte(appData))
	})

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	infra.GlobalMetrics.SetStreamConnected(true)
	w.logger.Info("Binance stream connected", slog.Int("pairs", len(w.pairs)))
	return nil
}

func (w *BinanceWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *BinanceWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *BinanceWorker) handleMessage(msg []byte) {
	var envelope miniTickerEnvelope
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return
	}
	if envelope.Data.EventType != "24hrMiniTicker" {
		return
	}

	pair, err := w.adapter.ParseSymbol(envelope.Data.Symbol)
	if err != nil {
		return
	}
	price, err := decimal.NewFromString(envelope.Data.Close)
	if err != nil {
		return
	}
	volume, err := decimal.NewFromString(envelope.Data.Volume)
	if err != nil {
		return
	}

	w.handler(pair, domain.PriceTick{
		Price:     price,
		Volume24h: volume,
		Timestamp: time.UnixMilli(envelope.Data.EventTime).UTC(),
	})
}

func (w *BinanceWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the reconnect loop and closes the connection.
func (w *BinanceWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	infra.GlobalMetrics.SetStreamConnected(false)
}
