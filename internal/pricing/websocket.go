package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// MaxTickAge is how long a cached websocket price stays usable before the
// feed falls back to its REST source.
const MaxTickAge = 30 * time.Second

type tick struct {
	price decimal.Decimal
	at    time.Time
}

// Feed streams miniTicker prices from the Binance websocket for a fixed set
// of symbols and serves them from an in-memory cache. When the cache is
// stale or a symbol is not subscribed, the fallback source answers instead.
type Feed struct {
	symbols  []string
	fallback PriceSource
	wsURL    string

	mu    sync.RWMutex
	ticks map[string]tick
}

// PriceSource is the fallback contract, satisfied by RESTClient.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// NewFeed creates a feed for symbols like "BTC". Pass the REST client as
// fallback; it answers until the first tick arrives.
func NewFeed(symbols []string, fallback PriceSource) *Feed {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "usdt@miniTicker"
	}

	return &Feed{
		symbols:  symbols,
		fallback: fallback,
		wsURL:    "wss://stream.binance.com:9443/stream?streams=" + strings.Join(streams, "/"),
		ticks:    make(map[string]tick),
	}
}

// Run connects and keeps reconnecting until the context ends. Callers run it
// in its own goroutine.
func (f *Feed) Run(ctx context.Context) error {
	for {
		_ = f.connect(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// Price returns the cached websocket price when fresh, otherwise the
// fallback source's answer.
func (f *Feed) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.RLock()
	t, ok := f.ticks[symbol]
	f.mu.RUnlock()

	if ok && time.Since(t.at) <= MaxTickAge {
		return t.price, nil
	}
	if f.fallback == nil {
		return decimal.Zero, fmt.Errorf("no fresh tick for %s and no fallback source", symbol)
	}
	return f.fallback.Price(ctx, symbol)
}

type miniTicker struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol     string `json:"s"`
		ClosePrice string `json:"c"`
	} `json:"data"`
}

func (f *Feed) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var t miniTicker
		if err := json.Unmarshal(msg, &t); err != nil {
			continue
		}

		symbol := strings.TrimSuffix(t.Data.Symbol, "USDT")
		price, err := decimal.NewFromString(t.Data.ClosePrice)
		if err != nil || !price.IsPositive() {
			continue
		}

		f.mu.Lock()
		f.ticks[symbol] = tick{price: price, at: time.Now()}
		f.mu.Unlock()
	}
}
