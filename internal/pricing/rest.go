// Package pricing provides current spot prices in USD. The REST client
// chains two public APIs; the websocket feed keeps a low-latency cache that
// falls back to REST when stale.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// coingeckoIDs maps ticker symbols to CoinGecko asset ids.
var coingeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"AVAX": "avalanche-2",
	"DOT":  "polkadot",
	"LINK": "chainlink",
}

// RESTClient fetches prices from CryptoCompare, falling back to CoinGecko
// when the primary fails. Requests are throttled to one per MinInterval so
// the free tiers are never exhausted.
type RESTClient struct {
	httpClient *http.Client

	// Overridable in tests.
	CryptoCompareURL string
	CoinGeckoURL     string
	MinInterval      time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewRESTClient creates a price client with production endpoints.
func NewRESTClient() *RESTClient {
	return &RESTClient{
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		CryptoCompareURL: "https://min-api.cryptocompare.com",
		CoinGeckoURL:     "https://api.coingecko.com",
		MinInterval:      time.Second,
	}
}

// Price returns the current USD price for a ticker symbol like "BTC".
func (c *RESTClient) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := c.throttle(ctx); err != nil {
		return decimal.Zero, err
	}

	price, primaryErr := c.fromCryptoCompare(ctx, symbol)
	if primaryErr == nil {
		return price, nil
	}

	price, fallbackErr := c.fromCoinGecko(ctx, symbol)
	if fallbackErr == nil {
		return price, nil
	}

	return decimal.Zero, fmt.Errorf("all price sources failed for %s: cryptocompare: %v; coingecko: %v",
		symbol, primaryErr, fallbackErr)
}

func (c *RESTClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.MinInterval - time.Since(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (c *RESTClient) fromCryptoCompare(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/data/price?fsym=%s&tsyms=USD", c.CryptoCompareURL, url.QueryEscape(symbol))

	var result map[string]json.Number
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return decimal.Zero, err
	}

	usd, ok := result["USD"]
	if !ok {
		return decimal.Zero, fmt.Errorf("no USD price in response for %s", symbol)
	}
	price, err := decimal.NewFromString(usd.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad price %q for %s: %w", usd, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}
	return price, nil
}

func (c *RESTClient) fromCoinGecko(ctx context.Context, symbol string) (decimal.Decimal, error) {
	assetID, ok := coingeckoIDs[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no coingecko id for %s", symbol)
	}

	endpoint := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd", c.CoinGeckoURL, url.QueryEscape(assetID))

	var result map[string]map[string]json.Number
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return decimal.Zero, err
	}

	usd, ok := result[assetID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("no usd price in response for %s", symbol)
	}
	price, err := decimal.NewFromString(usd.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad price %q for %s: %w", usd, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}
	return price, nil
}

func (c *RESTClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
