package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-trading-agent/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-agent/pkg/id"
)

// Executor places spot market orders sized in quote currency and reads the
// fill back from order history. Implements exchange.Executor.
type Executor struct {
	client *Client
	retry  RetryConfig
}

// NewExecutor creates a live executor on top of the given client.
func NewExecutor(client *Client) *Executor {
	return &Executor{client: client, retry: DefaultRetryConfig()}
}

// Execute places a spot market order for req.AmountUSD worth of req.Symbol.
// The market pair is <symbol>USDT and the order is sized in quote units so
// the venue decides the base quantity at fill time.
func (e *Executor) Execute(ctx context.Context, req exchange.OrderRequest) (*exchange.Fill, error) {
	side, err := orderSide(req.Side)
	if err != nil {
		return nil, err
	}
	if !req.AmountUSD.IsPositive() {
		return nil, fmt.Errorf("order amount must be positive, got %s", req.AmountUSD)
	}

	pair := req.Symbol + "USDT"
	linkID := id.New()

	params := map[string]interface{}{
		"category":    "spot",
		"symbol":      pair,
		"side":        side,
		"orderType":   "Market",
		"qty":         req.AmountUSD.StringFixed(2),
		"marketUnit":  "quoteCoin",
		"orderLinkId": linkID,
	}

	var orderID string
	err = retry(ctx, e.retry, func() error {
		resp, err := e.client.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return err
		}
		placed, err := parsePlaceOrder(resp)
		if err != nil {
			return err
		}
		orderID = placed
		return nil
	})
	if err != nil {
		if IsInsufficientBalance(err) {
			return nil, fmt.Errorf("%w: %v", exchange.ErrInsufficientBalance, err)
		}
		return nil, fmt.Errorf("failed to place %s order for %s: %w", side, pair, err)
	}

	fill, err := e.awaitFill(ctx, pair, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s placed but fill not confirmed: %w", orderID, err)
	}
	return fill, nil
}

// Mode identifies the executor in logs and journals.
func (e *Executor) Mode() string {
	return "live-" + e.client.Environment()
}

// awaitFill polls order history until the order reports Filled. Spot market
// orders normally fill within one poll.
func (e *Executor) awaitFill(ctx context.Context, pair, orderID string) (*exchange.Fill, error) {
	const (
		pollInterval = 500 * time.Millisecond
		maxPolls     = 20
	)

	params := map[string]interface{}{
		"category": "spot",
		"symbol":   pair,
		"orderId":  orderID,
	}

	for i := 0; i < maxPolls; i++ {
		resp, err := e.client.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
		if err == nil {
			fill, done, perr := parseFill(resp, orderID)
			if perr != nil {
				return nil, perr
			}
			if done {
				return fill, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return nil, fmt.Errorf("order %s did not fill within %s", orderID, time.Duration(maxPolls)*pollInterval)
}

func orderSide(side string) (string, error) {
	switch side {
	case "BUY":
		return "Buy", nil
	case "SELL":
		return "Sell", nil
	default:
		return "", fmt.Errorf("unsupported order side %q", side)
	}
}

func parsePlaceOrder(resp interface{}) (string, error) {
	serverResp, ok := resp.(*bybit_api.ServerResponse)
	if !ok {
		return "", fmt.Errorf("unexpected response type %T", resp)
	}
	if err := apiError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return "", err
	}

	raw, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal place order result: %w", err)
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode place order result: %w", err)
	}
	if result.OrderID == "" {
		return "", fmt.Errorf("place order response carried no order id")
	}
	return result.OrderID, nil
}

func parseFill(resp interface{}, orderID string) (*exchange.Fill, bool, error) {
	serverResp, ok := resp.(*bybit_api.ServerResponse)
	if !ok {
		return nil, false, fmt.Errorf("unexpected response type %T", resp)
	}
	if err := apiError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return nil, false, err
	}

	raw, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal order history result: %w", err)
	}

	var result struct {
		List []struct {
			OrderID      string `json:"orderId"`
			OrderStatus  string `json:"orderStatus"`
			AvgPrice     string `json:"avgPrice"`
			CumExecValue string `json:"cumExecValue"`
			CumExecFee   string `json:"cumExecFee"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode order history result: %w", err)
	}

	for _, order := range result.List {
		if order.OrderID != orderID {
			continue
		}
		switch order.OrderStatus {
		case "Filled":
			price, err := decimal.NewFromString(order.AvgPrice)
			if err != nil {
				return nil, false, fmt.Errorf("bad avgPrice %q: %w", order.AvgPrice, err)
			}
			value, err := decimal.NewFromString(order.CumExecValue)
			if err != nil {
				return nil, false, fmt.Errorf("bad cumExecValue %q: %w", order.CumExecValue, err)
			}
			fee := decimal.Zero
			if order.CumExecFee != "" {
				if fee, err = decimal.NewFromString(order.CumExecFee); err != nil {
					return nil, false, fmt.Errorf("bad cumExecFee %q: %w", order.CumExecFee, err)
				}
			}
			return &exchange.Fill{
				OrderID:         orderID,
				Price:           price,
				FilledAmountUSD: value,
				FeeUSD:          fee,
			}, true, nil
		case "Rejected", "Cancelled":
			return nil, false, fmt.Errorf("order %s ended %s", orderID, order.OrderStatus)
		}
	}
	return nil, false, nil
}
