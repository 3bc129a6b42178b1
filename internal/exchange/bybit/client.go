// Package bybit implements live order execution against the Bybit v5
// unified trading API.
package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Config holds credentials and environment selection for the Bybit client.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // demo trading environment, real API with play money
}

// Client is a thin wrapper around the Bybit HTTP client.
type Client struct {
	httpClient *bybit_api.Client
	testnet    bool
	demo       bool
}

// NewClient creates a Bybit client for the configured environment.
func NewClient(config Config) *Client {
	var baseURL string
	switch {
	case config.Demo:
		baseURL = "https://api-demo.bybit.com"
	case config.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

// Environment describes which Bybit environment the client targets.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
