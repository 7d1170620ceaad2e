package bybit

import (
	"context"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"
)

// Client wraps the Bybit API client with request pacing
type Client struct {
	httpClient  *bybit_api.Client
	limiter     *rate.Limiter
	instruments *InstrumentManager
	testnet     bool
	demo        bool
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // Demo trading environment
	// RequestsPerSecond caps outgoing REST calls; zero means 10
	RequestsPerSecond float64
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	c := &Client{
		httpClient: bybit_api.NewBybitHttpClient(
			config.APIKey,
			config.APISecret,
			bybit_api.WithBaseURL(baseURL),
		),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		testnet: config.Testnet,
		demo:    config.Demo,
	}
	c.instruments = NewInstrumentManager(c)
	return c
}

// wait blocks until the limiter grants a request slot
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("bybit rate limiter: %w", err)
	}
	return nil
}

// Instruments returns the cached instrument metadata manager
func (c *Client) Instruments() *InstrumentManager {
	return c.instruments
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}
