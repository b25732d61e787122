// Package provider contains the market data provider adapters and the
// router that selects and falls back between them. Each adapter wraps one
// external source behind the same capability interface; routing and
// fallback policy live in Router, retry policy lives in the service layer.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/yourorg/market-pulse/internal/model"
)

// Sentinel errors classifying adapter failures. The router treats every
// one of them the same way: advance to the next adapter in the chain.
var (
	ErrNotFound     = errors.New("ticker not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrParse        = errors.New("response parse failure")
	ErrNotSupported = errors.New("capability not supported")
)

// MarketDataProvider is the uniform capability interface implemented by
// every adapter. History returns bars ordered ascending by timestamp.
// Adapters that cannot serve a capability return ErrNotSupported.
type MarketDataProvider interface {
	Name() string
	Quote(ctx context.Context, ticker string) (*model.Quote, error)
	Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error)
	History(ctx context.Context, ticker string, period string) ([]model.PriceBar, error)
	News(ctx context.Context, ticker string) ([]model.NewsItem, error)
}

// Attempt records one adapter's failure inside a fallback chain.
type Attempt struct {
	Provider string
	Err      error
}

// AllProvidersFailedError is returned when every adapter in the chain
// failed for a capability. It carries the per-adapter reasons.
type AllProvidersFailedError struct {
	Ticker     string
	Capability string
	Attempts   []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	msg := fmt.Sprintf("all providers failed for %s %s:", e.Ticker, e.Capability)
	for _, a := range e.Attempts {
		msg += fmt.Sprintf(" %s: %v;", a.Provider, a.Err)
	}
	return msg
}

// getJSON issues a GET request and decodes the JSON body into v,
// classifying HTTP-level failures into the provider error taxonomy.
func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "market-pulse/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}
