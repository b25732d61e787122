package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageProvider adapts the Alpha Vantage REST API. It serves quote
// and fundamentals only; daily history is heavily throttled on the free
// tier and news is better covered elsewhere, so both report ErrNotSupported
// and let the router fall through.
type AlphaVantageProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAlphaVantageProvider creates an Alpha Vantage adapter.
func NewAlphaVantageProvider(apiKey string, timeout time.Duration, logger *zap.Logger) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		baseURL:    alphaVantageBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (p *AlphaVantageProvider) Name() string { return "alphavantage" }

type alphaVantageQuoteResponse struct {
	GlobalQuote struct {
		Price         string `json:"05. price"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note string `json:"Note"`
}

// Quote fetches the GLOBAL_QUOTE endpoint.
func (p *AlphaVantageProvider) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrNotSupported)
	}

	reqURL := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(ticker), url.QueryEscape(p.apiKey))

	var resp alphaVantageQuoteResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("alphavantage quote failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	// Free-tier throttling comes back as 200 with a "Note" field.
	if resp.Note != "" {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, resp.Note)
	}
	if resp.GlobalQuote.Price == "" {
		return nil, ErrNotFound
	}

	price, err := strconv.ParseFloat(resp.GlobalQuote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrParse, resp.GlobalQuote.Price)
	}
	changePercent, _ := strconv.ParseFloat(strings.TrimSuffix(resp.GlobalQuote.ChangePercent, "%"), 64)

	return &model.Quote{
		Ticker:        ticker,
		Price:         price,
		ChangePercent: changePercent,
		Name:          ticker,
		MarketStatus:  model.MarketStatusOpen,
	}, nil
}

type alphaVantageOverview struct {
	Symbol               string `json:"Symbol"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	TrailingPE           string `json:"TrailingPE"`
	ForwardPE            string `json:"ForwardPE"`
	DilutedEPSTTM        string `json:"DilutedEPSTTM"`
	DividendYield        string `json:"DividendYield"`
	Beta                 string `json:"Beta"`
	WeekHigh52           string `json:"52WeekHigh"`
	WeekLow52            string `json:"52WeekLow"`
}

// Fundamentals fetches the OVERVIEW endpoint.
func (p *AlphaVantageProvider) Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrNotSupported)
	}

	reqURL := fmt.Sprintf("%s/query?function=OVERVIEW&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(ticker), url.QueryEscape(p.apiKey))

	var resp alphaVantageOverview
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("alphavantage fundamentals failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	if resp.Symbol == "" {
		return nil, ErrNotFound
	}

	f := &model.Fundamentals{
		MarketCap:        avFloat(resp.MarketCapitalization),
		PERatio:          avFloat(resp.TrailingPE),
		ForwardPE:        avFloat(resp.ForwardPE),
		EPS:              avFloat(resp.DilutedEPSTTM),
		DividendYield:    avFloat(resp.DividendYield),
		Beta:             avFloat(resp.Beta),
		FiftyTwoWeekHigh: avFloat(resp.WeekHigh52),
		FiftyTwoWeekLow:  avFloat(resp.WeekLow52),
	}
	if resp.Sector != "" {
		f.Sector = &resp.Sector
	}
	if resp.Industry != "" {
		f.Industry = &resp.Industry
	}
	return f, nil
}

// History is not served: TIME_SERIES_DAILY is throttled on the free tier.
func (p *AlphaVantageProvider) History(_ context.Context, _ string, _ string) ([]model.PriceBar, error) {
	return nil, ErrNotSupported
}

// News is not served; Yahoo covers it for the same tickers.
func (p *AlphaVantageProvider) News(_ context.Context, _ string) ([]model.NewsItem, error) {
	return nil, ErrNotSupported
}

// avFloat parses Alpha Vantage's stringly-typed numerics, where missing
// values arrive as "", "None" or "-".
func avFloat(s string) *float64 {
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
