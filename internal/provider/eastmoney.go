package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/model"
)

const (
	eastmoneyQuoteBaseURL = "https://push2.eastmoney.com"
	eastmoneyKlineBaseURL = "https://push2his.eastmoney.com"
)

// EastmoneyProvider adapts the Eastmoney push2 API for A-share tickers
// (600519, 000858.SZ, ...). It serves quote, fundamentals and history;
// news reports ErrNotSupported.
type EastmoneyProvider struct {
	quoteBaseURL string
	klineBaseURL string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewEastmoneyProvider creates an Eastmoney adapter.
func NewEastmoneyProvider(timeout time.Duration, logger *zap.Logger) *EastmoneyProvider {
	return &EastmoneyProvider{
		quoteBaseURL: eastmoneyQuoteBaseURL,
		klineBaseURL: eastmoneyKlineBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (p *EastmoneyProvider) Name() string { return "eastmoney" }

// secID maps a ticker to Eastmoney's market-qualified id: market 1 is
// Shanghai (codes starting 5/6/9), market 0 is Shenzhen.
func secID(ticker string) string {
	code := strings.SplitN(strings.ToUpper(ticker), ".", 2)[0]
	if strings.HasPrefix(code, "5") || strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return "1." + code
	}
	return "0." + code
}

type eastmoneyQuoteResponse struct {
	Data *struct {
		Price         *float64 `json:"f43"`  // latest price x100
		Volume        float64  `json:"f47"`  // volume in lots
		Name          string   `json:"f58"`  // security name
		MarketCap     *float64 `json:"f116"` // total market cap
		PERatio       *float64 `json:"f162"` // dynamic PE x100
		ChangePercent *float64 `json:"f170"` // change percent x100
	} `json:"data"`
}

// Quote fetches the real-time quote from the push2 stock/get endpoint.
func (p *EastmoneyProvider) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	reqURL := fmt.Sprintf("%s/api/qt/stock/get?secid=%s&fields=f43,f47,f58,f116,f162,f170",
		p.quoteBaseURL, secID(ticker))

	var resp eastmoneyQuoteResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("eastmoney quote failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	if resp.Data == nil || resp.Data.Price == nil {
		return nil, ErrNotFound
	}

	name := resp.Data.Name
	if name == "" {
		name = ticker
	}
	changePercent := 0.0
	if resp.Data.ChangePercent != nil {
		changePercent = *resp.Data.ChangePercent / 100
	}
	return &model.Quote{
		Ticker:        ticker,
		Price:         *resp.Data.Price / 100,
		ChangePercent: changePercent,
		Name:          name,
		MarketStatus:  model.MarketStatusOpen,
		Volume:        resp.Data.Volume,
	}, nil
}

// Fundamentals maps the thin profile the quote endpoint carries; the rest
// of the fields stay nil and previously stored values are retained.
func (p *EastmoneyProvider) Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	reqURL := fmt.Sprintf("%s/api/qt/stock/get?secid=%s&fields=f43,f47,f58,f116,f162,f170",
		p.quoteBaseURL, secID(ticker))

	var resp eastmoneyQuoteResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("eastmoney fundamentals failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	if resp.Data == nil {
		return nil, ErrNotFound
	}

	f := &model.Fundamentals{MarketCap: resp.Data.MarketCap}
	if resp.Data.PERatio != nil {
		pe := *resp.Data.PERatio / 100
		f.PERatio = &pe
	}
	return f, nil
}

type eastmoneyKlineResponse struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// History fetches forward-adjusted daily bars. The period argument is
// ignored; the endpoint returns the full daily series and the indicator
// engine only reads the trailing windows it needs.
func (p *EastmoneyProvider) History(ctx context.Context, ticker string, _ string) ([]model.PriceBar, error) {
	reqURL := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s&klt=101&fqt=1&beg=0&end=20500101&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56",
		p.klineBaseURL, secID(ticker))

	var resp eastmoneyKlineResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("eastmoney history failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	if resp.Data == nil || len(resp.Data.Klines) == 0 {
		return nil, ErrNotFound
	}

	bars := make([]model.PriceBar, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		bar, err := parseKline(line)
		if err != nil {
			return nil, fmt.Errorf("%w: kline %q: %v", ErrParse, line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline parses one "date,open,close,high,low,volume" kline row.
func parseKline(line string) (model.PriceBar, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return model.PriceBar{}, fmt.Errorf("expected 6 fields, got %d", len(parts))
	}
	ts, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return model.PriceBar{}, err
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return model.PriceBar{}, err
		}
		vals[i] = v
	}
	return model.PriceBar{
		Timestamp: ts.UTC(),
		Open:      vals[0],
		Close:     vals[1],
		High:      vals[2],
		Low:       vals[3],
		Volume:    vals[4],
	}, nil
}

// News is not served for A-shares.
func (p *EastmoneyProvider) News(_ context.Context, _ string) ([]model.NewsItem, error) {
	return nil, ErrNotSupported
}
