package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider adapts Yahoo Finance for global-market tickers. It is the
// only adapter that serves all four capabilities.
type YahooProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewYahooProvider creates a Yahoo Finance adapter.
func NewYahooProvider(timeout time.Duration, logger *zap.Logger) *YahooProvider {
	return &YahooProvider{
		baseURL:    yahooBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuote `json:"result"`
	} `json:"quoteResponse"`
}

type yahooQuote struct {
	Symbol                      string   `json:"symbol"`
	ShortName                   string   `json:"shortName"`
	RegularMarketPrice          *float64 `json:"regularMarketPrice"`
	RegularMarketChangePercent  float64  `json:"regularMarketChangePercent"`
	RegularMarketVolume         float64  `json:"regularMarketVolume"`
	MarketState                 string   `json:"marketState"`
	MarketCap                   *float64 `json:"marketCap"`
	TrailingPE                  *float64 `json:"trailingPE"`
	ForwardPE                   *float64 `json:"forwardPE"`
	EPSTrailingTwelveMonths     *float64 `json:"epsTrailingTwelveMonths"`
	TrailingAnnualDividendYield *float64 `json:"trailingAnnualDividendYield"`
	FiftyTwoWeekHigh            *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow             *float64 `json:"fiftyTwoWeekLow"`
	FullExchangeName            string   `json:"fullExchangeName"`
	Currency                    string   `json:"currency"`
}

func (p *YahooProvider) fetchQuote(ctx context.Context, ticker string) (*yahooQuote, error) {
	reqURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", p.baseURL, url.QueryEscape(ticker))

	var resp yahooQuoteResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, err
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, ErrNotFound
	}
	return &resp.QuoteResponse.Result[0], nil
}

// Quote fetches the real-time quote for a ticker.
func (p *YahooProvider) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	q, err := p.fetchQuote(ctx, ticker)
	if err != nil {
		p.logger.Warn("yahoo quote failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	if q.RegularMarketPrice == nil {
		return nil, fmt.Errorf("%w: quote has no price", ErrParse)
	}

	name := q.ShortName
	if name == "" {
		name = ticker
	}
	return &model.Quote{
		Ticker:        ticker,
		Price:         *q.RegularMarketPrice,
		ChangePercent: q.RegularMarketChangePercent,
		Name:          name,
		MarketStatus:  yahooMarketStatus(q.MarketState),
		Volume:        q.RegularMarketVolume,
	}, nil
}

// Fundamentals fetches the financial profile for a ticker.
func (p *YahooProvider) Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	q, err := p.fetchQuote(ctx, ticker)
	if err != nil {
		p.logger.Warn("yahoo fundamentals failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	return &model.Fundamentals{
		MarketCap:        q.MarketCap,
		PERatio:          q.TrailingPE,
		ForwardPE:        q.ForwardPE,
		EPS:              q.EPSTrailingTwelveMonths,
		DividendYield:    q.TrailingAnnualDividendYield,
		FiftyTwoWeekHigh: q.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  q.FiftyTwoWeekLow,
	}, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches daily bars for the given period (e.g. "200d", "1y").
func (p *YahooProvider) History(ctx context.Context, ticker string, period string) ([]model.PriceBar, error) {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		p.baseURL, url.PathEscape(ticker), url.QueryEscape(period))

	var resp yahooChartResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("yahoo history failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: empty chart result", ErrParse)
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]model.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo pads the arrays with nulls for non-trading slots, and
		// nothing guarantees the columns are all the same length.
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		volume := 0.0
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		bars = append(bars, model.PriceBar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no usable bars", ErrParse)
	}
	return bars, nil
}

type yahooSearchResponse struct {
	News []struct {
		UUID                string `json:"uuid"`
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

// News fetches the latest articles for a ticker.
func (p *YahooProvider) News(ctx context.Context, ticker string) ([]model.NewsItem, error) {
	reqURL := fmt.Sprintf("%s/v1/finance/search?q=%s&newsCount=10&quotesCount=0",
		p.baseURL, url.QueryEscape(ticker))

	var resp yahooSearchResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		p.logger.Warn("yahoo news failed", zap.String("ticker", ticker), zap.Error(err))
		return nil, err
	}

	items := make([]model.NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		if n.UUID == "" || n.Title == "" || n.Link == "" {
			continue
		}
		items = append(items, model.NewsItem{
			ID:          n.UUID,
			Ticker:      ticker,
			Title:       n.Title,
			Publisher:   n.Publisher,
			Link:        n.Link,
			PublishTime: time.Unix(n.ProviderPublishTime, 0).UTC(),
		})
	}
	return items, nil
}

func yahooMarketStatus(state string) model.MarketStatus {
	switch state {
	case "PRE":
		return model.MarketStatusPreMarket
	case "REGULAR":
		return model.MarketStatusOpen
	case "POST":
		return model.MarketStatusAfterHours
	default:
		return model.MarketStatusClosed
	}
}
