package provider

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/metrics"
	"github.com/yourorg/market-pulse/internal/model"
)

// aSharePattern matches regional A-share tickers: six digits with an
// optional .SH or .SZ exchange suffix (600519, 000858.SZ).
var aSharePattern = regexp.MustCompile(`^[0-9]{6}(\.(SH|SZ))?$`)

// Router selects the adapter chain for a ticker and walks it on failure.
// Routing is pure classification; it performs no retries of its own.
type Router struct {
	adapters  []MarketDataProvider
	preferred string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewRouter creates a router over the given adapters. The adapter slice
// order is the configured fallback order; preferred names the adapter
// tried first for non-regional tickers.
func NewRouter(adapters []MarketDataProvider, preferred string, m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		adapters:  adapters,
		preferred: preferred,
		metrics:   m,
		logger:    logger,
	}
}

// Resolve returns the ordered adapter chain for a ticker. Regional
// tickers route to the regional adapter first; everything else starts at
// the preferred adapter. The rest of the configured order follows either
// way, so a single adapter outage degrades instead of failing.
func (r *Router) Resolve(ticker string) []MarketDataProvider {
	first := r.preferred
	if aSharePattern.MatchString(ticker) {
		first = "eastmoney"
	}

	chain := make([]MarketDataProvider, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.Name() == first {
			chain = append(chain, a)
			break
		}
	}
	for _, a := range r.adapters {
		if a.Name() != first {
			chain = append(chain, a)
		}
	}
	return chain
}

// fetchWithFallback walks the adapter chain for one capability, advancing
// on any error, and aggregates the per-adapter reasons when the chain is
// exhausted.
func (r *Router) fetchWithFallback(ctx context.Context, ticker, capability string, call func(context.Context, MarketDataProvider) error) error {
	chain := r.Resolve(ticker)
	attempts := make([]Attempt, 0, len(chain))

	for _, adapter := range chain {
		err := call(ctx, adapter)
		if err == nil {
			r.metrics.ProviderCalls.WithLabelValues(adapter.Name(), capability, "ok").Inc()
			return nil
		}
		r.metrics.ProviderCalls.WithLabelValues(adapter.Name(), capability, "error").Inc()
		r.logger.Debug("provider attempt failed",
			zap.String("ticker", ticker),
			zap.String("capability", capability),
			zap.String("provider", adapter.Name()),
			zap.Error(err))
		attempts = append(attempts, Attempt{Provider: adapter.Name(), Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	r.metrics.FallbackExhausted.WithLabelValues(capability).Inc()
	return &AllProvidersFailedError{Ticker: ticker, Capability: capability, Attempts: attempts}
}

// Quote fetches a quote through the fallback chain.
func (r *Router) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	var quote *model.Quote
	err := r.fetchWithFallback(ctx, ticker, "quote", func(ctx context.Context, p MarketDataProvider) error {
		q, err := p.Quote(ctx, ticker)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	return quote, err
}

// Fundamentals fetches the financial profile through the fallback chain.
func (r *Router) Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	var fundamentals *model.Fundamentals
	err := r.fetchWithFallback(ctx, ticker, "fundamentals", func(ctx context.Context, p MarketDataProvider) error {
		f, err := p.Fundamentals(ctx, ticker)
		if err != nil {
			return err
		}
		fundamentals = f
		return nil
	})
	return fundamentals, err
}

// History fetches daily bars through the fallback chain.
func (r *Router) History(ctx context.Context, ticker, period string) ([]model.PriceBar, error) {
	var bars []model.PriceBar
	err := r.fetchWithFallback(ctx, ticker, "history", func(ctx context.Context, p MarketDataProvider) error {
		b, err := p.History(ctx, ticker, period)
		if err != nil {
			return err
		}
		bars = b
		return nil
	})
	return bars, err
}

// News fetches recent articles through the fallback chain.
func (r *Router) News(ctx context.Context, ticker string) ([]model.NewsItem, error) {
	var items []model.NewsItem
	err := r.fetchWithFallback(ctx, ticker, "news", func(ctx context.Context, p MarketDataProvider) error {
		n, err := p.News(ctx, ticker)
		if err != nil {
			return err
		}
		items = n
		return nil
	})
	return items, err
}
