// Package service implements the engine's business logic: the refresh
// pipeline that keeps the cache fresh, the strategy lock transitions and
// the background job that sweeps the stalest tickers.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/yourorg/market-pulse/internal/event"
	"github.com/yourorg/market-pulse/internal/indicator"
	"github.com/yourorg/market-pulse/internal/metrics"
	"github.com/yourorg/market-pulse/internal/model"
	"github.com/yourorg/market-pulse/internal/provider"
	"github.com/yourorg/market-pulse/internal/repository"
	"github.com/yourorg/market-pulse/internal/strategy"
)

// ErrNotFound is returned when a ticker has no cache record.
var ErrNotFound = repository.ErrNotFound

// MarketDataConfig tunes the refresh pipeline.
type MarketDataConfig struct {
	StalenessThreshold time.Duration
	MaxRetries         uint64
	BatchConcurrency   int
	HistoryPeriod      string
	NewsLimit          int
}

// MarketDataService orchestrates the refresh pipeline: staleness gating,
// per-ticker coalescing, provider fetching with retries, indicator
// computation, level resolution and the atomic cache write.
type MarketDataService struct {
	marketRepo *repository.MarketDataRepository
	stockRepo  *repository.StockRepository
	router     *provider.Router
	publisher  event.Publisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        MarketDataConfig
	locks      *TickerLocks

	group singleflight.Group
	now   func() time.Time
}

// NewMarketDataService creates a new market data service.
func NewMarketDataService(
	marketRepo *repository.MarketDataRepository,
	stockRepo *repository.StockRepository,
	router *provider.Router,
	publisher event.Publisher,
	m *metrics.Metrics,
	locks *TickerLocks,
	logger *zap.Logger,
	cfg MarketDataConfig,
) *MarketDataService {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 15 * time.Minute
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 5
	}
	if cfg.HistoryPeriod == "" {
		cfg.HistoryPeriod = "1y"
	}
	if cfg.NewsLimit <= 0 {
		cfg.NewsLimit = 10
	}
	return &MarketDataService{
		marketRepo: marketRepo,
		stockRepo:  stockRepo,
		router:     router,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		locks:      locks,
		now:        time.Now,
	}
}

// GetMarketData returns the cached record for a ticker without touching
// the providers. Callers that want a refresh use RefreshOne.
func (s *MarketDataService) GetMarketData(ctx context.Context, ticker string) (*model.MarketDataCacheRecord, error) {
	return s.marketRepo.Get(ctx, ticker)
}

// GetHistory returns the daily bars for a ticker straight from the
// providers; bars are never cached.
func (s *MarketDataService) GetHistory(ctx context.Context, ticker, period string) ([]model.PriceBar, error) {
	if period == "" {
		period = s.cfg.HistoryPeriod
	}
	return s.router.History(ctx, ticker, period)
}

// GetNews returns the stored news feed for a ticker.
func (s *MarketDataService) GetNews(ctx context.Context, ticker string, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = s.cfg.NewsLimit
	}
	return s.stockRepo.GetNews(ctx, ticker, limit)
}

// RefreshOne refreshes a single ticker through the full pipeline.
//
// A fresh cache record short-circuits the pipeline unless force is set.
// Concurrent refreshes of the same ticker coalesce into one in-flight
// pipeline run. When every provider fails and a cached record exists, the
// stale record is returned with the failure attached instead of an error;
// with no cached record the failure is the result.
func (s *MarketDataService) RefreshOne(ctx context.Context, ticker string, force bool) *model.RefreshResult {
	cached, err := s.marketRepo.Get(ctx, ticker)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}

	if cached != nil && !force && cached.IsFresh(s.now(), s.cfg.StalenessThreshold) {
		s.metrics.CacheHits.Inc()
		return &model.RefreshResult{Ticker: ticker, Record: cached, Skipped: true}
	}
	s.metrics.CacheMisses.Inc()

	v, err, shared := s.group.Do(ticker, func() (interface{}, error) {
		return s.refresh(ctx, ticker, force), nil
	})
	if shared {
		s.metrics.RefreshCoalesced.Inc()
	}
	if err != nil {
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}
	return v.(*model.RefreshResult)
}

// refresh runs the pipeline body under the singleflight group.
func (s *MarketDataService) refresh(ctx context.Context, ticker string, force bool) *model.RefreshResult {
	start := s.now()
	defer func() {
		s.metrics.RefreshDuration.Observe(s.now().Sub(start).Seconds())
	}()

	// A coalesced waiter may arrive just after the winner finished; the
	// record it wrote is fresh, so serve it.
	cached, err := s.marketRepo.Get(ctx, ticker)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}
	if cached != nil && !force && cached.IsFresh(s.now(), s.cfg.StalenessThreshold) {
		return &model.RefreshResult{Ticker: ticker, Record: cached, Skipped: true}
	}

	// Once fetching starts the pipeline must finish even if the caller
	// goes away: coalesced waiters and the cache both depend on the
	// result landing. Per-call deadlines stay with the HTTP clients.
	ctx = context.WithoutCancel(ctx)

	quote, err := s.fetchQuote(ctx, ticker)
	if err != nil {
		if cached != nil {
			s.logger.Warn("Refresh failed, serving stale cache",
				zap.String("ticker", ticker),
				zap.Error(err))
			return &model.RefreshResult{Ticker: ticker, Record: cached, Stale: true, Error: err.Error(), Err: err}
		}
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}

	name := quote.Name
	if name == "" {
		name = ticker
	}
	if err := s.stockRepo.Ensure(ctx, ticker, name); err != nil {
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}

	// Fundamentals, history and news are enrichment. Their failure
	// degrades the record, never the refresh.
	if fundamentals, err := s.router.Fundamentals(ctx, ticker); err == nil {
		if err := s.stockRepo.UpdateFundamentals(ctx, ticker, fundamentals); err != nil {
			s.logger.Warn("Failed to store fundamentals", zap.String("ticker", ticker), zap.Error(err))
		}
	} else {
		s.logger.Debug("Fundamentals unavailable", zap.String("ticker", ticker), zap.Error(err))
	}

	var set indicator.Set
	if bars, err := s.router.History(ctx, ticker, s.cfg.HistoryPeriod); err == nil {
		set = indicator.Compute(bars)
	} else {
		s.logger.Debug("History unavailable, indicators absent",
			zap.String("ticker", ticker),
			zap.Error(err))
	}

	if items, err := s.router.News(ctx, ticker); err == nil {
		for i := range items {
			items[i].Ticker = ticker
		}
		if err := s.stockRepo.InsertNews(ctx, items); err != nil {
			s.logger.Warn("Failed to store news", zap.String("ticker", ticker), zap.Error(err))
		}
	}

	// The write phase serializes with the lock transitions and merges
	// against the current row, not the pre-fetch snapshot: a lock
	// accepted or cleared while the providers were in flight must
	// survive this write.
	unlock := s.locks.Lock(ticker)
	defer unlock()

	record, err := s.marketRepo.Get(ctx, ticker)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}
	if record == nil {
		record = &model.MarketDataCacheRecord{Ticker: ticker}
	}

	levels := strategy.ResolveRRR(set, quote.Price, record)
	strategy.ApplyRefresh(record, quote, set, levels, s.now())

	if err := s.marketRepo.Upsert(ctx, record); err != nil {
		return &model.RefreshResult{Ticker: ticker, Error: err.Error(), Err: err}
	}

	if err := s.publisher.Publish(ctx, event.TopicMarketDataUpdated, ticker, record); err != nil {
		s.logger.Warn("Failed to publish update event", zap.String("ticker", ticker), zap.Error(err))
	}

	return &model.RefreshResult{Ticker: ticker, Record: record}
}

// fetchQuote walks the fallback chain with retries. Chains that failed
// only with terminal errors are not retried.
func (s *MarketDataService) fetchQuote(ctx context.Context, ticker string) (*model.Quote, error) {
	var quote *model.Quote

	operation := func() error {
		q, err := s.router.Quote(ctx, ticker)
		if err != nil {
			if isTerminal(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		quote = q
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.cfg.MaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return quote, nil
}

// isTerminal reports whether a fallback failure cannot succeed on retry:
// every adapter rejected the ticker itself rather than the attempt.
func isTerminal(err error) bool {
	var exhausted *provider.AllProvidersFailedError
	if !errors.As(err, &exhausted) {
		return false
	}
	for _, attempt := range exhausted.Attempts {
		if !errors.Is(attempt.Err, provider.ErrNotFound) && !errors.Is(attempt.Err, provider.ErrNotSupported) {
			return false
		}
	}
	return len(exhausted.Attempts) > 0
}

// Refresh refreshes a batch of tickers with bounded concurrency. Each
// ticker produces a result; a failed ticker never aborts its siblings.
func (s *MarketDataService) Refresh(ctx context.Context, tickers []string, force bool) []model.RefreshResult {
	results := make([]model.RefreshResult, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			results[i] = *s.RefreshOne(gctx, ticker, force)
			return nil
		})
	}
	g.Wait()

	return results
}
