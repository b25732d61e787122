package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/event"
	"github.com/yourorg/market-pulse/internal/metrics"
	"github.com/yourorg/market-pulse/internal/model"
	"github.com/yourorg/market-pulse/internal/provider"
	"github.com/yourorg/market-pulse/internal/repository"
)

// stubProvider is a controllable adapter: canned payloads, atomic call
// counters and an optional gate that holds Quote open.
type stubProvider struct {
	name     string
	quote    *model.Quote
	quoteErr error
	bars     []model.PriceBar
	news     []model.NewsItem

	quoteCalls atomic.Int64
	gate       chan struct{}
	entered    chan struct{}
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	p.quoteCalls.Add(1)
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.gate != nil {
		<-p.gate
	}
	if p.quoteErr != nil {
		return nil, p.quoteErr
	}
	q := *p.quote
	q.Ticker = ticker
	return &q, nil
}

func (p *stubProvider) Fundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error) {
	return nil, provider.ErrNotSupported
}

func (p *stubProvider) History(ctx context.Context, ticker, period string) ([]model.PriceBar, error) {
	if p.bars == nil {
		return nil, provider.ErrNotSupported
	}
	return p.bars, nil
}

func (p *stubProvider) News(ctx context.Context, ticker string) ([]model.NewsItem, error) {
	if p.news == nil {
		return nil, provider.ErrNotSupported
	}
	return p.news, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	db        *sqlx.DB
	marketSvc *MarketDataService
	marketRep *repository.MarketDataRepository
	stockRep  *repository.StockRepository
	publisher *recordingPublisher
	locks     *TickerLocks
}

func newFixture(t *testing.T, adapters ...provider.MarketDataProvider) *fixture {
	t.Helper()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	stockRep := repository.NewStockRepository(db, logger)
	marketRep := repository.NewMarketDataRepository(db, logger)
	m := metrics.New(prometheus.NewRegistry())
	router := provider.NewRouter(adapters, "yahoo", m, logger)
	publisher := &recordingPublisher{}
	locks := NewTickerLocks()

	svc := NewMarketDataService(marketRep, stockRep, router, publisher, m, locks, logger, MarketDataConfig{
		StalenessThreshold: 15 * time.Minute,
		MaxRetries:         0,
		BatchConcurrency:   4,
	})

	return &fixture{db: db, marketSvc: svc, marketRep: marketRep, stockRep: stockRep, publisher: publisher, locks: locks}
}

func historyBars(n int, start float64) []model.PriceBar {
	bars := make([]model.PriceBar, n)
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := start + float64(i)*0.3
		bars[i] = model.PriceBar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestRefreshOneCreatesRecord(t *testing.T) {
	stub := &stubProvider{
		name:  "yahoo",
		quote: &model.Quote{Price: 105, ChangePercent: 0.8, Name: "Apple Inc.", MarketStatus: model.MarketStatusOpen},
		bars:  historyBars(60, 90),
		news: []model.NewsItem{
			{ID: "n1", Title: "Earnings", Link: "https://example.com/1", PublishTime: time.Now()},
		},
	}
	fx := newFixture(t, stub)

	res := fx.marketSvc.RefreshOne(context.Background(), "AAPL", false)

	require.NoError(t, res.Err)
	require.NotNil(t, res.Record)
	assert.False(t, res.Skipped)
	assert.False(t, res.Stale)
	assert.Equal(t, 105.0, res.Record.CurrentPrice)
	assert.Equal(t, model.MarketStatusOpen, res.Record.MarketStatus)
	assert.NotNil(t, res.Record.RSI14)
	assert.NotNil(t, res.Record.MA50)
	assert.NotNil(t, res.Record.PivotPoint)

	// The stock row, cache row and news all landed.
	stock, err := fx.stockRep.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", stock.Name)

	stored, err := fx.marketRep.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 105.0, stored.CurrentPrice)

	news, err := fx.stockRep.GetNews(context.Background(), "AAPL", 5)
	require.NoError(t, err)
	assert.Len(t, news, 1)

	assert.Contains(t, fx.publisher.topics, event.TopicMarketDataUpdated)
}

func TestRefreshOneFreshCacheSkips(t *testing.T) {
	stub := &stubProvider{name: "yahoo", quote: &model.Quote{Price: 105, MarketStatus: model.MarketStatusOpen}}
	fx := newFixture(t, stub)

	first := fx.marketSvc.RefreshOne(context.Background(), "AAPL", false)
	require.NoError(t, first.Err)
	callsAfterFirst := stub.quoteCalls.Load()

	second := fx.marketSvc.RefreshOne(context.Background(), "AAPL", false)

	require.NoError(t, second.Err)
	assert.True(t, second.Skipped)
	assert.Equal(t, callsAfterFirst, stub.quoteCalls.Load())
	assert.Equal(t, first.Record.LastUpdated.Unix(), second.Record.LastUpdated.Unix())
}

func TestRefreshOneForceBypassesFreshness(t *testing.T) {
	stub := &stubProvider{name: "yahoo", quote: &model.Quote{Price: 105, MarketStatus: model.MarketStatusOpen}}
	fx := newFixture(t, stub)

	require.NoError(t, fx.marketSvc.RefreshOne(context.Background(), "AAPL", false).Err)
	before := stub.quoteCalls.Load()

	res := fx.marketSvc.RefreshOne(context.Background(), "AAPL", true)

	require.NoError(t, res.Err)
	assert.False(t, res.Skipped)
	assert.Greater(t, stub.quoteCalls.Load(), before)
}

func TestRefreshOneDegradesToStaleCache(t *testing.T) {
	working := &stubProvider{name: "yahoo", quote: &model.Quote{Price: 105, MarketStatus: model.MarketStatusOpen}}
	fx := newFixture(t, working)

	require.NoError(t, fx.marketSvc.RefreshOne(context.Background(), "AAPL", false).Err)

	// Providers go dark; a forced refresh keeps serving the last record.
	working.quoteErr = provider.ErrRateLimited
	res := fx.marketSvc.RefreshOne(context.Background(), "AAPL", true)

	assert.True(t, res.Stale)
	require.NotNil(t, res.Record)
	assert.Equal(t, 105.0, res.Record.CurrentPrice)
	assert.NotEmpty(t, res.Error)
}

func TestRefreshOneFailsWithoutCache(t *testing.T) {
	failing := &stubProvider{name: "yahoo", quoteErr: provider.ErrNotFound}
	fx := newFixture(t, failing)

	res := fx.marketSvc.RefreshOne(context.Background(), "UNKNOWN", false)

	assert.Nil(t, res.Record)
	assert.False(t, res.Stale)
	require.Error(t, res.Err)
	var exhausted *provider.AllProvidersFailedError
	assert.ErrorAs(t, res.Err, &exhausted)
}

func TestRefreshOnePreservesLockAcrossRefresh(t *testing.T) {
	stub := &stubProvider{
		name:  "yahoo",
		quote: &model.Quote{Price: 100, MarketStatus: model.MarketStatusOpen},
		bars:  historyBars(60, 90),
	}
	fx := newFixture(t, stub)
	strategySvc := NewStrategyService(fx.marketRep, fx.publisher, fx.locks, zap.NewNop())

	require.NoError(t, fx.marketSvc.RefreshOne(context.Background(), "AAPL", false).Err)
	_, err := strategySvc.AcceptProposal(context.Background(), "AAPL", model.StrategyProposal{
		TargetPrice:    120,
		StopLossPrice:  90,
		EntryPriceLow:  98,
		EntryPriceHigh: 102,
	})
	require.NoError(t, err)

	stub.quote.Price = 110
	res := fx.marketSvc.RefreshOne(context.Background(), "AAPL", true)

	require.NoError(t, res.Err)
	assert.True(t, res.Record.IsAIStrategy)
	require.NotNil(t, res.Record.TargetPrice)
	assert.Equal(t, 120.0, *res.Record.TargetPrice)
	assert.Equal(t, 90.0, *res.Record.StopLossPrice)
	assert.Equal(t, 110.0, res.Record.CurrentPrice)
	// (120-110)/(110-90) = 0.5 against the refreshed price.
	require.NotNil(t, res.Record.RiskRewardRatio)
	assert.Equal(t, 0.5, *res.Record.RiskRewardRatio)
}

func TestRefreshOnePreservesLockAcceptedMidFlight(t *testing.T) {
	stub := &stubProvider{
		name:    "yahoo",
		quote:   &model.Quote{Price: 110, MarketStatus: model.MarketStatusOpen},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	fx := newFixture(t, stub)
	strategySvc := NewStrategyService(fx.marketRep, fx.publisher, fx.locks, zap.NewNop())

	// Seed an unlocked record, then start a forced refresh and hold it
	// open inside the provider fetch.
	seedRecord(t, fx, "AAPL", 100)

	done := make(chan *model.RefreshResult, 1)
	go func() {
		done <- fx.marketSvc.RefreshOne(context.Background(), "AAPL", true)
	}()
	<-stub.entered

	// A lock committed while the pipeline is mid-fetch must survive the
	// pipeline's write.
	_, err := strategySvc.AcceptProposal(context.Background(), "AAPL", model.StrategyProposal{
		TargetPrice:    120,
		StopLossPrice:  90,
		EntryPriceLow:  98,
		EntryPriceHigh: 102,
	})
	require.NoError(t, err)

	close(stub.gate)
	res := <-done
	require.NoError(t, res.Err)

	stored, err := fx.marketRep.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, stored.IsAIStrategy)
	require.NotNil(t, stored.TargetPrice)
	assert.Equal(t, 120.0, *stored.TargetPrice)
	require.NotNil(t, stored.StopLossPrice)
	assert.Equal(t, 90.0, *stored.StopLossPrice)
	assert.Equal(t, 110.0, stored.CurrentPrice)
	// (120-110)/(110-90) = 0.5 against the refreshed price.
	require.NotNil(t, stored.RiskRewardRatio)
	assert.Equal(t, 0.5, *stored.RiskRewardRatio)
}

func TestRefreshCompletesAfterCallerCancels(t *testing.T) {
	stub := &stubProvider{
		name:    "yahoo",
		quote:   &model.Quote{Price: 105, MarketStatus: model.MarketStatusOpen},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	fx := newFixture(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *model.RefreshResult, 1)
	go func() {
		done <- fx.marketSvc.RefreshOne(ctx, "AAPL", false)
	}()
	<-stub.entered

	// The caller goes away mid-fetch; the pipeline still finishes and
	// the result lands in the cache.
	cancel()
	close(stub.gate)

	res := <-done
	require.NoError(t, res.Err)
	require.NotNil(t, res.Record)

	stored, err := fx.marketRep.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 105.0, stored.CurrentPrice)
}

func TestRefreshOneCoalescesConcurrentCalls(t *testing.T) {
	stub := &stubProvider{
		name:  "yahoo",
		quote: &model.Quote{Price: 105, MarketStatus: model.MarketStatusOpen},
		gate:  make(chan struct{}),
	}
	fx := newFixture(t, stub)

	var wg sync.WaitGroup
	results := make([]*model.RefreshResult, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fx.marketSvc.RefreshOne(context.Background(), "AAPL", false)
		}()
	}

	// Let both goroutines reach the in-flight pipeline, then release it.
	time.Sleep(100 * time.Millisecond)
	close(stub.gate)
	wg.Wait()

	assert.Equal(t, int64(1), stub.quoteCalls.Load())
	for _, res := range results {
		require.NoError(t, res.Err)
		require.NotNil(t, res.Record)
		assert.Equal(t, 105.0, res.Record.CurrentPrice)
	}
}

func TestRefreshBatchToleratesFailures(t *testing.T) {
	stub := &stubProvider{name: "yahoo", quote: &model.Quote{Price: 105, MarketStatus: model.MarketStatusOpen}}
	fx := newFixture(t, stub)

	// Seed one ticker, then fail the rest of the batch.
	require.NoError(t, fx.marketSvc.RefreshOne(context.Background(), "AAPL", false).Err)
	stub.quoteErr = provider.ErrRateLimited

	results := fx.marketSvc.Refresh(context.Background(), []string{"AAPL", "MSFT"}, false)

	require.Len(t, results, 2)
	byTicker := map[string]model.RefreshResult{}
	for _, r := range results {
		byTicker[r.Ticker] = r
	}

	// AAPL is still fresh and served from cache; MSFT has nothing to fall
	// back to and fails without aborting the batch.
	assert.True(t, byTicker["AAPL"].Skipped)
	assert.Error(t, byTicker["MSFT"].Err)
	assert.Nil(t, byTicker["MSFT"].Record)
}
