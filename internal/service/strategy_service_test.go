package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/market-pulse/internal/event"
	"github.com/yourorg/market-pulse/internal/model"
	"github.com/yourorg/market-pulse/internal/repository"
)

func seedRecord(t *testing.T, fx *fixture, ticker string, price float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fx.stockRep.Ensure(ctx, ticker, ticker))
	require.NoError(t, fx.marketRep.Upsert(ctx, &model.MarketDataCacheRecord{
		Ticker:       ticker,
		CurrentPrice: price,
		MarketStatus: model.MarketStatusClosed,
		LastUpdated:  time.Now(),
	}))
}

func TestAcceptProposalLocksTicker(t *testing.T) {
	fx := newFixture(t)
	svc := NewStrategyService(fx.marketRep, fx.publisher, fx.locks, zap.NewNop())
	seedRecord(t, fx, "AAPL", 100)

	record, err := svc.AcceptProposal(context.Background(), "AAPL", model.StrategyProposal{
		TargetPrice:    120,
		StopLossPrice:  90,
		EntryPriceLow:  98,
		EntryPriceHigh: 102,
	})

	require.NoError(t, err)
	assert.True(t, record.IsAIStrategy)
	assert.Equal(t, 120.0, *record.TargetPrice)
	assert.Equal(t, 2.0, *record.RiskRewardRatio)

	stored, err := fx.marketRep.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, stored.IsAIStrategy)

	assert.Contains(t, fx.publisher.topics, event.TopicStrategyLockChange)
}

func TestAcceptProposalUnknownTicker(t *testing.T) {
	fx := newFixture(t)
	svc := NewStrategyService(fx.marketRep, fx.publisher, fx.locks, zap.NewNop())

	_, err := svc.AcceptProposal(context.Background(), "NOPE", model.StrategyProposal{
		TargetPrice:    120,
		StopLossPrice:  90,
		EntryPriceLow:  98,
		EntryPriceHigh: 102,
	})

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, fx.publisher.topics)
}

func TestClearLockUnlocks(t *testing.T) {
	fx := newFixture(t)
	svc := NewStrategyService(fx.marketRep, fx.publisher, fx.locks, zap.NewNop())
	seedRecord(t, fx, "AAPL", 100)

	_, err := svc.AcceptProposal(context.Background(), "AAPL", model.StrategyProposal{
		TargetPrice:    120,
		StopLossPrice:  90,
		EntryPriceLow:  98,
		EntryPriceHigh: 102,
	})
	require.NoError(t, err)

	record, err := svc.ClearLock(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.False(t, record.IsAIStrategy)
	assert.Nil(t, record.TargetPrice)
	assert.Nil(t, record.StopLossPrice)
	assert.Nil(t, record.RiskRewardRatio)
}

func TestClearLockAlreadyUnlockedIsNoop(t *testing.T) {
	fx := newFixture(t)
	svc := NewStrategyService(fx.marketRep, fx.publisher, fx.locks, zap.NewNop())
	seedRecord(t, fx, "AAPL", 100)

	record, err := svc.ClearLock(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.False(t, record.IsAIStrategy)
	// No transition happened, so nothing was published.
	assert.Empty(t, fx.publisher.topics)
}
