package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/market-pulse/internal/indicator"
	"github.com/yourorg/market-pulse/internal/model"
)

func f(v float64) *float64 { return &v }

func TestResolveRRRPivotTier(t *testing.T) {
	set := indicator.Set{
		Resistance1: f(110),
		Support1:    f(95),
		BBUpper:     f(130),
		BBLower:     f(80),
	}

	levels := ResolveRRR(set, 100, nil)

	assert.Equal(t, SourcePivot, levels.Source)
	require.NotNil(t, levels.Target)
	require.NotNil(t, levels.Stop)
	require.NotNil(t, levels.Ratio)
	assert.Equal(t, 110.0, *levels.Target)
	assert.Equal(t, 95.0, *levels.Stop)
	assert.Equal(t, 2.0, *levels.Ratio)
}

func TestResolveRRRFallsToBollinger(t *testing.T) {
	// Pivot levels do not straddle the price, Bollinger bands do.
	set := indicator.Set{
		Resistance1: f(98),
		Support1:    f(90),
		BBUpper:     f(112),
		BBLower:     f(94),
	}

	levels := ResolveRRR(set, 100, nil)

	assert.Equal(t, SourceBollinger, levels.Source)
	assert.Equal(t, 112.0, *levels.Target)
	assert.Equal(t, 94.0, *levels.Stop)
	assert.Equal(t, 2.0, *levels.Ratio)
}

func TestResolveRRRFallsToVolatility(t *testing.T) {
	set := indicator.Set{
		MA50:  f(100),
		ATR14: f(5),
	}

	levels := ResolveRRR(set, 100, nil)

	assert.Equal(t, SourceVolatility, levels.Source)
	assert.Equal(t, 110.0, *levels.Target)
	assert.Equal(t, 90.0, *levels.Stop)
	assert.Equal(t, 2.0, *levels.Ratio)
}

func TestResolveRRRNoValidTier(t *testing.T) {
	// Price above every candidate target.
	set := indicator.Set{
		Resistance1: f(110),
		Support1:    f(95),
		BBUpper:     f(112),
		BBLower:     f(94),
		MA50:        f(100),
		ATR14:       f(5),
	}

	levels := ResolveRRR(set, 150, nil)

	assert.Empty(t, levels.Source)
	assert.Nil(t, levels.Target)
	assert.Nil(t, levels.Stop)
	assert.Nil(t, levels.Ratio)
}

func TestResolveRRRNoIndicators(t *testing.T) {
	levels := ResolveRRR(indicator.Set{}, 100, nil)

	assert.Nil(t, levels.Target)
	assert.Nil(t, levels.Stop)
	assert.Nil(t, levels.Ratio)
}

func TestResolveRRRLockedBypassesTiers(t *testing.T) {
	record := &model.MarketDataCacheRecord{
		Ticker:        "AAPL",
		CurrentPrice:  100,
		IsAIStrategy:  true,
		TargetPrice:   f(120),
		StopLossPrice: f(90),
	}
	// Tier inputs that would otherwise win.
	set := indicator.Set{
		Resistance1: f(110),
		Support1:    f(95),
	}

	levels := ResolveRRR(set, 100, record)

	assert.Equal(t, SourceAI, levels.Source)
	assert.Equal(t, 120.0, *levels.Target)
	assert.Equal(t, 90.0, *levels.Stop)
	assert.Equal(t, 2.0, *levels.Ratio)
}

func TestResolveRRRLockedRatioAbsentWhenPriceBelowStop(t *testing.T) {
	record := &model.MarketDataCacheRecord{
		IsAIStrategy:  true,
		TargetPrice:   f(120),
		StopLossPrice: f(90),
	}

	levels := ResolveRRR(indicator.Set{}, 85, record)

	// Levels stay authoritative, the ratio is undefined below the stop.
	assert.Equal(t, SourceAI, levels.Source)
	assert.Equal(t, 120.0, *levels.Target)
	assert.Equal(t, 90.0, *levels.Stop)
	assert.Nil(t, levels.Ratio)
}

func TestResolveRRRRatioRounding(t *testing.T) {
	set := indicator.Set{
		Resistance1: f(110),
		Support1:    f(97),
	}

	levels := ResolveRRR(set, 100, nil)

	require.NotNil(t, levels.Ratio)
	// (110-100)/(100-97) = 3.333... rounds to two decimals.
	assert.Equal(t, 3.33, *levels.Ratio)
}

func TestResolveRRRSkipsTierWithZeroRisk(t *testing.T) {
	// Support exactly at price: tier invalid, volatility wins.
	set := indicator.Set{
		Resistance1: f(110),
		Support1:    f(100),
		MA50:        f(100),
		ATR14:       f(5),
	}

	levels := ResolveRRR(set, 100, nil)

	assert.Equal(t, SourceVolatility, levels.Source)
}

func TestResolveRRRUnlockedIgnoresStoredLevels(t *testing.T) {
	// A cleared lock leaves stale level fields nil but IsAIStrategy false
	// is what matters: stored values must not leak into resolution.
	record := &model.MarketDataCacheRecord{
		IsAIStrategy:  false,
		TargetPrice:   f(500),
		StopLossPrice: f(1),
	}

	levels := ResolveRRR(indicator.Set{Resistance1: f(110), Support1: f(95)}, 100, record)

	assert.Equal(t, SourcePivot, levels.Source)
	assert.Equal(t, 110.0, *levels.Target)
}
