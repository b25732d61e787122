// Package strategy arbitrates what trade levels govern a ticker: the
// tiered technical resolution and the persistent lock that lets
// AI-supplied levels override it.
package strategy

import (
	"math"

	"github.com/yourorg/market-pulse/internal/indicator"
	"github.com/yourorg/market-pulse/internal/model"
)

// Level sources, in tier order.
const (
	SourceAI         = "ai"
	SourcePivot      = "pivot"
	SourceBollinger  = "bollinger"
	SourceVolatility = "volatility"
)

// Levels is the resolved target/stop pair and risk/reward ratio. All
// fields are nil when no tier produced a valid ordering.
type Levels struct {
	Target *float64 `json:"target"`
	Stop   *float64 `json:"stop"`
	Ratio  *float64 `json:"ratio"`
	Source string   `json:"source,omitempty"`
}

// ResolveRRR derives the governing trade levels for a ticker.
//
// When the record is AI-locked the stored levels are authoritative: the
// tiers are bypassed entirely and only the ratio is recomputed against the
// current price. Otherwise the tiers apply strictly in order (pivot, then
// Bollinger, then volatility), each valid only when target > currentPrice >
// stop with finite bounds. A previously stored ratio is never carried
// over: an unlocked record with no valid tier resolves to absent.
func ResolveRRR(set indicator.Set, currentPrice float64, record *model.MarketDataCacheRecord) Levels {
	if record != nil && record.IsAIStrategy && record.TargetPrice != nil && record.StopLossPrice != nil {
		return Levels{
			Target: record.TargetPrice,
			Stop:   record.StopLossPrice,
			Ratio:  ratioOf(*record.TargetPrice, *record.StopLossPrice, currentPrice),
			Source: SourceAI,
		}
	}

	tiers := []struct {
		target *float64
		stop   *float64
		source string
	}{
		{set.Resistance1, set.Support1, SourcePivot},
		{set.BBUpper, set.BBLower, SourceBollinger},
		{volatilityTarget(set), volatilityStop(set), SourceVolatility},
	}

	for _, tier := range tiers {
		if tier.target == nil || tier.stop == nil {
			continue
		}
		target, stop := *tier.target, *tier.stop
		if !isFinite(target) || !isFinite(stop) {
			continue
		}
		if !(target > currentPrice && currentPrice > stop) {
			continue
		}
		ratio := ratioOf(target, stop, currentPrice)
		if ratio == nil {
			continue
		}
		return Levels{Target: &target, Stop: &stop, Ratio: ratio, Source: tier.source}
	}

	return Levels{}
}

func volatilityTarget(set indicator.Set) *float64 {
	if set.MA50 == nil || set.ATR14 == nil {
		return nil
	}
	v := *set.MA50 + 2*(*set.ATR14)
	return &v
}

func volatilityStop(set indicator.Set) *float64 {
	if set.MA50 == nil || set.ATR14 == nil {
		return nil
	}
	v := *set.MA50 - 2*(*set.ATR14)
	return &v
}

// ratioOf computes (target - current) / (current - stop) to two-decimal
// precision; absent when the denominator is not positive.
func ratioOf(target, stop, current float64) *float64 {
	risk := current - stop
	if risk <= 0 {
		return nil
	}
	ratio := math.Round((target-current)/risk*100) / 100
	if !isFinite(ratio) {
		return nil
	}
	return &ratio
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
