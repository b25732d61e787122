package strategy

import (
	"time"

	"github.com/yourorg/market-pulse/internal/indicator"
	"github.com/yourorg/market-pulse/internal/model"
)

// State is the per-ticker strategy lock state.
type State int

const (
	// Unlocked: algorithmic tier resolution governs the stored levels.
	Unlocked State = iota
	// AILocked: AI-supplied levels govern; refreshes only recompute the ratio.
	AILocked
)

func (s State) String() string {
	if s == AILocked {
		return "AI_LOCKED"
	}
	return "UNLOCKED"
}

// StateOf reports the lock state of a record. A missing record is a
// newly created one and starts Unlocked.
func StateOf(record *model.MarketDataCacheRecord) State {
	if record != nil && record.IsAIStrategy {
		return AILocked
	}
	return Unlocked
}

// Accept applies the UNLOCKED→AI_LOCKED transition: the proposal's target
// and stop become the locked levels and the ratio is recomputed against
// the record's current price. Accepting over an existing lock replaces it.
// This and Clear are the only two mutators of the lock fields.
func Accept(record *model.MarketDataCacheRecord, proposal model.StrategyProposal, now time.Time) {
	target := proposal.TargetPrice
	stop := proposal.StopLossPrice

	record.IsAIStrategy = true
	record.TargetPrice = &target
	record.StopLossPrice = &stop
	record.RiskRewardRatio = ratioOf(target, stop, record.CurrentPrice)
	record.LastUpdated = now
}

// Clear applies the AI_LOCKED→UNLOCKED transition. The ratio is dropped
// with the levels; the next refresh recomputes it from the tiers, never
// from the stale AI values.
func Clear(record *model.MarketDataCacheRecord, now time.Time) {
	record.IsAIStrategy = false
	record.TargetPrice = nil
	record.StopLossPrice = nil
	record.RiskRewardRatio = nil
	record.LastUpdated = now
}

// ApplyRefresh merges a completed fetch into the record as one atomic
// value: quote, indicator set and resolved levels together. Lock fields
// are never written here: a locked record keeps its levels no matter
// what the tiers produced, an unlocked record carries none.
func ApplyRefresh(record *model.MarketDataCacheRecord, quote *model.Quote, set indicator.Set, levels Levels, now time.Time) {
	record.CurrentPrice = quote.Price
	record.ChangePercent = quote.ChangePercent
	record.MarketStatus = quote.MarketStatus

	record.RSI14 = set.RSI14
	record.MA20 = set.MA20
	record.MA50 = set.MA50
	record.MA200 = set.MA200
	record.MACDVal = set.MACDVal
	record.MACDSignal = set.MACDSignal
	record.MACDHist = set.MACDHist
	record.MACDHistSlope = set.MACDHistSlope
	record.BBUpper = set.BBUpper
	record.BBMiddle = set.BBMiddle
	record.BBLower = set.BBLower
	record.ATR14 = set.ATR14
	record.KLine = set.KLine
	record.DLine = set.DLine
	record.JLine = set.JLine
	record.VolumeMA20 = set.VolumeMA20
	record.VolumeRatio = set.VolumeRatio
	record.ADX14 = set.ADX14
	record.PivotPoint = set.PivotPoint
	record.Resistance1 = set.Resistance1
	record.Resistance2 = set.Resistance2
	record.Support1 = set.Support1
	record.Support2 = set.Support2

	record.RiskRewardRatio = levels.Ratio
	record.LastUpdated = now
}
