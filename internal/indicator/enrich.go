package indicator

import "github.com/yourorg/market-pulse/internal/model"

// minEnrichBars mirrors the charting cutoff: below this the bars are
// returned without indicator columns.
const minEnrichBars = 10

// EnrichedBar is a price bar with the per-bar overlay columns the chart
// renders. Columns are nil while their window warms up.
type EnrichedBar struct {
	model.PriceBar
	MACD       *float64 `json:"macd,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	MACDHist   *float64 `json:"macd_hist,omitempty"`
	RSI        *float64 `json:"rsi,omitempty"`
	BBUpper    *float64 `json:"bb_upper,omitempty"`
	BBMiddle   *float64 `json:"bb_middle,omitempty"`
	BBLower    *float64 `json:"bb_lower,omitempty"`
}

// Enrich attaches MACD, RSI and Bollinger columns to every bar for
// chart rendering. Bars must be ordered ascending by timestamp.
func Enrich(bars []model.PriceBar) []EnrichedBar {
	n := len(bars)
	out := make([]EnrichedBar, n)
	for i, b := range bars {
		out[i] = EnrichedBar{PriceBar: b}
	}
	if n < minEnrichBars {
		return out
	}

	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	macdLine := sub(emaSeries(closes, macdFast), emaSeries(closes, macdSlow))
	signal := emaSeries(macdLine, macdSmooth)
	hist := sub(macdLine, signal)
	for i := macdMinBars - 1; i < n; i++ {
		out[i].MACD = ptrIfFinite(macdLine[i])
		out[i].MACDSignal = ptrIfFinite(signal[i])
		out[i].MACDHist = ptrIfFinite(hist[i])
	}

	rsi := rsiColumn(closes)
	for i := range rsi {
		out[i].RSI = rsi[i]
	}

	mid := rollingMean(closes, bbPeriod)
	for i := bbPeriod - 1; i < n; i++ {
		sd := stdPopLast(closes[:i+1], bbPeriod)
		out[i].BBMiddle = ptrIfFinite(mid[i])
		out[i].BBUpper = ptrIfFinite(mid[i] + bbWidth*sd)
		out[i].BBLower = ptrIfFinite(mid[i] - bbWidth*sd)
	}

	return out
}

// rsiColumn computes the Wilder RSI series; entries inside the warm-up
// window are nil.
func rsiColumn(closes []float64) []*float64 {
	n := len(closes)
	out := make([]*float64, n)
	if n < rsiMinBars {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= rsiPeriod; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(rsiPeriod)
	avgLoss /= float64(rsiPeriod)
	out[rsiPeriod] = rsiValue(avgGain, avgLoss)

	p := float64(rsiPeriod)
	for i := rsiPeriod + 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) *float64 {
	rsi := 100.0
	if avgLoss > 0 {
		rs := avgGain / avgLoss
		rsi = 100.0 - 100.0/(1.0+rs)
	}
	return ptrIfFinite(rsi)
}
