// Package indicator computes the technical indicator battery over an
// ordered daily price history. Every function is pure and deterministic;
// indicators whose warm-up window is not satisfied come back as nil
// pointers, never as zero or any other numeric sentinel.
package indicator

import (
	"math"

	"github.com/yourorg/market-pulse/internal/model"
)

// Warm-up windows. An indicator is absent until its window is filled; no
// extrapolation from shorter histories.
const (
	rsiPeriod   = 14
	rsiMinBars  = rsiPeriod + 1
	macdFast    = 12
	macdSlow    = 26
	macdSmooth  = 9
	macdMinBars = macdSlow + macdSmooth // 26 + 9 warm-up
	bbPeriod    = 20
	bbWidth     = 2.0
	atrPeriod   = 14
	atrMinBars  = atrPeriod + 1
	kdjPeriod   = 9
	kdjCom      = 2.0
	adxPeriod   = 14
	adxMinBars  = 2 * adxPeriod
	ma20Period  = 20
	ma50Period  = 50
	ma200Period = 200
)

// MACD cross states.
const (
	CrossGolden = "GOLDEN"
	CrossDeath  = "DEATH"
)

// Set is the indicator snapshot for the most recent bar. Nil means the
// indicator could not be computed from the available history.
type Set struct {
	RSI14 *float64 `json:"rsi_14"`

	MACDVal        *float64 `json:"macd_val"`
	MACDSignal     *float64 `json:"macd_signal"`
	MACDHist       *float64 `json:"macd_hist"`
	MACDHistSlope  *float64 `json:"macd_hist_slope"`
	MACDCross      string   `json:"macd_cross,omitempty"`
	MACDIsNewCross bool     `json:"macd_is_new_cross,omitempty"`

	MA20  *float64 `json:"ma_20"`
	MA50  *float64 `json:"ma_50"`
	MA200 *float64 `json:"ma_200"`

	BBUpper  *float64 `json:"bb_upper"`
	BBMiddle *float64 `json:"bb_middle"`
	BBLower  *float64 `json:"bb_lower"`

	ATR14 *float64 `json:"atr_14"`

	KLine *float64 `json:"k_line"`
	DLine *float64 `json:"d_line"`
	JLine *float64 `json:"j_line"`

	VolumeMA20  *float64 `json:"volume_ma_20"`
	VolumeRatio *float64 `json:"volume_ratio"`

	ADX14 *float64 `json:"adx_14"`

	PivotPoint  *float64 `json:"pivot_point"`
	Resistance1 *float64 `json:"resistance_1"`
	Resistance2 *float64 `json:"resistance_2"`
	Support1    *float64 `json:"support_1"`
	Support2    *float64 `json:"support_2"`
}

// Compute derives the full indicator set from bars ordered ascending by
// timestamp.
func Compute(bars []model.PriceBar) Set {
	var s Set
	n := len(bars)
	if n == 0 {
		return s
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	computeMACD(&s, closes)
	computeRSI(&s, closes)
	computeMovingAverages(&s, closes)
	computeBollinger(&s, closes)
	computeVolume(&s, volumes)
	computeATR(&s, highs, lows, closes)
	computeKDJ(&s, highs, lows, closes)
	computeADX(&s, highs, lows, closes)
	computePivots(&s, highs, lows, closes)

	return s
}

func computeMACD(s *Set, closes []float64) {
	n := len(closes)
	if n < macdMinBars {
		return
	}

	macdLine := sub(emaSeries(closes, macdFast), emaSeries(closes, macdSlow))
	signal := emaSeries(macdLine, macdSmooth)
	hist := sub(macdLine, signal)

	s.MACDVal = ptrIfFinite(macdLine[n-1])
	s.MACDSignal = ptrIfFinite(signal[n-1])
	s.MACDHist = ptrIfFinite(hist[n-1])
	s.MACDHistSlope = ptrIfFinite(hist[n-1] - hist[n-2])

	if macdLine[n-1] >= signal[n-1] {
		s.MACDCross = CrossGolden
	} else {
		s.MACDCross = CrossDeath
	}
	prevAbove := macdLine[n-2] >= signal[n-2]
	currAbove := macdLine[n-1] >= signal[n-1]
	s.MACDIsNewCross = prevAbove != currAbove
}

// computeRSI uses Wilder smoothing: the first average gain/loss is a
// simple mean over the period, every later one decays at (period-1)/period.
func computeRSI(s *Set, closes []float64) {
	n := len(closes)
	if n < rsiMinBars {
		return
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
	}

	rsi := 100.0
	if avgLoss > 0 {
		rs := avgGain / avgLoss
		rsi = 100.0 - 100.0/(1.0+rs)
	}
	s.RSI14 = ptrIfFinite(rsi)
}

func computeMovingAverages(s *Set, closes []float64) {
	s.MA20 = ptrIfFinite(smaLast(closes, ma20Period))
	s.MA50 = ptrIfFinite(smaLast(closes, ma50Period))
	s.MA200 = ptrIfFinite(smaLast(closes, ma200Period))
}

func computeBollinger(s *Set, closes []float64) {
	if len(closes) < bbPeriod {
		return
	}
	mid := smaLast(closes, bbPeriod)
	sd := stdPopLast(closes, bbPeriod)
	s.BBMiddle = ptrIfFinite(mid)
	s.BBUpper = ptrIfFinite(mid + bbWidth*sd)
	s.BBLower = ptrIfFinite(mid - bbWidth*sd)
}

func computeVolume(s *Set, volumes []float64) {
	n := len(volumes)
	if n < ma20Period {
		return
	}
	volMA := smaLast(volumes, ma20Period)
	s.VolumeMA20 = ptrIfFinite(volMA)
	if volMA > 0 {
		s.VolumeRatio = ptrIfFinite(volumes[n-1] / volMA)
	}
}

// computeATR smooths the true range the Wilder way, seeded with a simple
// mean over the first period of true ranges.
func computeATR(s *Set, highs, lows, closes []float64) {
	n := len(closes)
	if n < atrMinBars {
		return
	}

	atr := 0.0
	for i := 1; i <= atrPeriod; i++ {
		atr += trueRange(highs[i], lows[i], closes[i-1])
	}
	atr /= float64(atrPeriod)

	p := float64(atrPeriod)
	for i := atrPeriod + 1; i < n; i++ {
		atr = (atr*(p-1) + trueRange(highs[i], lows[i], closes[i-1])) / p
	}
	s.ATR14 = ptrIfFinite(atr)
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if d := math.Abs(high - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// computeKDJ derives the stochastic K/D/J lines: RSV over a 9-bar
// high/low channel, twice smoothed at alpha=1/3. J = 3K - 2D may leave
// the [0,100] range, which is expected.
func computeKDJ(s *Set, highs, lows, closes []float64) {
	n := len(closes)
	if n < kdjPeriod {
		return
	}

	rsv := make([]float64, 0, n-kdjPeriod+1)
	for i := kdjPeriod - 1; i < n; i++ {
		lo, hi := minMaxWindow(lows, highs, i, kdjPeriod)
		if hi == lo {
			// Flat channel: carry a neutral reading instead of dividing by zero.
			rsv = append(rsv, 50)
			continue
		}
		rsv = append(rsv, (closes[i]-lo)/(hi-lo)*100)
	}

	k := ewmComSeries(rsv, kdjCom)
	d := ewmComSeries(k, kdjCom)
	kLast := k[len(k)-1]
	dLast := d[len(d)-1]

	s.KLine = ptrIfFinite(kLast)
	s.DLine = ptrIfFinite(dLast)
	s.JLine = ptrIfFinite(3*kLast - 2*dLast)
}

// computeADX follows the rolling-mean DMI formulation: smoothed +DM/-DM
// against smoothed TR produce the directional indexes, and ADX is the
// rolling mean of their normalized spread.
func computeADX(s *Set, highs, lows, closes []float64) {
	n := len(closes)
	if n < adxMinBars {
		return
	}

	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
		tr[i-1] = trueRange(highs[i], lows[i], closes[i-1])
	}

	trSmooth := rollingMean(tr, adxPeriod)
	plusSmooth := rollingMean(plusDM, adxPeriod)
	minusSmooth := rollingMean(minusDM, adxPeriod)

	dx := make([]float64, 0, len(tr))
	for i := adxPeriod - 1; i < len(tr); i++ {
		if trSmooth[i] == 0 {
			dx = append(dx, math.NaN())
			continue
		}
		plusDI := 100 * plusSmooth[i] / trSmooth[i]
		minusDI := 100 * minusSmooth[i] / trSmooth[i]
		if plusDI+minusDI == 0 {
			dx = append(dx, math.NaN())
			continue
		}
		dx = append(dx, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
	}
	s.ADX14 = ptrIfFinite(smaLast(dx, adxPeriod))
}

// computePivots applies the classic pivot-point formula to the most
// recently completed bar (the one before the current bar).
func computePivots(s *Set, highs, lows, closes []float64) {
	n := len(closes)
	if n < 2 {
		return
	}

	h, l, c := highs[n-2], lows[n-2], closes[n-2]
	pivot := (h + l + c) / 3

	s.PivotPoint = ptrIfFinite(pivot)
	s.Resistance1 = ptrIfFinite(2*pivot - l)
	s.Support1 = ptrIfFinite(2*pivot - h)
	s.Resistance2 = ptrIfFinite(pivot + (h - l))
	s.Support2 = ptrIfFinite(pivot - (h - l))
}
