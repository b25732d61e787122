package model

import (
	"time"
)

// MarketStatus represents the trading session state attached to a cache record.
type MarketStatus string

const (
	MarketStatusPreMarket  MarketStatus = "PRE_MARKET"
	MarketStatusOpen       MarketStatus = "OPEN"
	MarketStatusAfterHours MarketStatus = "AFTER_HOURS"
	MarketStatusClosed     MarketStatus = "CLOSED"
)

// Stock holds the static reference data for a ticker. A row is created the
// first time a ticker is fetched and survives until the ticker is removed
// from every portfolio.
type Stock struct {
	Ticker           string   `json:"ticker" db:"ticker"`
	Name             string   `json:"name" db:"name"`
	Sector           *string  `json:"sector,omitempty" db:"sector"`
	Industry         *string  `json:"industry,omitempty" db:"industry"`
	MarketCap        *float64 `json:"market_cap,omitempty" db:"market_cap"`
	PERatio          *float64 `json:"pe_ratio,omitempty" db:"pe_ratio"`
	ForwardPE        *float64 `json:"forward_pe,omitempty" db:"forward_pe"`
	EPS              *float64 `json:"eps,omitempty" db:"eps"`
	DividendYield    *float64 `json:"dividend_yield,omitempty" db:"dividend_yield"`
	Beta             *float64 `json:"beta,omitempty" db:"beta"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty" db:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty" db:"fifty_two_week_low"`
	Exchange         *string  `json:"exchange,omitempty" db:"exchange"`
	Currency         string   `json:"currency" db:"currency"`
}

// PriceBar is a single OHLCV bar. Provider adapters return bars ordered
// ascending by timestamp; they are consumed transiently by the indicator
// engine and the charting endpoint, never persisted.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Quote is a real-time snapshot returned by a provider adapter.
type Quote struct {
	Ticker        string       `json:"ticker"`
	Price         float64      `json:"price"`
	ChangePercent float64      `json:"change_percent"`
	Name          string       `json:"name"`
	MarketStatus  MarketStatus `json:"market_status"`
	Volume        float64      `json:"volume"`
}

// Fundamentals is the slow-moving financial profile of a ticker. Fields a
// provider cannot supply stay nil and the stored value is retained.
type Fundamentals struct {
	Sector           *string  `json:"sector,omitempty"`
	Industry         *string  `json:"industry,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	ForwardPE        *float64 `json:"forward_pe,omitempty"`
	EPS              *float64 `json:"eps,omitempty"`
	DividendYield    *float64 `json:"dividend_yield,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
}

// NewsItem is a single news article attached to a ticker.
type NewsItem struct {
	ID          string    `json:"id" db:"id"`
	Ticker      string    `json:"ticker" db:"ticker"`
	Title       string    `json:"title" db:"title"`
	Publisher   string    `json:"publisher" db:"publisher"`
	Link        string    `json:"link" db:"link"`
	PublishTime time.Time `json:"publish_time" db:"publish_time"`
}

// MarketDataCacheRecord is the durable per-ticker record read by every
// consumer. It is mutated only by the refresh pipeline and the strategy
// lock transitions, always as a whole row.
//
// Invariant: RiskRewardRatio is non-nil only when a tiered technical
// computation succeeded or IsAIStrategy is true. When IsAIStrategy is true,
// TargetPrice and StopLossPrice are non-nil and are never overwritten by
// technical computation.
type MarketDataCacheRecord struct {
	Ticker        string  `json:"ticker" db:"ticker"`
	CurrentPrice  float64 `json:"current_price" db:"current_price"`
	ChangePercent float64 `json:"change_percent" db:"change_percent"`

	RSI14         *float64 `json:"rsi_14" db:"rsi_14"`
	MA20          *float64 `json:"ma_20" db:"ma_20"`
	MA50          *float64 `json:"ma_50" db:"ma_50"`
	MA200         *float64 `json:"ma_200" db:"ma_200"`
	MACDVal       *float64 `json:"macd_val" db:"macd_val"`
	MACDSignal    *float64 `json:"macd_signal" db:"macd_signal"`
	MACDHist      *float64 `json:"macd_hist" db:"macd_hist"`
	MACDHistSlope *float64 `json:"macd_hist_slope" db:"macd_hist_slope"`

	BBUpper  *float64 `json:"bb_upper" db:"bb_upper"`
	BBMiddle *float64 `json:"bb_middle" db:"bb_middle"`
	BBLower  *float64 `json:"bb_lower" db:"bb_lower"`

	ATR14 *float64 `json:"atr_14" db:"atr_14"`
	KLine *float64 `json:"k_line" db:"k_line"`
	DLine *float64 `json:"d_line" db:"d_line"`
	JLine *float64 `json:"j_line" db:"j_line"`

	VolumeMA20  *float64 `json:"volume_ma_20" db:"volume_ma_20"`
	VolumeRatio *float64 `json:"volume_ratio" db:"volume_ratio"`

	ADX14       *float64 `json:"adx_14" db:"adx_14"`
	PivotPoint  *float64 `json:"pivot_point" db:"pivot_point"`
	Resistance1 *float64 `json:"resistance_1" db:"resistance_1"`
	Resistance2 *float64 `json:"resistance_2" db:"resistance_2"`
	Support1    *float64 `json:"support_1" db:"support_1"`
	Support2    *float64 `json:"support_2" db:"support_2"`

	RiskRewardRatio *float64 `json:"risk_reward_ratio" db:"risk_reward_ratio"`
	IsAIStrategy    bool     `json:"is_ai_strategy" db:"is_ai_strategy"`
	TargetPrice     *float64 `json:"target_price" db:"target_price"`
	StopLossPrice   *float64 `json:"stop_loss_price" db:"stop_loss_price"`

	MarketStatus MarketStatus `json:"market_status" db:"market_status"`
	LastUpdated  time.Time    `json:"last_updated" db:"last_updated"`
}

// IsFresh reports whether the record is within the staleness threshold.
func (r *MarketDataCacheRecord) IsFresh(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.LastUpdated) < threshold
}

// RefreshResult is the per-ticker outcome of a refresh batch. A failed
// ticker carries its last-known record together with the error that caused
// the fallback to cache; it never fails the batch.
type RefreshResult struct {
	Ticker  string                 `json:"ticker"`
	Record  *MarketDataCacheRecord `json:"record,omitempty"`
	Skipped bool                   `json:"skipped,omitempty"`
	Stale   bool                   `json:"stale,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Err     error                  `json:"-"`
}
