package types

import "time"

// QuoteSession identifies which trading session a quote was captured in.
type QuoteSession string

const (
	QuoteSessionRegular QuoteSession = "REGULAR"
	QuoteSessionPre     QuoteSession = "PRE"
	QuoteSessionPost    QuoteSession = "POST"
	QuoteSessionClosed  QuoteSession = "CLOSED"
)

// Quote is a single poll of market data for one symbol. Quotes are
// append-only: once stored for a timestamp they are never updated, only
// superseded by the next poll.
type Quote struct {
	Symbol    string       `json:"symbol" yaml:"symbol" validate:"required"`
	LastPrice float64      `json:"last_price" yaml:"last_price" validate:"gte=0"`
	PrevClose float64      `json:"prev_close" yaml:"prev_close" validate:"gte=0"`
	ChangePct float64      `json:"change_pct" yaml:"change_pct"`
	Volume    float64      `json:"volume" yaml:"volume" validate:"gte=0"`
	High      float64      `json:"high" yaml:"high" validate:"gte=0"`
	Low       float64      `json:"low" yaml:"low" validate:"gte=0"`
	Open      float64      `json:"open" yaml:"open" validate:"gte=0"`
	Session   QuoteSession `json:"session" yaml:"session"`
	// Source names the provider the quote came from, or "fallback" when the
	// chain degraded to last-known-good data.
	Source string `json:"source" yaml:"source"`
	// ErrorFlag is set when the quote is fallback data rather than a live read.
	ErrorFlag bool      `json:"error_flag" yaml:"error_flag"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" validate:"required"`
}

// DayRange returns the intraday high-low range.
func (q Quote) DayRange() float64 {
	return q.High - q.Low
}

// MarketAnalysis is the rule-based detector input: baselines and anomalies
// computed from recent trade flow for one symbol.
type MarketAnalysis struct {
	Symbol string `json:"symbol"`
	// BaselineVolume is the average volume over the prior window.
	BaselineVolume float64 `json:"baseline_volume"`
	// RecentVolume is the volume over the recent window.
	RecentVolume float64 `json:"recent_volume"`
	// AverageTradeSize is the mean single-trade size in the window.
	AverageTradeSize float64 `json:"average_trade_size"`
	// LargestTradeSize is the largest single trade observed in the window.
	LargestTradeSize float64 `json:"largest_trade_size"`
	// PriceChangePct is the price move over the recent window, in percent.
	PriceChangePct float64 `json:"price_change_pct"`
	// AggressorBuying is true when buyers lifted offers while price rose.
	AggressorBuying bool `json:"aggressor_buying"`
	// AggressorSelling is true when sellers hit bids while price fell.
	AggressorSelling bool `json:"aggressor_selling"`
	// BreakoutAboveHigh is true when price broke above the recent high.
	BreakoutAboveHigh bool `json:"breakout_above_high"`
	// BreakBelowSupport is true when price broke below the recent support level.
	BreakBelowSupport bool `json:"break_below_support"`
	// RepeatSignals counts signals of the same direction within the lookback.
	RepeatSignals int       `json:"repeat_signals"`
	Timestamp     time.Time `json:"timestamp"`
}

// VolumeRatio returns recent volume relative to baseline, 0 when no baseline.
func (a MarketAnalysis) VolumeRatio() float64 {
	if a.BaselineVolume <= 0 {
		return 0
	}

	return a.RecentVolume / a.BaselineVolume
}

// TradeSizeRatio returns the largest trade relative to the average trade,
// 0 when no average is available.
func (a MarketAnalysis) TradeSizeRatio() float64 {
	if a.AverageTradeSize <= 0 {
		return 0
	}

	return a.LargestTradeSize / a.AverageTradeSize
}
