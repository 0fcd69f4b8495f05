package types

import "time"

// SignalType is the direction of a detected money-flow event.
type SignalType string

const (
	// SignalTypeIn marks accumulation: money flowing into the symbol.
	SignalTypeIn SignalType = "IN"
	// SignalTypeOut marks distribution: money flowing out of the symbol.
	SignalTypeOut SignalType = "OUT"
	// SignalTypeNone means no signal; nothing is persisted for it.
	SignalTypeNone SignalType = "NONE"
)

// Signal is a detected IN or OUT event. A signal is only emitted when at
// least two independent trigger conditions hold for its direction.
type Signal struct {
	ID     string     `json:"id"`
	Symbol string     `json:"symbol" validate:"required"`
	Type   SignalType `json:"type" validate:"required,oneof=IN OUT NONE"`
	// Intensity scores IN signals; Panic scores OUT signals. Both share the
	// 1-5 scale and symmetric scoring formulas.
	Intensity int `json:"intensity" validate:"gte=0,lte=5"`
	Panic     int `json:"panic" validate:"gte=0,lte=5"`
	// ContinuationProb is the estimated probability, in percent, that the
	// detected flow continues. Always within [10, 95].
	ContinuationProb int `json:"continuation_prob" validate:"gte=0,lte=95"`
	// Conditions lists the independent trigger conditions that held.
	Conditions     []string  `json:"conditions"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
}

// Score returns the intensity for IN signals and the panic score for OUT.
func (s Signal) Score() int {
	if s.Type == SignalTypeOut {
		return s.Panic
	}

	return s.Intensity
}

// Condition names for signal triggers. Kept stable because they are persisted
// with each signal and surfaced through the API.
const (
	ConditionVolumeSpike       = "volume_spike"
	ConditionExtremeTradeSize  = "extreme_trade_size"
	ConditionBreakoutHigh      = "breakout_above_high"
	ConditionSupportBreak      = "break_below_support"
	ConditionAggressorBuying   = "aggressor_buying"
	ConditionAggressorSelling  = "aggressor_selling"
	ConditionBullishSentiment  = "bullish_sentiment"
	ConditionBearishSentiment  = "bearish_sentiment"
	ConditionInstitutionalBull = "institutional_bullish"
	ConditionInstitutionalBear = "institutional_bearish"
)
