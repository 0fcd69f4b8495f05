package types

// AdvisorJudgment is the structured sentiment judgment returned by the
// advisor capability. Treated as untrusted, best-effort input; callers must
// degrade to NeutralJudgment on any failure.
type AdvisorJudgment struct {
	// SentimentScore is in [-1, 1].
	SentimentScore float64   `json:"sentiment_score" jsonschema:"minimum=-1,maximum=1"`
	Sentiment      Sentiment `json:"sentiment" jsonschema:"enum=positive,enum=neutral,enum=negative"`
	// Keywords are the phrases that drove the judgment.
	Keywords []string `json:"keywords"`
	// InstitutionalBullish/Bearish flag inferred institutional flow.
	InstitutionalBullish bool `json:"institutional_bullish"`
	InstitutionalBearish bool `json:"institutional_bearish"`
	// SocialBuzz rates social attention from 0 (none) to 100 (extreme).
	SocialBuzz float64 `json:"social_buzz" jsonschema:"minimum=0,maximum=100"`
	// HasCatalyst is true when a concrete news catalyst was identified.
	HasCatalyst bool `json:"has_catalyst"`
	// Confidence is the advisor's own 0-100 confidence in this judgment.
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=100"`
}

// NeutralJudgment is the mandatory default when the advisor fails or times
// out: neutral sentiment, no flags, mid confidence.
func NeutralJudgment() AdvisorJudgment {
	return AdvisorJudgment{
		SentimentScore:       0,
		Sentiment:            SentimentNeutral,
		Keywords:             nil,
		InstitutionalBullish: false,
		InstitutionalBearish: false,
		SocialBuzz:           0,
		HasCatalyst:          false,
		Confidence:           50,
	}
}

// OrderTiming is the advisor's execution-timing recommendation.
type OrderTiming string

const (
	OrderTimingExecuteNow OrderTiming = "EXECUTE_NOW"
	OrderTimingWait       OrderTiming = "WAIT"
	OrderTimingAvoid      OrderTiming = "AVOID"
)

// OrderRisk is the advisor's risk classification for an order.
type OrderRisk string

const (
	OrderRiskLow    OrderRisk = "LOW"
	OrderRiskMedium OrderRisk = "MEDIUM"
	OrderRiskHigh   OrderRisk = "HIGH"
)

// OrderAdvice is the advisor's non-blocking annotation on a new order.
type OrderAdvice struct {
	// Confidence is 0-100.
	Confidence float64     `json:"confidence" jsonschema:"minimum=0,maximum=100"`
	Timing     OrderTiming `json:"timing" jsonschema:"enum=EXECUTE_NOW,enum=WAIT,enum=AVOID"`
	Risk       OrderRisk   `json:"risk" jsonschema:"enum=LOW,enum=MEDIUM,enum=HIGH"`
	Comment    string      `json:"comment"`
}

// NeutralAdvice is the default annotation when the advisor is unavailable.
func NeutralAdvice() OrderAdvice {
	return OrderAdvice{
		Confidence: 50,
		Timing:     OrderTimingExecuteNow,
		Risk:       OrderRiskMedium,
		Comment:    "",
	}
}
