package types

import "time"

// PressureAction is the zone a final pressure value falls into.
type PressureAction string

const (
	PressureActionBuy  PressureAction = "BUY"
	PressureActionHold PressureAction = "HOLD"
	PressureActionSell PressureAction = "SELL"
)

// Sentiment classifies a sentiment score.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// PressureRecord is one scoring pass over a quote. Records are append-only
// time series: insert only, never updated.
type PressureRecord struct {
	Symbol  string  `json:"symbol" validate:"required"`
	Price   float64 `json:"price" validate:"gte=0"`
	DayHigh float64 `json:"day_high"`
	DayLow  float64 `json:"day_low"`
	Volume  float64 `json:"volume"`
	// PressureIndex is the range-normalized position of price within the
	// day's high/low range, 0-100.
	PressureIndex float64 `json:"pressure_index" validate:"gte=0,lte=100"`
	// VolatilityAdjustment is the volume-derived addition applied to the raw
	// index before averaging.
	VolatilityAdjustment float64 `json:"volatility_adjustment" validate:"gte=0"`
	// FinalPressure is the mean of the raw and volatility-adjusted indexes.
	FinalPressure float64        `json:"final_pressure" validate:"gte=0,lte=100"`
	Action        PressureAction `json:"action"`
	Timestamp     time.Time      `json:"timestamp" validate:"required"`
}

// SemanticPressure combines a pressure index with text-derived sentiment into
// the Semantic Pressure Index.
type SemanticPressure struct {
	Symbol string `json:"symbol" validate:"required"`
	// SPI is the sentiment-adjusted pressure index, clamped to 0-100.
	SPI float64 `json:"spi" validate:"gte=0,lte=100"`
	// SentimentScore is in [-1, 1]; 0 when no sentiment input matched.
	SentimentScore float64   `json:"sentiment_score" validate:"gte=-1,lte=1"`
	Sentiment      Sentiment `json:"sentiment"`
	// Keywords lists the matched sentiment keywords that produced the score.
	Keywords []string `json:"keywords"`
	// SPIChange is the delta against the previous SPI for the symbol.
	SPIChange float64 `json:"spi_change"`
	// AlertTriggered is set when the SPI moved by more than the alert band.
	AlertTriggered bool      `json:"alert_triggered"`
	Timestamp      time.Time `json:"timestamp"`
}
