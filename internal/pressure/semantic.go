package pressure

import (
	"time"

	"github.com/quantfold/papertrade/internal/types"
)

const (
	// sentimentSpan is how many index points a full-strength sentiment
	// score moves the SPI.
	sentimentSpan = 25.0

	// alertBand is the SPI move that raises an alert.
	alertBand = 15.0
)

// SemanticIndex folds a sentiment judgment into a base pressure value,
// producing the SPI. previousSPI carries the last stored SPI for the symbol
// so the change and alert flag can be derived; pass a negative value when no
// history exists.
func SemanticIndex(symbol string, basePressure float64, judgment types.AdvisorJudgment, previousSPI float64, at time.Time) types.SemanticPressure {
	spi := clamp(basePressure+judgment.SentimentScore*sentimentSpan, 0, 100)

	var change float64
	if previousSPI >= 0 {
		change = spi - previousSPI
	}

	return types.SemanticPressure{
		Symbol:         symbol,
		SPI:            spi,
		SentimentScore: clamp(judgment.SentimentScore, -1, 1),
		Sentiment:      judgment.Sentiment,
		Keywords:       judgment.Keywords,
		SPIChange:      change,
		AlertTriggered: change > alertBand || change < -alertBand,
		Timestamp:      at,
	}
}
