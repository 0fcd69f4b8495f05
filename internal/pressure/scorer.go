// Package pressure converts quotes and aggregated text into bounded scores:
// a 0-100 pressure index from the intraday range and volume, and the
// Semantic Pressure Index (SPI) once sentiment inputs are folded in.
package pressure

import (
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/types"
	"go.uber.org/zap"
)

const (
	buyZoneBelow  = 40.0
	sellZoneAbove = 70.0

	// volumeWeight converts raw volume into index points before capping.
	volumeWeight = 0.0001
)

// Scorer computes pressure records from quotes.
type Scorer struct {
	logger *logger.Logger
}

// NewScorer builds a Scorer.
func NewScorer(log *logger.Logger) *Scorer {
	return &Scorer{logger: log}
}

// Score computes the pressure record for a quote. A zero intraday range
// yields the neutral index 50.
func (s *Scorer) Score(quote types.Quote) types.PressureRecord {
	index := 50.0

	if r := quote.DayRange(); r > 0 {
		index = (quote.LastPrice - quote.Low) / r * 100
	}

	index = clamp(index, 0, 100)

	// Volume adds at most enough to reach 100 on the adjusted index.
	adjustment := quote.Volume * volumeWeight
	if index+adjustment > 100 {
		adjustment = 100 - index
	}

	final := (index + (index + adjustment)) / 2

	record := types.PressureRecord{
		Symbol:               quote.Symbol,
		Price:                quote.LastPrice,
		DayHigh:              quote.High,
		DayLow:               quote.Low,
		Volume:               quote.Volume,
		PressureIndex:        index,
		VolatilityAdjustment: adjustment,
		FinalPressure:        clamp(final, 0, 100),
		Action:               actionFor(final),
		Timestamp:            quote.Timestamp,
	}

	s.logger.Debug("Scored pressure",
		zap.String("symbol", quote.Symbol),
		zap.Float64("final_pressure", record.FinalPressure),
		zap.String("action", string(record.Action)),
	)

	return record
}

func actionFor(final float64) types.PressureAction {
	switch {
	case final < buyZoneBelow:
		return types.PressureActionBuy
	case final > sellZoneAbove:
		return types.PressureActionSell
	default:
		return types.PressureActionHold
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
