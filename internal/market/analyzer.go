package market

import (
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/session"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
)

const (
	// analysisLookback is how much quote history the analyzer reads.
	analysisLookback = 30 * time.Minute

	// recentSamples is how many of the newest polls form the recent window;
	// everything older in the lookback forms the baseline.
	recentSamples = 3
)

// Analyzer derives detector input from the stored quote series. Stored
// quotes carry cumulative day volume, so interval volumes are reconstructed
// from consecutive sample deltas.
type Analyzer struct {
	store  *repository.Store
	logger *logger.Logger
	clock  session.Clock
}

// NewAnalyzer builds an Analyzer over the store.
func NewAnalyzer(log *logger.Logger, store *repository.Store) *Analyzer {
	return &Analyzer{
		store:  store,
		logger: log,
		clock:  session.SystemClock{},
	}
}

// SetClock replaces the time source. Test hook.
func (a *Analyzer) SetClock(clock session.Clock) {
	a.clock = clock
}

// Analyze computes baselines and anomaly flags for one symbol. It needs at
// least recentSamples+2 quotes in the lookback to form both windows.
func (a *Analyzer) Analyze(symbol string) (types.MarketAnalysis, error) {
	now := a.clock.Now()

	quotes, err := a.store.ListRecentQuotes(symbol, now.Add(-analysisLookback))
	if err != nil {
		return types.MarketAnalysis{}, err
	}

	if len(quotes) < recentSamples+2 {
		return types.MarketAnalysis{}, errors.Newf(errors.ErrCodeDataNotFound,
			"not enough quote history for %s: have %d samples", symbol, len(quotes))
	}

	intervals := intervalVolumes(quotes)
	if len(intervals) <= recentSamples {
		return types.MarketAnalysis{}, errors.Newf(errors.ErrCodeDataNotFound,
			"not enough contiguous volume history for %s", symbol)
	}

	split := len(intervals) - recentSamples
	baseline := intervals[:split]
	recent := intervals[split:]

	analysis := types.MarketAnalysis{
		Symbol:           symbol,
		BaselineVolume:   mean(baseline),
		RecentVolume:     mean(recent),
		AverageTradeSize: mean(intervals),
		LargestTradeSize: largestOf(intervals),
		Timestamp:        now,
	}

	first := quotes[len(quotes)-1-recentSamples]
	last := quotes[len(quotes)-1]

	if first.LastPrice > 0 {
		analysis.PriceChangePct = (last.LastPrice - first.LastPrice) / first.LastPrice * 100
	}

	// Aggressor direction: price moved with volume running above baseline.
	volumeElevated := analysis.BaselineVolume > 0 && analysis.RecentVolume > analysis.BaselineVolume
	analysis.AggressorBuying = volumeElevated && analysis.PriceChangePct > 0
	analysis.AggressorSelling = volumeElevated && analysis.PriceChangePct < 0

	high, low := baselineRange(quotes[:len(quotes)-recentSamples])
	analysis.BreakoutAboveHigh = last.LastPrice > high
	analysis.BreakBelowSupport = last.LastPrice < low

	direction := types.SignalTypeIn
	if analysis.PriceChangePct < 0 {
		direction = types.SignalTypeOut
	}

	repeats, err := a.store.CountRecentSignals(symbol, direction, now.Add(-analysisLookback))
	if err == nil {
		analysis.RepeatSignals = repeats
	}

	return analysis, nil
}

// intervalVolumes turns cumulative day volumes into per-poll deltas.
// Negative deltas (day rollover) are dropped.
func intervalVolumes(quotes []types.Quote) []float64 {
	var intervals []float64

	for i := 1; i < len(quotes); i++ {
		delta := quotes[i].Volume - quotes[i-1].Volume
		if delta >= 0 {
			intervals = append(intervals, delta)
		}
	}

	return intervals
}

func baselineRange(quotes []types.Quote) (high, low float64) {
	for i, q := range quotes {
		if i == 0 || q.LastPrice > high {
			high = q.LastPrice
		}

		if i == 0 || q.LastPrice < low {
			low = q.LastPrice
		}
	}

	return high, low
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func largestOf(values []float64) float64 {
	largest := 0.0
	for _, v := range values {
		if v > largest {
			largest = v
		}
	}

	return largest
}
