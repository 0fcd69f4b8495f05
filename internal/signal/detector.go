// Package signal applies rule-based heuristics over analyzed market data to
// emit IN/OUT signals. A signal needs at least two independently-true
// conditions for its direction; IN is checked first, so a tie favors IN.
package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/types"
	"go.uber.org/zap"
)

const (
	// volumeSpikeRatio is the recent/baseline multiple treated as a spike.
	volumeSpikeRatio = 4.0
	// extremeTradeRatio is the largest/average trade multiple treated as
	// extreme.
	extremeTradeRatio = 8.0

	// flatPriceBandPct marks the price change below which the move is
	// considered flat.
	flatPriceBandPct = 0.2

	// strongSentiment is the |score| above which sentiment confirms a
	// direction on its own.
	strongSentiment = 0.3

	// highSocialBuzz is the buzz level that counts as social confirmation.
	highSocialBuzz = 70.0

	// lowAdvisorConfidence discounts the continuation estimate.
	lowAdvisorConfidence = 40.0
)

// Detector turns market analyses into signals.
type Detector struct {
	logger *logger.Logger
	clock  func() time.Time
}

// NewDetector builds a Detector.
func NewDetector(log *logger.Logger) *Detector {
	return &Detector{
		logger: log,
		clock:  time.Now,
	}
}

// Detect evaluates one analysis pass, optionally merged with an advisor
// judgment (pass NeutralJudgment when the advisor was unavailable). The
// returned signal has Type NONE when fewer than two conditions held for
// either direction; NONE signals must not be persisted.
func (d *Detector) Detect(analysis types.MarketAnalysis, judgment types.AdvisorJudgment) types.Signal {
	in, out := d.conditions(analysis, judgment)

	sig := types.Signal{
		ID:        uuid.New().String(),
		Symbol:    analysis.Symbol,
		Type:      types.SignalTypeNone,
		Timestamp: d.clock(),
	}

	switch {
	case len(in) >= 2:
		sig.Type = types.SignalTypeIn
		sig.Conditions = in
		sig.Intensity = directionScore(analysis, judgment, true)
		sig.ContinuationProb = continuationProb(analysis, judgment, true)
		sig.Recommendation = fmt.Sprintf("Money flowing in (intensity %d/5, %d%% continuation)",
			sig.Intensity, sig.ContinuationProb)
	case len(out) >= 2:
		sig.Type = types.SignalTypeOut
		sig.Conditions = out
		sig.Panic = directionScore(analysis, judgment, false)
		sig.ContinuationProb = continuationProb(analysis, judgment, false)
		sig.Recommendation = fmt.Sprintf("Money flowing out (panic %d/5, %d%% continuation)",
			sig.Panic, sig.ContinuationProb)
	default:
		return sig
	}

	d.logger.Info("Signal detected",
		zap.String("symbol", sig.Symbol),
		zap.String("type", string(sig.Type)),
		zap.Int("score", sig.Score()),
		zap.Int("continuation_prob", sig.ContinuationProb),
		zap.Strings("conditions", sig.Conditions),
	)

	return sig
}

// conditions accumulates independently-true trigger conditions per
// direction. Direction-neutral anomalies (volume spike, extreme trade size)
// are attributed by the sign of the price move.
func (d *Detector) conditions(a types.MarketAnalysis, j types.AdvisorJudgment) (in, out []string) {
	rising := a.PriceChangePct >= 0

	if a.VolumeRatio() >= volumeSpikeRatio {
		if rising {
			in = append(in, types.ConditionVolumeSpike)
		} else {
			out = append(out, types.ConditionVolumeSpike)
		}
	}

	if a.TradeSizeRatio() >= extremeTradeRatio {
		if rising {
			in = append(in, types.ConditionExtremeTradeSize)
		} else {
			out = append(out, types.ConditionExtremeTradeSize)
		}
	}

	if a.BreakoutAboveHigh {
		in = append(in, types.ConditionBreakoutHigh)
	}

	if a.BreakBelowSupport {
		out = append(out, types.ConditionSupportBreak)
	}

	if a.AggressorBuying {
		in = append(in, types.ConditionAggressorBuying)
	}

	if a.AggressorSelling {
		out = append(out, types.ConditionAggressorSelling)
	}

	if j.SentimentScore >= strongSentiment {
		in = append(in, types.ConditionBullishSentiment)
	}

	if j.SentimentScore <= -strongSentiment {
		out = append(out, types.ConditionBearishSentiment)
	}

	if j.InstitutionalBullish {
		in = append(in, types.ConditionInstitutionalBull)
	}

	if j.InstitutionalBearish {
		out = append(out, types.ConditionInstitutionalBear)
	}

	return in, out
}

// directionScore is the shared intensity/panic formula: start at 1, add
// fixed amounts per evidence family, clamp to [1,5].
func directionScore(a types.MarketAnalysis, j types.AdvisorJudgment, bullish bool) int {
	score := 1

	if a.TradeSizeRatio() >= extremeTradeRatio {
		score += 2
	}

	if a.VolumeRatio() >= volumeSpikeRatio {
		score++
	}

	if a.RepeatSignals > 0 {
		score++
	}

	if (bullish && a.BreakoutAboveHigh) || (!bullish && a.BreakBelowSupport) {
		score++
	}

	if (bullish && j.SentimentScore >= strongSentiment) ||
		(!bullish && j.SentimentScore <= -strongSentiment) {
		score++
	}

	return clampInt(score, 1, 5)
}

// continuationProb starts at 40 and folds in the same evidence families,
// clamped to [10,95].
func continuationProb(a types.MarketAnalysis, j types.AdvisorJudgment, bullish bool) int {
	prob := 40

	if a.RepeatSignals > 0 {
		prob += 20
	}

	if (bullish && a.AggressorBuying) || (!bullish && a.AggressorSelling) {
		prob += 20
	}

	if a.TradeSizeRatio() >= extremeTradeRatio {
		prob += 10
	}

	if a.PriceChangePct > -flatPriceBandPct && a.PriceChangePct < flatPriceBandPct {
		prob -= 10
	}

	// Advisor confirmations contribute at most 35 points combined.
	advisorBoost := 0

	if (bullish && j.InstitutionalBullish) || (!bullish && j.InstitutionalBearish) {
		advisorBoost += 15
	}

	if j.SocialBuzz >= highSocialBuzz {
		advisorBoost += 10
	}

	if j.HasCatalyst {
		advisorBoost += 10
	}

	if advisorBoost > 35 {
		advisorBoost = 35
	}

	prob += advisorBoost

	if j.Confidence < lowAdvisorConfidence {
		prob -= 15
	}

	return clampInt(prob, 10, 95)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
