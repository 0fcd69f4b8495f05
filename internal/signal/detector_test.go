package signal

import (
	"testing"
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/stretchr/testify/suite"
)

type DetectorTestSuite struct {
	suite.Suite
	detector *Detector
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorTestSuite))
}

func (suite *DetectorTestSuite) SetupTest() {
	suite.detector = NewDetector(logger.NewNopLogger())
	suite.detector.clock = func() time.Time {
		return time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	}
}

func (suite *DetectorTestSuite) neutral() types.AdvisorJudgment {
	return types.NeutralJudgment()
}

func (suite *DetectorTestSuite) TestNoConditionsYieldsNone() {
	analysis := types.MarketAnalysis{
		Symbol:         "AAPL",
		BaselineVolume: 1000,
		RecentVolume:   1100,
	}

	sig := suite.detector.Detect(analysis, suite.neutral())

	suite.Equal(types.SignalTypeNone, sig.Type)
	suite.Empty(sig.Conditions)
}

func (suite *DetectorTestSuite) TestSingleConditionYieldsNone() {
	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakoutAboveHigh: true,
	}

	sig := suite.detector.Detect(analysis, suite.neutral())

	suite.Equal(types.SignalTypeNone, sig.Type)
}

func (suite *DetectorTestSuite) TestOneInOneOutYieldsNone() {
	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakoutAboveHigh: true,
		AggressorSelling:  true,
	}

	sig := suite.detector.Detect(analysis, suite.neutral())

	suite.Equal(types.SignalTypeNone, sig.Type)
}

func (suite *DetectorTestSuite) TestTwoInConditionsEmitIn() {
	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakoutAboveHigh: true,
		AggressorBuying:   true,
		PriceChangePct:    1.5,
	}

	sig := suite.detector.Detect(analysis, suite.neutral())

	suite.Equal(types.SignalTypeIn, sig.Type)
	suite.ElementsMatch(
		[]string{types.ConditionBreakoutHigh, types.ConditionAggressorBuying},
		sig.Conditions,
	)
	suite.GreaterOrEqual(sig.Intensity, 1)
	suite.LessOrEqual(sig.Intensity, 5)
}

func (suite *DetectorTestSuite) TestTwoOutConditionsEmitOut() {
	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakBelowSupport: true,
		AggressorSelling:  true,
		PriceChangePct:    -1.5,
	}

	sig := suite.detector.Detect(analysis, suite.neutral())

	suite.Equal(types.SignalTypeOut, sig.Type)
	suite.GreaterOrEqual(sig.Panic, 1)
	suite.LessOrEqual(sig.Panic, 5)
}

func (suite *DetectorTestSuite) TestTieFavorsIn() {
	judgment := suite.neutral()
	judgment.InstitutionalBullish = true
	judgment.InstitutionalBearish = true

	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakoutAboveHigh: true,
		BreakBelowSupport: true,
	}

	sig := suite.detector.Detect(analysis, judgment)

	suite.Equal(types.SignalTypeIn, sig.Type)
}

func (suite *DetectorTestSuite) TestVolumeSpikeAttributedByPriceDirection() {
	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BaselineVolume:    1000,
		RecentVolume:      5000,
		PriceChangePct:    -2,
		BreakBelowSupport: true,
	}

	sig := suite.detector.Detect(analysis, suite.neutral())

	suite.Equal(types.SignalTypeOut, sig.Type)
	suite.Contains(sig.Conditions, types.ConditionVolumeSpike)
}

func (suite *DetectorTestSuite) TestIntensityClampedAtFive() {
	judgment := suite.neutral()
	judgment.SentimentScore = 1
	judgment.InstitutionalBullish = true

	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BaselineVolume:    1000,
		RecentVolume:      100000,
		AverageTradeSize:  100,
		LargestTradeSize:  10000,
		BreakoutAboveHigh: true,
		AggressorBuying:   true,
		RepeatSignals:     10,
		PriceChangePct:    50,
	}

	sig := suite.detector.Detect(analysis, judgment)

	suite.Equal(types.SignalTypeIn, sig.Type)
	suite.Equal(5, sig.Intensity)
}

func (suite *DetectorTestSuite) TestContinuationProbClamped() {
	judgment := suite.neutral()
	judgment.SentimentScore = 1
	judgment.InstitutionalBullish = true
	judgment.SocialBuzz = 100
	judgment.HasCatalyst = true

	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BaselineVolume:    1000,
		RecentVolume:      100000,
		AverageTradeSize:  100,
		LargestTradeSize:  10000,
		BreakoutAboveHigh: true,
		AggressorBuying:   true,
		RepeatSignals:     10,
		PriceChangePct:    50,
	}

	sig := suite.detector.Detect(analysis, judgment)

	// 40 +20 repeat +20 aggressor +10 size +35 advisor = 125, clamped.
	suite.Equal(95, sig.ContinuationProb)
}

func (suite *DetectorTestSuite) TestLowConfidenceAndFlatPriceDiscount() {
	judgment := suite.neutral()
	judgment.Confidence = 10

	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakoutAboveHigh: true,
		AggressorBuying:   true,
		PriceChangePct:    0,
	}

	sig := suite.detector.Detect(analysis, judgment)

	suite.Equal(types.SignalTypeIn, sig.Type)
	// 40 +20 aggressor -10 flat -15 low confidence = 35.
	suite.Equal(35, sig.ContinuationProb)
}

func (suite *DetectorTestSuite) TestDiscountsStack() {
	judgment := suite.neutral()
	judgment.Confidence = 0
	judgment.InstitutionalBullish = true

	analysis := types.MarketAnalysis{
		Symbol:            "AAPL",
		BreakoutAboveHigh: true,
	}

	sig := suite.detector.Detect(analysis, judgment)

	suite.Equal(types.SignalTypeIn, sig.Type)
	// 40 -10 flat -15 low confidence +15 institutional = 30.
	suite.Equal(30, sig.ContinuationProb)
}
