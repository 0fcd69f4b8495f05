package advisor

import (
	"context"
	"testing"

	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/mocks"
	"github.com/quantfold/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type AdvisorTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	mock *mocks.MockAdvisor
	ctx  context.Context
}

func TestAdvisorSuite(t *testing.T) {
	suite.Run(t, new(AdvisorTestSuite))
}

func (suite *AdvisorTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.mock = mocks.NewMockAdvisor(suite.ctrl)
	suite.ctx = context.Background()
}

func (suite *AdvisorTestSuite) TestJudgeSentimentNilAdvisorIsNeutral() {
	judgment, err := JudgeSentiment(suite.ctx, nil, "AAPL", "shares surge on earnings")

	suite.NoError(err)
	suite.Equal(types.NeutralJudgment(), judgment)
}

func (suite *AdvisorTestSuite) TestJudgeSentimentEmptyTextIsNeutral() {
	judgment, err := JudgeSentiment(suite.ctx, suite.mock, "AAPL", "")

	suite.NoError(err)
	suite.Equal(types.NeutralJudgment(), judgment)
}

func (suite *AdvisorTestSuite) TestJudgeSentimentParsesModelOutput() {
	suite.mock.EXPECT().Judge(suite.ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, out any) error {
			judgment := out.(*types.AdvisorJudgment)
			judgment.SentimentScore = 0.6
			judgment.Sentiment = types.SentimentPositive
			judgment.Confidence = 80
			judgment.HasCatalyst = true

			return nil
		})

	judgment, err := JudgeSentiment(suite.ctx, suite.mock, "AAPL", "earnings beat")

	suite.Require().NoError(err)
	suite.Equal(0.6, judgment.SentimentScore)
	suite.True(judgment.HasCatalyst)
}

func (suite *AdvisorTestSuite) TestJudgeSentimentClampsOutOfRangeOutput() {
	suite.mock.EXPECT().Judge(suite.ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, out any) error {
			judgment := out.(*types.AdvisorJudgment)
			judgment.SentimentScore = 3
			judgment.Confidence = 250

			return nil
		})

	judgment, err := JudgeSentiment(suite.ctx, suite.mock, "AAPL", "text")

	suite.Require().NoError(err)
	suite.Equal(1.0, judgment.SentimentScore)
	suite.Equal(100.0, judgment.Confidence)
}

func (suite *AdvisorTestSuite) TestJudgeSentimentFailureFallsBackToNeutral() {
	suite.mock.EXPECT().Judge(suite.ctx, gomock.Any(), gomock.Any()).
		Return(errors.New(errors.ErrCodeAdvisorRateLimited, "429"))

	judgment, err := JudgeSentiment(suite.ctx, suite.mock, "AAPL", "text")

	suite.True(errors.IsRateLimited(err))
	suite.Equal(types.NeutralJudgment(), judgment)
}

func (suite *AdvisorTestSuite) TestJudgeOrderNilAdvisorIsNeutral() {
	advice, err := JudgeOrder(suite.ctx, nil, types.Order{Symbol: "AAPL"}, types.Quote{})

	suite.NoError(err)
	suite.Equal(types.NeutralAdvice(), advice)
}

func (suite *AdvisorTestSuite) TestJudgeOrderFailureFallsBackToNeutral() {
	suite.mock.EXPECT().Judge(suite.ctx, gomock.Any(), gomock.Any()).
		Return(errors.New(errors.ErrCodeAdvisorUnavailable, "down"))

	advice, err := JudgeOrder(suite.ctx, suite.mock, types.Order{Symbol: "AAPL"}, types.Quote{})

	suite.Error(err)
	suite.Equal(types.NeutralAdvice(), advice)
	suite.Equal(50.0, advice.Confidence)
	suite.Equal(types.OrderTimingExecuteNow, advice.Timing)
}

func (suite *AdvisorTestSuite) TestNoopAlwaysFails() {
	noop := NewNoop()

	var judgment types.AdvisorJudgment
	err := noop.Judge(suite.ctx, "prompt", &judgment)

	suite.True(errors.HasCode(err, errors.ErrCodeAdvisorUnavailable))
}

func (suite *AdvisorTestSuite) TestSchemaForEmbedsProperties() {
	schema, err := SchemaFor(types.AdvisorJudgment{})

	suite.Require().NoError(err)
	suite.Contains(schema, "sentiment_score")
	suite.Contains(schema, "confidence")
}
