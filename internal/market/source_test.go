package market

import (
	"context"
	"testing"
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/mocks"
	"github.com/quantfold/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type ChainSourceTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	primary   *mocks.MockQuoteSource
	secondary *mocks.MockQuoteSource
	ctx       context.Context
}

func TestChainSourceSuite(t *testing.T) {
	suite.Run(t, new(ChainSourceTestSuite))
}

func (suite *ChainSourceTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.primary = mocks.NewMockQuoteSource(suite.ctrl)
	suite.secondary = mocks.NewMockQuoteSource(suite.ctrl)
	suite.ctx = context.Background()
}

func (suite *ChainSourceTestSuite) TestPrimaryWins() {
	chain := NewChainSource(logger.NewNopLogger(), suite.primary, suite.secondary)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100, Source: "primary"}, nil)

	quote, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)
	suite.Equal("primary", quote.Source)
	suite.False(quote.ErrorFlag)
}

func (suite *ChainSourceTestSuite) TestFailoverToSecondary() {
	chain := NewChainSource(logger.NewNopLogger(), suite.primary, suite.secondary)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "provider down"))
	suite.secondary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 99, Source: "secondary"}, nil)

	quote, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)
	suite.Equal("secondary", quote.Source)
}

func (suite *ChainSourceTestSuite) TestTotalFailureServesLastKnown() {
	chain := NewChainSource(logger.NewNopLogger(), suite.primary)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100, Source: "primary"}, nil)

	_, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "provider down"))

	quote, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)
	suite.Equal("fallback", quote.Source)
	suite.True(quote.ErrorFlag)
	suite.Equal(100.0, quote.LastPrice)
}

func (suite *ChainSourceTestSuite) TestTotalFailureWithoutHistoryErrors() {
	chain := NewChainSource(logger.NewNopLogger(), suite.primary)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "provider down"))

	_, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.True(errors.HasCode(err, errors.ErrCodeQuoteUnavailable))
}

func (suite *ChainSourceTestSuite) TestEmptyChainErrors() {
	chain := NewChainSource(logger.NewNopLogger())

	_, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.True(errors.HasCode(err, errors.ErrCodeQuoteUnavailable))
}

func (suite *ChainSourceTestSuite) TestFallbackIsPerSymbol() {
	chain := NewChainSource(logger.NewNopLogger(), suite.primary)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil)

	_, err := chain.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)

	suite.primary.EXPECT().GetQuote(suite.ctx, "MSFT").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "provider down"))

	_, err = chain.GetQuote(suite.ctx, "MSFT")
	suite.True(errors.HasCode(err, errors.ErrCodeQuoteUnavailable))
}

func (suite *ChainSourceTestSuite) TestRateLimitedSourceDelegates() {
	limited := NewRateLimitedSource(suite.primary, 10*time.Millisecond)

	suite.primary.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil)

	quote, err := limited.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)
	suite.Equal(100.0, quote.LastPrice)
}

func (suite *ChainSourceTestSuite) TestRateLimitedSourceHonorsCancel() {
	limited := NewRateLimitedSource(suite.primary, time.Hour)

	// Drain the single token.
	suite.primary.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil)

	_, err := limited.GetQuote(suite.ctx, "AAPL")
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = limited.GetQuote(ctx, "AAPL")
	suite.True(errors.HasCode(err, errors.ErrCodeQuoteUnavailable))
}
