package scan

import (
	"context"
	"testing"
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/market"
	"github.com/quantfold/papertrade/internal/pressure"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/signal"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/mocks"
	"github.com/quantfold/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

type staticText struct {
	text string
}

func (s staticText) Headlines(_ context.Context, _ string) (string, error) {
	return s.text, nil
}

type capturingPublisher struct {
	events []string
}

func (p *capturingPublisher) Publish(eventType, _ string, _ any) {
	p.events = append(p.events, eventType)
}

type ScannerTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *repository.Store
	quotes    *mocks.MockQuoteSource
	publisher *capturingPublisher
	ctx       context.Context
	now       time.Time
}

func TestScannerSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}

func (suite *ScannerTestSuite) SetupTest() {
	store, err := repository.NewStore(logger.NewNopLogger(), ":memory:")
	suite.Require().NoError(err)
	suite.Require().NoError(store.Initialize())

	suite.ctrl = gomock.NewController(suite.T())
	suite.quotes = mocks.NewMockQuoteSource(suite.ctrl)
	suite.store = store
	suite.publisher = &capturingPublisher{}
	suite.ctx = context.Background()
	suite.now = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
}

func (suite *ScannerTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func (suite *ScannerTestSuite) newScanner(text TextSource) *Scanner {
	log := logger.NewNopLogger()

	analyzer := market.NewAnalyzer(log, suite.store)
	analyzer.SetClock(fixedClock{at: suite.now})

	return NewScanner(
		log,
		suite.store,
		suite.quotes,
		analyzer,
		pressure.NewScorer(log),
		pressure.NewSentimentScorer(log, nil),
		signal.NewDetector(log),
		text,
		suite.publisher,
	)
}

func (suite *ScannerTestSuite) TestScanStoresQuotePressureAndSPI() {
	scanner := suite.newScanner(staticText{text: "shares surge after upgrade"})

	suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{
			Symbol:    "AAPL",
			LastPrice: 105,
			High:      110,
			Low:       100,
			Volume:    50000,
			Timestamp: suite.now,
		}, nil)

	suite.Require().NoError(scanner.Scan(suite.ctx, "AAPL"))

	quoteOpt, err := suite.store.LatestQuote("AAPL")
	suite.Require().NoError(err)
	suite.True(quoteOpt.IsSome())

	recordOpt, err := suite.store.LatestPressure("AAPL")
	suite.Require().NoError(err)
	suite.Require().True(recordOpt.IsSome())
	suite.GreaterOrEqual(recordOpt.Unwrap().FinalPressure, 0.0)

	spOpt, err := suite.store.LatestSemanticPressure("AAPL")
	suite.Require().NoError(err)
	suite.Require().True(spOpt.IsSome())
	// Purely positive keywords push the SPI above the base pressure.
	suite.Equal(types.SentimentPositive, spOpt.Unwrap().Sentiment)

	suite.Contains(suite.publisher.events, "pressure")
}

func (suite *ScannerTestSuite) TestFirstScanNeverAlerts() {
	scanner := suite.newScanner(nil)

	suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{
			Symbol:    "AAPL",
			LastPrice: 109,
			High:      110,
			Low:       100,
			Timestamp: suite.now,
		}, nil)

	suite.Require().NoError(scanner.Scan(suite.ctx, "AAPL"))

	spOpt, err := suite.store.LatestSemanticPressure("AAPL")
	suite.Require().NoError(err)
	suite.False(spOpt.Unwrap().AlertTriggered)
	suite.Equal(0.0, spOpt.Unwrap().SPIChange)
	suite.NotContains(suite.publisher.events, "spi_alert")
}

func (suite *ScannerTestSuite) TestLargeSPISwingAlerts() {
	scanner := suite.newScanner(nil)

	// First pass near the low, second near the high.
	suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100.5, High: 110, Low: 100, Timestamp: suite.now}, nil)
	suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 109.5, High: 110, Low: 100, Timestamp: suite.now.Add(time.Minute)}, nil)

	suite.Require().NoError(scanner.Scan(suite.ctx, "AAPL"))
	suite.Require().NoError(scanner.Scan(suite.ctx, "AAPL"))

	spOpt, err := suite.store.LatestSemanticPressure("AAPL")
	suite.Require().NoError(err)
	suite.True(spOpt.Unwrap().AlertTriggered)
	suite.Contains(suite.publisher.events, "spi_alert")
}

func (suite *ScannerTestSuite) TestQuoteFailurePropagates() {
	scanner := suite.newScanner(nil)

	suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "feed down"))

	err := scanner.Scan(suite.ctx, "AAPL")
	suite.True(errors.HasCode(err, errors.ErrCodeQuoteUnavailable))
}

func (suite *ScannerTestSuite) TestSignalEmittedWithEnoughHistory() {
	scanner := suite.newScanner(nil)

	// Build up history: flat baseline, then a volume-backed breakout.
	prices := []float64{100, 100.2, 100.1, 100.3, 100.2, 101, 102, 103.5}
	volumes := []float64{1000, 2000, 3000, 4000, 5000, 9000, 13000, 17000}

	for i := range prices {
		suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
			Return(types.Quote{
				Symbol:    "AAPL",
				LastPrice: prices[i],
				High:      104,
				Low:       99,
				Volume:    volumes[i],
				Timestamp: suite.now.Add(time.Duration(i-len(prices)) * 2 * time.Minute),
			}, nil)

		suite.Require().NoError(scanner.Scan(suite.ctx, "AAPL"))
	}

	signals, err := suite.store.ListRecentSignals(suite.now.Add(-time.Hour), 10)
	suite.Require().NoError(err)
	suite.Require().NotEmpty(signals)
	suite.Equal(types.SignalTypeIn, signals[0].Type)
	suite.Contains(suite.publisher.events, "signal")
}

func (suite *ScannerTestSuite) TestScanAllContinuesPastFailures() {
	scanner := suite.newScanner(nil)

	suite.quotes.EXPECT().GetQuote(suite.ctx, "BAD").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "feed down"))
	suite.quotes.EXPECT().GetQuote(suite.ctx, "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 105, High: 110, Low: 100, Timestamp: suite.now}, nil)

	scanner.ScanAll(suite.ctx, []string{"BAD", "AAPL"})

	quoteOpt, err := suite.store.LatestQuote("AAPL")
	suite.Require().NoError(err)
	suite.True(quoteOpt.IsSome())
}
