package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/internal/advisor"
	"github.com/quantfold/papertrade/internal/config"
	"github.com/quantfold/papertrade/internal/ledger"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/mocks"
	"github.com/quantfold/papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const testAccountID = "acct-test"

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

type EngineTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	store  *repository.Store
	quotes *mocks.MockQuoteSource
	engine *Engine
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	log := logger.NewNopLogger()

	store, err := repository.NewStore(log, ":memory:")
	suite.Require().NoError(err)
	suite.Require().NoError(store.Initialize())

	suite.ctrl = gomock.NewController(suite.T())
	suite.quotes = mocks.NewMockQuoteSource(suite.ctrl)
	suite.store = store
	suite.ctx = context.Background()

	// nil window: session gating is exercised in the ledger tests.
	guard := ledger.NewGuard(log, store, nil)

	cfg := config.Config{
		Fees: config.FeeConfig{FeeRate: 0.008, SlippageRate: 0.0005},
	}

	engine := NewEngine(log, store, guard, suite.quotes, advisor.NewNoop(), cfg, testAccountID)
	engine.SetClock(fixedClock{at: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)})

	suite.engine = engine

	suite.Require().NoError(store.SaveAccount(types.Account{
		ID:          testAccountID,
		CashBalance: 10000,
		TotalValue:  10000,
	}))
}

func (suite *EngineTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func (suite *EngineTestSuite) TestMarketOrderCreated() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeMarket,
		Side:       types.OrderSideBuy,
		Quantity:   5,
		EntryPrice: optional.Some(100.0),
	})
	suite.Require().NoError(err)

	suite.Equal(types.OrderStatusPending, order.Status)
	suite.Equal(100.0, order.EntryPrice)
	suite.Equal(50.0, order.AIConfidence)
}

func (suite *EngineTestSuite) TestEntryResolvedFromStoredQuote() {
	suite.Require().NoError(suite.store.InsertQuote(types.Quote{
		Symbol:    "AAPL",
		LastPrice: 182.5,
		Timestamp: time.Now(),
	}))

	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:   "AAPL",
		Type:     types.OrderTypeMarket,
		Side:     types.OrderSideBuy,
		Quantity: 1,
	})
	suite.Require().NoError(err)

	suite.Equal(182.5, order.EntryPrice)
}

func (suite *EngineTestSuite) TestStopAndTakeDerivedFromPercent() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:        "AAPL",
		Type:          types.OrderTypeBracket,
		Side:          types.OrderSideBuy,
		Quantity:      2,
		EntryPrice:    optional.Some(100.0),
		StopLossPct:   optional.Some(5.0),
		TakeProfitPct: optional.Some(10.0),
	})
	suite.Require().NoError(err)

	suite.InDelta(95, order.StopLossPrice.Unwrap(), 1e-9)
	suite.InDelta(110, order.TakeProfitPrice.Unwrap(), 1e-9)
}

func (suite *EngineTestSuite) TestBracketSpawnsLinkedChildren() {
	parent, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:          "AAPL",
		Type:            types.OrderTypeBracket,
		Side:            types.OrderSideBuy,
		Quantity:        3,
		EntryPrice:      optional.Some(100.0),
		StopLossPrice:   optional.Some(95.0),
		TakeProfitPrice: optional.Some(110.0),
	})
	suite.Require().NoError(err)
	suite.Len(parent.ChildOrderIDs, 2)

	children, err := suite.store.ListChildOrders(parent.ID)
	suite.Require().NoError(err)
	suite.Require().Len(children, 2)

	for _, child := range children {
		suite.Equal(types.OrderStatusPending, child.Status)
		suite.Equal(types.OrderSideSell, child.Side)
		suite.Equal(parent.ID, child.ParentOrderID.Unwrap())
		suite.Equal(3.0, child.Quantity)
	}

	// Both legs share one pair id, so a fill on one cancels the other.
	suite.Equal(children[0].OCOPairID.Unwrap(), children[1].OCOPairID.Unwrap())
}

func (suite *EngineTestSuite) TestCancelParentCancelsChildren() {
	parent, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:          "AAPL",
		Type:            types.OrderTypeBracket,
		Side:            types.OrderSideBuy,
		Quantity:        1,
		EntryPrice:      optional.Some(100.0),
		StopLossPrice:   optional.Some(95.0),
		TakeProfitPrice: optional.Some(110.0),
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.engine.Cancel(parent.ID))

	children, err := suite.store.ListChildOrders(parent.ID)
	suite.Require().NoError(err)

	for _, child := range children {
		suite.Equal(types.OrderStatusCancelled, child.Status)
	}
}

func (suite *EngineTestSuite) TestOCORequiresSiblingSide() {
	_, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeOCO,
		Side:       types.OrderSideBuy,
		Quantity:   1,
		EntryPrice: optional.Some(100.0),
	})

	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
}

func (suite *EngineTestSuite) TestMarketOrderFillsAndOpensRoundTrip() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeMarket,
		Side:       types.OrderSideBuy,
		Quantity:   5,
		EntryPrice: optional.Some(100.0),
	})
	suite.Require().NoError(err)

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 101}, nil)

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Triggered)

	filled, err := suite.store.GetOrder(order.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, filled.Unwrap().Status)
	suite.Equal(101.0, filled.Unwrap().FilledPrice.Unwrap())

	openOpt, err := suite.store.GetOpenTrade(testAccountID, "AAPL")
	suite.Require().NoError(err)
	suite.Require().True(openOpt.IsSome())
	suite.Equal(101.0, openOpt.Unwrap().BuyPrice)
}

func (suite *EngineTestSuite) TestStopLossClosesRoundTripAtLoss() {
	// Open the position and its round trip first.
	_, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeMarket,
		Side:       types.OrderSideBuy,
		Quantity:   5,
		EntryPrice: optional.Some(100.0),
	})
	suite.Require().NoError(err)

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil)

	_, err = suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)

	stop, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:        "AAPL",
		Type:          types.OrderTypeStopLoss,
		Side:          types.OrderSideSell,
		Quantity:      5,
		EntryPrice:    optional.Some(100.0),
		StopLossPrice: optional.Some(95.0),
	})
	suite.Require().NoError(err)

	// Above the stop: no trigger, the order is only touched.
	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 96}, nil)

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, result.Triggered)

	// Below the stop: the sell fires and the round trip closes as a LOSS.
	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 94}, nil)

	result, err = suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Triggered)

	filled, err := suite.store.GetOrder(stop.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, filled.Unwrap().Status)

	openOpt, err := suite.store.GetOpenTrade(testAccountID, "AAPL")
	suite.Require().NoError(err)
	suite.False(openOpt.IsSome())

	closed, err := suite.store.ListClosedTrades(testAccountID, time.Time{})
	suite.Require().NoError(err)
	suite.Require().Len(closed, 1)
	suite.Equal(types.TradeOutcomeLoss, closed[0].Outcome.Unwrap())
	suite.Equal("stop_loss", closed[0].ExitReason.Unwrap())
}

func (suite *EngineTestSuite) TestOCOFillCancelsSibling() {
	first, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:        "AAPL",
		Type:          types.OrderTypeOCO,
		Side:          types.OrderSideBuy,
		Quantity:      1,
		EntryPrice:    optional.Some(100.0),
		StopLossPrice: optional.Some(100.0),
		OCOSide:       optional.Some(types.OrderSideSell),
	})
	suite.Require().NoError(err)

	// 105 crosses the BUY stop (price >= stop) but not the SELL one.
	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 105}, nil).Times(2)

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Triggered)

	peers, err := suite.store.ListOrdersByOCOPair(first.OCOPairID.Unwrap())
	suite.Require().NoError(err)
	suite.Require().Len(peers, 2)

	statuses := map[types.OrderStatus]int{}
	for _, peer := range peers {
		statuses[peer.Status]++
	}

	suite.Equal(1, statuses[types.OrderStatusFilled])
	suite.Equal(1, statuses[types.OrderStatusCancelled])
}

func (suite *EngineTestSuite) TestOCOBothLegsTriggerSettlesOnce() {
	// Two BUY stops share one pair id and both cross at 105. The first fill
	// cancels the sibling mid-pass; the sibling's stale snapshot must not
	// reach the ledger.
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	pairID := uuid.New().String()

	for _, id := range []string{"oco-leg-a", "oco-leg-b"} {
		suite.Require().NoError(suite.store.InsertOrder(types.Order{
			ID:                id,
			Symbol:            "AAPL",
			Type:              types.OrderTypeOCO,
			Side:              types.OrderSideBuy,
			Quantity:          5,
			EntryPrice:        100,
			StopLossPrice:     optional.Some(100.0),
			PressureCondition: types.PressureConditionNone,
			SentimentTrigger:  types.SentimentTriggerAny,
			Status:            types.OrderStatusPending,
			OCOPairID:         optional.Some(pairID),
			AIConfidence:      50,
			CreatedAt:         now,
			LastChecked:       now,
		}))
	}

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 105}, nil).Times(2)

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Triggered)
	suite.Equal(0, result.Rejected)

	peers, err := suite.store.ListOrdersByOCOPair(pairID)
	suite.Require().NoError(err)
	suite.Require().Len(peers, 2)

	statuses := map[types.OrderStatus]int{}
	for _, peer := range peers {
		statuses[peer.Status]++
	}

	suite.Equal(1, statuses[types.OrderStatusFilled])
	suite.Equal(1, statuses[types.OrderStatusCancelled])

	// Only the filled leg settled: 5 shares, not 10.
	posOpt, err := suite.store.GetPosition(testAccountID, "AAPL")
	suite.Require().NoError(err)
	suite.Require().True(posOpt.IsSome())
	suite.Equal(5.0, posOpt.Unwrap().Quantity)
}

func (suite *EngineTestSuite) TestInsufficientFundsRejectsOrder() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeMarket,
		Side:       types.OrderSideBuy,
		Quantity:   1000,
		EntryPrice: optional.Some(100.0),
	})
	suite.Require().NoError(err)

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil)

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Rejected)

	rejected, err := suite.store.GetOrder(order.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusRejected, rejected.Unwrap().Status)
}

func (suite *EngineTestSuite) TestQuoteFailureLeavesOrderPending() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeMarket,
		Side:       types.OrderSideBuy,
		Quantity:   1,
		EntryPrice: optional.Some(100.0),
	})
	suite.Require().NoError(err)

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{}, errors.New(errors.ErrCodeQuoteUnavailable, "feed down"))

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Skipped)

	pending, err := suite.store.GetOrder(order.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusPending, pending.Unwrap().Status)
}

func (suite *EngineTestSuite) TestCancelFilledOrderFails() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:     "AAPL",
		Type:       types.OrderTypeMarket,
		Side:       types.OrderSideBuy,
		Quantity:   1,
		EntryPrice: optional.Some(100.0),
	})
	suite.Require().NoError(err)

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil)

	_, err = suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)

	err = suite.engine.Cancel(order.ID)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderTerminal))
}

func (suite *EngineTestSuite) TestPressureGateHoldsOrderWithoutHistory() {
	order, err := suite.engine.Create(suite.ctx, types.CreateOrderRequest{
		Symbol:            "AAPL",
		Type:              types.OrderTypeMarket,
		Side:              types.OrderSideBuy,
		Quantity:          1,
		EntryPrice:        optional.Some(100.0),
		PressureTrigger:   optional.Some(40.0),
		PressureCondition: types.PressureConditionBelow,
	})
	suite.Require().NoError(err)

	suite.quotes.EXPECT().GetQuote(gomock.Any(), "AAPL").
		Return(types.Quote{Symbol: "AAPL", LastPrice: 100}, nil).AnyTimes()

	result, err := suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, result.Triggered)

	// Once pressure enters the band, the order fires.
	suite.Require().NoError(suite.store.InsertPressureRecord(types.PressureRecord{
		Symbol:        "AAPL",
		FinalPressure: 30,
		Timestamp:     time.Now(),
	}))

	result, err = suite.engine.CheckAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, result.Triggered)

	filled, err := suite.store.GetOrder(order.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, filled.Unwrap().Status)
}
