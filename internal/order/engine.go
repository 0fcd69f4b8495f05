// Package order implements the simulated order state machine: creation with
// bracket and OCO fan-out, trigger evaluation against live pressure and
// sentiment, and fill simulation with fee, slippage and latency models.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/internal/advisor"
	"github.com/quantfold/papertrade/internal/config"
	"github.com/quantfold/papertrade/internal/ledger"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/market"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/session"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// Engine drives the order lifecycle for one account.
type Engine struct {
	store     *repository.Store
	guard     *ledger.Guard
	quotes    market.QuoteSource
	advisor   advisor.Advisor
	costs     ledger.CostModel
	logger    *logger.Logger
	clock     session.Clock
	accountID string

	// executionDelay models real-world fill latency. In-flight delays run to
	// completion before a concurrent cancel can win; the race is accepted
	// and surfaces as an ErrCodeOrderTerminal log line.
	executionDelay time.Duration
}

// NewEngine builds an order engine. advisor may be nil; order annotations
// then fall back to the neutral default.
func NewEngine(
	log *logger.Logger,
	store *repository.Store,
	guard *ledger.Guard,
	quotes market.QuoteSource,
	a advisor.Advisor,
	cfg config.Config,
	accountID string,
) *Engine {
	return &Engine{
		store:          store,
		guard:          guard,
		quotes:         quotes,
		advisor:        a,
		costs:          ledger.NewCostModel(cfg.Fees),
		logger:         log,
		clock:          session.SystemClock{},
		accountID:      accountID,
		executionDelay: cfg.Orders.ExecutionDelay,
	}
}

// SetClock replaces the time source. Test hook.
func (e *Engine) SetClock(clock session.Clock) {
	e.clock = clock
}

// Create validates the request, resolves the entry price from the latest
// quote when absent, derives stop/take prices from percentages, annotates
// with advisor confidence, and persists the order. BRACKET orders spawn a
// stop-loss and a take-profit child atomically with the parent; OCO orders
// spawn a sibling sharing a generated pair id.
func (e *Engine) Create(ctx context.Context, req types.CreateOrderRequest) (types.Order, error) {
	if err := req.Validate(); err != nil {
		return types.Order{}, err
	}

	entry, err := e.resolveEntry(ctx, req)
	if err != nil {
		return types.Order{}, err
	}

	now := e.clock.Now()

	order := types.Order{
		ID:                uuid.New().String(),
		Symbol:            req.Symbol,
		Type:              req.Type,
		Side:              req.Side,
		Quantity:          req.Quantity,
		EntryPrice:        entry,
		StopLossPrice:     derivePrice(req.StopLossPrice, req.StopLossPct, entry, req.Side, false),
		TakeProfitPrice:   derivePrice(req.TakeProfitPrice, req.TakeProfitPct, entry, req.Side, true),
		PressureTrigger:   req.PressureTrigger,
		PressureCondition: defaultPressureCondition(req.PressureCondition),
		SentimentTrigger:  defaultSentimentTrigger(req.SentimentTrigger),
		Status:            types.OrderStatusPending,
		AIConfidence:      50,
		CreatedAt:         now,
		LastChecked:       now,
	}

	// Advisor annotation is best effort and never blocks order creation.
	if advice, adviceErr := advisor.JudgeOrder(ctx, e.advisor, order, types.Quote{Symbol: req.Symbol, LastPrice: entry}); adviceErr == nil {
		order.AIConfidence = advice.Confidence
	} else {
		e.logger.Warn("Advisor annotation failed, using neutral confidence",
			zap.String("symbol", req.Symbol),
			zap.Error(adviceErr),
		)
	}

	group := []types.Order{order}

	switch req.Type {
	case types.OrderTypeBracket:
		children := e.bracketChildren(&group[0], now)
		group = append(group, children...)
	case types.OrderTypeOCO:
		sibling, siblingErr := e.ocoSibling(&group[0], req, now)
		if siblingErr != nil {
			return types.Order{}, siblingErr
		}

		group = append(group, sibling)
	}

	if err := group[0].Validate(); err != nil {
		return types.Order{}, err
	}

	if err := e.store.InsertOrderGroup(group...); err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to persist order group", err)
	}

	e.logger.Info("Order created",
		zap.String("order_id", group[0].ID),
		zap.String("symbol", group[0].Symbol),
		zap.String("order_type", string(group[0].Type)),
		zap.String("side", string(group[0].Side)),
		zap.Float64("quantity", group[0].Quantity),
		zap.Float64("entry_price", group[0].EntryPrice),
		zap.Int("group_size", len(group)),
	)

	return group[0], nil
}

// resolveEntry uses the caller's price when given, the stored latest quote
// otherwise, and finally a live quote fetch.
func (e *Engine) resolveEntry(ctx context.Context, req types.CreateOrderRequest) (float64, error) {
	if req.EntryPrice.IsSome() {
		price := req.EntryPrice.Unwrap()
		if price <= 0 {
			return 0, errors.Newf(errors.ErrCodeInvalidPrice, "entry price must be positive, got %f", price)
		}

		return price, nil
	}

	stored, err := e.store.LatestQuote(req.Symbol)
	if err == nil && stored.IsSome() {
		return stored.Unwrap().LastPrice, nil
	}

	quote, err := e.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeQuoteUnavailable, err,
			"cannot resolve entry price for %s", req.Symbol)
	}

	return quote.LastPrice, nil
}

// bracketChildren builds the stop-loss and take-profit legs for a bracket
// parent. The legs close the parent's position, so they take the opposite
// side, and share an OCO pair id so filling one cancels the other.
func (e *Engine) bracketChildren(parent *types.Order, now time.Time) []types.Order {
	exitSide := types.OrderSideSell
	if parent.Side == types.OrderSideSell {
		exitSide = types.OrderSideBuy
	}

	pairID := uuid.New().String()

	stop := types.Order{
		ID:                uuid.New().String(),
		Symbol:            parent.Symbol,
		Type:              types.OrderTypeStopLoss,
		Side:              exitSide,
		Quantity:          parent.Quantity,
		EntryPrice:        parent.EntryPrice,
		StopLossPrice:     parent.StopLossPrice,
		SentimentTrigger:  types.SentimentTriggerAny,
		PressureCondition: types.PressureConditionNone,
		Status:            types.OrderStatusPending,
		ParentOrderID:     optional.Some(parent.ID),
		OCOPairID:         optional.Some(pairID),
		AIConfidence:      parent.AIConfidence,
		CreatedAt:         now,
		LastChecked:       now,
	}

	take := types.Order{
		ID:                uuid.New().String(),
		Symbol:            parent.Symbol,
		Type:              types.OrderTypeTakeProfit,
		Side:              exitSide,
		Quantity:          parent.Quantity,
		EntryPrice:        parent.EntryPrice,
		TakeProfitPrice:   parent.TakeProfitPrice,
		SentimentTrigger:  types.SentimentTriggerAny,
		PressureCondition: types.PressureConditionNone,
		Status:            types.OrderStatusPending,
		ParentOrderID:     optional.Some(parent.ID),
		OCOPairID:         optional.Some(pairID),
		AIConfidence:      parent.AIConfidence,
		CreatedAt:         now,
		LastChecked:       now,
	}

	parent.ChildOrderIDs = []string{stop.ID, take.ID}

	return []types.Order{stop, take}
}

// ocoSibling builds the linked sibling of an OCO order.
func (e *Engine) ocoSibling(first *types.Order, req types.CreateOrderRequest, now time.Time) (types.Order, error) {
	side, err := req.OCOSide.Take()
	if err != nil {
		return types.Order{}, errors.New(errors.ErrCodeInvalidOrder, "OCO orders require oco_side for the sibling")
	}

	pairID := uuid.New().String()
	first.OCOPairID = optional.Some(pairID)

	sibling := types.Order{
		ID:                uuid.New().String(),
		Symbol:            first.Symbol,
		Type:              types.OrderTypeOCO,
		Side:              side,
		Quantity:          first.Quantity,
		EntryPrice:        first.EntryPrice,
		StopLossPrice:     first.StopLossPrice,
		TakeProfitPrice:   first.TakeProfitPrice,
		PressureTrigger:   first.PressureTrigger,
		PressureCondition: first.PressureCondition,
		SentimentTrigger:  first.SentimentTrigger,
		Status:            types.OrderStatusPending,
		OCOPairID:         optional.Some(pairID),
		AIConfidence:      first.AIConfidence,
		CreatedAt:         now,
		LastChecked:       now,
	}

	return sibling, nil
}

// Cancel moves the order to CANCELLED, then fans the cancellation out to any
// bracket children and OCO siblings, exactly as a fill would.
func (e *Engine) Cancel(orderID string) error {
	orderOpt, err := e.store.GetOrder(orderID)
	if err != nil {
		return err
	}

	order, err := orderOpt.Take()
	if err != nil {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order %s not found", orderID)
	}

	if err := e.store.MarkOrderCancelled(orderID); err != nil {
		return err
	}

	e.cancelChildren(order)
	e.cancelOCOPeers(order)

	e.logger.Info("Order cancelled",
		zap.String("order_id", orderID),
		zap.String("symbol", order.Symbol),
	)

	return nil
}

func (e *Engine) cancelChildren(order types.Order) {
	for _, childID := range order.ChildOrderIDs {
		if err := e.store.MarkOrderCancelled(childID); err != nil {
			if errors.HasCode(err, errors.ErrCodeOrderTerminal) {
				continue
			}

			e.logger.Warn("Failed to cancel bracket child",
				zap.String("child_order_id", childID),
				zap.Error(err),
			)
		}
	}
}

// cancelOCOPeers cancels every non-terminal order sharing the pair id.
func (e *Engine) cancelOCOPeers(order types.Order) {
	pairID, err := order.OCOPairID.Take()
	if err != nil {
		return
	}

	peers, err := e.store.ListOrdersByOCOPair(pairID)
	if err != nil {
		e.logger.Warn("Failed to list OCO pair for fan-out",
			zap.String("oco_pair_id", pairID),
			zap.Error(err),
		)

		return
	}

	for _, peer := range peers {
		if peer.ID == order.ID || peer.Status.IsTerminal() {
			continue
		}

		if err := e.store.MarkOrderCancelled(peer.ID); err != nil && !errors.HasCode(err, errors.ErrCodeOrderTerminal) {
			e.logger.Warn("Failed to cancel OCO sibling",
				zap.String("order_id", peer.ID),
				zap.Error(err),
			)
		}
	}
}

func defaultPressureCondition(c types.PressureCondition) types.PressureCondition {
	if c == "" {
		return types.PressureConditionNone
	}

	return c
}

func defaultSentimentTrigger(t types.SentimentTrigger) types.SentimentTrigger {
	if t == "" {
		return types.SentimentTriggerAny
	}

	return t
}

// derivePrice resolves an absolute stop/take price, deriving it from a
// percentage off the entry when only the percentage is given. favorable
// selects the take-profit direction.
func derivePrice(abs, pct optional.Option[float64], entry float64, side types.OrderSide, favorable bool) optional.Option[float64] {
	if abs.IsSome() {
		return abs
	}

	p, err := pct.Take()
	if err != nil {
		return optional.None[float64]()
	}

	frac := p / 100

	// For a BUY, the stop sits below entry and the target above; mirrored
	// for a SELL.
	down := entry * (1 - frac)
	up := entry * (1 + frac)

	if side == types.OrderSideBuy {
		if favorable {
			return optional.Some(up)
		}

		return optional.Some(down)
	}

	if favorable {
		return optional.Some(down)
	}

	return optional.Some(up)
}
