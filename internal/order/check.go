package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// CheckResult summarizes one pass over the pending orders.
type CheckResult struct {
	Checked   int
	Triggered int
	Rejected  int
	// Skipped counts orders left PENDING because a lookup failed; they are
	// re-evaluated on the next pass.
	Skipped int
}

// CheckAll evaluates every PENDING order against the latest quote, pressure
// and sentiment, executing those that trigger. Lookup failures are logged
// and the order stays PENDING for the next cycle; it is never dropped.
func (e *Engine) CheckAll(ctx context.Context) (CheckResult, error) {
	pending, err := e.store.ListOrdersByStatus(types.OrderStatusPending)
	if err != nil {
		return CheckResult{}, errors.Wrap(errors.ErrCodeOrderCheckFailed, "failed to list pending orders", err)
	}

	var result CheckResult

	for _, ord := range pending {
		result.Checked++

		quote, err := e.quotes.GetQuote(ctx, ord.Symbol)
		if err != nil {
			result.Skipped++

			e.logger.Warn("Quote lookup failed, order left pending",
				zap.String("order_id", ord.ID),
				zap.String("symbol", ord.Symbol),
				zap.Error(err),
			)

			continue
		}

		if !e.shouldTrigger(ord, quote.LastPrice) {
			if err := e.store.TouchOrder(ord.ID, e.clock.Now()); err != nil {
				e.logger.Warn("Failed to record order check",
					zap.String("order_id", ord.ID),
					zap.Error(err),
				)
			}

			continue
		}

		switch execErr := e.execute(ctx, ord, quote.LastPrice); {
		case execErr == nil:
			result.Triggered++
		case errors.HasCode(execErr, errors.ErrCodeOrderTerminal):
			// An OCO sibling filled earlier in this pass and cancelled the
			// order; nothing settled.
		case errors.IsRejection(execErr):
			result.Rejected++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// shouldTrigger reports whether every configured condition holds: the
// pressure band, the sentiment gate, and the type-specific price cross.
// Orders with no price condition (plain MARKET, BRACKET parent) trigger
// unconditionally once checked.
func (e *Engine) shouldTrigger(ord types.Order, price float64) bool {
	if !e.pressureConditionMet(ord) {
		return false
	}

	if !e.sentimentConditionMet(ord) {
		return false
	}

	return priceConditionMet(ord, price)
}

func (e *Engine) pressureConditionMet(ord types.Order) bool {
	if ord.PressureCondition == types.PressureConditionNone {
		return true
	}

	trigger, err := ord.PressureTrigger.Take()
	if err != nil {
		return true
	}

	recordOpt, err := e.store.LatestPressure(ord.Symbol)
	if err != nil || recordOpt.IsNone() {
		// No pressure history yet; the band cannot be evaluated, so the
		// order waits.
		return false
	}

	final := recordOpt.Unwrap().FinalPressure

	if ord.PressureCondition == types.PressureConditionAbove {
		return final > trigger
	}

	return final < trigger
}

func (e *Engine) sentimentConditionMet(ord types.Order) bool {
	if ord.SentimentTrigger == types.SentimentTriggerAny {
		return true
	}

	spOpt, err := e.store.LatestSemanticPressure(ord.Symbol)
	if err != nil || spOpt.IsNone() {
		return false
	}

	sentiment := spOpt.Unwrap().Sentiment

	switch ord.SentimentTrigger {
	case types.SentimentTriggerBullish:
		return sentiment == types.SentimentPositive
	case types.SentimentTriggerBearish:
		return sentiment == types.SentimentNegative
	case types.SentimentTriggerNeutral:
		return sentiment == types.SentimentNeutral
	default:
		return true
	}
}

// priceConditionMet applies the type-specific price cross: a stop triggers
// when price moves against the holder, a take-profit when it moves
// favorably.
func priceConditionMet(ord types.Order, price float64) bool {
	switch ord.Type {
	case types.OrderTypeStopLoss:
		return stopCross(ord, price)
	case types.OrderTypeTakeProfit:
		return takeCross(ord, price)
	case types.OrderTypeOCO:
		// An OCO leg carries whichever price condition it was built with.
		if ord.StopLossPrice.IsSome() {
			return stopCross(ord, price)
		}

		if ord.TakeProfitPrice.IsSome() {
			return takeCross(ord, price)
		}

		return true
	default:
		return true
	}
}

func stopCross(ord types.Order, price float64) bool {
	stop, err := ord.StopLossPrice.Take()
	if err != nil {
		return false
	}

	if ord.Side == types.OrderSideSell {
		return price <= stop
	}

	return price >= stop
}

func takeCross(ord types.Order, price float64) bool {
	take, err := ord.TakeProfitPrice.Take()
	if err != nil {
		return false
	}

	if ord.Side == types.OrderSideSell {
		return price >= take
	}

	return price <= take
}

// execute simulates the fill: latency sleep, ledger settlement, auto-trade
// bookkeeping, then the FILLED transition and OCO fan-out. Ledger
// rejections move the order to REJECTED without mutating any state.
func (e *Engine) execute(ctx context.Context, ord types.Order, price float64) error {
	if e.executionDelay > 0 {
		time.Sleep(e.executionDelay)
	}

	// The in-memory snapshot may be stale: an OCO sibling filled earlier in
	// this pass, or a cancel landed during the latency window. Re-read the
	// status before touching the ledger.
	currentOpt, err := e.store.GetOrder(ord.ID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderCheckFailed, "failed to re-read order before fill", err)
	}

	current, takeErr := currentOpt.Take()
	if takeErr != nil || current.Status != types.OrderStatusPending {
		e.logger.Info("Order no longer pending, fill skipped",
			zap.String("order_id", ord.ID),
			zap.String("symbol", ord.Symbol),
		)

		return errors.Newf(errors.ErrCodeOrderTerminal, "order %s is no longer pending", ord.ID)
	}

	if ord.Side == types.OrderSideBuy {
		err = e.settleBuy(ord, price)
	} else {
		err = e.settleSell(ord, price)
	}

	if err != nil {
		if errors.IsRejection(err) {
			if rejErr := e.store.MarkOrderRejected(ord.ID); rejErr != nil {
				e.logger.Warn("Failed to mark order rejected",
					zap.String("order_id", ord.ID),
					zap.Error(rejErr),
				)
			}

			e.logger.Warn("Order rejected",
				zap.String("order_id", ord.ID),
				zap.String("symbol", ord.Symbol),
				zap.Error(err),
			)

			return err
		}

		// Transient failure: leave the order PENDING for the next cycle.
		e.logger.Error("Order execution failed, order left pending",
			zap.String("order_id", ord.ID),
			zap.String("symbol", ord.Symbol),
			zap.Error(err),
		)

		return err
	}

	now := e.clock.Now()

	if err := e.store.MarkOrderFilled(ord.ID, price, now); err != nil {
		// A concurrent cancel won the race during the execution delay. The
		// ledger mutation stands; accepted and logged.
		e.logger.Warn("Order reached terminal state during execution delay",
			zap.String("order_id", ord.ID),
			zap.Error(err),
		)

		return nil
	}

	e.cancelOCOPeers(ord)

	e.logger.Info("Order filled",
		zap.String("order_id", ord.ID),
		zap.String("symbol", ord.Symbol),
		zap.String("side", string(ord.Side)),
		zap.Float64("filled_price", price),
	)

	return nil
}

// settleBuy runs the ledger BUY and opens an auto-trade round trip when the
// symbol has none open.
func (e *Engine) settleBuy(ord types.Order, price float64) error {
	result, err := e.guard.ExecuteBuy(e.accountID, ord.Symbol, ord.Quantity, price, e.costs)
	if err != nil {
		return err
	}

	openOpt, err := e.store.GetOpenTrade(e.accountID, ord.Symbol)
	if err != nil {
		e.logger.Warn("Failed to look up open trade after buy",
			zap.String("symbol", ord.Symbol),
			zap.Error(err),
		)

		return nil
	}

	if openOpt.IsSome() {
		return nil
	}

	trade := types.AutoTrade{
		ID:        uuid.New().String(),
		AccountID: e.accountID,
		Symbol:    ord.Symbol,
		Shares:    ord.Quantity,
		BuyPrice:  price,
		TotalCost: result.Total,
		EntryTime: e.clock.Now(),
		Status:    types.TradeStatusOpen,
	}

	if err := e.store.InsertAutoTrade(trade); err != nil {
		e.logger.Warn("Failed to open auto-trade record",
			zap.String("symbol", ord.Symbol),
			zap.Error(err),
		)
	}

	return nil
}

// settleSell runs the ledger SELL and closes the matching open round trip,
// classifying it WIN or LOSS by realized P/L.
func (e *Engine) settleSell(ord types.Order, price float64) error {
	result, err := e.guard.ExecuteSell(e.accountID, ord.Symbol, ord.Quantity, price, e.costs)
	if err != nil {
		return err
	}

	openOpt, err := e.store.GetOpenTrade(e.accountID, ord.Symbol)
	if err != nil || openOpt.IsNone() {
		return nil
	}

	open := openOpt.Unwrap()
	pl := open.RealizedPL(price)

	plPercent := 0.0
	if open.BuyPrice > 0 {
		plPercent = (price - open.BuyPrice) / open.BuyPrice * 100
	}

	reason := exitReason(ord)

	if err := e.store.CloseAutoTrade(open.ID, price, pl, plPercent, e.clock.Now(), reason); err != nil {
		e.logger.Warn("Failed to close auto-trade record",
			zap.String("trade_id", open.ID),
			zap.Error(err),
		)

		return nil
	}

	e.logger.Info("Round trip closed",
		zap.String("symbol", ord.Symbol),
		zap.Float64("pl_amount", pl),
		zap.String("outcome", string(types.OutcomeFor(pl))),
		zap.Float64("net_proceeds", result.Total),
	)

	return nil
}

func exitReason(ord types.Order) string {
	switch ord.Type {
	case types.OrderTypeStopLoss:
		return "stop_loss"
	case types.OrderTypeTakeProfit:
		return "profit_target"
	default:
		return "order_" + string(ord.Type)
	}
}
