package ledger

import (
	"fmt"

	"github.com/quantfold/papertrade/internal/config"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CostModel is the simulated execution cost for one fill.
type CostModel struct {
	feeRate      decimal.Decimal
	slippageRate decimal.Decimal
}

// NewCostModel builds the cost model from fee configuration.
func NewCostModel(cfg config.FeeConfig) CostModel {
	return CostModel{
		feeRate:      decimal.NewFromFloat(cfg.FeeRate),
		slippageRate: decimal.NewFromFloat(cfg.SlippageRate),
	}
}

// Costs returns fee and slippage for a fill of quantity at price. Both are
// computed on the notional price*quantity.
func (m CostModel) Costs(price, quantity float64) (fee, slippage float64) {
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity))

	fee, _ = notional.Mul(m.feeRate).Float64()
	slippage, _ = notional.Mul(m.slippageRate).Float64()

	return fee, slippage
}

// BuyTotal is the settlement amount for a BUY: base + fee + slippage.
func (m CostModel) BuyTotal(price, quantity float64) float64 {
	fee, slippage := m.Costs(price, quantity)
	base := price * quantity

	total, _ := decimal.NewFromFloat(base).
		Add(decimal.NewFromFloat(fee)).
		Add(decimal.NewFromFloat(slippage)).Float64()

	return total
}

// SellNet is the net proceeds for a SELL: base - fee - slippage.
func (m CostModel) SellNet(price, quantity float64) float64 {
	fee, slippage := m.Costs(price, quantity)
	base := price * quantity

	net, _ := decimal.NewFromFloat(base).
		Sub(decimal.NewFromFloat(fee)).
		Sub(decimal.NewFromFloat(slippage)).Float64()

	return net
}

// TradeResult is the settled outcome of an accepted BUY or SELL.
type TradeResult struct {
	Account  types.Account
	Position types.Position
	// Fee and Slippage are the simulated execution costs.
	Fee      float64
	Slippage float64
	// Total is the cash delta magnitude: settlement cost for a BUY, net
	// proceeds for a SELL.
	Total float64
	// RealizedPL is set for SELLs only.
	RealizedPL float64
	// PositionClosed reports that the SELL emptied the position.
	PositionClosed bool
}

// ExecuteBuy settles a BUY against the account: session gate, repair pass,
// funds check, then cash and position mutation under the account lock.
// Rejections return a typed error and leave the ledger untouched.
func (g *Guard) ExecuteBuy(accountID, symbol string, quantity, price float64, costs CostModel) (TradeResult, error) {
	if quantity <= 0 {
		return TradeResult{}, errors.Newf(errors.ErrCodeInvalidQuantity, "buy quantity must be positive, got %f", quantity)
	}

	if price <= 0 {
		return TradeResult{}, errors.Newf(errors.ErrCodeInvalidPrice, "buy price must be positive, got %f", price)
	}

	now := g.clock.Now()

	if ok, reason := g.sessionAllowed(now); !ok {
		g.rejectAudit(accountID, symbol, "BUY", reason)

		return TradeResult{}, errors.New(errors.ErrCodeOutsideSession, reason)
	}

	m := g.lock(accountID)
	m.Lock()
	defer m.Unlock()

	account, err := g.Repair(accountID)
	if err != nil {
		return TradeResult{}, err
	}

	fee, slippage := costs.Costs(price, quantity)
	total := costs.BuyTotal(price, quantity)

	if account.CashBalance < total {
		reason := fmt.Sprintf("insufficient funds: need %.2f, have %.2f", total, account.CashBalance)
		g.rejectAudit(accountID, symbol, "BUY", reason)

		return TradeResult{}, errors.New(errors.ErrCodeInsufficientFunds, reason)
	}

	posOpt, err := g.store.GetPosition(accountID, symbol)
	if err != nil {
		return TradeResult{}, err
	}

	pos, posErr := posOpt.Take()
	if posErr != nil {
		pos = types.Position{
			AccountID:    accountID,
			Symbol:       symbol,
			Quantity:     quantity,
			AvgCost:      price,
			CurrentPrice: price,
			UpdatedAt:    now,
		}
	} else {
		// Weighted average entry across adds.
		combined := pos.Quantity + quantity
		pos.AvgCost = (pos.AvgCost*pos.Quantity + price*quantity) / combined
		pos.Quantity = combined
		pos.CurrentPrice = price
		pos.UpdatedAt = now
	}

	pos.UnrealizedPnL = (pos.CurrentPrice - pos.AvgCost) * pos.Quantity

	account.CashBalance -= total

	if err := g.store.SavePosition(pos); err != nil {
		return TradeResult{}, err
	}

	account, err = g.recomputeTotals(account)
	if err != nil {
		return TradeResult{}, err
	}

	g.logger.Info("BUY settled",
		zap.String("account_id", accountID),
		zap.String("symbol", symbol),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("total_cost", total),
		zap.Float64("cash_balance", account.CashBalance),
	)

	return TradeResult{
		Account:  account,
		Position: pos,
		Fee:      fee,
		Slippage: slippage,
		Total:    total,
	}, nil
}

// ExecuteSell settles a SELL: session gate, repair pass, share check, then
// cash credit and position reduction. Selling the full quantity deletes the
// position; partial sells keep the original average cost.
func (g *Guard) ExecuteSell(accountID, symbol string, quantity, price float64, costs CostModel) (TradeResult, error) {
	return g.sell(accountID, symbol, quantity, price, costs, true)
}

// SettleSell is the end-of-session variant of ExecuteSell: it skips the
// session gate so positions can be flattened after the close.
func (g *Guard) SettleSell(accountID, symbol string, quantity, price float64, costs CostModel) (TradeResult, error) {
	return g.sell(accountID, symbol, quantity, price, costs, false)
}

func (g *Guard) sell(accountID, symbol string, quantity, price float64, costs CostModel, gated bool) (TradeResult, error) {
	if quantity <= 0 {
		return TradeResult{}, errors.Newf(errors.ErrCodeInvalidQuantity, "sell quantity must be positive, got %f", quantity)
	}

	if price <= 0 {
		return TradeResult{}, errors.Newf(errors.ErrCodeInvalidPrice, "sell price must be positive, got %f", price)
	}

	now := g.clock.Now()

	if gated {
		if ok, reason := g.sessionAllowed(now); !ok {
			g.rejectAudit(accountID, symbol, "SELL", reason)

			return TradeResult{}, errors.New(errors.ErrCodeOutsideSession, reason)
		}
	}

	m := g.lock(accountID)
	m.Lock()
	defer m.Unlock()

	account, err := g.Repair(accountID)
	if err != nil {
		return TradeResult{}, err
	}

	posOpt, err := g.store.GetPosition(accountID, symbol)
	if err != nil {
		return TradeResult{}, err
	}

	pos, posErr := posOpt.Take()
	if posErr != nil || pos.Quantity < quantity {
		held := 0.0
		if posErr == nil {
			held = pos.Quantity
		}

		reason := fmt.Sprintf("insufficient shares: need %f, have %f", quantity, held)
		g.rejectAudit(accountID, symbol, "SELL", reason)

		return TradeResult{}, errors.New(errors.ErrCodeInsufficientShares, reason)
	}

	fee, slippage := costs.Costs(price, quantity)
	net := costs.SellNet(price, quantity)
	realized := (price - pos.AvgCost) * quantity

	account.CashBalance += net

	closed := false

	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		closed = true

		if err := g.store.DeletePosition(accountID, symbol); err != nil {
			return TradeResult{}, err
		}
	} else {
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (price - pos.AvgCost) * pos.Quantity
		pos.UpdatedAt = now

		if err := g.store.SavePosition(pos); err != nil {
			return TradeResult{}, err
		}
	}

	account, err = g.recomputeTotals(account)
	if err != nil {
		return TradeResult{}, err
	}

	g.logger.Info("SELL settled",
		zap.String("account_id", accountID),
		zap.String("symbol", symbol),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("net_proceeds", net),
		zap.Float64("realized_pl", realized),
		zap.Bool("position_closed", closed),
	)

	return TradeResult{
		Account:        account,
		Position:       pos,
		Fee:            fee,
		Slippage:       slippage,
		Total:          net,
		RealizedPL:     realized,
		PositionClosed: closed,
	}, nil
}
