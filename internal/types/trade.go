package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of an auto-trade round trip.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// TradeOutcome classifies a closed trade by realized P/L.
type TradeOutcome string

const (
	TradeOutcomeWin  TradeOutcome = "WIN"
	TradeOutcomeLoss TradeOutcome = "LOSS"
)

// AutoTrade is one simulated round trip: a buy that opens the position and
// the sell that closes it. Rows transition OPEN -> CLOSED exactly once.
// At most one OPEN trade may exist per symbol per account.
type AutoTrade struct {
	ID        string                   `json:"id"`
	AccountID string                   `json:"account_id"`
	Symbol    string                   `json:"symbol" validate:"required"`
	Shares    float64                  `json:"shares" validate:"gt=0"`
	BuyPrice  float64                  `json:"buy_price" validate:"gt=0"`
	SellPrice optional.Option[float64] `json:"sell_price"`
	// TotalCost is the buy settlement amount including fee and slippage.
	TotalCost float64                    `json:"total_cost"`
	EntryTime time.Time                  `json:"entry_time"`
	ExitTime  optional.Option[time.Time] `json:"exit_time"`
	PLAmount  float64                    `json:"pl_amount"`
	PLPercent float64                    `json:"pl_percent"`
	Status    TradeStatus                `json:"status"`
	// Outcome is set on close: WIN when pl_amount >= 0, LOSS otherwise.
	Outcome optional.Option[TradeOutcome] `json:"outcome"`
	// ExitReason records why the position was closed (stop loss, profit
	// target, session close, manual).
	ExitReason optional.Option[string] `json:"exit_reason"`
}

// RealizedPL computes the realized profit for closing shares at sellPrice
// against this trade's entry, using decimal arithmetic to avoid float drift.
func (t AutoTrade) RealizedPL(sellPrice float64) float64 {
	exit := decimal.NewFromFloat(sellPrice).Mul(decimal.NewFromFloat(t.Shares))
	entry := decimal.NewFromFloat(t.BuyPrice).Mul(decimal.NewFromFloat(t.Shares))
	pl, _ := exit.Sub(entry).Float64()

	return pl
}

// OutcomeFor classifies a realized P/L amount.
func OutcomeFor(plAmount float64) TradeOutcome {
	if plAmount >= 0 {
		return TradeOutcomeWin
	}

	return TradeOutcomeLoss
}
