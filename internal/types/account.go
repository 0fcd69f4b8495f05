package types

import (
	"math"
	"time"
)

// Account is the virtual cash/equity ledger for one simulated account.
// Invariants: TotalValue == CashBalance + EquityValue and CashBalance >= 0.
// Violations are repaired in place by the ledger guard before any mutation
// proceeds.
type Account struct {
	ID          string    `json:"id"`
	CashBalance float64   `json:"cash_balance"`
	EquityValue float64   `json:"equity_value"`
	TotalValue  float64   `json:"total_value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Consistent reports whether the stored total matches cash + equity within
// the given tolerance fraction (e.g. 0.01 for 1%).
func (a Account) Consistent(tolerance float64) bool {
	expected := a.CashBalance + a.EquityValue
	if expected == 0 {
		return a.TotalValue == 0
	}

	return math.Abs(a.TotalValue-expected)/math.Abs(expected) <= tolerance
}

// Position is a held symbol within an account. A position with Quantity == 0
// must not persist; the guard deletes it.
type Position struct {
	AccountID    string  `json:"account_id"`
	Symbol       string  `json:"symbol" validate:"required"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	AvgCost      float64 `json:"avg_cost" validate:"gte=0"`
	CurrentPrice float64 `json:"current_price"`
	// UnrealizedPnL is (CurrentPrice - AvgCost) * Quantity at last revaluation.
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketValue returns the position's value at its last known price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// IsFinite reports whether every numeric field of the account holds a real,
// finite value. NaN and infinities count as corruption.
func (a Account) IsFinite() bool {
	for _, v := range []float64{a.CashBalance, a.EquityValue, a.TotalValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
