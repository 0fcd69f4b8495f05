// Package ledger keeps the virtual cash/position ledger consistent. Every
// mutation runs through the Guard, which repairs invariant violations before
// the requested operation proceeds, so corrupted prior state never blocks a
// valid new trade.
package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/session"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

const auditSource = "ledger_guard"

// totalTolerance is the accepted relative drift between the stored total
// and cash + equity before a warning is logged.
const totalTolerance = 0.01

// Guard validates and repairs accounts and positions, and serializes ledger
// mutations per account.
type Guard struct {
	store  *repository.Store
	window *session.Window
	logger *logger.Logger
	clock  session.Clock

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

// NewGuard builds a Guard over the store. window may be nil when session
// gating is handled by the caller.
func NewGuard(log *logger.Logger, store *repository.Store, window *session.Window) *Guard {
	return &Guard{
		store:    store,
		window:   window,
		logger:   log,
		clock:    session.SystemClock{},
		accounts: make(map[string]*sync.Mutex),
	}
}

// SetClock replaces the time source. Test hook.
func (g *Guard) SetClock(clock session.Clock) {
	g.clock = clock
}

// lock returns the mutex serializing mutations for one account. Concurrent
// BUY/SELL on the same account would otherwise double-spend cash.
func (g *Guard) lock(accountID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.accounts[accountID]
	if !ok {
		m = &sync.Mutex{}
		g.accounts[accountID] = m
	}

	return m
}

// Repair loads the account, corrects every invariant violation in place,
// persists the corrections, and returns the healthy account. Corrections
// are logged as critical audit events before returning.
func (g *Guard) Repair(accountID string) (types.Account, error) {
	accountOpt, err := g.store.GetAccount(accountID)
	if err != nil {
		return types.Account{}, err
	}

	account, err := accountOpt.Take()
	if err != nil {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", accountID)
	}

	repairs := g.repairAccount(&account)

	positions, err := g.store.ListPositions(accountID)
	if err != nil {
		return types.Account{}, err
	}

	equity := 0.0

	for _, pos := range positions {
		posRepairs, deleted := g.repairPosition(&pos)
		repairs = append(repairs, posRepairs...)

		if deleted {
			if err := g.store.DeletePosition(pos.AccountID, pos.Symbol); err != nil {
				return types.Account{}, err
			}

			continue
		}

		if len(posRepairs) > 0 {
			if err := g.store.SavePosition(pos); err != nil {
				return types.Account{}, err
			}
		}

		equity += pos.MarketValue()
	}

	account.EquityValue = equity
	account.TotalValue = account.CashBalance + account.EquityValue
	account.UpdatedAt = g.clock.Now()

	if len(repairs) > 0 {
		g.store.AppendAudit(types.AuditEntry{
			Source:   auditSource,
			Message:  fmt.Sprintf("repaired %d ledger violation(s) on account %s", len(repairs), accountID),
			Severity: types.SeverityCritical,
			Details:  map[string]string{"repairs": fmt.Sprintf("%v", repairs)},
		})

		g.logger.Error("Ledger violations repaired",
			zap.String("account_id", accountID),
			zap.Strings("repairs", repairs),
		)

		if err := g.store.SaveAccount(account); err != nil {
			return types.Account{}, err
		}
	}

	return account, nil
}

// repairAccount clamps negative or non-finite account fields to zero and
// returns a description of each correction.
func (g *Guard) repairAccount(account *types.Account) []string {
	var repairs []string

	if !account.IsFinite() {
		repairs = append(repairs, "non-finite account field reset to 0")

		for _, f := range []*float64{&account.CashBalance, &account.EquityValue, &account.TotalValue} {
			if math.IsNaN(*f) || math.IsInf(*f, 0) {
				*f = 0
			}
		}
	}

	if account.CashBalance < 0 {
		repairs = append(repairs, fmt.Sprintf("negative cash %.2f reset to 0", account.CashBalance))
		account.CashBalance = 0
	}

	if account.EquityValue < 0 {
		repairs = append(repairs, fmt.Sprintf("negative equity %.2f reset to 0", account.EquityValue))
		account.EquityValue = 0
	}

	if account.TotalValue < 0 {
		repairs = append(repairs, fmt.Sprintf("negative total %.2f reset to 0", account.TotalValue))
		account.TotalValue = 0
	}

	return repairs
}

// repairPosition clamps corrupt position fields. deleted reports that the
// quantity collapsed to zero and the row must not persist.
func (g *Guard) repairPosition(pos *types.Position) (repairs []string, deleted bool) {
	for name, f := range map[string]*float64{
		"quantity":      &pos.Quantity,
		"avg_cost":      &pos.AvgCost,
		"current_price": &pos.CurrentPrice,
	} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) || *f < 0 {
			repairs = append(repairs, fmt.Sprintf("%s %s/%s reset to 0", name, pos.AccountID, pos.Symbol))
			*f = 0
		}
	}

	if pos.Quantity == 0 {
		if len(repairs) > 0 || pos.AvgCost != 0 {
			repairs = append(repairs, fmt.Sprintf("empty position %s/%s deleted", pos.AccountID, pos.Symbol))
		}

		return repairs, true
	}

	pos.UnrealizedPnL = (pos.CurrentPrice - pos.AvgCost) * pos.Quantity

	return repairs, false
}

// Revalue refreshes a position's price, recomputes account equity and total,
// and persists both. Runs the repair pass first.
func (g *Guard) Revalue(accountID, symbol string, lastPrice float64) (types.Account, error) {
	m := g.lock(accountID)
	m.Lock()
	defer m.Unlock()

	account, err := g.Repair(accountID)
	if err != nil {
		return types.Account{}, err
	}

	posOpt, err := g.store.GetPosition(accountID, symbol)
	if err != nil {
		return types.Account{}, err
	}

	pos, err := posOpt.Take()
	if err != nil {
		return account, nil
	}

	pos.CurrentPrice = lastPrice
	pos.UnrealizedPnL = (lastPrice - pos.AvgCost) * pos.Quantity
	pos.UpdatedAt = g.clock.Now()

	if err := g.store.SavePosition(pos); err != nil {
		return types.Account{}, err
	}

	return g.recomputeTotals(account)
}

// recomputeTotals rebuilds equity from positions, checks the stored total
// against cash + equity, and persists the account.
func (g *Guard) recomputeTotals(account types.Account) (types.Account, error) {
	positions, err := g.store.ListPositions(account.ID)
	if err != nil {
		return types.Account{}, err
	}

	equity := 0.0
	for _, pos := range positions {
		equity += pos.MarketValue()
	}

	stored := account.TotalValue

	account.EquityValue = equity
	account.TotalValue = account.CashBalance + equity
	account.UpdatedAt = g.clock.Now()

	if stored != 0 && math.Abs(account.TotalValue-stored)/math.Abs(stored) > totalTolerance {
		g.logger.Warn("Account total drifted more than 1% from recomputed value",
			zap.String("account_id", account.ID),
			zap.Float64("stored_total", stored),
			zap.Float64("recomputed_total", account.TotalValue),
		)
	}

	if err := g.store.SaveAccount(account); err != nil {
		return types.Account{}, err
	}

	return account, nil
}

// rejectAudit records a rejected trade. Rejections never mutate the ledger
// but are always auditable.
func (g *Guard) rejectAudit(accountID, symbol, action, reason string) {
	g.store.AppendAudit(types.AuditEntry{
		Source:   auditSource,
		Message:  fmt.Sprintf("%s %s rejected: %s", action, symbol, reason),
		Severity: types.SeverityWarning,
		Details: map[string]string{
			"account_id": accountID,
			"symbol":     symbol,
			"action":     action,
		},
	})
}

// sessionAllowed checks the trading window when one is configured.
func (g *Guard) sessionAllowed(at time.Time) (bool, string) {
	if g.window == nil {
		return true, ""
	}

	return g.window.Allowed(at)
}
