package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
)

var autoTradeColumns = []string{
	"id", "account_id", "symbol", "shares", "buy_price", "sell_price",
	"total_cost", "entry_time", "exit_time", "pl_amount", "pl_percent",
	"status", "outcome", "exit_reason",
}

// InsertAutoTrade persists a new OPEN trade.
func (s *Store) InsertAutoTrade(trade types.AutoTrade) error {
	var outcome optional.Option[string]
	if trade.Outcome.IsSome() {
		outcome = optional.Some(string(trade.Outcome.Unwrap()))
	}

	insert := s.sq.
		Insert("auto_trades").
		Columns(autoTradeColumns...).
		Values(
			trade.ID, trade.AccountID, trade.Symbol, trade.Shares,
			trade.BuyPrice, nullFloat(trade.SellPrice), trade.TotalCost,
			trade.EntryTime, nullTime(trade.ExitTime), trade.PLAmount,
			trade.PLPercent, trade.Status, nullString(outcome),
			nullString(trade.ExitReason),
		).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return fmt.Errorf("failed to insert auto trade: %w", err)
	}

	return nil
}

// CloseAutoTrade transitions an OPEN trade to CLOSED exactly once, recording
// the sell price, realized P/L and WIN/LOSS outcome.
func (s *Store) CloseAutoTrade(tradeID string, sellPrice, plAmount, plPercent float64, at time.Time, reason string) error {
	update := s.sq.
		Update("auto_trades").
		Set("sell_price", sellPrice).
		Set("exit_time", at).
		Set("pl_amount", plAmount).
		Set("pl_percent", plPercent).
		Set("status", types.TradeStatusClosed).
		Set("outcome", types.OutcomeFor(plAmount)).
		Set("exit_reason", reason).
		Where(squirrel.Eq{"id": tradeID}).
		Where(squirrel.Eq{"status": types.TradeStatusOpen}).
		RunWith(s.db)

	result, err := update.Exec()
	if err != nil {
		return fmt.Errorf("failed to close auto trade: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return errors.Newf(errors.ErrCodeConflict, "trade %s is not open", tradeID)
	}

	return nil
}

// GetOpenTrade returns the single OPEN trade for a symbol, or None. The
// one-open-trade-per-symbol rule is enforced by callers querying this before
// opening.
func (s *Store) GetOpenTrade(accountID, symbol string) (optional.Option[types.AutoTrade], error) {
	query := s.sq.
		Select(autoTradeColumns...).
		From("auto_trades").
		Where(squirrel.Eq{
			"account_id": accountID,
			"symbol":     symbol,
			"status":     types.TradeStatusOpen,
		}).
		RunWith(s.db)

	trade, err := scanAutoTrade(query.QueryRow())
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.AutoTrade](), nil
		}

		return optional.None[types.AutoTrade](), fmt.Errorf("failed to get open trade: %w", err)
	}

	return optional.Some(trade), nil
}

// ListOpenTrades returns all OPEN trades for an account.
func (s *Store) ListOpenTrades(accountID string) ([]types.AutoTrade, error) {
	query := s.sq.
		Select(autoTradeColumns...).
		From("auto_trades").
		Where(squirrel.Eq{"account_id": accountID, "status": types.TradeStatusOpen}).
		OrderBy("entry_time ASC").
		RunWith(s.db)

	return s.queryAutoTrades(query)
}

// ListClosedTrades returns closed trades for an account since the given time.
func (s *Store) ListClosedTrades(accountID string, since time.Time) ([]types.AutoTrade, error) {
	query := s.sq.
		Select(autoTradeColumns...).
		From("auto_trades").
		Where(squirrel.Eq{"account_id": accountID, "status": types.TradeStatusClosed}).
		Where(squirrel.GtOrEq{"exit_time": since}).
		OrderBy("exit_time ASC").
		RunWith(s.db)

	return s.queryAutoTrades(query)
}

func (s *Store) queryAutoTrades(query squirrel.SelectBuilder) ([]types.AutoTrade, error) {
	rows, err := query.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query auto trades: %w", err)
	}
	defer rows.Close()

	var trades []types.AutoTrade

	for rows.Next() {
		trade, err := scanAutoTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auto trade: %w", err)
		}

		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auto trades: %w", err)
	}

	return trades, nil
}

func scanAutoTrade(row rowScanner) (types.AutoTrade, error) {
	var (
		trade      types.AutoTrade
		sellPrice  sql.NullFloat64
		exitTime   sql.NullTime
		outcome    sql.NullString
		exitReason sql.NullString
	)

	err := row.Scan(
		&trade.ID, &trade.AccountID, &trade.Symbol, &trade.Shares,
		&trade.BuyPrice, &sellPrice, &trade.TotalCost, &trade.EntryTime,
		&exitTime, &trade.PLAmount, &trade.PLPercent, &trade.Status,
		&outcome, &exitReason,
	)
	if err != nil {
		return types.AutoTrade{}, err
	}

	trade.SellPrice = optFloat(sellPrice)
	trade.ExitTime = optTime(exitTime)
	trade.ExitReason = optString(exitReason)

	if outcome.Valid {
		trade.Outcome = optional.Some(types.TradeOutcome(outcome.String))
	}

	return trade, nil
}
