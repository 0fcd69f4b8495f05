package repository

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/internal/types"
)

// GetAccount returns the account with the given id, or None.
func (s *Store) GetAccount(accountID string) (optional.Option[types.Account], error) {
	query := s.sq.
		Select("id", "cash_balance", "equity_value", "total_value", "updated_at").
		From("accounts").
		Where(squirrel.Eq{"id": accountID}).
		RunWith(s.db)

	var account types.Account

	err := query.QueryRow().Scan(
		&account.ID, &account.CashBalance, &account.EquityValue,
		&account.TotalValue, &account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.Account](), nil
		}

		return optional.None[types.Account](), fmt.Errorf("failed to get account: %w", err)
	}

	return optional.Some(account), nil
}

// SaveAccount inserts or updates an account in place.
func (s *Store) SaveAccount(account types.Account) error {
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, cash_balance, equity_value, total_value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			cash_balance = excluded.cash_balance,
			equity_value = excluded.equity_value,
			total_value = excluded.total_value,
			updated_at = excluded.updated_at
	`, account.ID, account.CashBalance, account.EquityValue, account.TotalValue, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// GetPosition returns the position for (account, symbol), or None.
func (s *Store) GetPosition(accountID, symbol string) (optional.Option[types.Position], error) {
	query := s.sq.
		Select("account_id", "symbol", "quantity", "avg_cost", "current_price", "unrealized_pnl", "updated_at").
		From("positions").
		Where(squirrel.Eq{"account_id": accountID, "symbol": symbol}).
		RunWith(s.db)

	var position types.Position

	err := query.QueryRow().Scan(
		&position.AccountID, &position.Symbol, &position.Quantity,
		&position.AvgCost, &position.CurrentPrice, &position.UnrealizedPnL,
		&position.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.Position](), nil
		}

		return optional.None[types.Position](), fmt.Errorf("failed to get position: %w", err)
	}

	return optional.Some(position), nil
}

// ListPositions returns every position held by an account.
func (s *Store) ListPositions(accountID string) ([]types.Position, error) {
	query := s.sq.
		Select("account_id", "symbol", "quantity", "avg_cost", "current_price", "unrealized_pnl", "updated_at").
		From("positions").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("symbol ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []types.Position

	for rows.Next() {
		var position types.Position

		err := rows.Scan(
			&position.AccountID, &position.Symbol, &position.Quantity,
			&position.AvgCost, &position.CurrentPrice, &position.UnrealizedPnL,
			&position.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		positions = append(positions, position)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// SavePosition inserts or updates a position in place.
func (s *Store) SavePosition(position types.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (account_id, symbol, quantity, avg_cost, current_price, unrealized_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			current_price = excluded.current_price,
			unrealized_pnl = excluded.unrealized_pnl,
			updated_at = excluded.updated_at
	`, position.AccountID, position.Symbol, position.Quantity, position.AvgCost,
		position.CurrentPrice, position.UnrealizedPnL, position.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	return nil
}

// DeletePosition removes a position. Zero-quantity positions must not persist.
func (s *Store) DeletePosition(accountID, symbol string) error {
	del := s.sq.
		Delete("positions").
		Where(squirrel.Eq{"account_id": accountID, "symbol": symbol}).
		RunWith(s.db)

	if _, err := del.Exec(); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	return nil
}
