package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
)

var orderColumns = []string{
	"order_id", "symbol", "order_type", "side", "quantity", "entry_price",
	"stop_loss_price", "take_profit_price", "pressure_trigger",
	"pressure_condition", "sentiment_trigger", "status", "parent_order_id",
	"child_order_ids", "oco_pair_id", "ai_confidence", "created_at",
	"last_checked", "filled_price", "filled_time",
}

// InsertOrder persists a new order.
func (s *Store) InsertOrder(order types.Order) error {
	return s.insertOrders(order)
}

// InsertOrderGroup persists a parent and its children in one transaction so
// a bracket's stop-loss and take-profit legs appear atomically with it.
func (s *Store) InsertOrderGroup(orders ...types.Order) error {
	return s.insertOrders(orders...)
}

func (s *Store) insertOrders(orders ...types.Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, order := range orders {
		insert := s.sq.
			Insert("orders").
			Columns(orderColumns...).
			Values(
				order.ID, order.Symbol, order.Type, order.Side, order.Quantity,
				order.EntryPrice, nullFloat(order.StopLossPrice),
				nullFloat(order.TakeProfitPrice), nullFloat(order.PressureTrigger),
				order.PressureCondition, order.SentimentTrigger, order.Status,
				nullString(order.ParentOrderID),
				strings.Join(order.ChildOrderIDs, ","),
				nullString(order.OCOPairID), order.AIConfidence,
				order.CreatedAt, order.LastChecked,
				nullFloat(order.FilledPrice), nullTime(order.FilledTime),
			).
			RunWith(tx)

		if _, err := insert.Exec(); err != nil {
			tx.Rollback()

			return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
		}
	}

	return tx.Commit()
}

// GetOrder returns the order with the given id, or None.
func (s *Store) GetOrder(orderID string) (optional.Option[types.Order], error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(s.db)

	order, err := scanOrder(query.QueryRow())
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.Order](), nil
		}

		return optional.None[types.Order](), fmt.Errorf("failed to get order: %w", err)
	}

	return optional.Some(order), nil
}

// ListOrdersByStatus returns all orders with the given status, oldest first.
func (s *Store) ListOrdersByStatus(status types.OrderStatus) ([]types.Order, error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"status": status}).
		OrderBy("created_at ASC").
		RunWith(s.db)

	return s.queryOrders(query)
}

// ListOrdersByOCOPair returns every order sharing the given OCO pair id.
func (s *Store) ListOrdersByOCOPair(pairID string) ([]types.Order, error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"oco_pair_id": pairID}).
		RunWith(s.db)

	return s.queryOrders(query)
}

// ListChildOrders returns the children of a bracket parent.
func (s *Store) ListChildOrders(parentID string) ([]types.Order, error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"parent_order_id": parentID}).
		RunWith(s.db)

	return s.queryOrders(query)
}

// MarkOrderFilled transitions a PENDING order to FILLED with its fill price
// and time. Terminal orders are immutable; filling one is a conflict.
func (s *Store) MarkOrderFilled(orderID string, price float64, at time.Time) error {
	return s.transitionOrder(orderID, types.OrderStatusFilled, optional.Some(price), optional.Some(at))
}

// MarkOrderCancelled transitions a PENDING order to CANCELLED.
func (s *Store) MarkOrderCancelled(orderID string) error {
	return s.transitionOrder(orderID, types.OrderStatusCancelled, optional.None[float64](), optional.None[time.Time]())
}

// MarkOrderRejected transitions a PENDING order to REJECTED. Rejected orders
// record validation failures for audit without ever touching the ledger.
func (s *Store) MarkOrderRejected(orderID string) error {
	return s.transitionOrder(orderID, types.OrderStatusRejected, optional.None[float64](), optional.None[time.Time]())
}

// TouchOrder records a check pass over a still-pending order.
func (s *Store) TouchOrder(orderID string, at time.Time) error {
	update := s.sq.
		Update("orders").
		Set("last_checked", at).
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(s.db)

	if _, err := update.Exec(); err != nil {
		return fmt.Errorf("failed to touch order: %w", err)
	}

	return nil
}

func (s *Store) transitionOrder(orderID string, to types.OrderStatus, price optional.Option[float64], at optional.Option[time.Time]) error {
	update := s.sq.
		Update("orders").
		Set("status", to).
		Where(squirrel.Eq{"order_id": orderID}).
		// Guard in SQL: only a PENDING order may transition.
		Where(squirrel.Eq{"status": types.OrderStatusPending})

	if price.IsSome() {
		update = update.Set("filled_price", price.Unwrap())
	}

	if at.IsSome() {
		update = update.Set("filled_time", at.Unwrap()).Set("last_checked", at.Unwrap())
	}

	result, err := update.RunWith(s.db).Exec()
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return errors.Newf(errors.ErrCodeOrderTerminal,
			"order %s is not pending; terminal states are immutable", orderID)
	}

	return nil
}

func (s *Store) queryOrders(query squirrel.SelectBuilder) ([]types.Order, error) {
	rows, err := query.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []types.Order

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (types.Order, error) {
	var (
		order        types.Order
		stopLoss     sql.NullFloat64
		takeProfit   sql.NullFloat64
		pressureTrig sql.NullFloat64
		parentID     sql.NullString
		childIDs     string
		ocoPairID    sql.NullString
		filledPrice  sql.NullFloat64
		filledTime   sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.Symbol, &order.Type, &order.Side, &order.Quantity,
		&order.EntryPrice, &stopLoss, &takeProfit, &pressureTrig,
		&order.PressureCondition, &order.SentimentTrigger, &order.Status,
		&parentID, &childIDs, &ocoPairID, &order.AIConfidence,
		&order.CreatedAt, &order.LastChecked, &filledPrice, &filledTime,
	)
	if err != nil {
		return types.Order{}, err
	}

	order.StopLossPrice = optFloat(stopLoss)
	order.TakeProfitPrice = optFloat(takeProfit)
	order.PressureTrigger = optFloat(pressureTrig)
	order.ParentOrderID = optString(parentID)
	order.OCOPairID = optString(ocoPairID)
	order.FilledPrice = optFloat(filledPrice)
	order.FilledTime = optTime(filledTime)

	if childIDs != "" {
		order.ChildOrderIDs = strings.Split(childIDs, ",")
	}

	return order, nil
}
