package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/pkg/errors"
)

type OrderType string

type OrderSide string

type OrderStatus string

type PressureCondition string

type SentimentTrigger string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeStopLoss   OrderType = "STOP_LOSS"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
	OrderTypeBracket    OrderType = "BRACKET"
	OrderTypeOCO        OrderType = "OCO"
)

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRejected records validation rejections for audit; rejected
	// orders never mutate the ledger.
	OrderStatusRejected OrderStatus = "REJECTED"
)

const (
	PressureConditionNone  PressureCondition = "NONE"
	PressureConditionAbove PressureCondition = "ABOVE"
	PressureConditionBelow PressureCondition = "BELOW"
)

const (
	SentimentTriggerAny     SentimentTrigger = "ANY"
	SentimentTriggerBullish SentimentTrigger = "BULLISH"
	SentimentTriggerBearish SentimentTrigger = "BEARISH"
	SentimentTriggerNeutral SentimentTrigger = "NEUTRAL"
)

// IsTerminal reports whether the status permits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order is a simulated advanced order. Orders transition
// PENDING -> FILLED or PENDING -> CANCELLED and never revert.
type Order struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol" validate:"required"`
	Type     OrderType `json:"order_type" validate:"required,oneof=MARKET STOP_LOSS TAKE_PROFIT BRACKET OCO"`
	Side     OrderSide `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity float64   `json:"quantity" validate:"required,gt=0"`
	// EntryPrice is the reference price the order was created at. Resolved
	// from the latest quote when the caller does not supply one.
	EntryPrice      float64                  `json:"entry_price" validate:"gte=0"`
	StopLossPrice   optional.Option[float64] `json:"stop_loss_price"`
	TakeProfitPrice optional.Option[float64] `json:"take_profit_price"`
	// PressureTrigger gates the order on the symbol's final pressure value
	// when PressureCondition is not NONE.
	PressureTrigger   optional.Option[float64] `json:"pressure_trigger"`
	PressureCondition PressureCondition        `json:"pressure_condition"`
	SentimentTrigger  SentimentTrigger         `json:"sentiment_trigger"`
	Status            OrderStatus              `json:"status"`
	// ParentOrderID links a bracket child to its parent.
	ParentOrderID optional.Option[string] `json:"parent_order_id"`
	// ChildOrderIDs lists the stop-loss and take-profit children of a
	// BRACKET parent, created atomically with it.
	ChildOrderIDs []string `json:"child_order_ids"`
	// OCOPairID links the order to exactly one sibling; filling or
	// cancelling either cancels the other.
	OCOPairID optional.Option[string] `json:"oco_pair_id"`
	// AIConfidence is the advisor's 0-100 confidence annotation, 50 when the
	// advisor was unavailable.
	AIConfidence float64                    `json:"ai_confidence" validate:"gte=0,lte=100"`
	CreatedAt    time.Time                  `json:"created_at"`
	LastChecked  time.Time                  `json:"last_checked"`
	FilledPrice  optional.Option[float64]   `json:"filled_price"`
	FilledTime   optional.Option[time.Time] `json:"filled_time"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}

// CreateOrderRequest is the caller-facing shape for creating an order.
// Stop/take prices may be given as absolute prices or percentages off the
// entry price; absolute prices win when both are present.
type CreateOrderRequest struct {
	Symbol            string                   `json:"symbol" validate:"required"`
	Type              OrderType                `json:"order_type" validate:"required,oneof=MARKET STOP_LOSS TAKE_PROFIT BRACKET OCO"`
	Side              OrderSide                `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity          float64                  `json:"quantity" validate:"required,gt=0"`
	EntryPrice        optional.Option[float64] `json:"entry_price"`
	StopLossPrice     optional.Option[float64] `json:"stop_loss_price"`
	TakeProfitPrice   optional.Option[float64] `json:"take_profit_price"`
	StopLossPct       optional.Option[float64] `json:"stop_loss_pct"`
	TakeProfitPct     optional.Option[float64] `json:"take_profit_pct"`
	PressureTrigger   optional.Option[float64] `json:"pressure_trigger"`
	PressureCondition PressureCondition        `json:"pressure_condition"`
	SentimentTrigger  SentimentTrigger         `json:"sentiment_trigger"`
	// OCOSide is the side of the generated OCO sibling for OCO orders.
	OCOSide optional.Option[OrderSide] `json:"oco_side"`
}

// Validate validates the CreateOrderRequest struct.
func (r *CreateOrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	return nil
}
