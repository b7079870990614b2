// Package broker defines the execution adapter the trader submits intents
// through, plus the risk gate and position bookkeeping around it.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol   = errors.New("broker: invalid symbol")
	ErrInvalidQuantity = errors.New("broker: invalid quantity")
	ErrInvalidBracket  = errors.New("broker: stop must be below reference and target above it")
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// Order is a broker-side order as reported by GetOpenOrders.
type Order struct {
	OrderID       string      `json:"order_id"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	Symbol        string      `json:"symbol"`
	Side          core.Side   `json:"side"`
	Quantity      int64       `json:"quantity"`
	Status        OrderStatus `json:"status"`
	// Leg marks the stop or target child of a bracket.
	Leg       string    `json:"leg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsOpen reports whether the order can still fill.
func (o Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartial
}

// IsEntry reports whether o is an unfilled parent buy rather than a
// resting bracket leg protecting an existing position.
func (o Order) IsEntry() bool {
	return o.Side == core.SideBuy && o.Leg == ""
}

// Position is a holding as the broker reports it.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     int64     `json:"quantity"`
	AverageCost  float64   `json:"average_cost"`
	CurrentPrice float64   `json:"current_price"`
	MarketValue  float64   `json:"market_value"`
	UnrealizedPL float64   `json:"unrealized_pl"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p Position) IsLong() bool { return p.Quantity > 0 }

// Balance is the account summary used by the risk gate.
type Balance struct {
	Currency string          `json:"currency"`
	Cash     decimal.Decimal `json:"cash"`
	Equity   decimal.Decimal `json:"equity"`
	// LastEquity is equity at the previous close.
	LastEquity decimal.Decimal `json:"last_equity"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DailyPL is equity change since the previous close.
func (b Balance) DailyPL() decimal.Decimal {
	if b.LastEquity.IsZero() {
		return decimal.Zero
	}
	return b.Equity.Sub(b.LastEquity)
}

// Broker is the execution adapter.
//
// SubmitBracketOrder fails with core.ErrOrderRejected when the broker
// refuses the order and ClosePosition fails with core.ErrNoSuchPosition when
// nothing is held. Other errors mean the outcome is unknown.
type Broker interface {
	Name() string
	SubmitBracketOrder(ctx context.Context, intent core.TradeIntent) (orderID string, err error)
	ClosePosition(ctx context.Context, symbol string) (orderID string, err error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetEquity(ctx context.Context) (decimal.Decimal, error)
	GetBalance(ctx context.Context) (Balance, error)
	GetOpenOrders(ctx context.Context) ([]Order, error)
}

// ValidateBracket checks an entry intent before it reaches a broker.
func ValidateBracket(intent core.TradeIntent) error {
	if intent.Symbol == "" {
		return ErrInvalidSymbol
	}
	if intent.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if intent.StopLossPrice <= 0 ||
		intent.StopLossPrice >= intent.ReferencePrice ||
		intent.TakeProfitPrice <= intent.ReferencePrice {
		return ErrInvalidBracket
	}
	return nil
}
