// Package paper is an in-process broker that fills market orders at the
// last known price and simulates bracket exits as bars arrive.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/predator/internal/broker"
	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
)

const (
	LegStopLoss   = "stop_loss"
	LegTakeProfit = "take_profit"
)

type holding struct {
	qty      int64
	avgCost  float64
	stop     float64
	target   float64
	parentID string
	stopID   string
	targetID string
	opened   time.Time
}

// Fill is an executed paper trade.
type Fill struct {
	OrderID string
	Symbol  string
	Side    core.Side
	Qty     int64
	Price   float64
	Reason  string
	Time    time.Time
}

type Broker struct {
	mu         sync.RWMutex
	cash       decimal.Decimal
	lastEquity decimal.Decimal
	holdings   map[string]*holding
	prices     map[string]float64
	fills      []Fill
	now        func() time.Time

	// UTC date of the newest marked bar
	day time.Time
}

var _ broker.Broker = (*Broker)(nil)

type Option func(*Broker)

// WithClock replaces time.Now for fills and bracket arming.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func New(cash decimal.Decimal, opts ...Option) *Broker {
	b := &Broker{
		cash:       cash,
		lastEquity: cash,
		holdings:   make(map[string]*holding),
		prices:     make(map[string]float64),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) Name() string { return "paper" }

// SubmitBracketOrder buys at the last marked price, or the intent's
// reference price when the symbol has not been marked.
func (b *Broker) SubmitBracketOrder(_ context.Context, intent core.TradeIntent) (string, error) {
	if err := broker.ValidateBracket(intent); err != nil {
		return "", core.WrapError(core.ErrOrderRejected, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price := b.priceLocked(intent.Symbol, intent.ReferencePrice)
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(intent.Quantity))
	if cost.GreaterThan(b.cash) {
		return "", core.Errorf(core.ErrOrderRejected, "insufficient cash: need %s, have %s", cost.StringFixed(2), b.cash.StringFixed(2))
	}
	if _, held := b.holdings[intent.Symbol]; held {
		return "", core.Errorf(core.ErrOrderRejected, "position in %s already open", intent.Symbol)
	}

	id := orderID(intent)
	b.cash = b.cash.Sub(cost)
	b.prices[intent.Symbol] = price
	b.holdings[intent.Symbol] = &holding{
		qty:      intent.Quantity,
		avgCost:  price,
		stop:     intent.StopLossPrice,
		target:   intent.TakeProfitPrice,
		parentID: id,
		stopID:   uuid.NewString(),
		targetID: uuid.NewString(),
		opened:   b.now(),
	}
	b.fills = append(b.fills, Fill{OrderID: id, Symbol: intent.Symbol, Side: core.SideBuy, Qty: intent.Quantity, Price: price, Reason: "entry", Time: b.now()})
	return id, nil
}

func orderID(intent core.TradeIntent) string {
	if intent.ID != "" {
		return intent.ID
	}
	return uuid.NewString()
}

func (b *Broker) ClosePosition(_ context.Context, symbol string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.holdings[symbol]
	if !ok {
		return "", core.Errorf(core.ErrNoSuchPosition, "no paper position in %s", symbol)
	}
	id := uuid.NewString()
	b.sellLocked(symbol, h, b.priceLocked(symbol, h.avgCost), id, "close")
	return id, nil
}

// Mark records a new bar for symbol and triggers bracket legs. The first bar
// of a new UTC day rolls the daily P&L baseline. Bars that
// started before the entry fill do not trigger. When a bar spans both levels
// the stop is assumed to fill first.
func (b *Broker) Mark(symbol string, bar core.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d := bar.Time.UTC().Truncate(24 * time.Hour); d.After(b.day) {
		if !b.day.IsZero() {
			b.lastEquity = b.equityLocked()
		}
		b.day = d
	}
	b.prices[symbol] = bar.Close
	h, ok := b.holdings[symbol]
	if !ok || bar.Time.Before(h.opened) {
		return
	}
	switch {
	case bar.Low <= h.stop:
		b.sellLocked(symbol, h, min(h.stop, bar.Open), h.stopID, LegStopLoss)
	case bar.High >= h.target:
		b.sellLocked(symbol, h, max(h.target, bar.Open), h.targetID, LegTakeProfit)
	}
}

// StartDay snapshots equity as the baseline for daily P&L.
func (b *Broker) StartDay() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastEquity = b.equityLocked()
}

func (b *Broker) sellLocked(symbol string, h *holding, price float64, id, reason string) {
	proceeds := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(h.qty))
	b.cash = b.cash.Add(proceeds)
	b.prices[symbol] = price
	delete(b.holdings, symbol)
	b.fills = append(b.fills, Fill{OrderID: id, Symbol: symbol, Side: core.SideSell, Qty: h.qty, Price: price, Reason: reason, Time: b.now()})
}

func (b *Broker) priceLocked(symbol string, fallback float64) float64 {
	if p, ok := b.prices[symbol]; ok && p > 0 {
		return p
	}
	return fallback
}

func (b *Broker) GetPositions(_ context.Context) ([]broker.Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]broker.Position, 0, len(b.holdings))
	for sym, h := range b.holdings {
		price := b.priceLocked(sym, h.avgCost)
		value := price * float64(h.qty)
		out = append(out, broker.Position{
			Symbol:       sym,
			Quantity:     h.qty,
			AverageCost:  h.avgCost,
			CurrentPrice: price,
			MarketValue:  value,
			UnrealizedPL: value - h.avgCost*float64(h.qty),
			UpdatedAt:    b.now(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *Broker) equityLocked() decimal.Decimal {
	eq := b.cash
	for sym, h := range b.holdings {
		eq = eq.Add(decimal.NewFromFloat(b.priceLocked(sym, h.avgCost)).Mul(decimal.NewFromInt(h.qty)))
	}
	return eq
}

func (b *Broker) GetEquity(_ context.Context) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.equityLocked(), nil
}

func (b *Broker) GetBalance(_ context.Context) (broker.Balance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return broker.Balance{
		Currency:   "USD",
		Cash:       b.cash,
		Equity:     b.equityLocked(),
		LastEquity: b.lastEquity,
		UpdatedAt:  b.now(),
	}, nil
}

// GetOpenOrders lists the resting bracket legs of every open position.
func (b *Broker) GetOpenOrders(_ context.Context) ([]broker.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []broker.Order
	for sym, h := range b.holdings {
		out = append(out,
			broker.Order{OrderID: h.stopID, Symbol: sym, Side: core.SideSell, Quantity: h.qty, Status: broker.OrderStatusNew, Leg: LegStopLoss, CreatedAt: h.opened},
			broker.Order{OrderID: h.targetID, Symbol: sym, Side: core.SideSell, Quantity: h.qty, Status: broker.OrderStatusNew, Leg: LegTakeProfit, CreatedAt: h.opened},
		)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Leg < out[j].Leg
	})
	return out, nil
}

// Fills returns executed trades in order.
func (b *Broker) Fills() []Fill {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Fill(nil), b.fills...)
}

func (b *Broker) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("paper(cash=%s, positions=%d)", b.cash.StringFixed(2), len(b.holdings))
}
