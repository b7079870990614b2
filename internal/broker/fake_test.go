package broker

import (
	"context"
	"fmt"

	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
)

type fakeBroker struct {
	balance    Balance
	positions  []Position
	orders     []Order
	submitted  []core.TradeIntent
	closed     []string
	submitErr  error
	closeErr   error
	ordersErr  error
	balanceErr error
	seq        int
}

func newFakeBroker(equity int64) *fakeBroker {
	eq := decimal.NewFromInt(equity)
	return &fakeBroker{balance: Balance{Currency: "USD", Cash: eq, Equity: eq, LastEquity: eq}}
}

func (f *fakeBroker) Name() string { return "fake" }

func (f *fakeBroker) SubmitBracketOrder(_ context.Context, intent core.TradeIntent) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.seq++
	f.submitted = append(f.submitted, intent)
	return fmt.Sprintf("ord-%d", f.seq), nil
}

func (f *fakeBroker) ClosePosition(_ context.Context, symbol string) (string, error) {
	if f.closeErr != nil {
		return "", f.closeErr
	}
	f.seq++
	f.closed = append(f.closed, symbol)
	return fmt.Sprintf("ord-%d", f.seq), nil
}

func (f *fakeBroker) GetPositions(context.Context) ([]Position, error) { return f.positions, nil }

func (f *fakeBroker) GetEquity(context.Context) (decimal.Decimal, error) {
	return f.balance.Equity, f.balanceErr
}

func (f *fakeBroker) GetBalance(context.Context) (Balance, error) { return f.balance, f.balanceErr }

func (f *fakeBroker) GetOpenOrders(context.Context) ([]Order, error) { return f.orders, f.ordersErr }

func buyIntent(symbol string, qty int64, price float64) core.TradeIntent {
	return core.TradeIntent{
		Symbol:          symbol,
		Side:            core.SideBuy,
		Quantity:        qty,
		ReferencePrice:  price,
		StopLossPrice:   price * 0.9,
		TakeProfitPrice: price * 1.3,
		Score:           10,
	}
}
