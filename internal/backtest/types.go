package backtest

import (
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
)

// ExitReason says why a simulated position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitTrendFlip  ExitReason = "trend_flip"
)

// Result holds the complete backtest output
type Result struct {
	Symbol      string
	Timeframe   core.Timeframe
	StartDate   time.Time
	EndDate     time.Time
	Bars        int
	Evaluations int
	Intents     []core.TradeIntent
	Trades      []Trade

	InitialEquity decimal.Decimal
	FinalEquity   decimal.Decimal
	Stats         Stats
}

// Trade is one simulated position from entry fill to exit fill.
type Trade struct {
	Symbol     string
	Quantity   int64
	EntryTime  time.Time
	EntryPrice float64
	EntryScore int
	Signals    []string
	StopLoss   float64
	TakeProfit float64

	// Exit fields are zero while the position is still open; ExitPrice
	// then holds the last close.
	ExitTime   time.Time
	ExitPrice  float64
	ExitReason ExitReason
	Return     float64 // fraction, not percent
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percent of closed trades
	TotalReturn   float64 // percent, summed over closed trades
	MaxDrawdown   float64 // percent, over compounded trade returns
	SharpeRatio   float64
	ProfitFactor  float64 // gross win over gross loss, +Inf with no losers
	AvgWin        float64 // percent
	AvgLoss       float64 // percent, negative
	ExitReasons   map[ExitReason]int
}

func (t Trade) IsWin() bool {
	return t.Return > 0
}

func (t Trade) IsClosed() bool {
	return t.ExitReason != ""
}

// PnL is the trade's profit in account currency.
func (t Trade) PnL() decimal.Decimal {
	return decimal.NewFromFloat(t.ExitPrice - t.EntryPrice).Mul(decimal.NewFromInt(t.Quantity))
}

func (t *Trade) close(at time.Time, price float64, reason ExitReason) {
	t.ExitTime = at
	t.ExitPrice = price
	t.ExitReason = reason
	t.Return = (price - t.EntryPrice) / t.EntryPrice
}
