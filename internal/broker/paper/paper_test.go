package paper

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/predator/internal/broker"
	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(symbol string, qty int64, price, stop, target float64) core.TradeIntent {
	return core.TradeIntent{
		ID:              "intent-" + symbol,
		Symbol:          symbol,
		Side:            core.SideBuy,
		Quantity:        qty,
		ReferencePrice:  price,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
	}
}

var (
	opened = time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	clock  = WithClock(func() time.Time { return opened })
)

func bar(open, high, low, close float64) core.Bar {
	return core.Bar{Time: opened.Add(time.Hour), Open: open, High: high, Low: low, Close: close}
}

func TestBroker_SubmitAndEquity(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(10000), clock)

	id, err := b.SubmitBracketOrder(ctx, entry("AMD", 20, 100, 90, 130))
	require.NoError(t, err)
	assert.Equal(t, "intent-AMD", id)

	bal, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Cash.Equal(decimal.NewFromInt(8000)))
	assert.True(t, bal.Equity.Equal(decimal.NewFromInt(10000)))

	b.Mark("AMD", bar(100, 111, 99, 110))
	eq, err := b.GetEquity(ctx)
	require.NoError(t, err)
	assert.True(t, eq.Equal(decimal.NewFromInt(10200)), eq.String())

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(20), positions[0].Quantity)
	assert.InDelta(t, 200.0, positions[0].UnrealizedPL, 1e-9)

	orders, err := b.GetOpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, LegStopLoss, orders[0].Leg)
	assert.False(t, orders[0].IsEntry())
}

func TestBroker_Rejections(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(1000), clock)

	_, err := b.SubmitBracketOrder(ctx, entry("AMD", 20, 100, 90, 130))
	assert.ErrorIs(t, err, core.ErrOrderRejected)

	_, err = b.SubmitBracketOrder(ctx, entry("AMD", 1, 100, 110, 130))
	assert.ErrorIs(t, err, core.ErrOrderRejected)

	_, err = b.SubmitBracketOrder(ctx, entry("AMD", 5, 100, 90, 130))
	require.NoError(t, err)
	_, err = b.SubmitBracketOrder(ctx, entry("AMD", 1, 100, 90, 130))
	assert.ErrorIs(t, err, core.ErrOrderRejected)
}

func TestBroker_BracketLegs(t *testing.T) {
	ctx := context.Background()

	t.Run("stop wins when both touched", func(t *testing.T) {
		b := New(decimal.NewFromInt(10000), clock)
		_, err := b.SubmitBracketOrder(ctx, entry("NVDA", 10, 100, 90, 130))
		require.NoError(t, err)

		b.Mark("NVDA", bar(100, 140, 85, 120))
		fills := b.Fills()
		require.Len(t, fills, 2)
		assert.Equal(t, LegStopLoss, fills[1].Reason)
		assert.Equal(t, 90.0, fills[1].Price)

		positions, _ := b.GetPositions(ctx)
		assert.Empty(t, positions)
	})

	t.Run("gap up fills target at open", func(t *testing.T) {
		b := New(decimal.NewFromInt(10000), clock)
		_, err := b.SubmitBracketOrder(ctx, entry("NVDA", 10, 100, 90, 130))
		require.NoError(t, err)

		b.Mark("NVDA", bar(135, 140, 134, 138))
		fills := b.Fills()
		require.Len(t, fills, 2)
		assert.Equal(t, LegTakeProfit, fills[1].Reason)
		assert.Equal(t, 135.0, fills[1].Price)

		eq, _ := b.GetEquity(ctx)
		assert.True(t, eq.Equal(decimal.NewFromInt(10350)), eq.String())
	})
}

func TestBroker_ClosePosition(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(10000), clock)

	_, err := b.ClosePosition(ctx, "TSLA")
	assert.ErrorIs(t, err, core.ErrNoSuchPosition)

	_, err = b.SubmitBracketOrder(ctx, entry("TSLA", 10, 200, 180, 260))
	require.NoError(t, err)
	b.Mark("TSLA", bar(200, 215, 195, 210))

	id, err := b.ClosePosition(ctx, "TSLA")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	bal, _ := b.GetBalance(ctx)
	assert.True(t, bal.Cash.Equal(decimal.NewFromInt(10100)), bal.Cash.String())
	orders, _ := b.GetOpenOrders(ctx)
	assert.Empty(t, orders)
}

func TestBroker_IgnoresBarsBeforeEntry(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(10000), clock)
	_, err := b.SubmitBracketOrder(ctx, entry("AMD", 10, 100, 90, 130))
	require.NoError(t, err)

	stale := bar(100, 101, 80, 100)
	stale.Time = opened.Add(-time.Hour)
	b.Mark("AMD", stale)

	positions, _ := b.GetPositions(ctx)
	assert.Len(t, positions, 1)
}

func TestBroker_DailyPL(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(10000), clock)
	_, err := b.SubmitBracketOrder(ctx, entry("AMD", 10, 100, 50, 300))
	require.NoError(t, err)
	b.StartDay()
	b.Mark("AMD", bar(100, 100, 80, 80))

	bal, _ := b.GetBalance(ctx)
	assert.True(t, bal.DailyPL().Equal(decimal.NewFromInt(-200)), bal.DailyPL().String())
}

func TestBroker_MarkRollsDailyBaseline(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(10000), clock)
	_, err := b.SubmitBracketOrder(ctx, entry("AMD", 10, 100, 50, 300))
	require.NoError(t, err)

	b.Mark("AMD", bar(100, 100, 80, 80))
	bal, _ := b.GetBalance(ctx)
	assert.True(t, bal.DailyPL().Equal(decimal.NewFromInt(-200)), bal.DailyPL().String())

	next := bar(80, 95, 80, 90)
	next.Time = opened.Add(24 * time.Hour)
	b.Mark("AMD", next)

	// baseline is the prior day's close of 80
	bal, _ = b.GetBalance(ctx)
	assert.True(t, bal.LastEquity.Equal(decimal.NewFromInt(9800)), bal.LastEquity.String())
	assert.True(t, bal.DailyPL().Equal(decimal.NewFromInt(100)), bal.DailyPL().String())
}

func TestBroker_WorksWithExecutionManager(t *testing.T) {
	ctx := context.Background()
	b := New(decimal.NewFromInt(100000), clock)
	tracker := broker.NewPositionTracker(b)
	em := broker.NewExecutionManager(broker.ExecutionAuto, b, broker.NewRiskChecker(broker.DefaultRiskConfig(), b), tracker)

	res, err := em.Execute(ctx, entry("META", 20, 100, 90, 130))
	require.NoError(t, err)
	assert.True(t, res.Submitted)

	state, qty := tracker.State("META")
	assert.Equal(t, core.StateLong, state)
	assert.Equal(t, int64(20), qty)

	res, err = em.Execute(ctx, core.TradeIntent{Symbol: "META", Side: core.SideSell, Quantity: 20})
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	state, _ = tracker.State("META")
	assert.Equal(t, core.StateFlat, state)
}
