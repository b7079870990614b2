package broker

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/predator/internal/core"
)

// PositionTracker is the trader's belief about what it holds. It is
// replaced wholesale from the broker at the start of every cycle and only
// amended locally after an acknowledged order.
type PositionTracker struct {
	broker    Broker
	positions map[string]Position
	lastSync  time.Time
	mu        sync.RWMutex
}

func NewPositionTracker(broker Broker) *PositionTracker {
	return &PositionTracker{
		broker:    broker,
		positions: make(map[string]Position),
	}
}

// Sync replaces local state with the broker's position list.
func (pt *PositionTracker) Sync(ctx context.Context) error {
	positions, err := pt.broker.GetPositions(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]Position, len(positions))
	for _, p := range positions {
		if p.Quantity != 0 {
			fresh[p.Symbol] = p
		}
	}

	pt.mu.Lock()
	pt.positions = fresh
	pt.lastSync = time.Now()
	pt.mu.Unlock()
	return nil
}

// State reports FLAT or LONG and the held quantity for symbol.
func (pt *PositionTracker) State(symbol string) (core.PositionState, int64) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	if p, ok := pt.positions[symbol]; ok && p.IsLong() {
		return core.StateLong, p.Quantity
	}
	return core.StateFlat, 0
}

// Apply records an acknowledged intent: a buy opens or adds to the
// position, a sell closes it.
func (pt *PositionTracker) Apply(intent core.TradeIntent) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	switch intent.Side {
	case core.SideBuy:
		p := pt.positions[intent.Symbol]
		total := float64(p.Quantity)*p.AverageCost + float64(intent.Quantity)*intent.ReferencePrice
		p.Symbol = intent.Symbol
		p.Quantity += intent.Quantity
		p.AverageCost = total / float64(p.Quantity)
		p.CurrentPrice = intent.ReferencePrice
		p.MarketValue = float64(p.Quantity) * p.CurrentPrice
		p.UpdatedAt = time.Now()
		pt.positions[intent.Symbol] = p
	case core.SideSell:
		delete(pt.positions, intent.Symbol)
	}
}

// Positions returns held positions in no particular order.
func (pt *PositionTracker) Positions() []Position {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	out := make([]Position, 0, len(pt.positions))
	for _, p := range pt.positions {
		out = append(out, p)
	}
	return out
}

func (pt *PositionTracker) LastSyncTime() time.Time {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.lastSync
}
