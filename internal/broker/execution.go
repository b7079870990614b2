package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/predator/internal/core"
)

// ExecutionMode determines whether intents reach the broker.
type ExecutionMode string

const (
	ExecutionAuto ExecutionMode = "auto"
	// ExecutionDryRun runs every gate but never submits.
	ExecutionDryRun ExecutionMode = "dry_run"
)

// ExecuteResult is the outcome of one intent.
type ExecuteResult struct {
	// Submitted is true only when the broker acknowledged the order.
	Submitted bool
	OrderID   string
	// Skipped is set when a gate stopped the intent; Message says which.
	Skipped bool
	Message string
}

// ExecutionManager runs an intent through the pending-order guard and the
// risk gate, submits it, and updates the tracker once the broker accepts.
type ExecutionManager struct {
	mode    ExecutionMode
	broker  Broker
	risk    *RiskChecker
	tracker *PositionTracker
}

func NewExecutionManager(mode ExecutionMode, broker Broker, risk *RiskChecker, tracker *PositionTracker) *ExecutionManager {
	if mode == "" {
		mode = ExecutionAuto
	}
	return &ExecutionManager{mode: mode, broker: broker, risk: risk, tracker: tracker}
}

func (em *ExecutionManager) Mode() ExecutionMode { return em.mode }

func (em *ExecutionManager) Execute(ctx context.Context, intent core.TradeIntent) (*ExecuteResult, error) {
	switch intent.Side {
	case core.SideBuy:
		return em.enter(ctx, intent)
	case core.SideSell:
		return em.exit(ctx, intent)
	default:
		return nil, fmt.Errorf("execution: unknown side %q", intent.Side)
	}
}

func (em *ExecutionManager) enter(ctx context.Context, intent core.TradeIntent) (*ExecuteResult, error) {
	if err := ValidateBracket(intent); err != nil {
		return nil, fmt.Errorf("execution: %w", err)
	}

	pending, err := em.hasPendingEntry(ctx, intent.Symbol)
	if err != nil {
		return nil, fmt.Errorf("execution: open orders: %w", err)
	}
	if pending {
		return &ExecuteResult{Skipped: true, Message: "entry order already pending for " + intent.Symbol}, nil
	}

	if em.risk != nil {
		if res := em.risk.Check(ctx, intent); !res.Allowed {
			return &ExecuteResult{Skipped: true, Message: "risk check failed: " + res.Reason}, nil
		}
	}

	if em.mode == ExecutionDryRun {
		return &ExecuteResult{Skipped: true, Message: "dry run: " + intent.String()}, nil
	}

	orderID, err := em.broker.SubmitBracketOrder(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("execution: submit %s: %w", intent.Symbol, err)
	}
	em.tracker.Apply(intent)
	return &ExecuteResult{Submitted: true, OrderID: orderID, Message: "submitted " + intent.String()}, nil
}

func (em *ExecutionManager) exit(ctx context.Context, intent core.TradeIntent) (*ExecuteResult, error) {
	if em.mode == ExecutionDryRun {
		return &ExecuteResult{Skipped: true, Message: "dry run: " + intent.String()}, nil
	}

	orderID, err := em.broker.ClosePosition(ctx, intent.Symbol)
	if errors.Is(err, core.ErrNoSuchPosition) {
		// the broker is already flat; a bracket leg probably filled
		em.tracker.Apply(intent)
		return &ExecuteResult{Skipped: true, Message: "no position to close for " + intent.Symbol}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("execution: close %s: %w", intent.Symbol, err)
	}
	em.tracker.Apply(intent)
	return &ExecuteResult{Submitted: true, OrderID: orderID, Message: "closed " + intent.Symbol}, nil
}

func (em *ExecutionManager) hasPendingEntry(ctx context.Context, symbol string) (bool, error) {
	orders, err := em.broker.GetOpenOrders(ctx)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Symbol == symbol && o.IsOpen() && o.IsEntry() {
			return true, nil
		}
	}
	return false, nil
}
