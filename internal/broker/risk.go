package broker

import (
	"context"
	"fmt"

	"github.com/newthinker/predator/internal/core"
	"github.com/shopspring/decimal"
)

// RiskConfig bounds new entries. Zero disables a limit.
type RiskConfig struct {
	// MaxPositionPct caps one entry's notional as a percent of equity.
	MaxPositionPct float64
	// MaxDailyLossPct halts new entries once the day's loss reaches it.
	MaxDailyLossPct  float64
	MaxOpenPositions int
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPositionPct:   10,
		MaxDailyLossPct:  3,
		MaxOpenPositions: 10,
	}
}

type RiskCheckResult struct {
	Allowed bool
	Reason  string
}

func allow() RiskCheckResult { return RiskCheckResult{Allowed: true} }

func deny(format string, args ...any) RiskCheckResult {
	return RiskCheckResult{Reason: fmt.Sprintf(format, args...)}
}

// RiskChecker gates entries against account-level limits. Exits always pass.
type RiskChecker struct {
	config RiskConfig
	broker Broker
}

func NewRiskChecker(config RiskConfig, broker Broker) *RiskChecker {
	return &RiskChecker{config: config, broker: broker}
}

func (r *RiskChecker) Check(ctx context.Context, intent core.TradeIntent) RiskCheckResult {
	if intent.Side == core.SideSell {
		return allow()
	}

	balance, err := r.broker.GetBalance(ctx)
	if err != nil {
		return deny("failed to get balance: %v", err)
	}
	positions, err := r.broker.GetPositions(ctx)
	if err != nil {
		return deny("failed to get positions: %v", err)
	}

	equity := balance.Equity
	hundred := decimal.NewFromInt(100)

	if r.config.MaxDailyLossPct > 0 && equity.IsPositive() {
		lossPct := balance.DailyPL().Neg().Div(equity).Mul(hundred).InexactFloat64()
		if lossPct >= r.config.MaxDailyLossPct {
			return deny("daily loss limit reached: %.2f%% >= %.2f%%", lossPct, r.config.MaxDailyLossPct)
		}
	}

	if r.config.MaxOpenPositions > 0 {
		open := 0
		for _, p := range positions {
			if p.Quantity != 0 {
				open++
			}
		}
		if open >= r.config.MaxOpenPositions {
			return deny("max open positions reached: %d >= %d", open, r.config.MaxOpenPositions)
		}
	}

	if r.config.MaxPositionPct > 0 && equity.IsPositive() {
		notional := decimal.NewFromFloat(intent.ReferencePrice).Mul(decimal.NewFromInt(intent.Quantity))
		pct := notional.Div(equity).Mul(hundred).InexactFloat64()
		if pct > r.config.MaxPositionPct {
			return deny("position size too large: %.2f%% > %.2f%%", pct, r.config.MaxPositionPct)
		}
	}

	return allow()
}
