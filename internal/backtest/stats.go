package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// tradesPerYear annualises the per-trade Sharpe ratio.
const tradesPerYear = 252

// CalculateStats computes performance statistics from trades. Open trades
// are counted in TotalTrades but excluded from every return figure.
func CalculateStats(trades []Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var winning, losing int
	var totalReturn, grossWin, grossLoss float64
	var returns []float64
	reasons := make(map[ExitReason]int)

	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		returns = append(returns, t.Return)
		totalReturn += t.Return
		reasons[t.ExitReason]++
		if t.IsWin() {
			winning++
			grossWin += t.Return
		} else {
			losing++
			grossLoss -= t.Return
		}
	}

	closed := winning + losing
	var winRate float64
	if closed > 0 {
		winRate = float64(winning) / float64(closed) * 100
	}

	var avgWin, avgLoss, profitFactor float64
	if winning > 0 {
		avgWin = grossWin / float64(winning) * 100
	}
	if losing > 0 {
		avgLoss = -grossLoss / float64(losing) * 100
	}
	switch {
	case grossLoss > 0:
		profitFactor = grossWin / grossLoss
	case grossWin > 0:
		profitFactor = math.Inf(1)
	}

	return Stats{
		TotalTrades:   len(trades),
		WinningTrades: winning,
		LosingTrades:  losing,
		WinRate:       winRate,
		TotalReturn:   totalReturn * 100,
		MaxDrawdown:   calculateMaxDrawdown(returns) * 100,
		SharpeRatio:   calculateSharpeRatio(returns),
		ProfitFactor:  profitFactor,
		AvgWin:        avgWin,
		AvgLoss:       avgLoss,
		ExitReasons:   reasons,
	}
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// compounded return curve.
func calculateMaxDrawdown(returns []float64) float64 {
	var maxDD float64
	peak, cumulative := 1.0, 1.0
	for _, r := range returns {
		cumulative *= 1 + r
		peak = math.Max(peak, cumulative)
		maxDD = math.Max(maxDD, (peak-cumulative)/peak)
	}
	return maxDD
}

// calculateSharpeRatio assumes a zero risk-free rate.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradesPerYear)
}
