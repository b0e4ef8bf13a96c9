// backtest/metrics.go

package backtest

import (
	"math"

	"CryptoBacktester/internal/operations/exchange"
)

func (e *Engine) calculateResults() *Results {
	equityCurve := e.exchange.EquityCurve()

	results := &Results{
		InitialBalance: e.config.InitialBalance,
		FinalBalance:   e.config.InitialBalance,
		TotalTrades:    len(e.trades),
		Trades:         e.trades,
		EquityCurve:    equityCurve,
		PriceData:      e.exchange.Series().Candles(),
	}
	if len(equityCurve) > 0 {
		results.FinalBalance = equityCurve[len(equityCurve)-1].Balance
	}

	// Balance metrics
	results.TotalReturnAmount = results.FinalBalance - results.InitialBalance
	if results.InitialBalance > 0 {
		results.TotalReturn = results.TotalReturnAmount / results.InitialBalance * 100
	}

	// Trade metrics. Only trades that realized a pnl are classified; opens
	// and adds carry none and a breakeven close counts as neither.
	winningPnL := 0.0
	losingPnL := 0.0
	for _, trade := range e.trades {
		if trade.PnL == nil {
			continue
		}
		if *trade.PnL > 0 {
			results.WinTrades++
			winningPnL += *trade.PnL
		} else if *trade.PnL < 0 {
			results.LossTrades++
			losingPnL += *trade.PnL
		}
	}
	if decided := results.WinTrades + results.LossTrades; decided > 0 {
		results.WinRate = float64(results.WinTrades) / float64(decided) * 100
	}
	if results.WinTrades > 0 {
		results.AvgWin = winningPnL / float64(results.WinTrades)
	}
	if results.LossTrades > 0 {
		results.AvgLoss = losingPnL / float64(results.LossTrades)
	}
	if losingPnL != 0 {
		results.ProfitFactor = winningPnL / math.Abs(losingPnL)
	}
	if results.TotalTrades > 0 {
		results.AvgTradeReturn = results.TotalReturn / float64(results.TotalTrades)
	}

	// Performance metrics
	results.MaxDrawdown, results.MaxDrawdownAmount = maxDrawdown(equityCurve)
	results.SharpeRatio = sharpeRatio(equityCurve)

	return results
}

// maxDrawdown tracks the running equity peak and returns the largest decline
// from it, in percent and in absolute amount measured at the same point.
func maxDrawdown(curve []exchange.EquityPoint) (float64, float64) {
	maxPct := 0.0
	maxAmount := 0.0
	peak := 0.0

	for _, point := range curve {
		if point.Balance > peak {
			peak = point.Balance
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - point.Balance) / peak * 100
		if drawdown > maxPct {
			maxPct = drawdown
			maxAmount = peak - point.Balance
		}
	}
	return maxPct, maxAmount
}

// sharpeRatio annualizes per-tick equity returns with a calendar-day factor.
// The factor is a deliberate simplification: stored runs are compared against
// each other, not external benchmarks, so the scale only has to be stable.
func sharpeRatio(curve []exchange.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Balance
		if prev > 0 {
			returns = append(returns, (curve[i].Balance-prev)/prev)
		}
	}
	if len(returns) < 2 {
		return 0
	}

	avgReturn := average(returns)
	stdDev := standardDeviation(returns, avgReturn)
	if stdDev == 0 {
		return 0
	}

	annualizedReturn := avgReturn * 252 // Trading days in a year
	annualizedStdDev := stdDev * math.Sqrt(252)
	return annualizedReturn / annualizedStdDev
}

func average(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func standardDeviation(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(values) - 1) // Use n-1 for sample variance
	return math.Sqrt(variance)
}
