// Package analytics derives performance reports from equity curves and
// trade logs, and keeps a durable JSON log of executions.
package analytics

import (
	"math"

	"equity-sim/internal/sim"
)

// defaultRiskFreeRate is the annual rate used for excess-return figures.
const defaultRiskFreeRate = 0.04

const tradingDaysPerYear = 252

// Report is a full performance breakdown for one run or account.
type Report struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGR           float64 `json:"cagr"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`     // dollars
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // fraction of peak
	WinRate        float64 `json:"win_rate"`
	Expectancy     float64 `json:"expectancy"`
	ProfitFactor   float64 `json:"profit_factor"`
	RecoveryFactor float64 `json:"recovery_factor"`
	UlcerIndex     float64 `json:"ulcer_index"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	WinLossRatio   float64 `json:"win_loss_ratio"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
	NumTrades      int     `json:"num_trades"`
}

// PerformanceAnalyzer computes reports. RiskFreeRate is annual.
type PerformanceAnalyzer struct {
	RiskFreeRate float64
}

// NewPerformanceAnalyzer creates an analyzer with the default risk-free
// rate.
func NewPerformanceAnalyzer() *PerformanceAnalyzer {
	return &PerformanceAnalyzer{RiskFreeRate: defaultRiskFreeRate}
}

// Report builds the full breakdown. years drives CAGR; pass the run's
// calendar span or barCount/252. Insufficient data zeroes the affected
// figures rather than erroring.
func (a *PerformanceAnalyzer) Report(equityCurve []float64, trades []sim.Trade, years float64) Report {
	r := Report{NumTrades: len(trades)}

	if len(equityCurve) >= 2 {
		start := equityCurve[0]
		end := equityCurve[len(equityCurve)-1]
		if start > 0 {
			r.TotalReturnPct = (end - start) / start
		}
		r.CAGR = a.CAGR(start, end, years)

		returns := periodReturns(equityCurve)
		r.SharpeRatio = a.SharpeRatio(returns)
		r.SortinoRatio = a.SortinoRatio(returns)

		ddDollars, ddPct := maxDrawdown(equityCurve)
		r.MaxDrawdown = ddDollars
		r.MaxDrawdownPct = ddPct
		r.RecoveryFactor = recoveryFactor(equityCurve, ddDollars)
		r.UlcerIndex = ulcerIndex(equityCurve)
	}

	if len(trades) > 0 {
		wins := 0
		total := 0.0
		grossProfit := 0.0
		grossLoss := 0.0
		winSum, lossSum := 0.0, 0.0
		winCount, lossCount := 0, 0
		holdingDays := 0.0
		held := 0

		for _, t := range trades {
			total += t.PnL
			if t.PnL > 0 {
				wins++
				grossProfit += t.PnL
				winSum += t.PnL
				winCount++
			} else if t.PnL < 0 {
				grossLoss += -t.PnL
				lossSum += t.PnL
				lossCount++
			}
			if !t.EntryDate.IsZero() && !t.ExitDate.IsZero() {
				holdingDays += t.ExitDate.Sub(t.EntryDate).Hours() / 24
				held++
			}
		}

		r.WinRate = float64(wins) / float64(len(trades))
		r.Expectancy = total / float64(len(trades))
		r.ProfitFactor = ratioOrInf(grossProfit, grossLoss)
		if winCount > 0 {
			r.AvgWin = winSum / float64(winCount)
		}
		if lossCount > 0 {
			r.AvgLoss = lossSum / float64(lossCount)
		}
		if r.AvgLoss != 0 {
			r.WinLossRatio = math.Abs(r.AvgWin / r.AvgLoss)
		}
		if held > 0 {
			r.AvgHoldingDays = holdingDays / float64(held)
		}
	}

	return r
}

// CAGR is the compound annual growth rate, 0 on degenerate inputs.
func (a *PerformanceAnalyzer) CAGR(startValue, endValue, years float64) float64 {
	if years <= 0 || startValue <= 0 {
		return 0
	}
	return math.Pow(endValue/startValue, 1/years) - 1
}

// SharpeRatio annualizes mean excess return over the return standard
// deviation.
func (a *PerformanceAnalyzer) SharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	std := stddev(returns)
	if std == 0 {
		return 0
	}

	dailyRF := a.RiskFreeRate / tradingDaysPerYear
	excessMean := mean(returns) - dailyRF
	return excessMean / std * math.Sqrt(tradingDaysPerYear)
}

// SortinoRatio annualizes mean return over downside deviation only.
func (a *PerformanceAnalyzer) SortinoRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	downside := make([]float64, 0, len(returns))
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}

	downsideStd := stddev(downside)
	if downsideStd == 0 {
		return 0
	}
	return mean(returns) / downsideStd * math.Sqrt(tradingDaysPerYear)
}

func periodReturns(equityCurve []float64) []float64 {
	out := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		if equityCurve[i-1] > 0 {
			out = append(out, (equityCurve[i]-equityCurve[i-1])/equityCurve[i-1])
		}
	}
	return out
}

// maxDrawdown returns the deepest decline in dollars and as a fraction of
// the running peak.
func maxDrawdown(equityCurve []float64) (dollars, pct float64) {
	peak := 0.0
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		dd := peak - equity
		if dd > dollars {
			dollars = dd
		}
		if peak > 0 {
			if frac := dd / peak; frac > pct {
				pct = frac
			}
		}
	}
	return dollars, pct
}

// recoveryFactor is net profit over the deepest dollar drawdown.
func recoveryFactor(equityCurve []float64, maxDrawdownDollars float64) float64 {
	netProfit := equityCurve[len(equityCurve)-1] - equityCurve[0]
	return ratioOrInf(netProfit, maxDrawdownDollars)
}

// ulcerIndex is the root mean square of percent drawdowns over the curve.
func ulcerIndex(equityCurve []float64) float64 {
	peak := 0.0
	sumSquares := 0.0
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			ddPct := (equity - peak) / peak * 100
			sumSquares += ddPct * ddPct
		}
	}
	return math.Sqrt(sumSquares / float64(len(equityCurve)))
}

func ratioOrInf(numerator, denominator float64) float64 {
	if denominator == 0 {
		if numerator > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return numerator / denominator
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	// Sample deviation, matching series-library conventions.
	return math.Sqrt(variance / float64(len(values)-1))
}
