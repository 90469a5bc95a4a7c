package sim

import "math"

// tradingDaysPerYear annualizes daily-bar statistics.
const tradingDaysPerYear = 252

// Metrics are the derived performance figures of one run. Every field is 0
// on insufficient data (fewer than two equity points or no trades).
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGR           float64 `json:"cagr"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	WinRate        float64 `json:"win_rate"`
}

// ComputeMetrics derives performance figures from an equity curve and the
// closed-trade log. barCount drives the year fraction for CAGR via the
// trading-day calendar.
func ComputeMetrics(equityCurve []float64, trades []Trade, barCount int) Metrics {
	var m Metrics
	if len(equityCurve) < 2 {
		return m
	}

	start := equityCurve[0]
	end := equityCurve[len(equityCurve)-1]
	if start > 0 {
		m.TotalReturnPct = (end - start) / start
	}

	years := float64(barCount) / tradingDaysPerYear
	if years > 0 && start > 0 && end > 0 {
		m.CAGR = math.Pow(end/start, 1/years) - 1
	}

	m.SharpeRatio = sharpeRatio(equityCurve, 0)
	m.MaxDrawdown = maxDrawdown(equityCurve)

	if len(trades) > 0 {
		wins := 0
		for _, t := range trades {
			if t.PnL > 0 {
				wins++
			}
		}
		m.WinRate = float64(wins) / float64(len(trades))
	}

	return m
}

// sharpeRatio annualizes mean daily excess return over its standard
// deviation. Returns 0 when the curve is too short or flat.
func sharpeRatio(equityCurve []float64, riskFreeRate float64) float64 {
	returns := dailyReturns(equityCurve)
	if len(returns) == 0 {
		return 0
	}

	dailyRF := riskFreeRate / tradingDaysPerYear
	mean := 0.0
	for _, r := range returns {
		mean += r - dailyRF
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := (r - dailyRF) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 {
		return 0
	}

	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest fractional peak-to-trough decline.
func maxDrawdown(equityCurve []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func dailyReturns(equityCurve []float64) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		if equityCurve[i-1] > 0 {
			returns = append(returns, (equityCurve[i]-equityCurve[i-1])/equityCurve[i-1])
		}
	}
	return returns
}
