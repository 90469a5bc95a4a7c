package market

import "math"

// AddIndicators returns a copy of bars with EMA 20/50/200, RSI(14), ATR(14),
// MACD(12,26,9) and Bollinger bands (20, 2σ) attached per bar. Bars before
// an indicator's lookback keep the zero value, which downstream layers read
// as "insufficient data".
func AddIndicators(bars []Bar) []Bar {
	out := make([]Bar, len(bars))
	copy(out, bars)

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ema20 := emaSeries(closes, 20)
	ema50 := emaSeries(closes, 50)
	ema200 := emaSeries(closes, 200)
	rsi := rsiSeries(closes, 14)
	atr := atrSeries(bars, 14)
	macd, signal := macdSeries(closes, 12, 26, 9)
	upper, middle, lower := bollingerSeries(closes, 20, 2.0)

	for i := range out {
		out[i].EMA20 = ema20[i]
		out[i].EMA50 = ema50[i]
		out[i].EMA200 = ema200[i]
		out[i].RSI = rsi[i]
		out[i].ATR = atr[i]
		out[i].MACD = macd[i]
		out[i].MACDSignal = signal[i]
		out[i].MACDHist = macd[i] - signal[i]
		out[i].BBUpper = upper[i]
		out[i].BBMiddle = middle[i]
		out[i].BBLower = lower[i]
	}

	return out
}

// emaSeries seeds with an SMA over the first period values, then applies the
// standard smoothing multiplier 2/(period+1).
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = values[i]*multiplier + ema*(1-multiplier)
		out[i] = ema
	}

	return out
}

// rsiSeries uses Wilder smoothing of average gain/loss.
func rsiSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period+1 {
		return out
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain := 0.0
		loss := 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// atrSeries computes the Wilder-smoothed average true range.
func atrSeries(bars []Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) < period+1 {
		return out
	}

	tr := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		highLow := bars[i].High - bars[i].Low
		highClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowClose := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highClose, lowClose))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}

	return out
}

// macdSeries returns the MACD line and its signal line. The signal is a true
// EMA over the MACD history, not a point approximation.
func macdSeries(values []float64, fast, slow, signalPeriod int) (macd, signal []float64) {
	macd = make([]float64, len(values))
	signal = make([]float64, len(values))
	if len(values) < slow {
		return macd, signal
	}

	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	for i := slow - 1; i < len(values); i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	macdValid := macd[slow-1:]
	signalValid := emaSeries(macdValid, signalPeriod)
	copy(signal[slow-1:], signalValid)

	return macd, signal
}

// bollingerSeries returns upper/middle/lower bands from a rolling SMA and
// population standard deviation.
func bollingerSeries(values []float64, period int, width float64) (upper, middle, lower []float64) {
	upper = make([]float64, len(values))
	middle = make([]float64, len(values))
	lower = make([]float64, len(values))
	if len(values) < period {
		return upper, middle, lower
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + width*std
		lower[i] = mean - width*std
	}

	return upper, middle, lower
}
