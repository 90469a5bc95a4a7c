package strategy

import (
	"fmt"

	"equity-sim/internal/market"
)

// trendLookback is the bar count the slowest indicator (EMA200) needs.
const trendLookback = 200

// TrendFollowing is a long-only trend strategy: enter when price rides
// above a rising moving-average stack with RSI in a healthy band, exit on
// a close below the fast average or an overbought RSI.
type TrendFollowing struct {
	StopLossPct   float64 // stop distance below EMA50, default 0.05
	TakeProfitPct float64 // profit target above entry, default 0.10
}

// NewTrendFollowing creates the strategy with default stop and target.
func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
	}
}

// Name implements Strategy.
func (s *TrendFollowing) Name() string {
	return "trend_following"
}

// CheckTechnicalEntry implements Strategy. Requires at least trendLookback
// bars of enriched history.
func (s *TrendFollowing) CheckTechnicalEntry(bars []market.Bar) TechnicalSignal {
	if len(bars) < trendLookback {
		return TechnicalSignal{
			Enter:  false,
			Reason: fmt.Sprintf("insufficient history: %d bars, need %d", len(bars), trendLookback),
		}
	}

	last := bars[len(bars)-1]
	price := last.Close

	if last.EMA50 == 0 || last.EMA200 == 0 || last.RSI == 0 {
		return TechnicalSignal{Enter: false, Reason: "indicators not available"}
	}

	if !(price > last.EMA50 && last.EMA50 > last.EMA200) {
		return TechnicalSignal{
			Enter:  false,
			Reason: fmt.Sprintf("no uptrend: price %.2f, ema50 %.2f, ema200 %.2f", price, last.EMA50, last.EMA200),
		}
	}

	if last.RSI <= 30 || last.RSI >= 70 {
		return TechnicalSignal{
			Enter:  false,
			Reason: fmt.Sprintf("rsi %.1f outside entry band (30, 70)", last.RSI),
		}
	}

	return TechnicalSignal{
		Enter:      true,
		Direction:  "long",
		Reason:     fmt.Sprintf("uptrend confirmed: price %.2f above ema50 %.2f above ema200 %.2f, rsi %.1f", price, last.EMA50, last.EMA200, last.RSI),
		EntryPrice: price,
		StopLoss:   last.EMA50 * (1 - s.StopLossPct),
		TakeProfit: price * (1 + s.TakeProfitPct),
	}
}

// ShouldExit implements Strategy. Exits on a close below EMA50 or an
// overbought RSI above 80.
func (s *TrendFollowing) ShouldExit(bars []market.Bar, position PositionInfo) ExitSignal {
	if len(bars) == 0 {
		return ExitSignal{Exit: false, Reason: "no data"}
	}

	last := bars[len(bars)-1]
	if last.EMA50 == 0 {
		return ExitSignal{Exit: false, Reason: "indicators not available"}
	}

	if last.Close < last.EMA50 {
		return ExitSignal{
			Exit:   true,
			Reason: fmt.Sprintf("close %.2f below ema50 %.2f", last.Close, last.EMA50),
		}
	}

	if last.RSI > 80 {
		return ExitSignal{
			Exit:   true,
			Reason: fmt.Sprintf("rsi %.1f overbought", last.RSI),
		}
	}

	return ExitSignal{Exit: false, Reason: "trend intact"}
}

// GenerateSignals implements Strategy: one BUY/SELL/HOLD row per bar from
// trendLookback onward, using only bars up to and including each row's bar.
func (s *TrendFollowing) GenerateSignals(bars []market.Bar) []Signal {
	signals := make([]Signal, 0, len(bars))

	for i := trendLookback; i <= len(bars); i++ {
		window := bars[:i]
		bar := window[len(window)-1]

		entry := s.CheckTechnicalEntry(window)
		if entry.Enter {
			signals = append(signals, Signal{Date: bar.Date, Action: "BUY", Reason: entry.Reason})
			continue
		}

		exit := s.ShouldExit(window, PositionInfo{})
		if exit.Exit {
			signals = append(signals, Signal{Date: bar.Date, Action: "SELL", Reason: exit.Reason})
			continue
		}

		signals = append(signals, Signal{Date: bar.Date, Action: "HOLD", Reason: entry.Reason})
	}

	return signals
}
