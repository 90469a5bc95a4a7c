package strategy

import (
	"testing"
	"time"

	"equity-sim/internal/market"
)

// trendBars builds a history long enough for the slow average, with the
// last bar carrying the given price and indicator values.
func trendBars(price, ema50, ema200, rsi float64) []market.Bar {
	bars := make([]market.Bar, trendLookback)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Close:  price,
			EMA50:  ema50,
			EMA200: ema200,
			RSI:    rsi,
		}
	}
	return bars
}

func TestTrendFollowing_Entry(t *testing.T) {
	strat := NewTrendFollowing()

	tests := []struct {
		name      string
		bars      []market.Bar
		wantEnter bool
	}{
		{"uptrend with healthy rsi", trendBars(110, 100, 90, 55), true},
		{"price below ema50", trendBars(95, 100, 90, 55), false},
		{"ema50 below ema200", trendBars(110, 90, 100, 55), false},
		{"rsi overbought", trendBars(110, 100, 90, 75), false},
		{"rsi oversold", trendBars(110, 100, 90, 25), false},
		{"short history", trendBars(110, 100, 90, 55)[:50], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := strat.CheckTechnicalEntry(tt.bars)
			if signal.Enter != tt.wantEnter {
				t.Errorf("Enter = %v (%s), want %v", signal.Enter, signal.Reason, tt.wantEnter)
			}
			if !signal.Enter && signal.Reason == "" {
				t.Error("negative signal must carry a reason")
			}
		})
	}
}

func TestTrendFollowing_EntryLevels(t *testing.T) {
	strat := NewTrendFollowing()
	signal := strat.CheckTechnicalEntry(trendBars(110, 100, 90, 55))

	if !signal.Enter {
		t.Fatalf("expected entry: %s", signal.Reason)
	}
	if signal.EntryPrice != 110 { // signal bar's close
		t.Errorf("entry price = %f, want 110", signal.EntryPrice)
	}
	if signal.StopLoss != 95 { // ema50 × 0.95
		t.Errorf("stop = %f, want 95", signal.StopLoss)
	}
	if signal.TakeProfit != 121 { // price × 1.10
		t.Errorf("target = %f, want 121", signal.TakeProfit)
	}
	if signal.Direction != "long" {
		t.Errorf("direction = %s, want long", signal.Direction)
	}
}

func TestTrendFollowing_Exit(t *testing.T) {
	strat := NewTrendFollowing()
	position := PositionInfo{Symbol: "AAPL", Shares: 10, EntryPrice: 100}

	tests := []struct {
		name     string
		bars     []market.Bar
		wantExit bool
	}{
		{"trend intact", trendBars(110, 100, 90, 55), false},
		{"close below ema50", trendBars(95, 100, 90, 55), true},
		{"rsi blow-off", trendBars(110, 100, 90, 85), true},
		{"no data", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := strat.ShouldExit(tt.bars, position)
			if signal.Exit != tt.wantExit {
				t.Errorf("Exit = %v (%s), want %v", signal.Exit, signal.Reason, tt.wantExit)
			}
		})
	}
}

func TestTrendFollowing_GenerateSignals(t *testing.T) {
	strat := NewTrendFollowing()
	bars := trendBars(110, 100, 90, 55)

	signals := strat.GenerateSignals(bars)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1 (one evaluable window)", len(signals))
	}
	if signals[0].Action != "BUY" {
		t.Errorf("action = %s, want BUY", signals[0].Action)
	}
	if !signals[0].Date.Equal(bars[len(bars)-1].Date) {
		t.Errorf("signal dated %v, want %v", signals[0].Date, bars[len(bars)-1].Date)
	}
}
