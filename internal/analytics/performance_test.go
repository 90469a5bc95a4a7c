package analytics

import (
	"math"
	"testing"
	"time"

	"equity-sim/internal/sim"
)

func TestReport_InsufficientData(t *testing.T) {
	a := NewPerformanceAnalyzer()
	r := a.Report(nil, nil, 1)
	if r.CAGR != 0 || r.SharpeRatio != 0 || r.NumTrades != 0 {
		t.Errorf("expected zeroed report, got %+v", r)
	}
}

func TestCAGR(t *testing.T) {
	a := NewPerformanceAnalyzer()

	tests := []struct {
		name    string
		start   float64
		end     float64
		years   float64
		want    float64
	}{
		{"ten percent over one year", 100000, 110000, 1, 0.10},
		{"doubling over two years", 100000, 200000, 2, math.Sqrt2 - 1},
		{"zero years", 100000, 110000, 0, 0},
		{"zero start", 0, 110000, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.CAGR(tt.start, tt.end, tt.years)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CAGR = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSortino_NoDownside(t *testing.T) {
	a := NewPerformanceAnalyzer()
	if got := a.SortinoRatio([]float64{0.01, 0.02, 0.01}); got != 0 {
		t.Errorf("sortino with no losing periods = %f, want 0", got)
	}
}

func TestReport_TradeStatistics(t *testing.T) {
	a := NewPerformanceAnalyzer()
	day := 24 * time.Hour
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	trades := []sim.Trade{
		{PnL: 1000, EntryDate: base, ExitDate: base.Add(4 * day)},
		{PnL: -400, EntryDate: base, ExitDate: base.Add(2 * day)},
		{PnL: 600, EntryDate: base, ExitDate: base.Add(6 * day)},
	}
	curve := []float64{100000, 101000, 100600, 101200}

	r := a.Report(curve, trades, 1)

	if math.Abs(r.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate = %f, want 2/3", r.WinRate)
	}
	if math.Abs(r.Expectancy-400) > 1e-9 {
		t.Errorf("expectancy = %f, want 400", r.Expectancy)
	}
	if math.Abs(r.ProfitFactor-4.0) > 1e-9 { // 1600 gross profit / 400 gross loss
		t.Errorf("profit factor = %f, want 4.0", r.ProfitFactor)
	}
	if math.Abs(r.AvgWin-800) > 1e-9 {
		t.Errorf("avg win = %f, want 800", r.AvgWin)
	}
	if math.Abs(r.AvgLoss-(-400)) > 1e-9 {
		t.Errorf("avg loss = %f, want -400", r.AvgLoss)
	}
	if math.Abs(r.WinLossRatio-2.0) > 1e-9 {
		t.Errorf("win/loss ratio = %f, want 2.0", r.WinLossRatio)
	}
	if math.Abs(r.AvgHoldingDays-4) > 1e-9 {
		t.Errorf("avg holding days = %f, want 4", r.AvgHoldingDays)
	}
}

func TestReport_ProfitFactorNoLosses(t *testing.T) {
	a := NewPerformanceAnalyzer()
	trades := []sim.Trade{{PnL: 500}, {PnL: 300}}
	r := a.Report([]float64{100000, 100800}, trades, 1)
	if !math.IsInf(r.ProfitFactor, 1) {
		t.Errorf("profit factor with no losses = %f, want +Inf", r.ProfitFactor)
	}
}

func TestMaxDrawdownAndRecovery(t *testing.T) {
	curve := []float64{100000, 120000, 90000, 130000}

	dollars, pct := maxDrawdown(curve)
	if dollars != 30000 {
		t.Errorf("dollar drawdown = %f, want 30000", dollars)
	}
	if math.Abs(pct-0.25) > 1e-9 {
		t.Errorf("pct drawdown = %f, want 0.25", pct)
	}

	if rf := recoveryFactor(curve, dollars); math.Abs(rf-1.0) > 1e-9 {
		t.Errorf("recovery factor = %f, want 1.0 (30000 profit / 30000 drawdown)", rf)
	}
}

func TestUlcerIndex_FlatCurveZero(t *testing.T) {
	if ui := ulcerIndex([]float64{100, 100, 100}); ui != 0 {
		t.Errorf("ulcer index of flat curve = %f, want 0", ui)
	}
}
