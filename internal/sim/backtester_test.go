package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equity-sim/config"
	"equity-sim/internal/market"
	"equity-sim/internal/risk"
	"equity-sim/internal/strategy"
)

// scriptedStrategy signals entry and exit at fixed bar indexes.
type scriptedStrategy struct {
	enterAt int
	exitAt  int // -1 means never
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) CheckTechnicalEntry(bars []market.Bar) strategy.TechnicalSignal {
	if len(bars)-1 == s.enterAt {
		return strategy.TechnicalSignal{Enter: true, Direction: "long", Reason: "scripted entry"}
	}
	return strategy.TechnicalSignal{Enter: false, Reason: "not yet"}
}

func (s *scriptedStrategy) ShouldExit(bars []market.Bar, position strategy.PositionInfo) strategy.ExitSignal {
	if s.exitAt >= 0 && len(bars)-1 == s.exitAt {
		return strategy.ExitSignal{Exit: true, Reason: "scripted exit"}
	}
	return strategy.ExitSignal{Exit: false, Reason: "hold"}
}

func (s *scriptedStrategy) GenerateSignals(bars []market.Bar) []strategy.Signal { return nil }

func passProviders() strategy.Providers {
	return strategy.Providers{
		Regime:       strategy.StaticRegime{Current: strategy.RegimeRiskOn},
		Fundamentals: strategy.StaticFundamentals{Pass: true},
		Sentiment:    strategy.StaticSentiment{Score: 1, Threshold: 0},
		Intermarket:  strategy.StaticIntermarket{},
	}
}

func dailyBars(closes []float64) []market.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func newBacktestFixture(t *testing.T, strat strategy.Strategy, simCfg config.SimConfig, closes []float64) (*Backtester, *Account) {
	t.Helper()

	riskCfg := config.DefaultRiskConfig()
	account := NewAccount(simCfg.InitialCapital)
	drawdown := risk.NewDrawdownController(riskCfg, zerolog.Nop())
	exposure := risk.NewExposureManager(riskCfg, account, simCfg.InitialCapital)
	sizer := risk.NewPositionSizer(riskCfg)
	engine := strategy.NewDecisionEngine(strat, sizer, drawdown, exposure, passProviders(), true, zerolog.Nop())

	feed := market.NewSliceFeed()
	feed.SetHistory("TEST", dailyBars(closes))

	bt := NewBacktester(simCfg, feed, engine, sizer, drawdown, exposure, account, zerolog.Nop())
	return bt, account
}

func defaultRange() (time.Time, time.Time) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
}

func TestPeriodBucket(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		days int
		want string
	}{
		{3, "5d"},
		{5, "5d"},
		{20, "1mo"},
		{60, "3mo"},
		{120, "6mo"},
		{300, "1y"},
		{400, "2y"},
	}

	for _, tt := range tests {
		got := periodBucket(base, base.AddDate(0, 0, tt.days))
		if got != tt.want {
			t.Errorf("periodBucket(%d days) = %s, want %s", tt.days, got, tt.want)
		}
	}
}

func TestBacktester_EndToEndArithmetic(t *testing.T) {
	// Entry at close 100 with 5 bps slippage and $0.005/share commission,
	// exit at close 110. Position size is 10000 (1% risk / 5% stop on 100k,
	// capped at the 10% position limit).
	simCfg := config.SimConfig{InitialCapital: 100000, CommissionPerShare: 0.005, SlippageBps: 5}
	bt, account := newBacktestFixture(t, &scriptedStrategy{enterAt: 1, exitAt: 2}, simCfg, []float64{100, 100, 110})

	start, end := defaultRange()
	result, err := bt.Run(context.Background(), BacktestRequest{Symbol: "TEST", StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.NumTrades != 1 {
		t.Fatalf("trades = %d, want 1", result.NumTrades)
	}
	trade := result.Trades[0]

	entryPrice := 100 * 1.0005 // 100.05
	if math.Abs(trade.EntryPrice-entryPrice) > 1e-9 {
		t.Errorf("entry price = %f, want %f", trade.EntryPrice, entryPrice)
	}
	if trade.Shares != 99 { // floor(10000 / 100.05)
		t.Errorf("shares = %d, want 99", trade.Shares)
	}

	exitPrice := 110 * 0.9995 // 109.945
	if math.Abs(trade.ExitPrice-exitPrice) > 1e-9 {
		t.Errorf("exit price = %f, want %f", trade.ExitPrice, exitPrice)
	}
	// (109.945 − 100.05) × 99 minus the 99 × 0.005 exit commission.
	if math.Abs(trade.PnL-979.11) > 1e-6 {
		t.Errorf("trade pnl = %f, want 979.11", trade.PnL)
	}

	// Cash flow including commissions: −(99×100.05 + 0.495) + (99×109.945 − 0.495)
	wantFinal := 100000.0 - 9905.445 + 10884.06
	if math.Abs(account.Cash()-wantFinal) > 1e-6 {
		t.Errorf("final cash = %f, want %f", account.Cash(), wantFinal)
	}
	if math.Abs(result.FinalEquity-wantFinal) > 1e-6 {
		t.Errorf("final equity = %f, want %f", result.FinalEquity, wantFinal)
	}
	if math.Abs(result.TotalReturn-(wantFinal-100000)) > 1e-6 {
		t.Errorf("total return = %f, want %f", result.TotalReturn, wantFinal-100000)
	}
	if result.Metrics.WinRate != 1.0 {
		t.Errorf("win rate = %f, want 1.0", result.Metrics.WinRate)
	}
}

func TestBacktester_ForceCloseAtEnd(t *testing.T) {
	simCfg := config.SimConfig{InitialCapital: 100000}
	bt, _ := newBacktestFixture(t, &scriptedStrategy{enterAt: 0, exitAt: -1}, simCfg, []float64{100, 105, 108})

	start, end := defaultRange()
	result, err := bt.Run(context.Background(), BacktestRequest{Symbol: "TEST", StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.NumTrades != 1 {
		t.Fatalf("trades = %d, want 1", result.NumTrades)
	}
	if result.Trades[0].Reason != "End of backtest" {
		t.Errorf("reason = %q, want %q", result.Trades[0].Reason, "End of backtest")
	}
}

func TestBacktester_NoReentrySameBar(t *testing.T) {
	// Exit and entry signalled on the same bar: the exit wins and the
	// entry is only possible on a later bar.
	simCfg := config.SimConfig{InitialCapital: 100000}
	strat := &scriptedStrategy{enterAt: 0, exitAt: 2}
	bt, account := newBacktestFixture(t, strat, simCfg, []float64{100, 100, 100, 100})

	start, end := defaultRange()
	result, err := bt.Run(context.Background(), BacktestRequest{Symbol: "TEST", StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One scripted close at bar 2; no re-entry afterwards.
	if result.NumTrades != 1 {
		t.Fatalf("trades = %d, want 1", result.NumTrades)
	}
	if result.Trades[0].Reason != "scripted exit" {
		t.Errorf("reason = %q, want scripted exit", result.Trades[0].Reason)
	}
	if len(account.Positions()) != 0 {
		t.Error("no position should remain open")
	}
}

func TestBacktester_EquityCurvePerBar(t *testing.T) {
	simCfg := config.SimConfig{InitialCapital: 100000}
	bt, _ := newBacktestFixture(t, &scriptedStrategy{enterAt: -1, exitAt: -1}, simCfg, []float64{100, 101, 102, 103})

	start, end := defaultRange()
	result, err := bt.Run(context.Background(), BacktestRequest{Symbol: "TEST", StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.EquityCurve) != 4 {
		t.Errorf("equity points = %d, want one per bar (4)", len(result.EquityCurve))
	}
	for i, equity := range result.EquityCurve {
		if equity != 100000 {
			t.Errorf("equity[%d] = %f, want 100000 with no trades", i, equity)
		}
	}
}

func TestBacktester_HardErrors(t *testing.T) {
	simCfg := config.SimConfig{InitialCapital: 100000}

	t.Run("missing history", func(t *testing.T) {
		bt, _ := newBacktestFixture(t, &scriptedStrategy{}, simCfg, []float64{100})
		start, end := defaultRange()
		if _, err := bt.Run(context.Background(), BacktestRequest{Symbol: "OTHER", StartDate: start, EndDate: end}); err == nil {
			t.Error("expected hard error for unavailable history")
		}
	})

	t.Run("empty date range", func(t *testing.T) {
		bt, _ := newBacktestFixture(t, &scriptedStrategy{}, simCfg, []float64{100, 101})
		start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		if _, err := bt.Run(context.Background(), BacktestRequest{Symbol: "TEST", StartDate: start, EndDate: start.AddDate(0, 0, 5)}); err == nil {
			t.Error("expected error when no bars fall in range")
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		bt, _ := newBacktestFixture(t, &scriptedStrategy{}, simCfg, []float64{100, 101})
		start, end := defaultRange()
		if _, err := bt.Run(context.Background(), BacktestRequest{Symbol: "TEST", StartDate: end, EndDate: start}); err == nil {
			t.Error("expected error for inverted date range")
		}
	})
}
