package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equity-sim/config"
	"equity-sim/internal/market"
	"equity-sim/internal/risk"
	"equity-sim/internal/strategy"
)

// BacktestRequest describes one backtest run.
type BacktestRequest struct {
	Symbol         string    `json:"symbol"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	RequiredRegime string    `json:"required_regime,omitempty"`
}

// BacktestResult is the full outcome of a run.
type BacktestResult struct {
	ID             string      `json:"id"`
	Symbol         string      `json:"symbol"`
	Strategy       string      `json:"strategy"`
	StartDate      time.Time   `json:"start_date"`
	EndDate        time.Time   `json:"end_date"`
	InitialCapital float64     `json:"initial_capital"`
	FinalEquity    float64     `json:"final_equity"`
	TotalReturn    float64     `json:"total_return"`
	TotalReturnPct float64     `json:"total_return_pct"`
	NumTrades      int         `json:"num_trades"`
	Trades         []Trade     `json:"trades"`
	Metrics        Metrics     `json:"metrics"`
	EquityCurve    []float64   `json:"equity_curve"`
	Dates          []time.Time `json:"dates"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Backtester replays historical bars through a decision engine and tracks
// the resulting account state. Each instance drives one run at a time;
// concurrent runs need independent instances.
type Backtester struct {
	cfg      config.SimConfig
	history  market.HistoryProvider
	engine   *strategy.DecisionEngine
	sizer    *risk.PositionSizer
	drawdown *risk.DrawdownController
	exposure *risk.ExposureManager
	account  *Account
	logger   zerolog.Logger
}

// NewBacktester wires a backtester over a fresh account. The exposure
// manager must read positions from the returned account; use
// account.Exposures as its PositionSource.
func NewBacktester(
	cfg config.SimConfig,
	history market.HistoryProvider,
	engine *strategy.DecisionEngine,
	sizer *risk.PositionSizer,
	drawdown *risk.DrawdownController,
	exposure *risk.ExposureManager,
	account *Account,
	logger zerolog.Logger,
) *Backtester {
	return &Backtester{
		cfg:      cfg,
		history:  history,
		engine:   engine,
		sizer:    sizer,
		drawdown: drawdown,
		exposure: exposure,
		account:  account,
		logger:   logger.With().Str("component", "backtester").Logger(),
	}
}

// periodBucket maps a date range onto the coarse lookback buckets history
// providers understand.
func periodBucket(start, end time.Time) string {
	days := int(end.Sub(start).Hours() / 24)
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	default:
		return "2y"
	}
}

// Run executes the backtest. A failed or empty history fetch is a hard
// error; a backtest cannot proceed without data.
func (b *Backtester) Run(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("end date %s is not after start date %s", req.EndDate.Format("2006-01-02"), req.StartDate.Format("2006-01-02"))
	}

	period := periodBucket(req.StartDate, req.EndDate)
	bars, err := b.history.GetHistory(ctx, req.Symbol, period, "1d")
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", req.Symbol, err)
	}

	bars = market.AddIndicators(bars)
	bars = filterDateRange(bars, req.StartDate, req.EndDate)
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s between %s and %s", req.Symbol, req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"))
	}

	b.logger.Info().
		Str("symbol", req.Symbol).
		Int("bars", len(bars)).
		Str("period", period).
		Msg("backtest started")

	for i, bar := range bars {
		// Equity snapshot first so risk state reflects the latest mark
		// before any decision on this bar.
		b.account.MarkToMarket(req.Symbol, bar.Close)
		equity := b.account.Equity()
		b.account.RecordEquity(equity, bar.Date)
		b.drawdown.Update(equity)
		b.exposure.UpdateAccountValue(equity)

		window := bars[:i+1]

		if p, held := b.account.Position(req.Symbol); held {
			exit := b.engine.Strategy().ShouldExit(window, strategy.PositionInfo{
				Symbol:     p.Symbol,
				Shares:     p.Shares,
				EntryPrice: p.EntryPrice,
				EntryDate:  p.EntryDate,
			})
			if exit.Exit {
				b.closePosition(req.Symbol, p.Shares, bar, exit.Reason)
			}
			// A position closed on this bar is only eligible for re-entry
			// on the next bar.
			continue
		}

		decision := b.engine.ShouldEnter(req.Symbol, window, "long", req.RequiredRegime)
		if decision.Enter {
			b.openPosition(req.Symbol, decision.PositionSize, bar)
		}
	}

	// Force-close anything still open at the final bar.
	lastBar := bars[len(bars)-1]
	if p, held := b.account.Position(req.Symbol); held {
		b.closePosition(req.Symbol, p.Shares, lastBar, "End of backtest")
	}

	curve, dates := b.account.EquityCurve()
	finalEquity := b.account.Equity()
	trades := b.account.Trades()

	result := &BacktestResult{
		ID:             uuid.New().String(),
		Symbol:         req.Symbol,
		Strategy:       b.engine.Strategy().Name(),
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		InitialCapital: b.cfg.InitialCapital,
		FinalEquity:    finalEquity,
		TotalReturn:    finalEquity - b.cfg.InitialCapital,
		NumTrades:      len(trades),
		Trades:         trades,
		Metrics:        ComputeMetrics(curve, trades, len(bars)),
		EquityCurve:    curve,
		Dates:          dates,
		CreatedAt:      time.Now().UTC(),
	}
	if b.cfg.InitialCapital > 0 {
		result.TotalReturnPct = result.TotalReturn / b.cfg.InitialCapital
	}

	b.logger.Info().
		Str("symbol", req.Symbol).
		Int("trades", result.NumTrades).
		Float64("final_equity", finalEquity).
		Msg("backtest finished")

	return result, nil
}

// openPosition buys at the bar close adjusted for slippage. A cost above
// available cash skips the entry without failing the run.
func (b *Backtester) openPosition(symbol string, positionSize float64, bar market.Bar) {
	execPrice := bar.Close * (1 + b.cfg.SlippageBps/10000)
	shares := b.sizer.Shares(execPrice, positionSize)
	if shares == 0 {
		return
	}

	cost := float64(shares)*execPrice + float64(shares)*b.cfg.CommissionPerShare
	if cost > b.account.Cash() {
		b.logger.Debug().
			Str("symbol", symbol).
			Float64("cost", cost).
			Float64("cash", b.account.Cash()).
			Msg("entry skipped, insufficient cash")
		return
	}

	if err := b.account.Buy(symbol, shares, execPrice, b.cfg.CommissionPerShare, bar.Date); err != nil {
		b.logger.Debug().Err(err).Str("symbol", symbol).Msg("entry skipped")
		return
	}

	b.logger.Debug().
		Str("symbol", symbol).
		Int("shares", shares).
		Float64("price", execPrice).
		Msg("position opened")
}

func (b *Backtester) closePosition(symbol string, shares int, bar market.Bar, reason string) {
	execPrice := bar.Close * (1 - b.cfg.SlippageBps/10000)
	trade, err := b.account.Sell(symbol, shares, execPrice, b.cfg.CommissionPerShare, bar.Date, reason)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("close failed")
		return
	}

	b.logger.Debug().
		Str("symbol", symbol).
		Float64("pnl", trade.PnL).
		Str("reason", reason).
		Msg("position closed")
}

func filterDateRange(bars []market.Bar, start, end time.Time) []market.Bar {
	out := make([]market.Bar, 0, len(bars))
	for _, bar := range bars {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
