// Package sim implements the simulation engines: cash/position/equity
// bookkeeping, the bar-driven backtester and the quote-driven paper trader.
package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Position is one open holding. EntryPrice is the volume-weighted average
// across incremental buys. CurrentPrice and the unrealized fields are
// transient marks, recomputed on demand.
type Position struct {
	Symbol           string    `json:"symbol"`
	Shares           int       `json:"shares"`
	EntryPrice       float64   `json:"entry_price"`
	EntryDate        time.Time `json:"entry_date"`
	CurrentPrice     float64   `json:"current_price"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
}

// Trade is a closed round trip.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Shares     int       `json:"shares"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnl_pct"`
	Reason     string    `json:"reason"`
}

// Account tracks cash, open positions, closed trades and the equity curve
// for one simulation run. It is not safe for concurrent use; the engine
// driving it owns serialization.
type Account struct {
	cash        float64
	positions   map[string]*Position
	trades      []Trade
	equityCurve []float64
	dates       []time.Time
}

// NewAccount creates an account holding only cash.
func NewAccount(initialCapital float64) *Account {
	return &Account{
		cash:      initialCapital,
		positions: make(map[string]*Position),
	}
}

// Cash returns available cash.
func (a *Account) Cash() float64 {
	return a.cash
}

// Position returns the open position for a symbol, if any.
func (a *Account) Position(symbol string) (*Position, bool) {
	p, ok := a.positions[symbol]
	return p, ok
}

// Positions returns a snapshot of all open positions.
func (a *Account) Positions() []Position {
	out := make([]Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, *p)
	}
	return out
}

// Trades returns all closed trades in close order.
func (a *Account) Trades() []Trade {
	out := make([]Trade, len(a.trades))
	copy(out, a.trades)
	return out
}

// Buy debits cash and opens or averages into a position. The entry price
// becomes the volume-weighted average across buys. Returns an error when
// cash cannot cover cost plus commission.
func (a *Account) Buy(symbol string, shares int, price, commissionPerShare float64, date time.Time) error {
	if shares <= 0 {
		return fmt.Errorf("share count must be positive, got %d", shares)
	}

	cost := float64(shares)*price + float64(shares)*commissionPerShare
	if cost > a.cash {
		return fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, a.cash)
	}

	a.cash -= cost

	if p, ok := a.positions[symbol]; ok {
		totalShares := p.Shares + shares
		p.EntryPrice = (p.EntryPrice*float64(p.Shares) + price*float64(shares)) / float64(totalShares)
		p.Shares = totalShares
		p.CurrentPrice = price
	} else {
		a.positions[symbol] = &Position{
			Symbol:       symbol,
			Shares:       shares,
			EntryPrice:   price,
			EntryDate:    date,
			CurrentPrice: price,
		}
	}

	return nil
}

// Sell credits cash, realizes P&L from the commission-net proceeds against
// the average entry cost and records a closed trade. Selling the full
// position removes it.
func (a *Account) Sell(symbol string, shares int, price, commissionPerShare float64, date time.Time, reason string) (Trade, error) {
	p, ok := a.positions[symbol]
	if !ok {
		return Trade{}, fmt.Errorf("no position in %s", symbol)
	}
	if shares <= 0 {
		return Trade{}, fmt.Errorf("share count must be positive, got %d", shares)
	}
	if shares > p.Shares {
		return Trade{}, fmt.Errorf("insufficient shares: have %d, selling %d", p.Shares, shares)
	}

	proceeds := float64(shares)*price - float64(shares)*commissionPerShare
	a.cash += proceeds

	costBasis := float64(shares) * p.EntryPrice
	pnl := proceeds - costBasis
	pnlPct := 0.0
	if costBasis > 0 {
		pnlPct = pnl / costBasis
	}

	trade := Trade{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Shares:     shares,
		EntryPrice: p.EntryPrice,
		ExitPrice:  price,
		EntryDate:  p.EntryDate,
		ExitDate:   date,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Reason:     reason,
	}
	a.trades = append(a.trades, trade)

	p.Shares -= shares
	p.CurrentPrice = price
	if p.Shares == 0 {
		delete(a.positions, symbol)
	}

	return trade, nil
}

// MarkToMarket updates the transient mark for a symbol and recomputes its
// unrealized figures.
func (a *Account) MarkToMarket(symbol string, price float64) {
	p, ok := a.positions[symbol]
	if !ok || price <= 0 {
		return
	}
	p.CurrentPrice = price
	p.UnrealizedPnL = (price - p.EntryPrice) * float64(p.Shares)
	if p.EntryPrice > 0 {
		p.UnrealizedPnLPct = (price - p.EntryPrice) / p.EntryPrice
	}
}

// Equity returns cash plus the marked value of all open positions.
// Positions without a mark fall back to their entry price.
func (a *Account) Equity() float64 {
	equity := a.cash
	for _, p := range a.positions {
		mark := p.CurrentPrice
		if mark <= 0 {
			mark = p.EntryPrice
		}
		equity += float64(p.Shares) * mark
	}
	return equity
}

// RecordEquity appends an equity snapshot to the curve.
func (a *Account) RecordEquity(equity float64, date time.Time) {
	a.equityCurve = append(a.equityCurve, equity)
	a.dates = append(a.dates, date)
}

// EquityCurve returns the recorded snapshots and their dates.
func (a *Account) EquityCurve() ([]float64, []time.Time) {
	curve := make([]float64, len(a.equityCurve))
	copy(curve, a.equityCurve)
	dates := make([]time.Time, len(a.dates))
	copy(dates, a.dates)
	return curve, dates
}

// Exposures implements risk.PositionSource: dollar exposure per held
// symbol at the current mark.
func (a *Account) Exposures() map[string]float64 {
	out := make(map[string]float64, len(a.positions))
	for symbol, p := range a.positions {
		mark := p.CurrentPrice
		if mark <= 0 {
			mark = p.EntryPrice
		}
		out[symbol] = float64(p.Shares) * mark
	}
	return out
}

// RealizedPnL sums P&L over closed trades.
func (a *Account) RealizedPnL() float64 {
	total := 0.0
	for _, t := range a.trades {
		total += t.PnL
	}
	return total
}

// UnrealizedPnL sums unrealized P&L over open positions at current marks.
func (a *Account) UnrealizedPnL() float64 {
	total := 0.0
	for _, p := range a.positions {
		mark := p.CurrentPrice
		if mark <= 0 {
			mark = p.EntryPrice
		}
		total += (mark - p.EntryPrice) * float64(p.Shares)
	}
	return total
}
