package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-sim/internal/sim"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Repository persists simulation results.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over an open DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveBacktestResult stores a result and all of its trades in one
// transaction.
func (r *Repository) SaveBacktestResult(ctx context.Context, result *sim.BacktestResult) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_results (
			id, symbol, strategy, start_date, end_date,
			initial_capital, final_equity, total_return, total_return_pct,
			num_trades, cagr, sharpe_ratio, max_drawdown, win_rate, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		result.ID, result.Symbol, result.Strategy, result.StartDate, result.EndDate,
		result.InitialCapital, result.FinalEquity, result.TotalReturn, result.TotalReturnPct,
		result.NumTrades, result.Metrics.CAGR, result.Metrics.SharpeRatio,
		result.Metrics.MaxDrawdown, result.Metrics.WinRate, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting backtest result: %w", err)
	}

	for _, trade := range result.Trades {
		_, err = tx.Exec(ctx, `
			INSERT INTO backtest_trades (
				id, backtest_id, symbol, shares, entry_price, exit_price,
				entry_date, exit_date, pnl, pnl_pct, reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			trade.ID, result.ID, trade.Symbol, trade.Shares, trade.EntryPrice, trade.ExitPrice,
			trade.EntryDate, trade.ExitDate, trade.PnL, trade.PnLPct, trade.Reason,
		)
		if err != nil {
			return fmt.Errorf("inserting backtest trade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing backtest result: %w", err)
	}
	return nil
}

// BacktestSummary is the stored header of a run, without trades or the
// equity curve.
type BacktestSummary struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Strategy       string  `json:"strategy"`
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturnPct float64 `json:"total_return_pct"`
	NumTrades      int     `json:"num_trades"`
	CAGR           float64 `json:"cagr"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	WinRate        float64 `json:"win_rate"`
}

// GetBacktestResult loads a stored run with its trades.
func (r *Repository) GetBacktestResult(ctx context.Context, id string) (*BacktestSummary, []sim.Trade, error) {
	var s BacktestSummary
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, symbol, strategy, initial_capital, final_equity,
		       total_return_pct, num_trades, cagr, sharpe_ratio, max_drawdown, win_rate
		FROM backtest_results WHERE id = $1`, id,
	).Scan(&s.ID, &s.Symbol, &s.Strategy, &s.InitialCapital, &s.FinalEquity,
		&s.TotalReturnPct, &s.NumTrades, &s.CAGR, &s.SharpeRatio, &s.MaxDrawdown, &s.WinRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("loading backtest result: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, symbol, shares, entry_price, exit_price, entry_date, exit_date, pnl, pnl_pct, reason
		FROM backtest_trades WHERE backtest_id = $1 ORDER BY exit_date`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading backtest trades: %w", err)
	}
	defer rows.Close()

	var trades []sim.Trade
	for rows.Next() {
		var t sim.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Shares, &t.EntryPrice, &t.ExitPrice,
			&t.EntryDate, &t.ExitDate, &t.PnL, &t.PnLPct, &t.Reason); err != nil {
			return nil, nil, fmt.Errorf("scanning backtest trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating backtest trades: %w", err)
	}

	return &s, trades, nil
}

// ListBacktestResults returns stored run headers, newest first.
func (r *Repository) ListBacktestResults(ctx context.Context, limit int) ([]BacktestSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, symbol, strategy, initial_capital, final_equity,
		       total_return_pct, num_trades, cagr, sharpe_ratio, max_drawdown, win_rate
		FROM backtest_results ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing backtest results: %w", err)
	}
	defer rows.Close()

	var out []BacktestSummary
	for rows.Next() {
		var s BacktestSummary
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Strategy, &s.InitialCapital, &s.FinalEquity,
			&s.TotalReturnPct, &s.NumTrades, &s.CAGR, &s.SharpeRatio, &s.MaxDrawdown, &s.WinRate); err != nil {
			return nil, fmt.Errorf("scanning backtest result: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
