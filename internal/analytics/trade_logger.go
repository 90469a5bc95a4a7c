package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equity-sim/internal/sim"
)

// Entry is one logged record: either an order execution or a closed trade.
type Entry struct {
	LoggedAt time.Time  `json:"logged_at"`
	Kind     string     `json:"kind"` // "execution" or "trade"
	Symbol   string     `json:"symbol"`
	Order    *sim.Order `json:"order,omitempty"`
	Trade    *sim.Trade `json:"trade,omitempty"`
}

// TradeLogger appends executions and closed trades to a JSON log file.
// Existing entries are loaded on construction so history survives
// restarts. It implements sim.ExecutionRecorder.
type TradeLogger struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	logger  zerolog.Logger
}

// NewTradeLogger opens or creates the log at path. A malformed existing
// file is an error; delete it deliberately rather than silently losing
// history.
func NewTradeLogger(path string, logger zerolog.Logger) (*TradeLogger, error) {
	tl := &TradeLogger{
		path:   path,
		logger: logger.With().Str("component", "trade_logger").Logger(),
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &tl.entries); err != nil {
			return nil, fmt.Errorf("parsing trade log %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading trade log %s: %w", path, err)
	}

	return tl, nil
}

// RecordExecution implements sim.ExecutionRecorder.
func (tl *TradeLogger) RecordExecution(order sim.Order) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.entries = append(tl.entries, Entry{
		LoggedAt: time.Now().UTC(),
		Kind:     "execution",
		Symbol:   order.Symbol,
		Order:    &order,
	})
	return tl.save()
}

// LogTrade records a closed trade.
func (tl *TradeLogger) LogTrade(trade sim.Trade) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.entries = append(tl.entries, Entry{
		LoggedAt: time.Now().UTC(),
		Kind:     "trade",
		Symbol:   trade.Symbol,
		Trade:    &trade,
	})
	return tl.save()
}

// History returns entries filtered by symbol and logged-at range. Zero
// times and an empty symbol disable their filters.
func (tl *TradeLogger) History(symbol string, start, end time.Time) []Entry {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	out := make([]Entry, 0, len(tl.entries))
	for _, e := range tl.entries {
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		if !start.IsZero() && e.LoggedAt.Before(start) {
			continue
		}
		if !end.IsZero() && e.LoggedAt.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Analyze summarizes the logged closed trades.
func (tl *TradeLogger) Analyze() map[string]interface{} {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	trades := 0
	wins := 0
	losses := 0
	totalPnL := 0.0
	for _, e := range tl.entries {
		if e.Kind != "trade" || e.Trade == nil {
			continue
		}
		trades++
		totalPnL += e.Trade.PnL
		if e.Trade.PnL > 0 {
			wins++
		} else if e.Trade.PnL < 0 {
			losses++
		}
	}

	summary := map[string]interface{}{
		"total_trades":   trades,
		"winning_trades": wins,
		"losing_trades":  losses,
		"total_pnl":      totalPnL,
	}
	if trades > 0 {
		summary["win_rate"] = float64(wins) / float64(trades)
		summary["avg_pnl"] = totalPnL / float64(trades)
	}
	return summary
}

func (tl *TradeLogger) save() error {
	if dir := filepath.Dir(tl.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(tl.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trade log: %w", err)
	}
	if err := os.WriteFile(tl.path, data, 0o644); err != nil {
		return fmt.Errorf("writing trade log: %w", err)
	}
	return nil
}
