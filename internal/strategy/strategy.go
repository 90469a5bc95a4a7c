// Package strategy defines the trading-strategy contract and the six-layer
// decision engine that gates every entry.
package strategy

import (
	"time"

	"equity-sim/internal/market"
)

// TechnicalSignal is the outcome of a technical entry check. EntryPrice is
// the price the signal was evaluated at; execution layers may still adjust
// it for slippage.
type TechnicalSignal struct {
	Enter      bool    `json:"enter"`
	Direction  string  `json:"direction"` // "long" or "short"
	Reason     string  `json:"reason"`
	EntryPrice float64 `json:"entry_price,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// ExitSignal is the outcome of an exit check for an open position.
type ExitSignal struct {
	Exit   bool   `json:"exit"`
	Reason string `json:"reason"`
}

// PositionInfo is the slice of position state a strategy needs to decide an
// exit. The simulation engines own the full position records.
type PositionInfo struct {
	Symbol     string
	Shares     int
	EntryPrice float64
	EntryDate  time.Time
}

// Signal is one row of a signal series generated over a bar history.
type Signal struct {
	Date   time.Time `json:"date"`
	Action string    `json:"action"` // BUY, SELL or HOLD
	Reason string    `json:"reason"`
}

// Strategy is the contract every trading strategy implements. Short or
// missing history must come back as a negative signal with a reason, never
// an error.
type Strategy interface {
	Name() string
	CheckTechnicalEntry(bars []market.Bar) TechnicalSignal
	ShouldExit(bars []market.Bar, position PositionInfo) ExitSignal
	GenerateSignals(bars []market.Bar) []Signal
}
