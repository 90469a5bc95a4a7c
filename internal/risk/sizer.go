// Package risk implements the capital-protection subsystem shared by the
// backtester and the paper trader: position sizing, drawdown control with a
// kill switch, and exposure limits.
package risk

import (
	"fmt"
	"math"

	"equity-sim/config"
)

// Sizing is the breakdown of a position-size computation.
type Sizing struct {
	PositionSize    float64 `json:"position_size"`
	RiskAmount      float64 `json:"risk_amount"`
	RiskPerTrade    float64 `json:"risk_per_trade"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	MaxPositionSize float64 `json:"max_position_size"`
	CappedByMax     bool    `json:"capped_by_max"`
}

// PositionSizer converts account value and risk appetite into dollar
// position sizes and share counts.
type PositionSizer struct {
	maxPositionSizePct float64
}

// NewPositionSizer creates a sizer from the risk config.
func NewPositionSizer(cfg config.RiskConfig) *PositionSizer {
	return &PositionSizer{maxPositionSizePct: cfg.MaxPositionSizePct}
}

// Size computes the dollar position size that risks accountValue×riskPerTrade
// if the stop is hit, capped at accountValue×maxPositionSizePct. A
// non-positive stop distance is a configuration error.
func (s *PositionSizer) Size(accountValue, riskPerTrade, stopLossPct float64) (Sizing, error) {
	if stopLossPct <= 0 {
		return Sizing{}, fmt.Errorf("stop loss pct must be positive, got %f", stopLossPct)
	}

	riskAmount := accountValue * riskPerTrade
	positionSize := riskAmount / stopLossPct
	maxSize := accountValue * s.maxPositionSizePct

	capped := false
	if positionSize > maxSize {
		positionSize = maxSize
		capped = true
	}

	return Sizing{
		PositionSize:    positionSize,
		RiskAmount:      riskAmount,
		RiskPerTrade:    riskPerTrade,
		StopLossPct:     stopLossPct,
		MaxPositionSize: maxSize,
		CappedByMax:     capped,
	}, nil
}

// Shares converts a dollar position size into a whole share count. Returns 0
// when the price is not positive, otherwise at least 1 share.
func (s *PositionSizer) Shares(price, positionSize float64) int {
	if price <= 0 {
		return 0
	}

	shares := int(math.Floor(positionSize / price))
	if shares < 1 {
		shares = 1
	}
	return shares
}

// Kelly returns the half-Kelly fraction for the given win rate and
// average win/loss. avgLoss may be reported as a negative number; only its
// magnitude matters. The full Kelly fraction is clamped to [0, 1] before
// halving, so the result is in [0, 0.5]. A zero average loss yields 0.
func (s *PositionSizer) Kelly(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 0
	}

	ratio := avgWin / math.Abs(avgLoss)
	if ratio == 0 {
		return 0
	}

	kelly := (winRate*ratio - (1 - winRate)) / ratio
	if kelly < 0 {
		kelly = 0
	}
	if kelly > 1 {
		kelly = 1
	}

	return kelly / 2
}
