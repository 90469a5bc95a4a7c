package risk

import (
	"sync"

	"github.com/rs/zerolog"

	"equity-sim/config"
)

// Controller states. KILLED is sticky: it persists across equity updates
// until an operator calls ResetKillSwitch.
const (
	StateNormal      = "NORMAL"
	StateRiskReduced = "RISK_REDUCED"
	StateKilled      = "KILLED"
)

// DrawdownInfo is a snapshot of the controller's view of the equity curve.
// Drawdown figures are fractions of the running peak (0.15 = 15%).
type DrawdownInfo struct {
	CurrentEquity    float64 `json:"current_equity"`
	Peak             float64 `json:"peak"`
	CurrentDrawdown  float64 `json:"current_drawdown"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	KillSwitchActive bool    `json:"kill_switch_active"`
	State            string  `json:"state"`
}

// DrawdownController tracks an equity curve, computes drawdown against the
// running peak, and gates trading through a risk-reduction multiplier and a
// kill switch.
type DrawdownController struct {
	mu          sync.RWMutex
	cfg         config.RiskConfig
	logger      zerolog.Logger
	equityCurve []float64
	peak        float64
	maxDrawdown float64
	killSwitch  bool
}

// NewDrawdownController creates a controller with an empty equity curve.
func NewDrawdownController(cfg config.RiskConfig, logger zerolog.Logger) *DrawdownController {
	return &DrawdownController{
		cfg:    cfg,
		logger: logger.With().Str("component", "drawdown").Logger(),
	}
}

// Update appends an equity snapshot, advances the running peak, and trips
// the kill switch when drawdown exceeds the kill threshold. History is never
// removed.
func (c *DrawdownController) Update(equity float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.equityCurve = append(c.equityCurve, equity)
	if equity > c.peak {
		c.peak = equity
	}

	dd := c.currentDrawdownLocked()
	if dd > c.maxDrawdown {
		c.maxDrawdown = dd
	}

	if !c.killSwitch && dd > c.cfg.KillSwitchDrawdown {
		c.killSwitch = true
		c.logger.Error().
			Float64("drawdown", dd).
			Float64("threshold", c.cfg.KillSwitchDrawdown).
			Msg("kill switch activated")
	}
}

func (c *DrawdownController) currentDrawdownLocked() float64 {
	if len(c.equityCurve) == 0 || c.peak <= 0 {
		return 0
	}
	equity := c.equityCurve[len(c.equityCurve)-1]
	return (c.peak - equity) / c.peak
}

// Drawdown returns the current snapshot. An empty curve yields safe zero
// defaults, never an error.
func (c *DrawdownController) Drawdown() DrawdownInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := DrawdownInfo{
		Peak:             c.peak,
		CurrentDrawdown:  c.currentDrawdownLocked(),
		MaxDrawdown:      c.maxDrawdown,
		KillSwitchActive: c.killSwitch,
		State:            c.stateLocked(),
	}
	if len(c.equityCurve) > 0 {
		info.CurrentEquity = c.equityCurve[len(c.equityCurve)-1]
	}
	return info
}

// CheckMaxDrawdown reports whether trading is allowed: the kill switch is
// inactive and current drawdown is below the max-drawdown limit.
func (c *DrawdownController) CheckMaxDrawdown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.killSwitch {
		return false
	}
	return c.currentDrawdownLocked() < c.cfg.MaxDrawdownPct
}

// ShouldReduceRisk reports whether drawdown has exceeded the risk-reduction
// threshold.
func (c *DrawdownController) ShouldReduceRisk() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentDrawdownLocked() > c.cfg.ReduceRiskAtDrawdown
}

// RiskMultiplier returns the factor to apply to per-trade risk: 0 when
// killed, the configured reduction multiplier when drawn down, 1 otherwise.
func (c *DrawdownController) RiskMultiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.killSwitch {
		return 0
	}
	if c.currentDrawdownLocked() > c.cfg.ReduceRiskAtDrawdown {
		return c.cfg.ReduceRiskMultiplier
	}
	return 1.0
}

// ActivateKillSwitch trips the kill switch manually. Returns true if this
// call changed the state.
func (c *DrawdownController) ActivateKillSwitch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killSwitch {
		return false
	}
	c.killSwitch = true
	c.logger.Warn().Msg("kill switch activated manually")
	return true
}

// KillSwitchActive reports whether the kill switch has tripped.
func (c *DrawdownController) KillSwitchActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.killSwitch
}

// ResetKillSwitch clears the kill switch. This is a deliberate manual gate;
// equity recovery alone never clears it.
func (c *DrawdownController) ResetKillSwitch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killSwitch {
		c.logger.Warn().Msg("kill switch reset")
	}
	c.killSwitch = false
}

// State returns NORMAL, RISK_REDUCED or KILLED.
func (c *DrawdownController) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *DrawdownController) stateLocked() string {
	if c.killSwitch {
		return StateKilled
	}
	if c.currentDrawdownLocked() > c.cfg.ReduceRiskAtDrawdown {
		return StateRiskReduced
	}
	return StateNormal
}
