package strategy

import (
	"fmt"

	"github.com/rs/zerolog"

	"equity-sim/internal/market"
	"equity-sim/internal/risk"
)

// Decision layer names, in evaluation order.
const (
	LayerRegime       = "regime"
	LayerFundamentals = "fundamentals"
	LayerSentiment    = "sentiment"
	LayerIntermarket  = "intermarket"
	LayerTechnical    = "technical"
	LayerRisk         = "risk"
)

// minPassingLayers is the quorum when RequireAllLayers is off. It is a
// fixed count, not a proportion: technical+risk plus the default-passing
// context layers can still produce trades in isolated backtests.
const minPassingLayers = 4

// Baseline sizing used by the risk layer regardless of strategy settings.
const (
	baselineRiskPerTrade = 0.01
	baselineStopLossPct  = 0.05
)

// DecisionResult is the outcome of one entry evaluation. Checks holds each
// layer's verdict; Reasons is ordered by evaluation order. PositionSize is
// 0 unless Enter is true.
type DecisionResult struct {
	Enter           bool            `json:"enter"`
	Checks          map[string]bool `json:"checks"`
	Reasons         []string        `json:"reasons"`
	TechnicalSignal TechnicalSignal `json:"technical_signal"`
	PositionSize    float64         `json:"position_size"`
}

// Providers bundles the pluggable signal sources for the context layers.
// Nil entries fail their layer with a "no data" reason.
type Providers struct {
	Regime       RegimeProvider
	Fundamentals FundamentalsProvider
	Sentiment    SentimentProvider
	Intermarket  IntermarketProvider
}

// DecisionEngine gates entries through six independent layers: regime,
// fundamentals, sentiment, intermarket, technical and risk. All layers are
// evaluated on every call; there is no short-circuit, so the result always
// carries the complete picture.
type DecisionEngine struct {
	strategy  Strategy
	sizer     *risk.PositionSizer
	drawdown  *risk.DrawdownController
	exposure  *risk.ExposureManager
	providers Providers
	logger    zerolog.Logger

	// RequireAllLayers demands all six layers pass (live strategies).
	// When false, minPassingLayers of six suffice (isolated backtests).
	RequireAllLayers bool
}

// NewDecisionEngine wires a strategy to the shared risk subsystem.
func NewDecisionEngine(
	strat Strategy,
	sizer *risk.PositionSizer,
	drawdown *risk.DrawdownController,
	exposure *risk.ExposureManager,
	providers Providers,
	requireAllLayers bool,
	logger zerolog.Logger,
) *DecisionEngine {
	return &DecisionEngine{
		strategy:         strat,
		sizer:            sizer,
		drawdown:         drawdown,
		exposure:         exposure,
		providers:        providers,
		logger:           logger.With().Str("component", "decision_engine").Str("strategy", strat.Name()).Logger(),
		RequireAllLayers: requireAllLayers,
	}
}

// ShouldEnter evaluates all six layers for a prospective entry. Missing
// upstream data is a failing check with a reason, never an error.
// requiredRegime is optional; empty means no regime requirement.
func (e *DecisionEngine) ShouldEnter(symbol string, bars []market.Bar, direction, requiredRegime string) DecisionResult {
	result := DecisionResult{
		Checks:  make(map[string]bool, 6),
		Reasons: make([]string, 0, 6),
	}

	record := func(layer string, ok bool, reason string) {
		result.Checks[layer] = ok
		result.Reasons = append(result.Reasons, fmt.Sprintf("%s: %s", layer, reason))
	}

	// Layer 1: macro regime.
	if requiredRegime == "" {
		record(LayerRegime, true, "no regime requirement")
	} else if e.providers.Regime == nil {
		record(LayerRegime, false, "no regime data")
	} else if current, err := e.providers.Regime.Regime(); err != nil {
		record(LayerRegime, false, fmt.Sprintf("regime unavailable: %v", err))
	} else if current != requiredRegime {
		record(LayerRegime, false, fmt.Sprintf("regime is %s, need %s", current, requiredRegime))
	} else {
		record(LayerRegime, true, fmt.Sprintf("regime is %s", current))
	}

	// Layer 2: fundamentals.
	if e.providers.Fundamentals == nil {
		record(LayerFundamentals, false, "no fundamentals data")
	} else if ok, reason, err := e.providers.Fundamentals.CheckFundamentals(symbol); err != nil {
		record(LayerFundamentals, false, fmt.Sprintf("fundamentals unavailable: %v", err))
	} else {
		record(LayerFundamentals, ok, reason)
	}

	// Layer 3: sentiment.
	if e.providers.Sentiment == nil {
		record(LayerSentiment, false, "no sentiment data")
	} else if ok, reason, err := e.providers.Sentiment.CheckSentiment(symbol); err != nil {
		record(LayerSentiment, false, fmt.Sprintf("sentiment unavailable: %v", err))
	} else {
		record(LayerSentiment, ok, reason)
	}

	// Layer 4: intermarket confirmation.
	if e.providers.Intermarket == nil {
		record(LayerIntermarket, false, "no intermarket data")
	} else if ok, reason, err := e.providers.Intermarket.ConfirmDirection(direction); err != nil {
		record(LayerIntermarket, false, fmt.Sprintf("intermarket unavailable: %v", err))
	} else {
		record(LayerIntermarket, ok, reason)
	}

	// Layer 5: technical entry.
	signal := e.strategy.CheckTechnicalEntry(bars)
	result.TechnicalSignal = signal
	record(LayerTechnical, signal.Enter, signal.Reason)

	// Layer 6: risk. Sized with the fixed baseline, then gated on drawdown
	// and exposure.
	accountValue := e.exposure.TotalExposure().AccountValue
	sizing, err := e.sizer.Size(accountValue, baselineRiskPerTrade, baselineStopLossPct)
	switch {
	case err != nil:
		record(LayerRisk, false, fmt.Sprintf("sizing failed: %v", err))
	case !e.drawdown.CheckMaxDrawdown():
		record(LayerRisk, false, "drawdown limit reached")
	default:
		if ok, reason := e.exposure.CanAddPosition(symbol, sizing.PositionSize); !ok {
			record(LayerRisk, false, reason)
		} else {
			record(LayerRisk, true, fmt.Sprintf("position size %.2f within limits", sizing.PositionSize))
		}
	}

	passing := 0
	for _, ok := range result.Checks {
		if ok {
			passing++
		}
	}

	if e.RequireAllLayers {
		result.Enter = passing == len(result.Checks)
	} else {
		result.Enter = passing >= minPassingLayers
	}

	if result.Enter {
		result.PositionSize = sizing.PositionSize
	}

	e.logger.Debug().
		Str("symbol", symbol).
		Bool("enter", result.Enter).
		Int("passing", passing).
		Msg("entry evaluated")

	return result
}

// Strategy returns the wrapped strategy.
func (e *DecisionEngine) Strategy() Strategy {
	return e.strategy
}
