// Package regime classifies the macro market environment as risk-on,
// risk-off or neutral from a weighted composite of cross-asset indicators.
package regime

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Regime labels.
const (
	RiskOn  = "RISK_ON"
	RiskOff = "RISK_OFF"
	Neutral = "NEUTRAL"
)

// Classification thresholds on the composite risk score.
const (
	riskOnThreshold  = 0.3
	riskOffThreshold = -0.3
)

// Component weights of the composite score.
const (
	vixWeight       = 0.25
	sentimentWeight = 0.25
	bondWeight      = 0.20
	usdWeight       = 0.15
	equityWeight    = 0.15
)

// Indicators is one snapshot of the cross-asset inputs.
type Indicators struct {
	VIX             float64 `json:"vix"`
	SentimentScore  float64 `json:"sentiment_score"` // composite 0..100
	SentimentLabel  string  `json:"sentiment_label"` // bullish, bearish, neutral
	BondYieldChange float64 `json:"bond_yield_change"`
	USDChangePct    float64 `json:"usd_change_pct"`
	EquityChangePct float64 `json:"equity_change_pct"`
}

// IndicatorSource supplies indicator snapshots. Implementations live at the
// data-feed boundary; an error downgrades the detection to NEUTRAL with
// zero confidence rather than propagating.
type IndicatorSource interface {
	Snapshot() (Indicators, error)
}

// StaticIndicators is a fixed IndicatorSource for tests and offline runs.
type StaticIndicators struct {
	Values Indicators
}

func (s StaticIndicators) Snapshot() (Indicators, error) {
	return s.Values, nil
}

// Detection is the outcome of one regime evaluation.
type Detection struct {
	Regime     string     `json:"regime"`
	RiskScore  float64    `json:"risk_score"`
	Confidence float64    `json:"confidence"`
	Indicators Indicators `json:"indicators"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Detector computes and caches regime detections. It implements both the
// regime and intermarket provider contracts of the decision engine.
type Detector struct {
	mu       sync.Mutex
	source   IndicatorSource
	cacheTTL time.Duration
	cached   *Detection
	logger   zerolog.Logger
}

// NewDetector creates a detector over an indicator source. Detections are
// cached for cacheTTL; pass 0 to disable caching.
func NewDetector(source IndicatorSource, cacheTTL time.Duration, logger zerolog.Logger) *Detector {
	return &Detector{
		source:   source,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "regime_detector").Logger(),
	}
}

// DetectRegime evaluates the current regime. Indicator failures yield a
// NEUTRAL detection with zero confidence.
func (d *Detector) DetectRegime() Detection {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && d.cacheTTL > 0 && time.Since(d.cached.Timestamp) < d.cacheTTL {
		return *d.cached
	}

	indicators, err := d.source.Snapshot()
	if err != nil {
		d.logger.Warn().Err(err).Msg("indicator snapshot failed")
		return Detection{Regime: Neutral, Confidence: 0, Timestamp: time.Now().UTC()}
	}

	score := RiskScore(indicators)
	detection := Detection{
		Regime:     classify(score),
		RiskScore:  score,
		Confidence: confidence(indicators, score),
		Indicators: indicators,
		Timestamp:  time.Now().UTC(),
	}
	d.cached = &detection

	d.logger.Debug().
		Str("regime", detection.Regime).
		Float64("risk_score", detection.RiskScore).
		Float64("confidence", detection.Confidence).
		Msg("regime detected")

	return detection
}

// Regime implements the decision engine's regime provider.
func (d *Detector) Regime() (string, error) {
	return d.DetectRegime().Regime, nil
}

// ConfirmDirection implements the decision engine's intermarket provider.
// Longs are blocked by a risk-off regime or dollar strength pressuring
// equities; shorts work in either environment.
func (d *Detector) ConfirmDirection(direction string) (bool, string, error) {
	if direction != "long" {
		return true, "shorts confirmed in any regime", nil
	}

	detection := d.DetectRegime()
	if detection.Regime == RiskOff {
		return false, "risk-off regime blocks longs", nil
	}
	if detection.Indicators.USDChangePct > 0.5 {
		return false, "dollar strength pressuring equities", nil
	}
	return true, "intermarket conditions support longs", nil
}

// RiskScore computes the composite risk score in [-1, +1]: low volatility,
// bullish sentiment, rising yields, a soft dollar and rising equities all
// push toward risk-on.
func RiskScore(ind Indicators) float64 {
	score := 0.0

	score += (30 - ind.VIX) / 30 * vixWeight
	score += (ind.SentimentScore - 50) / 50 * sentimentWeight
	score += math.Tanh(ind.BondYieldChange*10) * bondWeight
	score += -math.Tanh(ind.USDChangePct*5) * usdWeight
	score += math.Tanh(ind.EquityChangePct*20) * equityWeight

	return math.Max(-1, math.Min(1, score))
}

func classify(score float64) string {
	switch {
	case score > riskOnThreshold:
		return RiskOn
	case score < riskOffThreshold:
		return RiskOff
	default:
		return Neutral
	}
}

// confidence scores indicator agreement, boosted when the composite is
// extreme.
func confidence(ind Indicators, score float64) float64 {
	vixRegime := RiskOff
	if ind.VIX < 20 {
		vixRegime = RiskOn
	}
	sentimentRegime := RiskOff
	if ind.SentimentLabel == "bullish" {
		sentimentRegime = RiskOn
	}

	conf := 0.0
	if vixRegime == sentimentRegime {
		conf = 1.0
	}

	if math.Abs(score) > 0.7 {
		conf = math.Min(1.0, conf+0.2)
	}
	return conf
}
