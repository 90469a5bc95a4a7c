package regime

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func bullishIndicators() Indicators {
	return Indicators{
		VIX:             12,
		SentimentScore:  80,
		SentimentLabel:  "bullish",
		BondYieldChange: 0.05,
		USDChangePct:    -0.3,
		EquityChangePct: 0.8,
	}
}

func bearishIndicators() Indicators {
	return Indicators{
		VIX:             45,
		SentimentScore:  15,
		SentimentLabel:  "bearish",
		BondYieldChange: -0.10,
		USDChangePct:    1.2,
		EquityChangePct: -2.5,
	}
}

func TestRiskScore_Bounds(t *testing.T) {
	extreme := Indicators{VIX: 0, SentimentScore: 100, BondYieldChange: 10, USDChangePct: -10, EquityChangePct: 10}
	if score := RiskScore(extreme); score > 1 {
		t.Errorf("score %f above +1", score)
	}

	crash := Indicators{VIX: 90, SentimentScore: 0, BondYieldChange: -10, USDChangePct: 10, EquityChangePct: -10}
	if score := RiskScore(crash); score < -1 {
		t.Errorf("score %f below -1", score)
	}
}

func TestDetector_Classification(t *testing.T) {
	tests := []struct {
		name       string
		indicators Indicators
		want       string
	}{
		{"bullish inputs", bullishIndicators(), RiskOn},
		{"bearish inputs", bearishIndicators(), RiskOff},
		{"flat inputs", Indicators{VIX: 30, SentimentScore: 50}, Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(StaticIndicators{Values: tt.indicators}, 0, zerolog.Nop())
			detection := d.DetectRegime()
			if detection.Regime != tt.want {
				t.Errorf("regime = %s (score %f), want %s", detection.Regime, detection.RiskScore, tt.want)
			}
		})
	}
}

type failingSource struct{}

func (failingSource) Snapshot() (Indicators, error) {
	return Indicators{}, errors.New("feed down")
}

func TestDetector_SourceFailure(t *testing.T) {
	d := NewDetector(failingSource{}, 0, zerolog.Nop())
	detection := d.DetectRegime()

	if detection.Regime != Neutral {
		t.Errorf("regime on failure = %s, want %s", detection.Regime, Neutral)
	}
	if detection.Confidence != 0 {
		t.Errorf("confidence on failure = %f, want 0", detection.Confidence)
	}
}

func TestDetector_ConfirmDirection(t *testing.T) {
	t.Run("risk-off blocks longs", func(t *testing.T) {
		d := NewDetector(StaticIndicators{Values: bearishIndicators()}, 0, zerolog.Nop())
		ok, reason, err := d.ConfirmDirection("long")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Errorf("long confirmed in risk-off: %s", reason)
		}
	})

	t.Run("dollar strength blocks longs", func(t *testing.T) {
		ind := bullishIndicators()
		ind.USDChangePct = 1.0
		d := NewDetector(StaticIndicators{Values: ind}, 0, zerolog.Nop())
		ok, reason, _ := d.ConfirmDirection("long")
		if ok {
			t.Errorf("long confirmed with surging dollar: %s", reason)
		}
	})

	t.Run("risk-on confirms longs", func(t *testing.T) {
		d := NewDetector(StaticIndicators{Values: bullishIndicators()}, 0, zerolog.Nop())
		if ok, reason, _ := d.ConfirmDirection("long"); !ok {
			t.Errorf("long blocked in risk-on: %s", reason)
		}
	})

	t.Run("shorts always confirm", func(t *testing.T) {
		d := NewDetector(StaticIndicators{Values: bearishIndicators()}, 0, zerolog.Nop())
		if ok, _, _ := d.ConfirmDirection("short"); !ok {
			t.Error("short should confirm in any regime")
		}
	})
}

func TestDetector_Caching(t *testing.T) {
	source := &countingSource{values: bullishIndicators()}
	d := NewDetector(source, time.Minute, zerolog.Nop())

	d.DetectRegime()
	d.DetectRegime()
	d.DetectRegime()

	if source.calls != 1 {
		t.Errorf("snapshot calls = %d, want 1 within TTL", source.calls)
	}
}

type countingSource struct {
	values Indicators
	calls  int
}

func (s *countingSource) Snapshot() (Indicators, error) {
	s.calls++
	return s.values, nil
}

func TestConfidence_ExtremeBoost(t *testing.T) {
	ind := bullishIndicators()
	score := RiskScore(ind)
	if math.Abs(score) <= 0.7 {
		t.Skipf("fixture score %f not extreme", score)
	}
	if c := confidence(ind, score); c != 1.0 {
		t.Errorf("confidence = %f, want 1.0 for agreeing extreme inputs", c)
	}
}
