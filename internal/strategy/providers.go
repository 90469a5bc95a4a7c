package strategy

// Signal providers feed the non-technical decision layers. Implementations
// live outside the core (macro detector, fundamentals screen, news
// sentiment); the engine treats a nil provider or a provider error as a
// failing check with a reason, never as a propagated error.

// Regime labels produced by a RegimeProvider.
const (
	RegimeRiskOn  = "RISK_ON"
	RegimeRiskOff = "RISK_OFF"
	RegimeNeutral = "NEUTRAL"
)

// RegimeProvider reports the current macro regime.
type RegimeProvider interface {
	Regime() (string, error)
}

// FundamentalsProvider screens a symbol's fundamentals.
type FundamentalsProvider interface {
	CheckFundamentals(symbol string) (bool, string, error)
}

// SentimentProvider screens a symbol's sentiment.
type SentimentProvider interface {
	CheckSentiment(symbol string) (bool, string, error)
}

// IntermarketProvider confirms a trade direction against cross-asset
// conditions (bonds, dollar, volatility).
type IntermarketProvider interface {
	ConfirmDirection(direction string) (bool, string, error)
}

// StaticRegime is a fixed-answer RegimeProvider for tests and offline runs.
type StaticRegime struct {
	Current string
}

func (s StaticRegime) Regime() (string, error) {
	if s.Current == "" {
		return RegimeNeutral, nil
	}
	return s.Current, nil
}

// StaticFundamentals passes or fails every symbol with a fixed verdict.
type StaticFundamentals struct {
	Pass   bool
	Reason string
}

func (s StaticFundamentals) CheckFundamentals(symbol string) (bool, string, error) {
	reason := s.Reason
	if reason == "" {
		if s.Pass {
			reason = "fundamentals acceptable"
		} else {
			reason = "fundamentals screen failed"
		}
	}
	return s.Pass, reason, nil
}

// StaticSentiment passes when its fixed score clears the threshold.
type StaticSentiment struct {
	Score     float64
	Threshold float64
}

func (s StaticSentiment) CheckSentiment(symbol string) (bool, string, error) {
	if s.Score >= s.Threshold {
		return true, "sentiment acceptable", nil
	}
	return false, "sentiment below threshold", nil
}

// StaticIntermarket confirms every direction.
type StaticIntermarket struct{}

func (StaticIntermarket) ConfirmDirection(direction string) (bool, string, error) {
	return true, "no intermarket pressure", nil
}
