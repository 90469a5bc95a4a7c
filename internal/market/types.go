// Package market defines the price-data contracts the simulation engines
// consume: OHLCV bars with attached indicators, live quotes, and the
// provider interfaces a data-feed collaborator implements.
package market

import (
	"context"
	"time"
)

// Bar is one OHLCV sample for a fixed interval, with indicator columns
// attached by AddIndicators. Indicator fields are zero until enriched.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	EMA20      float64 `json:"ema_20,omitempty"`
	EMA50      float64 `json:"ema_50,omitempty"`
	EMA200     float64 `json:"ema_200,omitempty"`
	RSI        float64 `json:"rsi,omitempty"`
	ATR        float64 `json:"atr,omitempty"`
	MACD       float64 `json:"macd,omitempty"`
	MACDSignal float64 `json:"macd_signal,omitempty"`
	MACDHist   float64 `json:"macd_hist,omitempty"`
	BBUpper    float64 `json:"bb_upper,omitempty"`
	BBMiddle   float64 `json:"bb_middle,omitempty"`
	BBLower    float64 `json:"bb_lower,omitempty"`
}

// Quote is a point-in-time price snapshot. A Price of 0 means the symbol
// cannot be priced right now; callers treat that as a soft condition.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Volume        float64   `json:"volume"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// HistoryProvider supplies historical bars, ascending by date. period is a
// coarse lookback bucket ("5d", "1mo", "3mo", "6mo", "1y", "2y") and
// interval a bar width ("1d", "1h"). An empty result or an error is a hard
// failure for backtests.
type HistoryProvider interface {
	GetHistory(ctx context.Context, symbol, period, interval string) ([]Bar, error)
}

// QuoteProvider supplies live quotes. A failed lookup during live-style
// execution is soft: the caller rejects the order rather than crashing.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}
