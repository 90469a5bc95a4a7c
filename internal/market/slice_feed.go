package market

import (
	"context"
	"fmt"
	"sync"
)

// SliceFeed is an in-memory HistoryProvider and QuoteProvider backed by
// preloaded bars and quotes. Used in tests and for offline development.
type SliceFeed struct {
	mu     sync.RWMutex
	bars   map[string][]Bar
	quotes map[string]Quote
}

// NewSliceFeed creates an empty feed.
func NewSliceFeed() *SliceFeed {
	return &SliceFeed{
		bars:   make(map[string][]Bar),
		quotes: make(map[string]Quote),
	}
}

// SetHistory replaces the bar series for a symbol.
func (f *SliceFeed) SetHistory(symbol string, bars []Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol] = bars
}

// SetQuote replaces the current quote for a symbol.
func (f *SliceFeed) SetQuote(symbol string, quote Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = quote
}

// GetHistory returns the preloaded bars for a symbol. The period and
// interval arguments are accepted for interface compatibility; the feed
// returns whatever was loaded.
func (f *SliceFeed) GetHistory(ctx context.Context, symbol, period, interval string) ([]Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bars, ok := f.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("no history loaded for %s", symbol)
	}

	out := make([]Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// GetQuote returns the current quote for a symbol.
func (f *SliceFeed) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	quote, ok := f.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("no quote loaded for %s", symbol)
	}
	return quote, nil
}
